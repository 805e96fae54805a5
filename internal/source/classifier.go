package source

import "strings"

// Format is the container format of a raw export.
type Format string

const (
	FormatNDJSON Format = "ndjson"
	FormatGzip   Format = "gzip"
	FormatTarGz  Format = "tar.gz"
)

var tarSuffixes = []string{".tar.gz", ".tgz"}
var gzipSuffixes = []string{".gz", ".gzip"}

// Classify determines the container format from the object key.
// Anything that is not a compressed archive is read as line-delimited JSON.
func Classify(key string) Format {
	keyLower := strings.ToLower(key)

	for _, suf := range tarSuffixes {
		if strings.HasSuffix(keyLower, suf) {
			return FormatTarGz
		}
	}
	for _, suf := range gzipSuffixes {
		if strings.HasSuffix(keyLower, suf) {
			return FormatGzip
		}
	}
	return FormatNDJSON
}

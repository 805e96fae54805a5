// Package source extracts raw entity records from compressed line-delimited JSON exports.
package source

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/ignite/receipt-normalizer/internal/datanorm"
	"github.com/ignite/receipt-normalizer/internal/pkg/logger"
	"github.com/ignite/receipt-normalizer/internal/storage"
)

const maxLineSize = 32 * 1024 * 1024

// ErrMemberNotFound is returned when a tar archive lacks the requested member.
var ErrMemberNotFound = errors.New("source: archive member not found")

// Entity locates one entity's export. Member names the file inside a tar archive
// and defaults to the base name of Key without its archive suffix.
type Entity struct {
	Key    string `yaml:"key" validate:"required"`
	Member string `yaml:"member"`
}

// Config locates the three raw exports and the backend holding them.
type Config struct {
	storage.Config `yaml:",inline"`
	Users          Entity `yaml:"users"`
	Brands         Entity `yaml:"brands"`
	Receipts       Entity `yaml:"receipts"`
}

// Raw is the extracted input of one run.
type Raw struct {
	Users    []datanorm.Record
	Brands   []datanorm.Record
	Receipts []datanorm.Record
}

// Source reads entity exports from an object store.
type Source struct {
	store storage.ObjectStore
	cfg   Config
}

func New(store storage.ObjectStore, cfg Config) *Source {
	return &Source{store: store, cfg: cfg}
}

// ReadAll extracts users, brands and receipts in that order.
func (s *Source) ReadAll(ctx context.Context) (*Raw, error) {
	var raw Raw
	var err error
	if raw.Users, err = s.Read(ctx, s.cfg.Users); err != nil {
		return nil, fmt.Errorf("users: %w", err)
	}
	if raw.Brands, err = s.Read(ctx, s.cfg.Brands); err != nil {
		return nil, fmt.Errorf("brands: %w", err)
	}
	if raw.Receipts, err = s.Read(ctx, s.cfg.Receipts); err != nil {
		return nil, fmt.Errorf("receipts: %w", err)
	}
	return &raw, nil
}

// Read extracts the records of one export.
func (s *Source) Read(ctx context.Context, e Entity) ([]datanorm.Record, error) {
	rc, err := s.store.Open(ctx, e.Key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	format := Classify(e.Key)
	records, err := ReadRecords(rc, format, memberName(e))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.Key, err)
	}
	logger.Info("source: extracted", "key", e.Key, "format", string(format), "records", len(records))
	return records, nil
}

func memberName(e Entity) string {
	if e.Member != "" {
		return e.Member
	}
	base := path.Base(e.Key)
	for _, suf := range append(tarSuffixes, gzipSuffixes...) {
		if strings.HasSuffix(strings.ToLower(base), suf) {
			return base[:len(base)-len(suf)]
		}
	}
	return base
}

// ReadRecords decompresses r according to format and decodes its lines.
func ReadRecords(r io.Reader, format Format, member string) ([]datanorm.Record, error) {
	switch format {
	case FormatNDJSON:
		return DecodeLines(r)
	case FormatGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer zr.Close()
		return DecodeLines(zr)
	case FormatTarGz:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer zr.Close()
		return readTarMember(tar.NewReader(zr), member)
	}
	return nil, fmt.Errorf("unsupported format %q", format)
}

func readTarMember(tr *tar.Reader, member string) ([]datanorm.Record, error) {
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil, fmt.Errorf("%w: %s", ErrMemberNotFound, member)
		}
		if err != nil {
			return nil, fmt.Errorf("tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		name := strings.TrimPrefix(hdr.Name, "./")
		if name == member || path.Base(name) == member {
			return DecodeLines(tr)
		}
	}
}

// DecodeLines decodes one JSON object per line, keeping numbers in their source
// form. Blank lines are skipped; a malformed line fails with its line number.
func DecodeLines(r io.Reader) ([]datanorm.Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), maxLineSize)

	var records []datanorm.Record
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		var rec datanorm.Record
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return records, fmt.Errorf("line %d: %w", lineNum+1, err)
	}
	return records, nil
}

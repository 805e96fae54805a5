package source

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/receipt-normalizer/internal/storage"
)

const usersNDJSON = `{"_id": {"$oid": "u1"}, "active": true, "createdDate": {"$date": 1609687531000}, "role": "consumer"}

{"_id": {"$oid": "u2"}, "role": "fetch-staff"}
`

func gzipBytes(t *testing.T, data string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func tarGzBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "./data/", Typeflag: tar.TypeDir, Mode: 0o755}))
	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(body)), Typeflag: tar.TypeReg}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	return gzipBytes(t, tarBuf.String())
}

func TestClassify(t *testing.T) {
	tests := map[string]Format{
		"users.json.tar.gz":   FormatTarGz,
		"exports/USERS.TGZ":   FormatTarGz,
		"brands.json.gz":      FormatGzip,
		"receipts.ndjson":     FormatNDJSON,
		"s3/prefix/data.json": FormatNDJSON,
	}
	for key, want := range tests {
		assert.Equal(t, want, Classify(key), key)
	}
}

func TestDecodeLines(t *testing.T) {
	records, err := DecodeLines(strings.NewReader(usersNDJSON))
	require.NoError(t, err)
	require.Len(t, records, 2)

	created := records[0]["createdDate"].(map[string]any)
	assert.Equal(t, json.Number("1609687531000"), created["$date"])
	assert.Equal(t, true, records[0]["active"])
}

func TestDecodeLinesReportsLineNumber(t *testing.T) {
	_, err := DecodeLines(strings.NewReader("{\"a\": 1}\n\n{broken\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}

func TestReadRecordsFormats(t *testing.T) {
	records, err := ReadRecords(bytes.NewReader(gzipBytes(t, usersNDJSON)), FormatGzip, "")
	require.NoError(t, err)
	assert.Len(t, records, 2)

	archive := tarGzBytes(t, map[string]string{
		"./data/README":     "not json",
		"./data/users.json": usersNDJSON,
	})
	records, err = ReadRecords(bytes.NewReader(archive), FormatTarGz, "users.json")
	require.NoError(t, err)
	assert.Len(t, records, 2)

	_, err = ReadRecords(bytes.NewReader(archive), FormatTarGz, "brands.json")
	assert.ErrorIs(t, err, ErrMemberNotFound)
}

func TestSourceReadAll(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "users.json.tar.gz"),
		tarGzBytes(t, map[string]string{"users.json": usersNDJSON}), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "brands.json.gz"),
		gzipBytes(t, `{"_id": {"$oid": "b1"}, "barcode": "511111019862", "name": "Acme"}`+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "receipts.json"),
		[]byte(`{"_id": {"$oid": "r1"}, "rewardsReceiptItemList": [{"barcode": "511111019862"}]}`+"\n"), 0o644))

	src := New(storage.NewLocalStorage(dir), Config{
		Users:    Entity{Key: "users.json.tar.gz"},
		Brands:   Entity{Key: "brands.json.gz"},
		Receipts: Entity{Key: "receipts.json"},
	})
	raw, err := src.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, raw.Users, 2)
	assert.Len(t, raw.Brands, 1)
	require.Len(t, raw.Receipts, 1)
	assert.IsType(t, []any{}, raw.Receipts[0]["rewardsReceiptItemList"])
}

func TestMemberName(t *testing.T) {
	assert.Equal(t, "users.json", memberName(Entity{Key: "raw/users.json.tar.gz"}))
	assert.Equal(t, "x.json", memberName(Entity{Key: "raw/users.tgz", Member: "x.json"}))
}

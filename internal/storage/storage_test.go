package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string][]byte
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func TestNewDefaultsToLocal(t *testing.T) {
	s, err := New(context.Background(), Config{LocalPath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, s)

	_, err = New(context.Background(), Config{Type: "ftp"})
	assert.Error(t, err)
}

func TestLocalStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewLocalStorage(dir)

	require.NoError(t, s.PutJSON(ctx, "runs/2024/summary.json", map[string]int{"users": 3}))

	rc, err := s.Open(ctx, "runs/2024/summary.json")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"users": 3}`, string(data))

	abs := filepath.Join(dir, "raw.json")
	require.NoError(t, os.WriteFile(abs, []byte("{}\n"), 0o644))
	rc2, err := NewLocalStorage("/elsewhere").Open(ctx, abs)
	require.NoError(t, err)
	rc2.Close()

	_, err = s.Open(ctx, "missing.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAWSStorage(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{"raw/receipts.json": []byte(`{"_id":"r1"}`)}}
	s := NewAWSStorageWithClient(fake, "raw")

	rc, err := s.Open(ctx, "receipts.json")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, `{"_id":"r1"}`, string(data))

	require.NoError(t, s.PutJSON(ctx, "runs/latest.json", []string{"ok"}))
	assert.JSONEq(t, `["ok"]`, string(fake.objects["raw/runs/latest.json"]))

	_, err = s.Open(ctx, "nope.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

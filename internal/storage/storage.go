// Package storage reads raw exports and writes run archives, on local disk or S3.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("storage: object not found")

// Config selects the backend.
type Config struct {
	Type       string `yaml:"type" validate:"omitempty,oneof=local s3"`
	LocalPath  string `yaml:"local_path"`
	Bucket     string `yaml:"bucket" validate:"required_if=Type s3"`
	Region     string `yaml:"region"`
	AWSProfile string `yaml:"aws_profile"`
}

// ObjectStore reads and writes whole objects by key.
type ObjectStore interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	PutJSON(ctx context.Context, key string, v any) error
}

// New returns the backend named by cfg.Type; local is the default.
func New(ctx context.Context, cfg Config) (ObjectStore, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocalStorage(cfg.LocalPath), nil
	case "s3":
		return NewAWSStorage(ctx, cfg.Bucket, cfg.Region, cfg.AWSProfile)
	}
	return nil, fmt.Errorf("storage: unknown type %q", cfg.Type)
}

// LocalStorage resolves keys against a root directory. Absolute keys are used as-is.
type LocalStorage struct {
	root string
}

func NewLocalStorage(root string) *LocalStorage {
	return &LocalStorage{root: root}
}

func (s *LocalStorage) path(key string) string {
	if filepath.IsAbs(key) || s.root == "" {
		return filepath.Clean(key)
	}
	return filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(key, "/")))
}

// Open opens the file behind key.
func (s *LocalStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", key, err)
	}
	return f, nil
}

// PutJSON writes v as indented JSON, creating parent directories.
func (s *LocalStorage) PutJSON(_ context.Context, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling data: %w", err)
	}
	p := s.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", key, err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

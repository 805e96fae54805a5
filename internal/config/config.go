package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ignite/receipt-normalizer/internal/datanorm"
	"github.com/ignite/receipt-normalizer/internal/source"
	"github.com/ignite/receipt-normalizer/internal/storage"
	"github.com/ignite/receipt-normalizer/internal/store"
)

// ErrInvalid wraps every validation failure returned by Load.
var ErrInvalid = errors.New("config: invalid")

// Config holds all configuration for the normalizer and its server.
type Config struct {
	Source   source.Config  `yaml:"source"`
	Store    store.Config   `yaml:"store"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Redis    RedisConfig    `yaml:"redis"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// PipelineConfig tunes the cleaning stages and the run bookkeeping.
type PipelineConfig struct {
	ItemIDs                     string `yaml:"item_ids" validate:"oneof=deterministic random"`
	CanonicalizePlainTimestamps bool   `yaml:"canonicalize_plain_timestamps"`
	LockTTLSeconds              int    `yaml:"lock_ttl_seconds" validate:"gte=0"`
	LockKey                     string `yaml:"lock_key"`
	SkipReports                 bool   `yaml:"skip_reports"`
	// ArchiveBucket enables summary archiving to S3; ArchivePath does the same on disk.
	ArchiveBucket string `yaml:"archive_bucket"`
	ArchivePath   string `yaml:"archive_path"`
	ArchivePrefix string `yaml:"archive_prefix"`
}

// RedisConfig enables the Redis run lock when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port" validate:"gte=1,lte=65535"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level    string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Truncate int    `yaml:"truncate" validate:"gte=0"`
}

// Addr is host:port for the listener.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LockTTL is the lease of the run lock.
func (c PipelineConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// NormalizerConfig maps the pipeline section onto the cleaners' options.
func (c PipelineConfig) NormalizerConfig() datanorm.Config {
	return datanorm.Config{ItemIDs: c.ItemIDs, CanonicalizePlainTimestamps: c.CanonicalizePlainTimestamps}
}

// ArchiveStorage returns the backend summaries are written to, and false when archiving is off.
func (c PipelineConfig) ArchiveStorage(src storage.Config) (storage.Config, bool) {
	switch {
	case c.ArchiveBucket != "":
		return storage.Config{Type: "s3", Bucket: c.ArchiveBucket, Region: src.Region, AWSProfile: src.AWSProfile}, true
	case c.ArchivePath != "":
		return storage.Config{Type: "local", LocalPath: c.ArchivePath}, true
	}
	return storage.Config{}, false
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads, defaults and validates the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv loads .env (if present), then the file at path (if any), then
// applies environment overrides and validates the result.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Store.DSN = v
		if os.Getenv("STORE_DRIVER") == "" && strings.HasPrefix(v, "postgres") {
			cfg.Store.Driver = "postgres"
		}
	}
	if v := os.Getenv("STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("SOURCE_S3_BUCKET"); v != "" {
		cfg.Source.Type = "s3"
		cfg.Source.Bucket = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" && cfg.Source.Region == "" {
		cfg.Source.Region = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Source.Type == "" {
		cfg.Source.Type = "local"
	}
	if cfg.Source.LocalPath == "" && cfg.Source.Type == "local" {
		cfg.Source.LocalPath = "./data"
	}
	if cfg.Source.Users.Key == "" {
		cfg.Source.Users.Key = "users.json.gz"
	}
	if cfg.Source.Brands.Key == "" {
		cfg.Source.Brands.Key = "brands.json.gz"
	}
	if cfg.Source.Receipts.Key == "" {
		cfg.Source.Receipts.Key = "receipts.json.gz"
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "sqlite"
	}
	if cfg.Store.DSN == "" && cfg.Store.Driver == "sqlite" {
		cfg.Store.DSN = "file:receipts.db"
	}
	if cfg.Store.BatchSize == 0 {
		cfg.Store.BatchSize = 500
	}
	if cfg.Pipeline.ItemIDs == "" {
		cfg.Pipeline.ItemIDs = datanorm.ItemIDsDeterministic
	}
	if cfg.Pipeline.LockTTLSeconds == 0 {
		cfg.Pipeline.LockTTLSeconds = 600
	}
	if cfg.Pipeline.LockKey == "" {
		cfg.Pipeline.LockKey = "receipt-normalizer:run"
	}
	if cfg.Pipeline.ArchivePrefix == "" {
		cfg.Pipeline.ArchivePrefix = "runs"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

var validate = validator.New()

// Validate checks the struct tags of every section.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

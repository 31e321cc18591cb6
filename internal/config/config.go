// Package config loads engine configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// StorageBackend selects the object store implementation.
type StorageBackend string

const (
	BackendLocal StorageBackend = "local"
	BackendS3    StorageBackend = "s3"
)

// Config is the full engine configuration.
type Config struct {
	// DataDir anchors the catalog database, the local object store,
	// and the blob staging area when their paths are relative.
	DataDir string `yaml:"data_dir"`

	Catalog   CatalogConfig   `yaml:"catalog"`
	Storage   StorageConfig   `yaml:"storage"`
	Write     WriteConfig     `yaml:"write"`
	Read      ReadConfig      `yaml:"read"`
	Retention RetentionConfig `yaml:"retention"`
}

type CatalogConfig struct {
	Path string `yaml:"path"`
}

type StorageConfig struct {
	Backend StorageBackend `yaml:"backend"`
	// LocalPath is the object root for the local backend.
	LocalPath string   `yaml:"local_path"`
	S3        S3Config `yaml:"s3"`
}

type S3Config struct {
	Bucket         string `yaml:"bucket"`
	Region         string `yaml:"region"`
	Endpoint       string `yaml:"endpoint"`
	ForcePathStyle bool   `yaml:"force_path_style"`
}

type WriteConfig struct {
	TargetPartitionRows  int   `yaml:"target_partition_rows"`
	MultipartThresholdMB int64 `yaml:"multipart_threshold_mb"`
	CommitRetries        int   `yaml:"commit_retries"`
	WorkDir              string `yaml:"work_dir"`
}

type ReadConfig struct {
	// CacheMaxMB bounds the local blob cache; zero disables caching.
	CacheMaxMB int64  `yaml:"cache_max_mb"`
	CacheDir   string `yaml:"cache_dir"`
}

type RetentionConfig struct {
	KeepVersions int           `yaml:"keep_versions"`
	Window       time.Duration `yaml:"window"`
}

// DefaultConfig returns a configuration suitable for local development.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data",
		Catalog: CatalogConfig{Path: "catalog.db"},
		Storage: StorageConfig{Backend: BackendLocal, LocalPath: "objects"},
		Write: WriteConfig{
			TargetPartitionRows:  100_000,
			MultipartThresholdMB: 64,
			CommitRetries:        3,
			WorkDir:              "work",
		},
		Read:      ReadConfig{CacheMaxMB: 256, CacheDir: "cache"},
		Retention: RetentionConfig{KeepVersions: 1},
	}
}

// LoadFromFile reads a YAML config file over the defaults. Environment
// variables still win over the file.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyEnv()
	return cfg, nil
}

// LoadFromEnv builds a config from defaults plus STRATA_* variables.
func LoadFromEnv() *Config {
	cfg := DefaultConfig()
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyEnv() {
	if v := os.Getenv("STRATA_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("STRATA_CATALOG_PATH"); v != "" {
		c.Catalog.Path = v
	}
	if v := os.Getenv("STRATA_STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = StorageBackend(v)
	}
	if v := os.Getenv("STRATA_S3_BUCKET"); v != "" {
		c.Storage.S3.Bucket = v
	}
	if v := os.Getenv("STRATA_S3_REGION"); v != "" {
		c.Storage.S3.Region = v
	}
	if v := os.Getenv("STRATA_S3_ENDPOINT"); v != "" {
		c.Storage.S3.Endpoint = v
	}
	if v := os.Getenv("STRATA_TARGET_PARTITION_ROWS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Write.TargetPartitionRows = n
		}
	}
	if v := os.Getenv("STRATA_COMMIT_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Write.CommitRetries = n
		}
	}
	if v := os.Getenv("STRATA_CACHE_MAX_MB"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Read.CacheMaxMB = n
		}
	}
	if v := os.Getenv("STRATA_RETENTION_KEEP_VERSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Retention.KeepVersions = n
		}
	}
	if v := os.Getenv("STRATA_RETENTION_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Retention.Window = d
		}
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir is required")
	}
	switch c.Storage.Backend {
	case BackendLocal:
		if c.Storage.LocalPath == "" {
			return fmt.Errorf("config: storage.local_path is required for the local backend")
		}
	case BackendS3:
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("config: storage.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	if c.Write.TargetPartitionRows <= 0 {
		return fmt.Errorf("config: write.target_partition_rows must be positive")
	}
	if c.Write.MultipartThresholdMB <= 0 {
		return fmt.Errorf("config: write.multipart_threshold_mb must be positive")
	}
	if c.Read.CacheMaxMB < 0 {
		return fmt.Errorf("config: read.cache_max_mb must not be negative")
	}
	if c.Retention.Window < 0 {
		return fmt.Errorf("config: retention.window must not be negative")
	}
	return nil
}

// CatalogPath returns the catalog database path anchored at DataDir.
func (c *Config) CatalogPath() string {
	return c.anchored(c.Catalog.Path)
}

// LocalStoragePath returns the local object root anchored at DataDir.
func (c *Config) LocalStoragePath() string {
	return c.anchored(c.Storage.LocalPath)
}

// WorkDir returns the blob staging directory anchored at DataDir.
func (c *Config) WorkDir() string {
	return c.anchored(c.Write.WorkDir)
}

// CacheDir returns the blob cache directory anchored at DataDir.
func (c *Config) CacheDir() string {
	return c.anchored(c.Read.CacheDir)
}

// MultipartThresholdBytes converts the configured threshold to bytes.
func (c *Config) MultipartThresholdBytes() int64 {
	return c.Write.MultipartThresholdMB << 20
}

// EnsureDirectories creates DataDir and the staging directory.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.DataDir, c.WorkDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	return nil
}

func (c *Config) anchored(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

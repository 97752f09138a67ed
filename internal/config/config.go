package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// BaseDir holds the backups, run and logs directories.
	BaseDir string `yaml:"base_dir"`
	// Manifest is the list file naming the paths to back up.
	Manifest    string   `yaml:"manifest"`
	Compression string   `yaml:"compression"`
	S3          S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled      bool               `yaml:"enabled"`
	Bucket       string             `yaml:"bucket"`
	Prefix       string             `yaml:"prefix"`
	Region       string             `yaml:"region"`
	Endpoint     string             `yaml:"endpoint"`
	StorageClass types.StorageClass `yaml:"storage_class"`
	Retry        struct {
		MaxAttempts int `yaml:"max_attempts"`
	} `yaml:"retry,omitempty"`
}

var validCompression = map[string]bool{
	"none": true,
	"gz":   true,
	"zstd": true,
	"zip":  true,
}

// Default returns the configuration used when no config file exists.
func Default() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to determine home directory: %w", err)
	}
	return &Config{
		BaseDir:     filepath.Join(home, "ragnarokbackup"),
		Manifest:    filepath.Join(home, ".ragnarokbackup"),
		Compression: "none",
	}, nil
}

// Load reads the config file, filling unset fields from Default. A
// missing file is not an error: everything then runs on defaults.
func Load(filename string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.BaseDir == "" {
		return fmt.Errorf("base_dir is required")
	}
	if c.Manifest == "" {
		return fmt.Errorf("manifest is required")
	}
	if !filepath.IsAbs(c.Manifest) {
		return fmt.Errorf("manifest must be an absolute path, got %s", c.Manifest)
	}
	if c.Compression != "" && !validCompression[c.Compression] {
		return fmt.Errorf("compression must be one of none, gz, zstd, zip, got %s", c.Compression)
	}
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket is required when s3 is enabled")
		}
		if c.S3.Region == "" {
			return fmt.Errorf("s3.region is required when s3 is enabled")
		}
		if c.S3.StorageClass == "" {
			return fmt.Errorf("s3.storage_class is required when s3 is enabled")
		}
	}
	return nil
}

func (c *Config) S3RetryAttempts() int {
	if c.S3.Retry.MaxAttempts > 0 {
		return c.S3.Retry.MaxAttempts
	}
	return 3
}

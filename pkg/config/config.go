// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

// Package config loads the YAML configuration shared by the node and
// coordinator processes.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aiven/astacus/pkg/defaults"
	astacuserrors "github.com/aiven/astacus/pkg/errors"
)

// EnvConfigPath is the environment variable naming the config file path.
const EnvConfigPath = "ASTACUS_CONFIG"

// EnvSentryDSN overrides the config file's sentry_dsn when set.
const EnvSentryDSN = "SENTRY_DSN"

// NodeEndpoint is one cluster member's HTTP address, as seen by the
// coordinator.
type NodeEndpoint struct {
	URL string `yaml:"url"`
}

// CoordinatorConfig holds the coordinator's lease and polling tunables.
type CoordinatorConfig struct {
	DefaultLockTTL                time.Duration `yaml:"default_lock_ttl"`
	BackupAttempts                int           `yaml:"backup_attempts"`
	PollDelayStart                time.Duration `yaml:"poll_delay_start"`
	PollDelayMax                  time.Duration `yaml:"poll_delay_max"`
	PollDelayMultiplier           float64       `yaml:"poll_delay_multiplier"`
	PollMaximumFailures           int           `yaml:"poll_maximum_failures"`
	LeaseRenewalMaxExceptionRetries int         `yaml:"lease_renewal_max_exception_retries"`
	ClearOnRestore                bool          `yaml:"clear_on_restore"`
}

// ParallelConfig bounds node-side worker concurrency.
type ParallelConfig struct {
	Uploads   int `yaml:"uploads"`
	Downloads int `yaml:"downloads"`
}

// NodeConfig holds one node's local data directories and concurrency
// limits.
type NodeConfig struct {
	Root            string         `yaml:"root"`
	DestinationRoot string         `yaml:"destination_root"`
	Parallel        ParallelConfig `yaml:"parallel"`
}

// StorageConfig describes one configured object-store backend.
type StorageConfig struct {
	// Storage is a reference-parseable name, e.g. "registry.example.com/backups".
	Storage string `yaml:"storage"`
}

// ObjectStorageConfig configures the content-addressed and JSON stores.
type ObjectStorageConfig struct {
	Storages    map[string]StorageConfig `yaml:"storages"`
	Default     string                   `yaml:"default"`
	Compression bool                     `yaml:"compression"`
	Encryption  bool                     `yaml:"encryption"`
	// EncryptionKeyHex is the hex-encoded chacha20poly1305 key; required
	// when Encryption is true.
	EncryptionKeyHex string `yaml:"encryption_key_hex"`
}

// M3Config configures the optional M3 consistency-check plugin: the
// coordinator reaching M3's own HTTP coordinator API to dump/restore the
// key/value prefixes it cares about.
type M3Config struct {
	Endpoint string   `yaml:"endpoint"`
	Prefixes []string `yaml:"prefixes"`
}

// Config is the top-level configuration loaded from ASTACUS_CONFIG.
type Config struct {
	Nodes         []NodeEndpoint      `yaml:"nodes"`
	Coordinator   CoordinatorConfig   `yaml:"coordinator"`
	Node          NodeConfig          `yaml:"node"`
	ObjectStorage ObjectStorageConfig `yaml:"object_storage"`
	SentryDSN     string              `yaml:"sentry_dsn"`
	// Plugin names the coordinator plugin to enable ("" for none, "m3"
	// for the M3 consistency check).
	Plugin string   `yaml:"plugin"`
	M3     M3Config `yaml:"m3"`
}

// defaultConfig returns a Config pre-populated with pkg/defaults tunables,
// applied before any YAML override is decoded on top.
func defaultConfig() *Config {
	return &Config{
		Coordinator: CoordinatorConfig{
			DefaultLockTTL:                  defaults.LockTTL,
			BackupAttempts:                  3,
			PollDelayStart:                  defaults.PollDelayStart,
			PollDelayMax:                    defaults.PollDelayMax,
			PollDelayMultiplier:             defaults.PollDelayMultiplier,
			PollMaximumFailures:             defaults.PollMaxFailures,
			LeaseRenewalMaxExceptionRetries: defaults.LockRenewMaxExceptionRetries,
			ClearOnRestore:                  false,
		},
		Node: NodeConfig{
			Parallel: ParallelConfig{
				Uploads:   defaults.ParallelUploadOperations,
				Downloads: defaults.ParallelDownloadOperations,
			},
		},
	}
}

// Load reads and parses the YAML config file at path, applying defaults for
// anything the file leaves zero-valued.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}

	applyDefaults(cfg)

	if dsn := os.Getenv(EnvSentryDSN); dsn != "" {
		cfg.SentryDSN = dsn
	}

	return cfg, validate(cfg)
}

// LoadFromEnv loads the config file named by ASTACUS_CONFIG.
func LoadFromEnv() (*Config, error) {
	path := os.Getenv(EnvConfigPath)
	if path == "" {
		return nil, fmt.Errorf("%s is not set", EnvConfigPath)
	}
	return Load(path)
}

func applyDefaults(cfg *Config) {
	d := defaultConfig()
	if cfg.Coordinator.DefaultLockTTL == 0 {
		cfg.Coordinator.DefaultLockTTL = d.Coordinator.DefaultLockTTL
	}
	if cfg.Coordinator.BackupAttempts == 0 {
		cfg.Coordinator.BackupAttempts = d.Coordinator.BackupAttempts
	}
	if cfg.Coordinator.PollDelayStart == 0 {
		cfg.Coordinator.PollDelayStart = d.Coordinator.PollDelayStart
	}
	if cfg.Coordinator.PollDelayMax == 0 {
		cfg.Coordinator.PollDelayMax = d.Coordinator.PollDelayMax
	}
	if cfg.Coordinator.PollDelayMultiplier == 0 {
		cfg.Coordinator.PollDelayMultiplier = d.Coordinator.PollDelayMultiplier
	}
	if cfg.Coordinator.PollMaximumFailures == 0 {
		cfg.Coordinator.PollMaximumFailures = d.Coordinator.PollMaximumFailures
	}
	if cfg.Coordinator.LeaseRenewalMaxExceptionRetries == 0 {
		cfg.Coordinator.LeaseRenewalMaxExceptionRetries = d.Coordinator.LeaseRenewalMaxExceptionRetries
	}
	if cfg.Node.Parallel.Uploads == 0 {
		cfg.Node.Parallel.Uploads = d.Node.Parallel.Uploads
	}
	if cfg.Node.Parallel.Downloads == 0 {
		cfg.Node.Parallel.Downloads = d.Node.Parallel.Downloads
	}
}

func validate(cfg *Config) error {
	if !cfg.ObjectStorage.Compression && !cfg.ObjectStorage.Encryption {
		return astacuserrors.New(astacuserrors.ErrCodeCompressionOrEncryptionRequired,
			"object storage must enable compression, encryption, or both")
	}
	return nil
}

// Package config handles loading and parsing of shoalstore configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for shoalstore.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Index     IndexConfig     `yaml:"index"`
	Object    ObjectConfig    `yaml:"object"`
	Cache     CacheConfig     `yaml:"cache"`
	Cluster   ClusterConfig   `yaml:"cluster"`
	GC        GCConfig        `yaml:"gc"`
	Quota     QuotaConfig     `yaml:"quota"`
	Multipart MultipartConfig `yaml:"multipart"`
}

// ServerConfig holds settings for the thin health/metrics HTTP surface.
// shoalstore does not itself terminate the S3 wire protocol (see
// the Index/Object Gateway split in internal/sal); this surface exists so
// an operator can probe liveness and scrape Prometheus metrics.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// IndexConfig selects and configures the backend behind the Index Gateway.
type IndexConfig struct {
	// Backend is one of "memory", "local", "sqlite", "dynamodb",
	// "firestore", "cosmos".
	Backend   string          `yaml:"backend"`
	Local     LocalIndexConfig `yaml:"local"`
	SQLite    SQLiteConfig    `yaml:"sqlite"`
	DynamoDB  DynamoDBConfig  `yaml:"dynamodb"`
	Firestore FirestoreConfig `yaml:"firestore"`
	Cosmos    CosmosConfig    `yaml:"cosmos"`
}

// LocalIndexConfig holds the log-structured local index backend's settings.
type LocalIndexConfig struct {
	// RootDir is the base directory for the JSONL index segments.
	RootDir string `yaml:"root_dir"`
}

// SQLiteConfig holds SQLite-specific settings. Shared verbatim by the index
// and object backends when either selects "sqlite".
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// DynamoDBConfig holds settings for the DynamoDB index backend.
type DynamoDBConfig struct {
	Table  string `yaml:"table"`
	Region string `yaml:"region"`
}

// FirestoreConfig holds settings for the Firestore index backend.
type FirestoreConfig struct {
	ProjectID  string `yaml:"project_id"`
	Collection string `yaml:"collection"`
}

// CosmosConfig holds settings for the Azure Cosmos DB index backend.
type CosmosConfig struct {
	AccountURL string `yaml:"account_url"`
	MasterKey  string `yaml:"master_key"`
	Database   string `yaml:"database"`
	Container  string `yaml:"container"`
}

// ObjectConfig selects and configures the backend behind the Object Gateway.
type ObjectConfig struct {
	// Backend is one of "memory", "local", "aws", "gcp", "azure", "sqlite".
	Backend string             `yaml:"backend"`
	Local   LocalObjectConfig  `yaml:"local"`
	AWS     AWSObjectConfig    `yaml:"aws"`
	GCP     GCPObjectConfig    `yaml:"gcp"`
	Azure   AzureObjectConfig  `yaml:"azure"`
	SQLite  SQLiteConfig       `yaml:"sqlite"`
}

// LocalObjectConfig holds the crash-only local filesystem object backend's settings.
type LocalObjectConfig struct {
	RootDir string `yaml:"root_dir"`
}

// AWSObjectConfig holds settings for the S3-backed object backend.
type AWSObjectConfig struct {
	Bucket string `yaml:"bucket"`
	Region string `yaml:"region"`
	Prefix string `yaml:"prefix"`
}

// GCPObjectConfig holds settings for the GCS-backed object backend.
type GCPObjectConfig struct {
	Bucket  string `yaml:"bucket"`
	Project string `yaml:"project"`
	Prefix  string `yaml:"prefix"`
}

// AzureObjectConfig holds settings for the Azure Blob-backed object backend.
type AzureObjectConfig struct {
	Container string `yaml:"container"`
	// Account is the storage account name. Used to construct AccountURL when
	// that field is left empty: https://{account}.blob.core.windows.net
	Account    string `yaml:"account"`
	AccountURL string `yaml:"account_url"`
	Prefix     string `yaml:"prefix"`
}

// CacheConfig controls the metadata cache that sits in front of the index
// backend. Mirrors the use_metadata_cache capability flag.
type CacheConfig struct {
	Enabled  bool `yaml:"enabled"`
	Capacity int  `yaml:"capacity"`
}

// ClusterConfig holds settings for the gRPC cross-process cache-invalidation
// transport. Disabled (Enabled: false) means cache invalidations stay local
// to the process that issued them.
type ClusterConfig struct {
	Enabled bool `yaml:"enabled"`
	// NodeID is the unique identifier for this node in the cluster.
	NodeID string `yaml:"node_id"`
	// BindAddr is the address the invalidation transport binds to.
	BindAddr string `yaml:"bind_addr"`
	// Peers is the list of peer addresses to fan invalidations out to.
	Peers []string `yaml:"peers"`
}

// GCConfig controls whether object deletes route through the GC-enqueue
// pattern, falling back to a synchronous delete only when enqueue fails.
// Mirrors the gc_enabled capability flag.
type GCConfig struct {
	Enabled    bool `yaml:"enabled"`
	Workers    int  `yaml:"workers"`
	QueueDepth int  `yaml:"queue_depth"`
}

// QuotaConfig controls whether the catalog consults its quota-check hook
// before admitting a write. The quota arithmetic itself is out of scope.
type QuotaConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MultipartConfig controls the strategy the Multipart Engine uses for new
// uploads. Mirrors the tiered_enabled capability flag.
type MultipartConfig struct {
	// Tiered selects the composite-object strategy for new uploads instead
	// of one byte object per part.
	Tiered bool `yaml:"tiered"`

	// ReapTTLSeconds is the age, in seconds, past which an in-progress
	// multipart upload is considered abandoned and aborted by the upload
	// reaper loop. Zero disables the reaper.
	ReapTTLSeconds int `yaml:"reap_ttl_seconds"`
}

// Load reads a YAML configuration file from the given path and returns
// a parsed Config. It applies sensible defaults for unset values.
// If the primary path fails, it falls back to shoalstore.example.yaml
// in the same directory or parent directory.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		// Try fallback paths
		fallbackPaths := []string{
			filepath.Join(filepath.Dir(path), "shoalstore.example.yaml"),
			filepath.Join(filepath.Dir(path), "..", "shoalstore.example.yaml"),
		}
		var fallbackErr error
		for _, fp := range fallbackPaths {
			data, fallbackErr = os.ReadFile(fp)
			if fallbackErr == nil {
				break
			}
		}
		if fallbackErr != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply defaults for empty fields that YAML didn't set
	applyDefaults(cfg)

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 9100,
		},
		Index: IndexConfig{
			Backend: "sqlite",
			Local: LocalIndexConfig{
				RootDir: "./data/index",
			},
			SQLite: SQLiteConfig{
				Path: "./data/index.db",
			},
		},
		Object: ObjectConfig{
			Backend: "local",
			Local: LocalObjectConfig{
				RootDir: "./data/objects",
			},
		},
		Cache: CacheConfig{
			Enabled:  true,
			Capacity: 8192,
		},
		GC: GCConfig{
			Enabled:    true,
			Workers:    4,
			QueueDepth: 1024,
		},
		Multipart: MultipartConfig{
			ReapTTLSeconds: 7 * 24 * 3600,
		},
	}
}

// applyDefaults fills in any fields that are still at their zero value
// after YAML unmarshaling.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9100
	}
	if cfg.Index.Backend == "" {
		cfg.Index.Backend = "sqlite"
	}
	if cfg.Index.Local.RootDir == "" {
		cfg.Index.Local.RootDir = "./data/index"
	}
	if cfg.Index.SQLite.Path == "" {
		cfg.Index.SQLite.Path = "./data/index.db"
	}
	if cfg.Object.Backend == "" {
		cfg.Object.Backend = "local"
	}
	if cfg.Object.Local.RootDir == "" {
		cfg.Object.Local.RootDir = "./data/objects"
	}
	if cfg.Object.SQLite.Path == "" {
		cfg.Object.SQLite.Path = cfg.Index.SQLite.Path
	}
	if cfg.Cache.Capacity == 0 {
		cfg.Cache.Capacity = 8192
	}
	if cfg.GC.Workers == 0 {
		cfg.GC.Workers = 4
	}
	if cfg.GC.QueueDepth == 0 {
		cfg.GC.QueueDepth = 1024
	}
}

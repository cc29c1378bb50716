// Package config loads and validates the engine configuration.
//
// Configuration is a YAML document with three sections: providers
// (embedding, vector_store, database), named file configs, and system
// (infrastructure and data). Every recognized key is enumerated here;
// validation failures carry the offending key in the error context.
package config

import (
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/codectx/codectx/pkg/types"
)

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "CODECTX_CONFIG"

// EnvAPIKey supplies the embedding API key without putting it in the file.
const EnvAPIKey = "CODECTX_API_KEY"

// Config is the top-level engine configuration.
type Config struct {
	Providers ProvidersConfig        `yaml:"providers"`
	Configs   map[string]NamedConfig `yaml:"configs,omitempty"`
	System    SystemConfig           `yaml:"system"`
}

// ProvidersConfig selects and parameterizes the pluggable backends.
type ProvidersConfig struct {
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Database    DatabaseConfig    `yaml:"database"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model,omitempty"`
	APIKey     string `yaml:"api_key,omitempty"`
	BaseURL    string `yaml:"base_url,omitempty"`
	Dimensions int    `yaml:"dimensions,omitempty"`
	CacheDir   string `yaml:"cache_dir,omitempty"`
}

// VectorStoreConfig configures the vector store. For the fs provider,
// Address is the data root directory holding one subdirectory per
// collection.
type VectorStoreConfig struct {
	Provider   string `yaml:"provider"`
	Address    string `yaml:"address,omitempty"`
	Collection string `yaml:"collection,omitempty"`
	Dimensions int    `yaml:"dimensions,omitempty"`
}

// DatabaseConfig configures the relational metadata store. Name keys
// into Configs for the file path of file-backed databases.
type DatabaseConfig struct {
	Provider string `yaml:"provider,omitempty"`
	Name     string `yaml:"name,omitempty"`
}

// NamedConfig is a named auxiliary config entry, currently a file path.
type NamedConfig struct {
	Path string `yaml:"path,omitempty"`
}

// SystemConfig groups infrastructure and data settings.
type SystemConfig struct {
	Infrastructure InfrastructureConfig `yaml:"infrastructure"`
	Data           DataConfig           `yaml:"data"`
}

// InfrastructureConfig holds cache and resource limit settings.
type InfrastructureConfig struct {
	Cache  CacheConfig  `yaml:"cache"`
	Limits LimitsConfig `yaml:"limits"`
}

// CacheConfig configures the key/value cache layer. RedisURL names the
// remote endpoint when the remote provider is selected.
type CacheConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Provider       string `yaml:"provider,omitempty"`
	MaxSize        int    `yaml:"max_size,omitempty"`
	DefaultTTLSecs int    `yaml:"default_ttl_secs,omitempty"`
	Namespace      string `yaml:"namespace,omitempty"`
	RedisURL       string `yaml:"redis_url,omitempty"`
}

// LimitsConfig bounds process resources. Both values must be positive.
type LimitsConfig struct {
	MemoryLimit int64 `yaml:"memory_limit"`
	CPULimit    int   `yaml:"cpu_limit"`
}

// DataConfig holds durable-data settings.
type DataConfig struct {
	Backup BackupConfig `yaml:"backup"`
}

// BackupConfig configures periodic metadata backups.
type BackupConfig struct {
	Enabled      bool `yaml:"enabled"`
	IntervalSecs int  `yaml:"interval_secs,omitempty"`
}

// Default returns a configuration that works with no file present:
// local embeddings, filesystem vector store and SQLite metadata under
// .codectx in the working directory.
func Default() *Config {
	return &Config{
		Providers: ProvidersConfig{
			Embedding: EmbeddingConfig{
				Provider: "local",
			},
			VectorStore: VectorStoreConfig{
				Provider:   "fs",
				Address:    ".codectx/vectors",
				Collection: "code",
			},
			Database: DatabaseConfig{
				Provider: "sqlite",
				Name:     "database",
			},
		},
		Configs: map[string]NamedConfig{
			"database": {Path: ".codectx/meta.db"},
		},
		System: SystemConfig{
			Infrastructure: InfrastructureConfig{
				Cache: CacheConfig{
					Enabled:        true,
					Provider:       "local",
					MaxSize:        10000,
					DefaultTTLSecs: 3600,
					Namespace:      "codectx",
				},
				Limits: LimitsConfig{
					MemoryLimit: 1 << 30,
					CPULimit:    runtime.NumCPU(),
				},
			},
			Data: DataConfig{
				Backup: BackupConfig{Enabled: false},
			},
		},
	}
}

// Load reads and validates a config file. An empty path falls back to
// the CODECTX_CONFIG environment variable and then to Default. A path
// that was requested but cannot be read is a ConfigMissing error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = os.Getenv(EnvConfigPath)
		explicit = path != ""
	}
	if path == "" {
		cfg := Default()
		cfg.applyEnv()
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if explicit {
			return nil, types.Wrap(types.KindConfigMissing, err, "config file not readable").With("path", path)
		}
		cfg := Default()
		cfg.applyEnv()
		return cfg, cfg.Validate()
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, types.Wrap(types.KindConfigInvalid, err, "parse config yaml").With("path", path)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv layers environment overrides on top of file values.
func (c *Config) applyEnv() {
	if key := os.Getenv(EnvAPIKey); key != "" && c.Providers.Embedding.APIKey == "" {
		c.Providers.Embedding.APIKey = key
	}
	if provider := os.Getenv("CODECTX_EMBEDDING_PROVIDER"); provider != "" {
		c.Providers.Embedding.Provider = provider
	}
	if dataDir := os.Getenv("CODECTX_DATA_DIR"); dataDir != "" {
		c.Providers.VectorStore.Address = dataDir
	}
}

// DatabasePath resolves the metadata database file path from the named
// configs section.
func (c *Config) DatabasePath() string {
	name := c.Providers.Database.Name
	if name == "" {
		name = "database"
	}
	if nc, ok := c.Configs[name]; ok {
		return nc.Path
	}
	return ""
}

// Validate checks every recognized option. The first violation is
// returned as ConfigInvalid with the offending key attached.
func (c *Config) Validate() error {
	if c.Providers.Embedding.Provider == "" {
		return types.E(types.KindConfigInvalid, "embedding provider is required").
			With("key", "providers.embedding.provider")
	}
	if c.Providers.Embedding.Dimensions < 0 {
		return types.E(types.KindConfigInvalid, "dimensions must be non-negative").
			With("key", "providers.embedding.dimensions")
	}
	if c.Providers.VectorStore.Provider == "" {
		return types.E(types.KindConfigInvalid, "vector store provider is required").
			With("key", "providers.vector_store.provider")
	}
	if c.Providers.Database.Provider == "" {
		c.Providers.Database.Provider = "sqlite"
	}
	if c.Providers.Database.Provider == "sqlite" && c.DatabasePath() == "" {
		return types.E(types.KindConfigInvalid, "a file path is required for sqlite").
			With("key", "configs.database.path")
	}

	cache := c.System.Infrastructure.Cache
	if cache.Enabled {
		if cache.DefaultTTLSecs <= 0 {
			return types.E(types.KindConfigInvalid, "cache TTL must be positive when caching is enabled").
				With("key", "system.infrastructure.cache.default_ttl_secs")
		}
		if cache.MaxSize <= 0 {
			return types.E(types.KindConfigInvalid, "cache max size must be positive when caching is enabled").
				With("key", "system.infrastructure.cache.max_size")
		}
		if cache.Provider == "remote" && cache.RedisURL == "" {
			return types.E(types.KindConfigInvalid, "remote cache requires an endpoint URL").
				With("key", "system.infrastructure.cache.redis_url")
		}
	}

	limits := c.System.Infrastructure.Limits
	if limits.MemoryLimit <= 0 {
		return types.E(types.KindConfigInvalid, "memory limit must be positive").
			With("key", "system.infrastructure.limits.memory_limit")
	}
	if limits.CPULimit <= 0 {
		return types.E(types.KindConfigInvalid, "cpu limit must be positive").
			With("key", "system.infrastructure.limits.cpu_limit")
	}

	backup := c.System.Data.Backup
	if backup.Enabled && backup.IntervalSecs <= 0 {
		return types.E(types.KindConfigInvalid, "backup interval must be positive when backup is enabled").
			With("key", "system.data.backup.interval_secs")
	}

	return nil
}

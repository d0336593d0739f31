// Package config loads prodsearch settings from YAML with ${VAR:-default} expansion.
package config

// Database drivers.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverValkey = "valkey"
)

// Embedding providers.
const (
	ProviderOpenAI  = "openai"
	ProviderHashing = "hashing"
)

// Config is the root of the YAML document.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Index     IndexConfig     `yaml:"index"`
	Search    SearchConfig    `yaml:"search"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig selects the log level; empty picks one from the environment name.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig picks where the vector index and the embedding cache live.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"`
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

type EmbeddingConfig struct {
	Provider   string      `yaml:"provider"`
	BaseURL    string      `yaml:"base_url"`
	APIKey     string      `yaml:"api_key"`
	Model      string      `yaml:"model"`
	Dimensions int         `yaml:"dimensions"`
	Cache      CacheConfig `yaml:"cache"`
}

// CacheConfig controls the embedding cache. TTLSec 0 never expires;
// an empty Dir keeps badger in memory.
type CacheConfig struct {
	Enabled   bool   `yaml:"enabled"`
	KeyPrefix string `yaml:"key_prefix"`
	TTLSec    int    `yaml:"ttl_sec"`
	Dir       string `yaml:"dir"`
}

// LLMConfig points at an OpenAI-compatible chat endpoint used for ranking.
type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	TimeoutSec  int     `yaml:"timeout_sec"`
	Temperature float32 `yaml:"temperature"`
}

type CatalogConfig struct {
	Path string `yaml:"path"`
}

type IndexConfig struct {
	Name            string `yaml:"name"`
	KeyPrefix       string `yaml:"key_prefix"`
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
	Workers         int    `yaml:"workers"`
	EmbedBatchSize  int    `yaml:"embed_batch_size"`
	EmbedRetries    int    `yaml:"embed_retries"`
}

type SearchConfig struct {
	DefaultTopK int `yaml:"default_top_k"`
	MaxTopK     int `yaml:"max_top_k"`
}

// Default returns the settings a YAML document is decoded over,
// so keys absent from the file keep these values.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Port:            8080,
			ReadTimeoutSec:  10,
			WriteTimeoutSec: 60,
			ShutdownSec:     10,
		},
		Database: DatabaseConfig{
			Driver:           DriverMemory,
			ReadinessTimeout: 10,
		},
		Embedding: EmbeddingConfig{
			Provider: ProviderHashing,
			Cache:    CacheConfig{KeyPrefix: "prodsearch:emb:"},
		},
		LLM: LLMConfig{
			BaseURL:    "https://openrouter.ai/api/v1",
			Model:      "anthropic/claude-3-haiku",
			TimeoutSec: 30,
		},
		Catalog: CatalogConfig{Path: "data/products.json"},
		Index: IndexConfig{
			Name:            "products",
			KeyPrefix:       "prodsearch:product:",
			HNSWM:           16,
			HNSWEFConstruct: 200,
			Workers:         4,
			EmbedBatchSize:  64,
			EmbedRetries:    2,
		},
		Search: SearchConfig{DefaultTopK: 3, MaxTopK: 100},
	}
}

// Package config loads the service configuration from an optional YAML file
// with environment-variable overrides. A .env file in the working directory
// is honored when present.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full configuration surface of the ingestion service.
type Config struct {
	Service string `yaml:"service"`
	Addr    string `yaml:"addr"`
	DataDir string `yaml:"data_dir"`

	VectorIndexPath string `yaml:"vector_index_path"`
	MetadataDBPath  string `yaml:"metadata_db_path"`

	EmbeddingModel   string `yaml:"embedding_model"`
	EmbeddingBaseURL string `yaml:"embedding_base_url"`
	APIKey           string `yaml:"-"` // environment only, never written to disk

	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`

	// DisableStorage runs the pipeline without persistence and
	// DisableEmbeddings without a loaded embedding backend; both exist for
	// isolated testing.
	DisableEmbeddings bool `yaml:"disable_embeddings"`
	DisableStorage    bool `yaml:"disable_storage"`
}

// Load reads the YAML file at path (missing file means defaults), then
// applies environment overrides. Call after the process's .env, if any, has
// been picked up; LoadEnv does both.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

// LoadEnv loads a .env file when one exists in the working directory, then
// loads the configuration.
func LoadEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return Load(path)
}

func defaultConfig() *Config {
	return &Config{
		Service:        "ragingest",
		Addr:           "0.0.0.0:8080",
		DataDir:        "./data",
		EmbeddingModel: "text-embedding-3-small",
		ChunkSize:      500,
		ChunkOverlap:   100,
	}
}

// applyDefaults fills the store paths from DataDir when they were not set
// explicitly. Runs after env overrides so DATA_DIR moves both stores.
func applyDefaults(cfg *Config) {
	if cfg.VectorIndexPath == "" {
		cfg.VectorIndexPath = filepath.Join(cfg.DataDir, "vectors.idx")
	}
	if cfg.MetadataDBPath == "" {
		cfg.MetadataDBPath = filepath.Join(cfg.DataDir, "metadata.db")
	}
}

func applyEnv(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setString("SERVICE_NAME", &cfg.Service)
	setString("ADDR", &cfg.Addr)
	setString("DATA_DIR", &cfg.DataDir)
	setString("VECTOR_INDEX_PATH", &cfg.VectorIndexPath)
	setString("METADATA_DB_PATH", &cfg.MetadataDBPath)
	setString("EMBEDDING_MODEL", &cfg.EmbeddingModel)
	setString("EMBEDDING_BASE_URL", &cfg.EmbeddingBaseURL)
	setString("OPENAI_API_KEY", &cfg.APIKey)

	for _, iv := range []struct {
		key string
		dst *int
	}{
		{"CHUNK_SIZE", &cfg.ChunkSize},
		{"CHUNK_OVERLAP", &cfg.ChunkOverlap},
	} {
		if v, ok := os.LookupEnv(iv.key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s=%q: %w", iv.key, v, err)
			}
			*iv.dst = n
		}
	}

	for _, bv := range []struct {
		key string
		dst *bool
	}{
		{"DISABLE_EMBEDDINGS", &cfg.DisableEmbeddings},
		{"DISABLE_STORAGE", &cfg.DisableStorage},
	} {
		if v, ok := os.LookupEnv(bv.key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s=%q: %w", bv.key, v, err)
			}
			*bv.dst = b
		}
	}

	return nil
}

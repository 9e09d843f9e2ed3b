// Package config provides configuration loading and structs for the Kanren server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Vector    VectorConfig    `yaml:"vector"`
	Alignment AlignmentConfig `yaml:"alignment"`
	Detector  DetectorConfig  `yaml:"detector"`
	OCR       OCRConfig       `yaml:"ocr"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Progress  ProgressConfig  `yaml:"progress"`
	Watch     WatchConfig     `yaml:"watch"`
}

// WatchConfig holds transcript inbox watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the database, keyword index, and per-video lock files.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path"`
	BleveIndexPath string `yaml:"bleve_index_path"`
	LockDir        string `yaml:"lock_dir"`
}

// EmbeddingConfig holds ONNX embedder settings.
type EmbeddingConfig struct {
	ModelPath         string `yaml:"model_path"`
	TokenizerPath     string `yaml:"tokenizer_path"`
	SharedLibraryPath string `yaml:"shared_library_path"`
	Dimensions        int    `yaml:"dimensions"`
	MaxTokens         int    `yaml:"max_tokens"`
	BatchSize         int    `yaml:"batch_size"`
	CacheSize         int    `yaml:"cache_size"`
}

// VectorConfig selects the similarity index backend.
type VectorConfig struct {
	// IndexType is "memory", "faiss", or "qdrant".
	IndexType     string `yaml:"index_type"`
	QdrantAddress string `yaml:"qdrant_address"`
}

// AlignmentConfig holds the cross-modal matching parameters.
type AlignmentConfig struct {
	TopK                int     `yaml:"top_k"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	SceneBufferSeconds  float64 `yaml:"scene_buffer_seconds"`
	// MissingEndSeconds is the window length used when the next scene has no time.
	MissingEndSeconds float64 `yaml:"missing_end_seconds"`
}

// DetectorConfig holds the YOLO layout detector settings.
type DetectorConfig struct {
	ModelPath           string   `yaml:"model_path"`
	InputSize           int      `yaml:"input_size"`
	ConfidenceThreshold float64  `yaml:"confidence_threshold"`
	NMSThreshold        float64  `yaml:"nms_threshold"`
	Classes             []string `yaml:"classes"`
}

// OCRConfig holds recognition and reconciliation settings.
type OCRConfig struct {
	// Preference is "tesseract", "freeform", or "both".
	Preference            string  `yaml:"preference"`
	Language              string  `yaml:"language"`
	MergeThreshold        float64 `yaml:"merge_threshold"`
	DedupThreshold        float64 `yaml:"dedup_threshold"`
	FreeformMinConfidence float64 `yaml:"freeform_min_confidence"`
}

// PipelineConfig holds worker queue settings.
type PipelineConfig struct {
	QueueSize int `yaml:"queue_size"`
}

// ProgressConfig selects the progress broker backend.
type ProgressConfig struct {
	// Backend is "memory" or "redis".
	Backend    string `yaml:"backend"`
	RedisAddr  string `yaml:"redis_addr"`
	BufferSize int    `yaml:"buffer_size"`
}

// Load reads and parses the config file at path, applies environment overrides, expands paths,
// and applies defaults. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	cfg.Storage.LockDir = expandPath(cfg.Storage.LockDir, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	cfg.Embedding.TokenizerPath = expandPath(cfg.Embedding.TokenizerPath, configDir)
	cfg.Detector.ModelPath = expandPath(cfg.Detector.ModelPath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given .env files into the process environment.
// Missing files are ignored; variables already set are not overwritten.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides selected keys from KANREN_* environment variables.
func ApplyEnv(cfg *Config) error {
	if v := os.Getenv("KANREN_DEBUG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid KANREN_DEBUG: %w", err)
		}
		cfg.Debug = b
	}
	if v := os.Getenv("KANREN_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("KANREN_SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid KANREN_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("KANREN_DATABASE_PATH"); v != "" {
		cfg.Storage.DatabasePath = v
	}
	if v := os.Getenv("KANREN_VECTOR_INDEX"); v != "" {
		cfg.Vector.IndexType = v
	}
	if v := os.Getenv("KANREN_QDRANT_ADDRESS"); v != "" {
		cfg.Vector.QdrantAddress = v
	}
	if v := os.Getenv("KANREN_PROGRESS_BACKEND"); v != "" {
		cfg.Progress.Backend = v
	}
	if v := os.Getenv("KANREN_REDIS_ADDR"); v != "" {
		cfg.Progress.RedisAddr = v
	}
	if v := os.Getenv("KANREN_OCR_PREFERENCE"); v != "" {
		cfg.OCR.Preference = strings.ToLower(v)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}

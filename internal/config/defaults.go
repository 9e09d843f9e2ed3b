package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/kanren/data/db/kanren.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/kanren/data/indices/bleve"
	}
	if cfg.Storage.LockDir == "" {
		cfg.Storage.LockDir = "/usr/local/var/kanren/data/locks"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/kanren/data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.TokenizerPath == "" {
		cfg.Embedding.TokenizerPath = "/usr/local/var/kanren/data/models/tokenizer.json"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 32
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Vector.IndexType == "" {
		cfg.Vector.IndexType = "memory"
	}
	if cfg.Vector.QdrantAddress == "" {
		cfg.Vector.QdrantAddress = "localhost:6334"
	}
	if cfg.Alignment.TopK == 0 {
		cfg.Alignment.TopK = 5
	}
	if cfg.Alignment.SimilarityThreshold == 0 {
		cfg.Alignment.SimilarityThreshold = 0.5
	}
	if cfg.Alignment.SceneBufferSeconds == 0 {
		cfg.Alignment.SceneBufferSeconds = 5
	}
	if cfg.Alignment.MissingEndSeconds == 0 {
		cfg.Alignment.MissingEndSeconds = 120
	}
	if cfg.Detector.ModelPath == "" {
		cfg.Detector.ModelPath = "/usr/local/var/kanren/data/models/yolov8-doclayout.onnx"
	}
	if cfg.Detector.InputSize == 0 {
		cfg.Detector.InputSize = 640
	}
	if cfg.Detector.ConfidenceThreshold == 0 {
		cfg.Detector.ConfidenceThreshold = 0.25
	}
	if cfg.Detector.NMSThreshold == 0 {
		cfg.Detector.NMSThreshold = 0.45
	}
	if cfg.Detector.Classes == nil {
		cfg.Detector.Classes = []string{"title", "page-text", "other-text", "caption", "picture", "table", "formula"}
	}
	if cfg.OCR.Preference == "" {
		cfg.OCR.Preference = "tesseract"
	}
	if cfg.OCR.Language == "" {
		cfg.OCR.Language = "eng"
	}
	if cfg.OCR.MergeThreshold == 0 {
		cfg.OCR.MergeThreshold = 0.7
	}
	if cfg.OCR.DedupThreshold == 0 {
		cfg.OCR.DedupThreshold = 0.3
	}
	if cfg.OCR.FreeformMinConfidence == 0 {
		cfg.OCR.FreeformMinConfidence = 0.6
	}
	if cfg.Pipeline.QueueSize == 0 {
		cfg.Pipeline.QueueSize = 256
	}
	if cfg.Progress.Backend == "" {
		cfg.Progress.Backend = "memory"
	}
	if cfg.Progress.RedisAddr == "" {
		cfg.Progress.RedisAddr = "localhost:6379"
	}
	if cfg.Progress.BufferSize == 0 {
		cfg.Progress.BufferSize = 64
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".srt", ".json"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}

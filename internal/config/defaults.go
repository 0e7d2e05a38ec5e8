package config

// Embedding backends.
const (
	BackendONNX = "onnx"
	BackendMock = "mock"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/egaku/data/db/drawings.db"
	}
	if cfg.Embedding.Backend == "" {
		cfg.Embedding.Backend = BackendONNX
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/egaku/data/models/drawing-encoder.onnx"
	}
	if cfg.Embedding.Points == 0 {
		cfg.Embedding.Points = 128
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 128
	}
	if cfg.Embedding.InputName == "" {
		cfg.Embedding.InputName = "input"
	}
	if cfg.Embedding.OutputName == "" {
		cfg.Embedding.OutputName = "output"
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1024
	}
	if cfg.Sampling.Policy == "" {
		cfg.Sampling.Policy = "fps"
	}
	if cfg.Sampling.JitterRatio == 0 {
		cfg.Sampling.JitterRatio = 1e-4
	}
	if cfg.Library.Extensions == nil {
		cfg.Library.Extensions = []string{".json"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Library.Directories) > 0 && cfg.Library.Recursive == nil {
		t := true
		cfg.Library.Recursive = &t
	}
	if cfg.Match.Workers == 0 {
		cfg.Match.Workers = 4
	}
	if cfg.Match.TopK == 0 {
		cfg.Match.TopK = 5
	}
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

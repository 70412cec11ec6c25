package config

import "time"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "stigmer",
			Version:     "dev",
			Environment: "development",
			Debug:       false,
		},
		Board: BoardConfig{
			HalfLifeHours:       72,
			DetectionThreshold:  0.05,
			AmplifyDelta:        0.2,
			EvaporationInterval: 1 * time.Hour,
		},
		Storage: StorageConfig{
			Type: "file",
			File: FileConfig{
				Path:              "./data/board.json",
				LockTimeout:       5 * time.Second,
				LockRetryInterval: 25 * time.Millisecond,
			},
			Badger: BadgerConfig{
				Path:              "./data/board",
				SyncWrites:        true,
				ValueLogFileSize:  1073741824, // 1GB
				NumVersionsToKeep: 1,
			},
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
			HTTP: HTTPConfig{
				ReadTimeout:     30 * time.Second,
				WriteTimeout:    30 * time.Second,
				IdleTimeout:     120 * time.Second,
				ShutdownTimeout: 10 * time.Second,
				MaxHeaderBytes:  1 << 20, // 1MB
			},
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerSecond: 50,
				Burst:             100,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9091,
		},
		Tracing: TracingConfig{
			Enabled:    false,
			Exporter:   "otlp",
			Endpoint:   "localhost:4317",
			Timeout:    10 * time.Second,
			SampleRate: 0.1,
			Sampler:    "ratio",
		},
	}
}

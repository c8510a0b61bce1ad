package configs

import (
	"fmt"
	"time"

	"github.com/cch137/webrtc-demo-2025-11/internal/infrastructure/env"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	HTTP        HTTPConfig        `koanf:"http"`
	DSS         DSSConfig         `koanf:"dss"`
	WS          WSConfig          `koanf:"ws"`
	RateLimiter RateLimiterConfig `koanf:"rate_limiter"`
	Logger      LoggerConfig      `koanf:"logger"`
	Tracing     TracingConfig     `koanf:"tracing"`
	Metrics     MetricsConfig     `koanf:"metrics"`
}

type HTTPConfig struct {
	Host           string        `koanf:"host"`
	Port           uint16        `koanf:"port"`
	AllowedOrigins []string      `koanf:"allowed_origins"`
	AllowedHeaders []string      `koanf:"allowed_headers"`
	ReadTimeout    time.Duration `koanf:"read_timeout"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
	StaticDir      string        `koanf:"static_dir"`
}

type DSSConfig struct {
	InactivityTTL   time.Duration `koanf:"inactivity_ttl"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
	MaxQueueSize    int           `koanf:"max_queue_size"`
	MaxPayloadBytes int64         `koanf:"max_payload_bytes"`
}

type WSConfig struct {
	MaxMessageBytes int64         `koanf:"max_message_bytes"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	PingInterval    time.Duration `koanf:"ping_interval"`
	SendBuffer      int           `koanf:"send_buffer"`
}

type RateLimiterConfig struct {
	Enabled          bool          `koanf:"enabled"`
	MaxRatePerSecond int           `koanf:"max_rate_per_second"`
	MaxBurst         int           `koanf:"max_burst"`
	CacheTTL         time.Duration `koanf:"cache_ttl"`
	SourceHeaderKey  string        `koanf:"source_header_key"`
}

type LoggerConfig struct {
	Backend  string `koanf:"backend"`
	Level    string `koanf:"level"`
	Encoding string `koanf:"encoding"`
	FilePath string `koanf:"file_path"`
}

type TracingConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Endpoint    string `koanf:"endpoint"`
	Environment string `koanf:"environment"`
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// Load reads path (when non-empty), then applies defaults and environment overrides.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	applyDefaults(k)
	applyEnvOverrides(k)

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	// HTTP defaults
	setDefault(k, "http.host", "0.0.0.0")
	setDefault(k, "http.port", 3000)
	setDefault(k, "http.read_timeout", 10*time.Second)
	setDefault(k, "http.write_timeout", 30*time.Second)
	setDefault(k, "http.allowed_origins", []string{
		"http://127.0.0.1:5500",
		"http://localhost:5500",
		"http://127.0.0.1:3000",
		"http://localhost:3000",
		"http://localhost:8080",
		"http://127.0.0.1:8080",
	})
	setDefault(k, "http.allowed_headers", []string{"Content-Type", "Authorization"})
	setDefault(k, "http.static_dir", "./public")

	// Signaling store defaults
	setDefault(k, "dss.inactivity_ttl", 10*time.Minute)
	setDefault(k, "dss.cleanup_interval", 60*time.Minute)
	setDefault(k, "dss.max_queue_size", 64)
	setDefault(k, "dss.max_payload_bytes", 64*1024)

	// Room broker defaults
	setDefault(k, "ws.max_message_bytes", 64*1024)
	setDefault(k, "ws.write_timeout", 10*time.Second)
	setDefault(k, "ws.ping_interval", 30*time.Second)
	setDefault(k, "ws.send_buffer", 64)

	// Rate limiter defaults
	setDefault(k, "rate_limiter.enabled", true)
	setDefault(k, "rate_limiter.max_rate_per_second", 20)
	setDefault(k, "rate_limiter.max_burst", 40)
	setDefault(k, "rate_limiter.cache_ttl", 5*time.Minute)
	// Empty keys requests by RemoteAddr, which RealIP already resolves.
	setDefault(k, "rate_limiter.source_header_key", "")

	setDefault(k, "logger.backend", "zap")
	setDefault(k, "logger.level", "info")
	setDefault(k, "logger.encoding", "json")

	setDefault(k, "tracing.enabled", false)
	setDefault(k, "tracing.endpoint", "http://localhost:4318/v1/traces")
	setDefault(k, "tracing.environment", "development")

	setDefault(k, "metrics.enabled", true)
	setDefault(k, "metrics.path", "/metrics")
}

func applyEnvOverrides(k *koanf.Koanf) {
	if host := env.GetString("HTTP_HOST", ""); host != "" {
		k.Set("http.host", host)
	}
	// PORT is what most hosting platforms inject.
	if port := env.GetInt("PORT", 0); port > 0 {
		k.Set("http.port", port)
	}
	if port := env.GetInt("HTTP_PORT", 0); port > 0 {
		k.Set("http.port", port)
	}
	if dir := env.GetString("HTTP_STATIC_DIR", ""); dir != "" {
		k.Set("http.static_dir", dir)
	}

	if ttl := env.GetDuration("DSS_INACTIVITY_TTL", 0); ttl > 0 {
		k.Set("dss.inactivity_ttl", ttl)
	}
	if interval := env.GetDuration("DSS_CLEANUP_INTERVAL", 0); interval > 0 {
		k.Set("dss.cleanup_interval", interval)
	}

	if maxRate := env.GetInt("RATE_LIMIT_MAX_RATE_PER_SECOND", 0); maxRate > 0 {
		k.Set("rate_limiter.max_rate_per_second", maxRate)
	}
	if maxBurst := env.GetInt("RATE_LIMIT_MAX_BURST", 0); maxBurst > 0 {
		k.Set("rate_limiter.max_burst", maxBurst)
	}
	if sourceKey := env.GetString("RATE_LIMIT_SOURCE_HEADER_KEY", ""); sourceKey != "" {
		k.Set("rate_limiter.source_header_key", sourceKey)
	}

	if backend := env.GetString("LOGGER_BACKEND", ""); backend != "" {
		k.Set("logger.backend", backend)
	}
	if level := env.GetString("LOGGER_LEVEL", ""); level != "" {
		k.Set("logger.level", level)
	}
	if path := env.GetString("LOGGER_FILE_PATH", ""); path != "" {
		k.Set("logger.file_path", path)
	}

	if endpoint := env.GetString("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", ""); endpoint != "" {
		k.Set("tracing.endpoint", endpoint)
		k.Set("tracing.enabled", true)
	}
	if environment := env.GetString("ENVIRONMENT", ""); environment != "" {
		k.Set("tracing.environment", environment)
	}
}

// setDefault only sets the value if the key doesn't already exist
func setDefault(k *koanf.Koanf, key string, value interface{}) {
	if !k.Exists(key) {
		k.Set(key, value)
	}
}

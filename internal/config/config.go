package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the treatment service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	HTTP      HTTPConfig      `yaml:"http"`
	Logging   LoggingConfig   `yaml:"logging"`
	Models    ModelsConfig    `yaml:"models"`
	Cache     CacheConfig     `yaml:"cache"`
	Storage   StorageConfig   `yaml:"storage"`
	Reports   ReportsConfig   `yaml:"reports"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Rules     RulesConfig     `yaml:"rules"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
}

// ServerConfig controls gRPC listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// HTTPConfig controls the REST listener.
type HTTPConfig struct {
	Address        string        `yaml:"address"`
	AllowedOrigins []string      `yaml:"allowedOrigins"`
	ReadTimeout    time.Duration `yaml:"readTimeout"`
	WriteTimeout   time.Duration `yaml:"writeTimeout"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// ModelsConfig points at the trained artifact directory.
type ModelsConfig struct {
	Dir string `yaml:"dir"`
}

// CacheConfig controls prediction caching. Backend is memory, redis or none.
type CacheConfig struct {
	Backend       string        `yaml:"backend"`
	PredictionTTL time.Duration `yaml:"predictionTTL"`
	Addr          string        `yaml:"addr"`
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	DB            int           `yaml:"db"`
	DialTimeout   time.Duration `yaml:"dialTimeout"`
	ReadTimeout   time.Duration `yaml:"readTimeout"`
	WriteTimeout  time.Duration `yaml:"writeTimeout"`
	MaxRetries    int           `yaml:"maxRetries"`
	TLS           bool          `yaml:"tls"`
}

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	DatabasePath string `yaml:"databasePath"`
}

// ReportsConfig selects where rendered PDFs are uploaded. Backend is local or http.
type ReportsConfig struct {
	Backend   string        `yaml:"backend"`
	LocalDir  string        `yaml:"localDir"`
	PublicURL string        `yaml:"publicURL"`
	Endpoint  string        `yaml:"endpoint"`
	Bucket    string        `yaml:"bucket"`
	APIKey    string        `yaml:"apiKey"`
	Timeout   time.Duration `yaml:"timeout"`
	Title     string        `yaml:"title"`
}

// IngestConfig configures the Kafka sensor consumer.
type IngestConfig struct {
	Enabled bool          `yaml:"enabled"`
	Brokers []string      `yaml:"brokers"`
	Topic   string        `yaml:"topic"`
	GroupID string        `yaml:"groupID"`
	MaxWait time.Duration `yaml:"maxWait"`
}

// RulesConfig controls advisory rule-pack loading.
type RulesConfig struct {
	Path string `yaml:"path"`
}

// RateLimitConfig bounds requests per client IP over a window.
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("WATER_AI_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":50051",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		HTTP: HTTPConfig{
			Address:        ":8000",
			AllowedOrigins: []string{"*"},
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   30 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Models:  ModelsConfig{Dir: "models"},
		Cache: CacheConfig{
			Backend:       "memory",
			PredictionTTL: 300 * time.Second,
			DialTimeout:   2 * time.Second,
			ReadTimeout:   500 * time.Millisecond,
			WriteTimeout:  500 * time.Millisecond,
			MaxRetries:    2,
		},
		Storage: StorageConfig{DatabasePath: "data/water-ai.db"},
		Reports: ReportsConfig{
			Backend:  "local",
			LocalDir: "data/reports",
			Bucket:   "reports",
			Timeout:  10 * time.Second,
			Title:    "Wastewater Treatment Report",
		},
		Ingest: IngestConfig{
			Enabled: false,
			Brokers: []string{"localhost:9092"},
			Topic:   "plant.sensors",
			GroupID: "water-ai",
			MaxWait: time.Second,
		},
		Rules: RulesConfig{Path: "configs/rules/advisories.yaml"},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: 120,
			Window:   60 * time.Second,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WATER_AI_GRPC_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("WATER_AI_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("WATER_AI_HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("WATER_AI_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("WATER_AI_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("WATER_AI_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("WATER_AI_MODELS_DIR"); v != "" {
		cfg.Models.Dir = v
	}
	if v := os.Getenv("WATER_AI_CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("WATER_AI_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("WATER_AI_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("WATER_AI_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("WATER_AI_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("WATER_AI_CACHE_TLS"); isTrue(v) {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("WATER_AI_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.PredictionTTL = d
		}
	}
	if v := os.Getenv("WATER_AI_DATABASE_PATH"); v != "" {
		cfg.Storage.DatabasePath = v
	}
	if v := os.Getenv("WATER_AI_REPORTS_BACKEND"); v != "" {
		cfg.Reports.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("WATER_AI_REPORTS_DIR"); v != "" {
		cfg.Reports.LocalDir = v
	}
	if v := os.Getenv("WATER_AI_STORAGE_URL"); v != "" {
		cfg.Reports.Endpoint = v
	}
	if v := os.Getenv("WATER_AI_STORAGE_KEY"); v != "" {
		cfg.Reports.APIKey = v
	}
	if v := os.Getenv("WATER_AI_STORAGE_BUCKET"); v != "" {
		cfg.Reports.Bucket = v
	}
	if v := os.Getenv("WATER_AI_INGEST_ENABLED"); v != "" {
		cfg.Ingest.Enabled = isTrue(v)
	}
	if v := os.Getenv("WATER_AI_KAFKA_BROKERS"); v != "" {
		cfg.Ingest.Brokers = splitList(v)
	}
	if v := os.Getenv("WATER_AI_KAFKA_TOPIC"); v != "" {
		cfg.Ingest.Topic = v
	}
	if v := os.Getenv("WATER_AI_KAFKA_GROUP"); v != "" {
		cfg.Ingest.GroupID = v
	}
	if v := os.Getenv("WATER_AI_RULES_PATH"); v != "" {
		cfg.Rules.Path = v
	}
	if v := os.Getenv("WATER_AI_RATE_LIMIT_ENABLED"); v != "" {
		cfg.RateLimit.Enabled = isTrue(v)
	}
	if v := os.Getenv("WATER_AI_RATE_LIMIT_REQUESTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.Requests = n
		}
	}
	if v := os.Getenv("WATER_AI_RATE_LIMIT_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RateLimit.Window = d
		}
	}
}

func isTrue(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

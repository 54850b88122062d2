// Package config loads and validates configuration at startup.
// Fail-fast: if a required value is missing or out of range, Load returns an
// error and the process exits.
//
// Precedence is environment > config file > defaults. The config file is
// optional and read from CONFIG_PATH, falling back to ./config.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/NeoCraftTeam/ImmoApp-Backend-sub001/internal/recommend"
)

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are tried in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

// Config holds all runtime configuration for the recommendation service.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Logging   LoggingConfig   `koanf:"logging"`
	Recommend RecommendConfig `koanf:"recommend"`
}

type ServerConfig struct {
	Port            string        `koanf:"port" validate:"required,numeric"`
	GRPCPort        string        `koanf:"grpc_port" validate:"omitempty,numeric"` // empty disables gRPC
	RateLimit       int           `koanf:"rate_limit" validate:"gte=0"`            // requests per window per IP, 0 disables
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	RequestTimeout  time.Duration `koanf:"request_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

type DatabaseConfig struct {
	URL      string `koanf:"url" validate:"required"`
	MaxConns int32  `koanf:"max_conns" validate:"gte=0"`
}

type RedisConfig struct {
	URL              string        `koanf:"url" validate:"required"`
	FailureThreshold uint32        `koanf:"failure_threshold" validate:"gte=1"`
	OpenTimeout      time.Duration `koanf:"open_timeout" validate:"gt=0"`
}

type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

type RecommendConfig struct {
	CacheTTL              time.Duration `koanf:"cache_ttl" validate:"gt=0"`
	ResultLimit           int           `koanf:"result_limit" validate:"gte=1,lte=100"`
	DiversityRatio        float64       `koanf:"diversity_ratio" validate:"gte=0,lt=1"`
	ProfileDepth          int           `koanf:"profile_depth" validate:"gte=1"`
	HalfLifeDays          float64       `koanf:"half_life_days" validate:"gt=0"`
	PopularityWindow      time.Duration `koanf:"popularity_window" validate:"gt=0"`
	TrendingWindow        time.Duration `koanf:"trending_window" validate:"gt=0"`
	PopularityRefreshSpec string        `koanf:"popularity_refresh_spec"` // empty disables the refresh job
	PopularityMaxAge      time.Duration `koanf:"popularity_max_age" validate:"gte=0"`
	Seed                  int64         `koanf:"seed"`
	ComputeTimeout        time.Duration `koanf:"compute_timeout" validate:"gte=0"`
}

func defaultConfig() *Config {
	d := recommend.DefaultSettings()
	return &Config{
		Server: ServerConfig{
			Port:            "8083",
			GRPCPort:        "9093",
			RateLimit:       120,
			RateLimitWindow: time.Minute,
			RequestTimeout:  5 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{MaxConns: 10},
		Redis: RedisConfig{
			FailureThreshold: 5,
			OpenTimeout:      30 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Recommend: RecommendConfig{
			CacheTTL:              d.CacheTTL,
			ResultLimit:           d.ResultLimit,
			DiversityRatio:        d.DiversityRatio,
			ProfileDepth:          d.ProfileDepth,
			HalfLifeDays:          d.HalfLifeDays,
			PopularityWindow:      d.PopularityWindow,
			TrendingWindow:        d.TrendingWindow,
			PopularityRefreshSpec: "@every 5m",
			PopularityMaxAge:      10 * time.Minute,
			ComputeTimeout:        d.ComputeTimeout,
		},
	}
}

// envMappings maps environment variables to config paths. Variables not
// listed here are ignored.
var envMappings = map[string]string{
	"recommend_port":            "server.port",
	"recommend_grpc_port":       "server.grpc_port",
	"recommend_rate_limit":      "server.rate_limit",
	"recommend_request_timeout": "server.request_timeout",
	"shutdown_timeout":          "server.shutdown_timeout",

	"database_url":       "database.url",
	"database_max_conns": "database.max_conns",

	"redis_url":                  "redis.url",
	"redis_breaker_failures":     "redis.failure_threshold",
	"redis_breaker_open_timeout": "redis.open_timeout",

	"log_level":  "logging.level",
	"log_format": "logging.format",

	"recommend_cache_ttl":       "recommend.cache_ttl",
	"recommend_result_limit":    "recommend.result_limit",
	"recommend_diversity_ratio": "recommend.diversity_ratio",
	"recommend_profile_depth":   "recommend.profile_depth",
	"recommend_half_life_days":  "recommend.half_life_days",
	"recommend_seed":            "recommend.seed",
	"recommend_compute_timeout": "recommend.compute_timeout",
	"popularity_window":         "recommend.popularity_window",
	"trending_window":           "recommend.trending_window",
	"popularity_refresh_spec":   "recommend.popularity_refresh_spec",
	"popularity_max_age":        "recommend.popularity_max_age",
}

func envTransform(key string) string {
	return envMappings[strings.ToLower(key)]
}

var validate = validator.New()

// Load reads defaults, the optional config file and the environment, and
// returns a validated Config.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and reports required values by the
// environment variable that sets them.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config %s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Settings converts the recommend section to engine settings.
func (c *Config) Settings() recommend.Settings {
	r := c.Recommend
	return recommend.Settings{
		ResultLimit:      r.ResultLimit,
		DiversityRatio:   r.DiversityRatio,
		ProfileDepth:     r.ProfileDepth,
		HalfLifeDays:     r.HalfLifeDays,
		PopularityWindow: r.PopularityWindow,
		TrendingWindow:   r.TrendingWindow,
		CacheTTL:         r.CacheTTL,
		PopularityMaxAge: r.PopularityMaxAge,
		Seed:             r.Seed,
		ComputeTimeout:   r.ComputeTimeout,
	}
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		return p
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

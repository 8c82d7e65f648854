package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `json:"server"`
	Warehouse WarehouseConfig `json:"warehouse"`
	Redis     RedisConfig     `json:"redis"`
	Cache     CacheConfig     `json:"cache"`
	Engine    EngineConfig    `json:"engine"`
	IBGE      IBGEConfig      `json:"ibge"`
	Log       LogConfig       `json:"log"`
	Security  SecurityConfig  `json:"security"`
	Secrets   SecretsConfig   `json:"secrets"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port         int    `json:"port" validate:"min=1,max=65535"`
	Environment  string `json:"environment" validate:"oneof=development staging production test"`
	ReadTimeout  int    `json:"read_timeout" validate:"min=1"`
	WriteTimeout int    `json:"write_timeout" validate:"min=1"`
	IdleTimeout  int    `json:"idle_timeout" validate:"min=1"`
}

// WarehouseConfig holds the analytical warehouse connection
type WarehouseConfig struct {
	Driver          string        `json:"driver" validate:"oneof=sqlite postgres"`
	DSN             string        `json:"-" validate:"required"`
	MaxOpenConns    int           `json:"max_open_conns" validate:"min=1"`
	MaxIdleConns    int           `json:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	QueryTimeout    time.Duration `json:"query_timeout"`
	AutoMigrate     bool          `json:"auto_migrate"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled      bool          `json:"enabled"`
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	Password     string        `json:"-"`
	DB           int           `json:"db"`
	PoolSize     int           `json:"pool_size"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// CacheConfig holds read-through cache settings
type CacheConfig struct {
	KeyPrefix    string        `json:"key_prefix"`
	ReferenceTTL time.Duration `json:"reference_ttl" validate:"min=0"`
	IBGETTL      time.Duration `json:"ibge_ttl" validate:"min=0"`
}

// EngineConfig holds aggregation engine settings
type EngineConfig struct {
	ScopeLow            int `json:"scope_low" validate:"min=0,max=99"`
	ScopeHigh           int `json:"scope_high" validate:"min=0,max=99"`
	DefaultListingLimit int `json:"default_listing_limit" validate:"min=1"`
	MaxListingLimit     int `json:"max_listing_limit" validate:"gtefield=DefaultListingLimit"`
	TrendSampleSize     int `json:"trend_sample_size" validate:"min=0,max=50"`
	LocalityTopN        int `json:"locality_top_n" validate:"min=1"`
	MaxConcurrency      int `json:"max_concurrency" validate:"min=1"`
}

// IBGEConfig holds the IBGE aggregates API client settings
type IBGEConfig struct {
	BaseURL         string        `json:"base_url" validate:"required,url"`
	Timeout         time.Duration `json:"timeout"`
	DefaultCategory string        `json:"default_category" validate:"required"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format" validate:"oneof=json text"`
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	RateLimit RateLimitConfig `json:"rate_limit"`
	CORS      CORSConfig      `json:"cors"`

	// AdminToken guards the cache admin routes; empty leaves them open.
	AdminToken string `json:"-"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `json:"requests_per_minute" validate:"min=1"`
	BurstSize         int           `json:"burst_size" validate:"min=1"`
	CleanupInterval   time.Duration `json:"cleanup_interval"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
}

// SecretsConfig points at the SSM parameter path holding secrets
type SecretsConfig struct {
	SSMPath string `json:"ssm_path"`
	Region  string `json:"region"`
}

// Load loads configuration from an optional TOML file named by CONFIG_FILE
// and from environment variables. Environment variables win over the file.
func Load() (*Config, error) {
	src, err := newSource(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         src.int("PORT", 8080),
			Environment:  src.string("ENVIRONMENT", "development"),
			ReadTimeout:  src.int("READ_TIMEOUT", 30),
			WriteTimeout: src.int("WRITE_TIMEOUT", 60),
			IdleTimeout:  src.int("IDLE_TIMEOUT", 60),
		},
		Warehouse: WarehouseConfig{
			Driver:          src.string("WAREHOUSE_DRIVER", "sqlite"),
			DSN:             src.string("WAREHOUSE_DSN", "file:cnpj.db?_pragma=busy_timeout(5000)"),
			MaxOpenConns:    src.int("WAREHOUSE_MAX_OPEN_CONNS", 16),
			MaxIdleConns:    src.int("WAREHOUSE_MAX_IDLE_CONNS", 4),
			ConnMaxLifetime: src.seconds("WAREHOUSE_CONN_MAX_LIFETIME", 300),
			QueryTimeout:    src.seconds("WAREHOUSE_QUERY_TIMEOUT", 60),
			AutoMigrate:     src.bool("WAREHOUSE_AUTO_MIGRATE", false),
		},
		Redis: RedisConfig{
			Enabled:      src.bool("REDIS_ENABLED", true),
			Host:         src.string("REDIS_HOST", "localhost"),
			Port:         src.int("REDIS_PORT", 6379),
			Password:     src.string("REDIS_PASSWORD", ""),
			DB:           src.int("REDIS_DB", 0),
			PoolSize:     src.int("REDIS_POOL_SIZE", 10),
			DialTimeout:  src.seconds("REDIS_DIAL_TIMEOUT", 5),
			ReadTimeout:  src.seconds("REDIS_READ_TIMEOUT", 3),
			WriteTimeout: src.seconds("REDIS_WRITE_TIMEOUT", 3),
		},
		Cache: CacheConfig{
			KeyPrefix:    src.string("CACHE_KEY_PREFIX", "cnpj-analytics:"),
			ReferenceTTL: src.seconds("CACHE_REFERENCE_TTL", 3600),
			IBGETTL:      src.seconds("CACHE_IBGE_TTL", 3600),
		},
		Engine: EngineConfig{
			ScopeLow:            src.int("SCOPE_DIVISION_LOW", 5),
			ScopeHigh:           src.int("SCOPE_DIVISION_HIGH", 33),
			DefaultListingLimit: src.int("LISTING_DEFAULT_LIMIT", 1000),
			MaxListingLimit:     src.int("LISTING_MAX_LIMIT", 10000),
			TrendSampleSize:     src.int("TREND_SAMPLE_SIZE", 5),
			LocalityTopN:        src.int("LOCALITY_TOP_N", 10),
			MaxConcurrency:      src.int("ENGINE_MAX_CONCURRENCY", 8),
		},
		IBGE: IBGEConfig{
			BaseURL:         src.string("IBGE_BASE_URL", "https://servicodados.ibge.gov.br/api/v3/agregados/8888"),
			Timeout:         src.seconds("IBGE_TIMEOUT", 10),
			DefaultCategory: src.string("IBGE_DEFAULT_CATEGORY", "129314"),
		},
		Log: LogConfig{
			Level:  src.string("LOG_LEVEL", "info"),
			Format: src.string("LOG_FORMAT", "json"),
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				RequestsPerMinute: src.int("RATE_LIMIT_RPM", 120),
				BurstSize:         src.int("RATE_LIMIT_BURST", 20),
				CleanupInterval:   src.seconds("RATE_LIMIT_CLEANUP", 60),
			},
			CORS: CORSConfig{
				AllowedOrigins:   src.list("CORS_ALLOWED_ORIGINS", []string{"*"}),
				AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
				AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
				AllowCredentials: src.bool("CORS_ALLOW_CREDENTIALS", false),
			},
			AdminToken: src.string("ADMIN_TOKEN", ""),
		},
		Secrets: SecretsConfig{
			SSMPath: src.string("SECRETS_SSM_PATH", ""),
			Region:  src.string("AWS_REGION", "us-east-1"),
		},
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

var validate = validator.New()

// Validate checks field constraints and cross-field rules
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Engine.ScopeHigh < cfg.Engine.ScopeLow {
		return fmt.Errorf("invalid configuration: SCOPE_DIVISION_HIGH (%d) is below SCOPE_DIVISION_LOW (%d)",
			cfg.Engine.ScopeHigh, cfg.Engine.ScopeLow)
	}
	return nil
}

// source resolves keys from the environment first, then the config file
type source struct {
	file map[string]string
}

func newSource(path string) (*source, error) {
	s := &source{file: map[string]string{}}
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	flatten("", doc, s.file)
	return s, nil
}

// flatten maps [warehouse] driver = "x" to WAREHOUSE_DRIVER=x
func flatten(prefix string, doc map[string]any, out map[string]string) {
	for k, v := range doc {
		key := strings.ToUpper(k)
		if prefix != "" {
			key = prefix + "_" + key
		}
		switch t := v.(type) {
		case map[string]any:
			flatten(key, t, out)
		case []any:
			parts := make([]string, len(t))
			for i, item := range t {
				parts[i] = fmt.Sprint(item)
			}
			out[key] = strings.Join(parts, ",")
		default:
			out[key] = fmt.Sprint(t)
		}
	}
}

func (s *source) lookup(key string) (string, bool) {
	if value := os.Getenv(key); value != "" {
		return value, true
	}
	value, ok := s.file[key]
	return value, ok && value != ""
}

func (s *source) string(key, defaultValue string) string {
	if value, ok := s.lookup(key); ok {
		return value
	}
	return defaultValue
}

func (s *source) int(key string, defaultValue int) int {
	if value, ok := s.lookup(key); ok {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func (s *source) bool(key string, defaultValue bool) bool {
	if value, ok := s.lookup(key); ok {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func (s *source) seconds(key string, defaultValue int) time.Duration {
	return time.Duration(s.int(key, defaultValue)) * time.Second
}

func (s *source) list(key string, defaultValue []string) []string {
	value, ok := s.lookup(key)
	if !ok {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Cache backend names accepted by cache.backend / CACHE_BACKEND.
const (
	BackendInMemory  = "in_memory"
	BackendMemcached = "memcached"
	BackendRedis     = "redis"
)

// Config holds service configuration loaded from YAML, .env and the environment.
type Config struct {
	ServerPort string
	LogLevel   string

	// WeatherAPIKey may be empty; lookups that miss the cache then fail with 500.
	WeatherAPIKey     string
	WeatherAPIURL     string
	WeatherAPITimeout time.Duration

	RequestTimeout time.Duration // 0 disables the per-request deadline

	CacheBackend          string
	CacheTTL              time.Duration
	CacheFailOnWriteError bool

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTimeout  time.Duration

	RateLimitRPS   int
	RateLimitBurst int

	CircuitBreakerEnabled          bool
	CircuitBreakerFailureThreshold int
	CircuitBreakerInterval         time.Duration
	CircuitBreakerTimeout          time.Duration

	CityMinLength int
	CityMaxLength int

	ShutdownTimeout               time.Duration
	ShutdownInFlightTimeout       time.Duration
	ShutdownInFlightCheckInterval time.Duration

	TrackedCities []string
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	WeatherAPI struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"weather_api"`

	Request struct {
		Timeout       string `yaml:"timeout"`
		CityMinLength int    `yaml:"city_min_length"`
		CityMaxLength int    `yaml:"city_max_length"`
	} `yaml:"request"`

	Cache struct {
		Backend          string `yaml:"backend"`
		TTL              string `yaml:"ttl"`
		FailOnWriteError *bool  `yaml:"fail_on_write_error"`
		Memcached        struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
		Redis struct {
			Addr    string `yaml:"addr"`
			DB      int    `yaml:"db"`
			Timeout string `yaml:"timeout"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
		CircuitBreaker struct {
			Enabled          bool   `yaml:"enabled"`
			FailureThreshold int    `yaml:"failure_threshold"`
			Interval         string `yaml:"interval"`
			Timeout          string `yaml:"timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`

	Metrics struct {
		TrackedCities []string `yaml:"tracked_cities"`
	} `yaml:"metrics"`
}

// envOverrides are read with envconfig after the YAML file; set values win.
type envOverrides struct {
	WeatherAPIKey         string `envconfig:"WEATHER_API_KEY"`
	WeatherAPIURL         string `envconfig:"WEATHER_API_URL"`
	ServerPort            string `envconfig:"PORT"`
	LogLevel              string `envconfig:"LOG_LEVEL"`
	CacheBackend          string `envconfig:"CACHE_BACKEND"`
	CacheTTL              string `envconfig:"CACHE_TTL"`
	CacheFailOnWriteError *bool  `envconfig:"CACHE_FAIL_ON_WRITE_ERROR"`
	MemcachedAddrs        string `envconfig:"MEMCACHED_ADDRS"`
	RedisAddr             string `envconfig:"REDIS_ADDR"`
	RedisPassword         string `envconfig:"REDIS_PASSWORD"`
	RedisDB               *int   `envconfig:"REDIS_DB"`
}

type secretsFile struct {
	WeatherAPIKey string `yaml:"weather_api_key"`
	RedisPassword string `yaml:"redis_password"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev), then .env,
// then environment overrides, then config/secrets.yaml for secrets still unset.
// Call from project root.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}

	// .env never overrides variables already present in the environment.
	if err := godotenv.Load(filepath.Join(cwd, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	var ov envOverrides
	if err := envconfig.Process("", &ov); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	cfg := fromFile(&fc)
	applyOverrides(cfg, &ov)

	if cfg.WeatherAPIKey == "" || cfg.RedisPassword == "" {
		sec, err := readSecrets(filepath.Join(cwd, "config", "secrets.yaml"))
		if err != nil {
			return nil, err
		}
		if cfg.WeatherAPIKey == "" {
			cfg.WeatherAPIKey = sec.WeatherAPIKey
		}
		if cfg.RedisPassword == "" {
			cfg.RedisPassword = sec.RedisPassword
		}
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fromFile builds a Config from the parsed YAML, filling defaults.
func fromFile(fc *fileConfig) *Config {
	cfg := &Config{}

	cfg.ServerPort = orDefault(fc.Server.Port, "8080")
	cfg.LogLevel = orDefault(fc.Log.Level, "INFO")

	cfg.WeatherAPIURL = strings.TrimSpace(fc.WeatherAPI.URL)
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, 10*time.Second)

	cfg.RequestTimeout = parseDurationOrZero(fc.Request.Timeout, 0)
	cfg.CityMinLength = fc.Request.CityMinLength
	if cfg.CityMinLength <= 0 {
		cfg.CityMinLength = 1
	}
	cfg.CityMaxLength = fc.Request.CityMaxLength
	if cfg.CityMaxLength <= 0 {
		cfg.CityMaxLength = 100
	}

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = BackendInMemory
	}
	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 12*time.Hour)
	cfg.CacheFailOnWriteError = true
	if fc.Cache.FailOnWriteError != nil {
		cfg.CacheFailOnWriteError = *fc.Cache.FailOnWriteError
	}

	cfg.MemcachedAddrs = orDefault(fc.Cache.Memcached.Addrs, "localhost:11211")
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RedisAddr = orDefault(fc.Cache.Redis.Addr, "localhost:6379")
	cfg.RedisDB = fc.Cache.Redis.DB
	cfg.RedisTimeout = parseDuration(fc.Cache.Redis.Timeout, 500*time.Millisecond)

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 100
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 250
	}

	cb := fc.Reliability.CircuitBreaker
	cfg.CircuitBreakerEnabled = cb.Enabled
	cfg.CircuitBreakerFailureThreshold = cb.FailureThreshold
	if cfg.CircuitBreakerFailureThreshold <= 0 {
		cfg.CircuitBreakerFailureThreshold = 5
	}
	cfg.CircuitBreakerInterval = parseDurationOrZero(cb.Interval, 0)
	cfg.CircuitBreakerTimeout = parseDuration(cb.Timeout, 30*time.Second)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	cfg.TrackedCities = fc.Metrics.TrackedCities
	return cfg
}

func applyOverrides(cfg *Config, ov *envOverrides) {
	if v := strings.TrimSpace(ov.WeatherAPIKey); v != "" {
		cfg.WeatherAPIKey = v
	}
	if v := strings.TrimSpace(ov.WeatherAPIURL); v != "" {
		cfg.WeatherAPIURL = v
	}
	if v := strings.TrimSpace(ov.ServerPort); v != "" {
		cfg.ServerPort = v
	}
	if v := strings.TrimSpace(ov.LogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(strings.ToLower(ov.CacheBackend)); v != "" {
		cfg.CacheBackend = v
	}
	if v := strings.TrimSpace(ov.CacheTTL); v != "" {
		cfg.CacheTTL = parseDuration(v, cfg.CacheTTL)
	}
	if ov.CacheFailOnWriteError != nil {
		cfg.CacheFailOnWriteError = *ov.CacheFailOnWriteError
	}
	if v := strings.TrimSpace(ov.MemcachedAddrs); v != "" {
		cfg.MemcachedAddrs = v
	}
	if v := strings.TrimSpace(ov.RedisAddr); v != "" {
		cfg.RedisAddr = v
	}
	if ov.RedisPassword != "" {
		cfg.RedisPassword = ov.RedisPassword
	}
	if ov.RedisDB != nil {
		cfg.RedisDB = *ov.RedisDB
	}
}

func readSecrets(path string) (secretsFile, error) {
	var sec secretsFile
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return sec, nil
		}
		return sec, fmt.Errorf("read secrets file: %w", err)
	}
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return sec, fmt.Errorf("parse secrets file: %w", err)
	}
	sec.WeatherAPIKey = strings.TrimSpace(sec.WeatherAPIKey)
	return sec, nil
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero and negative durations are returned as-is.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation. RequestTimeout, when enabled, is raised
// above WeatherAPITimeout so the upstream call can finish inside the request deadline.
func validate(cfg *Config) error {
	if cfg.WeatherAPITimeout <= 0 {
		return fmt.Errorf("weather_api.timeout must be positive")
	}
	if cfg.RequestTimeout < 0 {
		cfg.RequestTimeout = 0
	}
	if cfg.RequestTimeout > 0 && cfg.RequestTimeout <= cfg.WeatherAPITimeout {
		cfg.RequestTimeout = cfg.WeatherAPITimeout + time.Second
	}
	switch cfg.CacheBackend {
	case BackendInMemory, BackendMemcached, BackendRedis:
	default:
		return fmt.Errorf("cache.backend must be in_memory, memcached or redis, got %q", cfg.CacheBackend)
	}
	if cfg.CityMinLength > cfg.CityMaxLength {
		return fmt.Errorf("request.city_min_length (%d) exceeds city_max_length (%d)", cfg.CityMinLength, cfg.CityMaxLength)
	}
	if cfg.RedisDB < 0 {
		return fmt.Errorf("cache.redis.db must not be negative")
	}
	return nil
}

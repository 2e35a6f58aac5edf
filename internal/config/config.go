package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type StorageMode string

const (
	StorageLocal      StorageMode = "local"
	StorageCloudinary StorageMode = "cloudinary"
)

const (
	defaultPort             = 4000
	defaultUploadDir        = "uploads"
	defaultCloudinaryFolder = "shopping_app"
	defaultFetchTimeout     = 30 * time.Second
	defaultMaxImageBytes    = 20 << 20
	defaultMaxImagePixels   = 268402689
	defaultCacheTTL         = 5 * time.Minute
	defaultUploadRateBurst  = 10
	defaultLogLevel         = "info"
)

// Config is read once at startup and validated before anything is built from it.
type Config struct {
	Port int

	DatabaseURL string
	// DatabaseSSL is nil unless DATABASE_SSL is set explicitly.
	DatabaseSSL *bool

	StorageMode      StorageMode
	UploadDir        string
	CloudinaryURL    string
	CloudinaryFolder string

	FetchTimeout   time.Duration
	MaxImageBytes  int64
	MaxImagePixels int64

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	AllowedOrigins  []string
	UploadRateLimit float64
	UploadRateBurst int

	LogLevel  string
	LogFormat string
}

// Load reads .env files when present and then the process environment.
// Variables already set in the environment win over .env values.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		} else if err == nil {
			log.Debug().Str("file", f).Msg("Loaded environment file")
		}
	}

	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv and validates it.
func FromEnv(getenv func(string) string) (*Config, error) {
	p := envParser{getenv: getenv}

	cfg := &Config{
		Port:             p.int("PORT", defaultPort),
		DatabaseURL:      strings.TrimSpace(getenv("DATABASE_URL")),
		DatabaseSSL:      p.optionalBool("DATABASE_SSL"),
		StorageMode:      StorageMode(strings.ToLower(p.str("STORAGE_MODE", string(StorageLocal)))),
		UploadDir:        p.str("UPLOAD_DIR", defaultUploadDir),
		CloudinaryURL:    strings.TrimSpace(getenv("CLOUDINARY_URL")),
		CloudinaryFolder: p.str("CLOUDINARY_FOLDER", defaultCloudinaryFolder),
		FetchTimeout:     p.duration("IMAGE_FETCH_TIMEOUT", defaultFetchTimeout),
		MaxImageBytes:    int64(p.int("MAX_IMAGE_BYTES", defaultMaxImageBytes)),
		MaxImagePixels:   int64(p.int("MAX_IMAGE_PIXELS", defaultMaxImagePixels)),
		RedisAddr:        strings.TrimSpace(getenv("REDIS_ADDR")),
		RedisPassword:    getenv("REDIS_PASSWORD"),
		RedisDB:          p.int("REDIS_DB", 0),
		CacheTTL:         p.duration("CACHE_TTL", defaultCacheTTL),
		AllowedOrigins:   p.list("CORS_ALLOWED_ORIGINS"),
		UploadRateLimit:  p.float("UPLOAD_RATE_LIMIT", 0),
		UploadRateBurst:  p.int("UPLOAD_RATE_BURST", defaultUploadRateBurst),
		LogLevel:         strings.ToLower(p.str("LOG_LEVEL", defaultLogLevel)),
		LogFormat:        strings.ToLower(getenv("LOG_FORMAT")),
	}

	if err := errors.Join(append(p.errs, cfg.Validate())...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem at once so a bad deployment fails with one message.
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}

	switch c.StorageMode {
	case StorageLocal:
		if c.UploadDir == "" {
			errs = append(errs, errors.New("UPLOAD_DIR cannot be empty in local storage mode"))
		}
	case StorageCloudinary:
		if c.CloudinaryURL == "" {
			errs = append(errs, errors.New("CLOUDINARY_URL is required in cloudinary storage mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_MODE must be %q or %q, got %q", StorageLocal, StorageCloudinary, c.StorageMode))
	}

	if c.FetchTimeout <= 0 {
		errs = append(errs, errors.New("IMAGE_FETCH_TIMEOUT must be positive"))
	}
	if c.MaxImageBytes <= 0 {
		errs = append(errs, errors.New("MAX_IMAGE_BYTES must be positive"))
	}
	if c.MaxImagePixels <= 0 {
		errs = append(errs, errors.New("MAX_IMAGE_PIXELS must be positive"))
	}
	if c.UploadRateLimit < 0 {
		errs = append(errs, errors.New("UPLOAD_RATE_LIMIT cannot be negative"))
	}
	if c.UploadRateLimit > 0 && c.UploadRateBurst <= 0 {
		errs = append(errs, errors.New("UPLOAD_RATE_BURST must be positive when rate limiting"))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", c.LogLevel))
	}

	return errors.Join(errs...)
}

// CacheEnabled reports whether a Redis cache should front the repository.
func (c *Config) CacheEnabled() bool {
	return c.RedisAddr != ""
}

// envParser collects parse errors instead of stopping at the first one.
type envParser struct {
	getenv func(string) string
	errs   []error
}

func (p *envParser) str(key, def string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *envParser) int(key string, def int) int {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s must be an integer, got %q", key, v))
		return def
	}
	return n
}

func (p *envParser) float(key string, def float64) float64 {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s must be a number, got %q", key, v))
		return def
	}
	return f
}

func (p *envParser) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s must be a duration like 30s, got %q", key, v))
		return def
	}
	return d
}

func (p *envParser) optionalBool(key string) *bool {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s must be a boolean, got %q", key, v))
		return nil
	}
	return &b
}

func (p *envParser) list(key string) []string {
	var out []string
	for _, item := range strings.Split(p.getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

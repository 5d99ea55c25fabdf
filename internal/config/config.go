// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/imagiseum/gallery/internal/storage"
)

// Config holds all runtime configuration values.
type Config struct {
	Env  string
	Port string

	StoreDriver string // "mysql" or "memory"
	DBUser      string
	DBPass      string
	DBHost      string
	DBPort      string
	DBName      string
	DBMigrate   bool

	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int

	StorageDriver   string // "local" or "s3"
	UploadDir       string
	UploadURLPrefix string
	S3              storage.S3Config

	CloudflareAccountID string
	CloudflareAPIToken  string
	CloudflareModel     string
	AITimeout           time.Duration

	BodyLimit   string
	LogLevel    string
	LogFormat   string
	RabbitMQURL string

	Cache     CacheConfig
	RateLimit RateLimitConfig
	Redis     RedisConfig
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "prod") || strings.EqualFold(c.Env, "production")
}

// loader collects every missing or malformed variable so Load can report
// them together instead of failing on the first one.
type loader struct {
	errs []error
}

func (l *loader) must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		l.errs = append(l.errs, fmt.Errorf("missing required env var: %s", key))
	}
	return v
}

func (l *loader) mustInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("invalid int for %s: %q", key, s))
	}
	return n
}

func (l *loader) oneOf(key, def string, allowed ...string) string {
	v := strings.ToLower(envStr(key, def))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	l.errs = append(l.errs, fmt.Errorf("invalid value for %s: %q (want one of %s)", key, v, strings.Join(allowed, ", ")))
	return def
}

// Load reads configuration from the environment. Database variables are
// required only when STORE_DRIVER is mysql and the bucket only when
// STORAGE_DRIVER is s3.
func Load() (Config, error) {
	l := &loader{}
	cfg := Config{
		Env:  envStr("APP_ENV", "dev"),
		Port: envStr("APP_PORT", "5000"),

		StoreDriver: l.oneOf("STORE_DRIVER", "mysql", "mysql", "memory"),
		DBMigrate:   envBool("DB_MIGRATE", true),

		JWTSecret:  l.must("JWT_SECRET"),
		TokenTTL:   envDur("TOKEN_TTL", 24*time.Hour),
		BcryptCost: l.mustInt("BCRYPT_COST", 10),

		StorageDriver:   l.oneOf("STORAGE_DRIVER", "local", "local", "s3"),
		UploadDir:       envStr("UPLOAD_DIR", "public/uploads"),
		UploadURLPrefix: strings.TrimSuffix(envStr("UPLOAD_URL_PREFIX", "/uploads"), "/"),

		CloudflareAccountID: os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
		CloudflareAPIToken:  os.Getenv("CLOUDFLARE_API_TOKEN"),
		CloudflareModel:     envStr("CLOUDFLARE_AI_MODEL", "@cf/stabilityai/stable-diffusion-xl-base-1.0"),
		AITimeout:           envDur("AI_TIMEOUT", 60*time.Second),

		BodyLimit:   envStr("BODY_LIMIT", "50M"),
		LogLevel:    envStr("LOG_LEVEL", "info"),
		LogFormat:   os.Getenv("LOG_FORMAT"),
		RabbitMQURL: os.Getenv("RABBITMQ_URL"),

		Cache:     LoadCacheConfig(),
		RateLimit: LoadRateLimitConfig(),
		Redis:     LoadRedisConfig(),
	}

	if cfg.StoreDriver == "mysql" {
		cfg.DBUser = l.must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS")
		cfg.DBHost = l.must("DB_HOST")
		cfg.DBPort = l.must("DB_PORT")
		cfg.DBName = l.must("DB_NAME")
	}

	if cfg.StorageDriver == "s3" {
		cfg.S3 = storage.S3Config{
			Bucket:    l.must("S3_BUCKET"),
			Region:    envStr("S3_REGION", "us-east-1"),
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			Prefix:    envStr("S3_PREFIX", "uploads"),
		}
	}

	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		l.errs = append(l.errs, fmt.Errorf("BCRYPT_COST out of range: %d", cfg.BcryptCost))
	}
	if cfg.TokenTTL <= 0 {
		l.errs = append(l.errs, errors.New("TOKEN_TTL must be positive"))
	}

	return cfg, errors.Join(l.errs...)
}

// DSN builds the go-sql-driver/mysql data source name. parseTime maps
// DATETIME to time.Time and loc=UTC keeps timestamps consistent.
func (c Config) DSN() string {
	auth := c.DBUser
	if c.DBPass != "" {
		auth = c.DBUser + ":" + c.DBPass
	}
	return fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, c.DBHost, c.DBPort, c.DBName)
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch strings.ToLower(os.Getenv(k)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	if n, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	if dur, err := time.ParseDuration(os.Getenv(k)); err == nil {
		return dur
	}
	return d
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const devSecret = "dev-secret-change-in-production"

// Config is built once at startup and handed to the components that need it.
type Config struct {
	Port        string
	Env         string
	DatabaseDSN string
	AutoMigrate bool

	JWTSecret    string
	JWTAlgorithm string
	TokenTTL     time.Duration

	RequireVerifiedEmail bool

	// Domain and LinkScheme build the links embedded in outgoing emails.
	Domain     string
	LinkScheme string

	Mail    MailConfig
	Storage StorageConfig

	MaxUploadBytes int64
	AuthRateRPS    float64
	AuthRateBurst  int
}

// MailConfig holds outbound SMTP settings. An empty Host selects the
// logging sender.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	SSL      bool
}

type StorageConfig struct {
	Backend string // "disk" or "s3"
	Dir     string

	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	var errs []error

	cfg := Config{
		Port:                 getEnv("PORT", "8080"),
		Env:                  getEnv("ENV", "development"),
		DatabaseDSN:          getEnv("DATABASE_DSN", "root:password@tcp(127.0.0.1:3306)/filekeep?parseTime=true"),
		AutoMigrate:          getBool("AUTO_MIGRATE", true, &errs),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		JWTAlgorithm:         getEnv("JWT_ALGORITHM", "HS256"),
		TokenTTL:             time.Duration(getInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30, &errs)) * time.Minute,
		RequireVerifiedEmail: getBool("REQUIRE_VERIFIED_EMAIL", true, &errs),
		Domain:               getEnv("DOMAIN", "localhost:8080"),
		LinkScheme:           getEnv("LINK_SCHEME", "http"),
		Mail: MailConfig{
			Host:     os.Getenv("MAIL_HOST"),
			Port:     getInt("MAIL_PORT", 465, &errs),
			Username: os.Getenv("MAIL_USERNAME"),
			Password: os.Getenv("MAIL_PASSWORD"),
			From:     getEnv("MAIL_FROM", "no-reply@localhost"),
			SSL:      getBool("MAIL_SSL", true, &errs),
		},
		Storage: StorageConfig{
			Backend:     strings.ToLower(getEnv("STORAGE_BACKEND", "disk")),
			Dir:         getEnv("STORAGE_DIR", "uploaded_files"),
			S3Bucket:    os.Getenv("S3_BUCKET"),
			S3Region:    getEnv("S3_REGION", "us-east-1"),
			S3Endpoint:  os.Getenv("S3_ENDPOINT"),
			S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
			S3SecretKey: os.Getenv("S3_SECRET_KEY"),
		},
		MaxUploadBytes: int64(getInt("MAX_UPLOAD_MB", 100, &errs)) << 20,
		AuthRateRPS:    getFloat("AUTH_RATE_RPS", 5, &errs),
		AuthRateBurst:  getInt("AUTH_RATE_BURST", 10, &errs),
	}

	if err := cfg.validate(); err != nil {
		errs = append(errs, err)
	}

	return cfg, errors.Join(errs...)
}

// IsProduction reports whether the service runs with ENV=production.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// BaseURL returns the public origin used in email links.
func (c Config) BaseURL() string {
	return c.LinkScheme + "://" + c.Domain
}

func (c Config) validate() error {
	var errs []error

	switch {
	case c.JWTSecret == "":
		errs = append(errs, errors.New("JWT_SECRET must be set"))
	case c.IsProduction() && c.JWTSecret == devSecret:
		errs = append(errs, errors.New("JWT_SECRET must be changed in production environment"))
	}

	switch c.JWTAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		errs = append(errs, fmt.Errorf("JWT_ALGORITHM %q is not supported", c.JWTAlgorithm))
	}

	if c.IsProduction() && c.Mail.Host == "" {
		errs = append(errs, errors.New("MAIL_HOST must be set in production environment"))
	}

	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_EXPIRE_MINUTES must be positive"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_MB must be positive"))
	}

	switch c.Storage.Backend {
	case "disk":
		if c.Storage.Dir == "" {
			errs = append(errs, errors.New("STORAGE_DIR must be set for disk storage"))
		}
	case "s3":
		if c.Storage.S3Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET must be set for s3 storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND %q is not supported", c.Storage.Backend))
	}

	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64, errs *[]error) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return f
}

func getBool(key string, fallback bool, errs *[]error) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return b
}

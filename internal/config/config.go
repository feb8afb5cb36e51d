// Package config loads the process-wide settings once at startup.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DefaultAccessKeyFile is read when ACCESS_KEY_FILE is not set.
const DefaultAccessKeyFile = ".env/.verification_key"

// accessKeyVar is the variable name holding the key inside the access key file.
const accessKeyVar = "vkey"

// Config is immutable after Load; pass it by value or read-only pointer.
type Config struct {
	Port         string
	DatabasePath string
	SecretKey    string
	BcryptCost   int
	CookieSecure bool
	SessionTTL   time.Duration

	// AccessKey unlocks main-user registration. Empty disables it.
	AccessKey string

	BaseURL         string
	VerificationTTL time.Duration

	MailBackend    string
	MailFrom       string
	MailTimeout    time.Duration
	MailtrapURL    string
	MailtrapAPIKey string

	SessionBackend string
	RedisAddr      string
	RedisPassword  string

	StorageBackend string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	SentryDSN         string
	SentryEnvironment string
}

// LoadDotEnv loads variables from a .env file into the process environment
// without overriding ones already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load builds a Config from getenv (usually os.Getenv) and the access key file.
func Load(getenv func(string) string) (Config, error) {
	env := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		Port:              env("PORT", "8080"),
		DatabasePath:      env("DATABASE_PATH", "accounts.db"),
		SecretKey:         getenv("SECRET_KEY"),
		CookieSecure:      getenv("COOKIE_SECURE") != "false",
		BaseURL:           env("BASE_URL", "http://localhost:8080"),
		MailBackend:       env("MAIL_BACKEND", "log"),
		MailFrom:          env("MAIL_FROM", "noreply@localhost"),
		MailtrapURL:       getenv("MAILTRAP_API_URL"),
		MailtrapAPIKey:    getenv("MAILTRAP_API_KEY"),
		SessionBackend:    env("SESSION_BACKEND", "memory"),
		RedisAddr:         env("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     getenv("REDIS_PASSWORD"),
		StorageBackend:    env("STORAGE_BACKEND", "sqlite"),
		MinioEndpoint:     env("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey:    getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey:    getenv("MINIO_SECRET_KEY"),
		MinioBucket:       env("MINIO_BUCKET", "accounts"),
		MinioUseSSL:       getenv("MINIO_USE_SSL") == "true",
		SentryDSN:         getenv("SENTRY_DSN"),
		SentryEnvironment: env("SENTRY_ENVIRONMENT", "development"),
	}

	if cfg.SecretKey == "" {
		return Config{}, errors.New("SECRET_KEY environment variable is required")
	}
	if len(cfg.SecretKey) < 32 {
		return Config{}, errors.New("SECRET_KEY must be at least 32 characters for HMAC-SHA256 security")
	}

	var err error
	if cfg.BcryptCost, err = intVar(getenv, "BCRYPT_COST", 12); err != nil {
		return Config{}, err
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 14 {
		return Config{}, fmt.Errorf("BCRYPT_COST must be between 4 and 14, got %d", cfg.BcryptCost)
	}

	if cfg.SessionTTL, err = durationVar(getenv, "SESSION_TTL", 14*24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.VerificationTTL, err = durationVar(getenv, "VERIFICATION_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.MailTimeout, err = durationVar(getenv, "MAIL_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}

	switch cfg.MailBackend {
	case "log":
	case "mailtrap":
		if cfg.MailtrapURL == "" || cfg.MailtrapAPIKey == "" {
			return Config{}, errors.New("MAILTRAP_API_URL and MAILTRAP_API_KEY are required for MAIL_BACKEND=mailtrap")
		}
	default:
		return Config{}, fmt.Errorf("unknown MAIL_BACKEND %q", cfg.MailBackend)
	}

	if cfg.SessionBackend != "memory" && cfg.SessionBackend != "redis" {
		return Config{}, fmt.Errorf("unknown SESSION_BACKEND %q", cfg.SessionBackend)
	}
	if cfg.StorageBackend != "sqlite" && cfg.StorageBackend != "minio" {
		return Config{}, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}

	cfg.AccessKey, err = loadAccessKey(getenv)
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// loadAccessKey prefers ACCESS_KEY, then the vkey entry of the access key file.
func loadAccessKey(getenv func(string) string) (string, error) {
	if key := getenv("ACCESS_KEY"); key != "" {
		return key, nil
	}

	path := getenv("ACCESS_KEY_FILE")
	if path == "" {
		path = DefaultAccessKeyFile
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read access key file: %w", err)
	}
	return values[accessKeyVar], nil
}

func intVar(getenv func(string) string, key string, def int) (int, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func durationVar(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

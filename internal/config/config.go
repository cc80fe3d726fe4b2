package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server settings
	ServerAddr      string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	// Database
	DatabasePath string

	// Authentication
	SessionSecret string
	SessionMaxAge time.Duration
	AdminHandles  []string

	// App settings
	LogLevel string
	DevMode  bool

	// Uploads
	StorageBackend         string
	UploadDir              string
	AllowedImageExtensions []string
	MaxUploadBytes         int64

	// S3 storage, used when StorageBackend is "s3"
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
}

const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// DefaultSessionSecret is only accepted in dev mode
const DefaultSessionSecret = "your-secret-key-change-in-production"


// Load reads an optional .env file and then builds the configuration from the environment.
func Load() *Config {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	return &Config{
		// Server
		ServerAddr:      getEnv("SERVER_ADDR", ":8080"),
		RequestTimeout:  getDuration("REQUEST_TIMEOUT", 5*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 5*time.Second),

		// Database
		DatabasePath: getEnv("DATABASE_PATH", "./data/guestbook.db"),

		// Authentication
		SessionSecret: getEnv("SESSION_SECRET", DefaultSessionSecret),
		SessionMaxAge: getDuration("SESSION_MAX_AGE", 24*time.Hour),
		AdminHandles:  getList("ADMIN_HANDLES", nil),

		// App
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnv("DEV_MODE", "true") == "true",

		// Uploads
		StorageBackend:         getEnv("STORAGE_BACKEND", StorageLocal),
		UploadDir:              getEnv("UPLOAD_DIR", "./uploads"),
		AllowedImageExtensions: getList("ALLOWED_IMAGE_EXTENSIONS", []string{"png", "jpg", "jpeg", "gif"}),
		MaxUploadBytes:         getInt64("MAX_UPLOAD_BYTES", 10<<20),

		// S3
		S3Bucket:    getEnv("S3_BUCKET", ""),
		S3Region:    getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:  getEnv("S3_ENDPOINT", ""),
		S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("S3_SECRET_KEY", ""),
	}
}

// Validate checks that the configuration can start the server.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.SessionSecret) == "" {
		errs = append(errs, errors.New("SESSION_SECRET must not be empty"))
	} else if !c.DevMode && c.SessionSecret == DefaultSessionSecret {
		errs = append(errs, errors.New("SESSION_SECRET must be changed when DEV_MODE is off"))
	}
	if c.SessionMaxAge <= 0 {
		errs = append(errs, errors.New("SESSION_MAX_AGE must be positive"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must be positive"))
	}
	if len(c.AllowedImageExtensions) == 0 {
		errs = append(errs, errors.New("ALLOWED_IMAGE_EXTENSIONS must list at least one extension"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}

	switch c.StorageBackend {
	case StorageLocal:
		if c.UploadDir == "" {
			errs = append(errs, errors.New("UPLOAD_DIR must be set for local storage"))
		}
	case StorageS3:
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET must be set for s3 storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend))
	}

	return errors.Join(errs...)
}

// IsAdmin reports whether the given login handle has admin rights
func (c *Config) IsAdmin(handle string) bool {
	for _, h := range c.AdminHandles {
		if strings.EqualFold(h, handle) {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

// getList splits a comma separated value, dropping blanks and leading dots
func getList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(part)), ".")
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Package config loads the application settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tweetyard/domain"
)

const (
	DevEnv = "dev"
	ProEnv = "pro"
)

type Config struct {
	Env           string
	Addr          string
	WhitelistHost string
	CertCacheDir  string
	JWTSecret     string
	SessionTTL    time.Duration
	EnableSignup  bool
	BcryptCost    int

	DB      DB
	Storage Storage
	Limits  Limits
	Log     Log
	Site    domain.Site
}

type DB struct {
	Driver string
	URL    string
}

// Storage mirrors the provider settings understood by storage.New.
type Storage struct {
	Provider string
	ID       string
	Secret   string
	Region   string
	Bucket   string
	Endpoint string
}

type Limits struct {
	MaxPostLength     int
	MaxUploadBytes    int64
	AllowedMediaTypes []string
}

type Log struct {
	Level  string
	Format string
}

func (c *Config) IsDev() bool {
	return c.Env == DevEnv
}

// Load reads every variable and reports all problems in a single error.
func Load() (*Config, error) {
	var problems []string

	env := getEnv("ENV", ProEnv)
	if env != DevEnv && env != ProEnv {
		problems = append(problems, fmt.Sprintf("invalid value for ENV: %q (want %q or %q)", env, DevEnv, ProEnv))
	}

	c := &Config{
		Env:           env,
		Addr:          os.Getenv("ADDRESS_LISTEN"),
		WhitelistHost: os.Getenv("WHITELIST_HOST"),
		CertCacheDir:  getEnv("CERT_CACHE_DIR", "/var/www/.cache"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		SessionTTL:    getDuration("SESSION_TTL", 7*24*time.Hour, &problems),
		EnableSignup:  getBool("ENABLE_SIGNUP", true, &problems),
		BcryptCost:    getInt("BCRYPT_COST", bcrypt.DefaultCost, &problems),
		DB: DB{
			Driver: getEnv("DB_DRIVER", "sqlite"),
			URL:    os.Getenv("DB_URL"),
		},
		Storage: Storage{
			Provider: getEnv("STORAGE_PROVIDER", "filesystem"),
			ID:       os.Getenv("STORAGE_ID"),
			Secret:   os.Getenv("STORAGE_SECRET"),
			Region:   os.Getenv("STORAGE_REGION"),
			Bucket:   getEnv("STORAGE_BUCKET", "./media"),
			Endpoint: os.Getenv("STORAGE_ENDPOINT"),
		},
		Limits: Limits{
			MaxPostLength:     getInt("MAX_POST_LENGTH", 240, &problems),
			MaxUploadBytes:    int64(getInt("MAX_UPLOAD_BYTES", 5<<20, &problems)),
			AllowedMediaTypes: getList("ALLOWED_MEDIA_TYPES", []string{"image/jpeg", "image/png", "image/gif", "image/webp"}),
		},
		Log: Log{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Site: domain.Site{
			Title:       getEnv("SITE_TITLE", "Tweetyard"),
			Description: getEnv("SITE_DESCRIPTION", "Short posts from the backyard."),
			Footer:      os.Getenv("SITE_FOOTER"),
		},
	}

	if c.Addr == "" && c.IsDev() {
		c.Addr = ":8080"
	}
	if c.JWTSecret == "" {
		if c.IsDev() {
			c.JWTSecret = "unsecure"
		} else {
			problems = append(problems, "missing required environment variable: JWT_SECRET")
		}
	}

	switch c.DB.Driver {
	case "sqlite":
		if c.DB.URL == "" {
			c.DB.URL = "./tweetyard.db?_pragma=foreign_keys(1)"
		}
	case "postgres":
		if c.DB.URL == "" {
			problems = append(problems, "missing required environment variable: DB_URL (postgres)")
		}
	default:
		problems = append(problems, fmt.Sprintf("unsupported DB_DRIVER: %q", c.DB.Driver))
	}

	if c.Limits.MaxPostLength <= 0 {
		problems = append(problems, "MAX_POST_LENGTH must be positive")
	}
	if c.Limits.MaxUploadBytes <= 0 {
		problems = append(problems, "MAX_UPLOAD_BYTES must be positive")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		problems = append(problems, fmt.Sprintf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}

	if len(problems) > 0 {
		return nil, errors.New("configuration errors:\n  " + strings.Join(problems, "\n  "))
	}
	return c, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int, problems *[]string) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*problems = append(*problems, fmt.Sprintf("invalid value for %s: expected integer, got %q", key, v))
		return fallback
	}
	return n
}

func getBool(key string, fallback bool, problems *[]string) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*problems = append(*problems, fmt.Sprintf("invalid value for %s: expected boolean, got %q", key, v))
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration, problems *[]string) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*problems = append(*problems, fmt.Sprintf("invalid value for %s: expected duration, got %q", key, v))
		return fallback
	}
	return d
}

func getList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

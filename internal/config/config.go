package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultBind                 = ":8080"
	DefaultStorageRoot          = "/srv/scenes/assets"
	DefaultMaxUploadBytes int64 = 100 * 1024 * 1024
	DefaultTokenTTL             = time.Hour
)

type Config struct {
	Bind               string
	DBDSN              string
	StorageRoot        string
	MaxUploadBytes     int64
	TokenSecret        string
	TokenTTL           time.Duration
	EnforceIPWhitelist bool
	CORSAllowedOrigins []string
	SeedFile           string
	SwaggerUIPath      string
	OpenAPIPath        string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Bind:               getenv("SCENES_BIND", DefaultBind),
		StorageRoot:        getenv("SCENES_STORAGE_ROOT", DefaultStorageRoot),
		MaxUploadBytes:     getInt64("SCENES_MAX_UPLOAD_BYTES", DefaultMaxUploadBytes),
		TokenTTL:           getDuration("SCENES_TOKEN_TTL", DefaultTokenTTL),
		EnforceIPWhitelist: getBool("SCENES_ENFORCE_IP_WHITELIST", false),
		CORSAllowedOrigins: splitAndTrim(os.Getenv("SCENES_CORS_ALLOWED_ORIGINS")),
		SeedFile:           os.Getenv("SCENES_SEED_FILE"),
		SwaggerUIPath:      "/swagger",
		OpenAPIPath:        "/openapi.yaml",
	}

	cfg.DBDSN = os.Getenv("SCENES_DB_DSN")
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("SCENES_DB_DSN is required")
	}

	cfg.TokenSecret = os.Getenv("SCENES_TOKEN_SECRET")
	if cfg.TokenSecret == "" {
		return nil, fmt.Errorf("SCENES_TOKEN_SECRET is required")
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return i
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(strings.TrimSpace(v))
		return v == "1" || v == "true" || v == "yes" || v == "y"
	}
	return def
}

func splitAndTrim(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

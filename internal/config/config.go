package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Token formats understood by TOKEN_FORMAT.
const (
	TokenFormatRandom = "random"
	TokenFormatJWT    = "jwt"
)

// Config holds runtime configuration sourced from env vars.
type Config struct {
	Port            string
	DatabaseDriver  string
	DatabaseURL     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	UserTable       string
	TokenTTL        time.Duration
	TokenLength     int
	TokenFormat     string
	JWTSecret       string
	JWTIssuer       string
	BcryptCost      int
	LogLevel        string
	CORSOrigins     []string
}

// Load reads configuration from the environment and performs minimal validation.
func Load() (Config, error) {
	cfg := Config{
		Port:            fallback(os.Getenv("PORT"), "8080"),
		DatabaseDriver:  fallback(os.Getenv("DATABASE_DRIVER"), "pgx"),
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		MaxOpenConns:    positiveInt(os.Getenv("DB_MAX_OPEN_CONNS"), 25),
		MaxIdleConns:    positiveInt(os.Getenv("DB_MAX_IDLE_CONNS"), 5),
		ConnMaxLifetime: time.Duration(positiveInt(os.Getenv("DB_CONN_MAX_LIFETIME_MINUTES"), 5)) * time.Minute,
		UserTable:       fallback(os.Getenv("USER_TABLE"), "users"),
		TokenTTL:        time.Duration(positiveInt(os.Getenv("TOKEN_TTL_MINUTES"), 60)) * time.Minute,
		TokenLength:     positiveInt(os.Getenv("TOKEN_LENGTH"), 16),
		TokenFormat:     strings.ToLower(fallback(os.Getenv("TOKEN_FORMAT"), TokenFormatRandom)),
		JWTSecret:       strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTIssuer:       fallback(os.Getenv("JWT_ISSUER"), "tokenauth"),
		BcryptCost:      positiveInt(os.Getenv("BCRYPT_COST"), 10),
		LogLevel:        fallback(os.Getenv("LOG_LEVEL"), "info"),
		CORSOrigins:     parseCSV(fallback(os.Getenv("CORS_ALLOWED_ORIGINS"), "*")),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("DATABASE_URL is required")
	}
	switch cfg.TokenFormat {
	case TokenFormatRandom:
	case TokenFormatJWT:
		if cfg.JWTSecret == "" {
			return Config{}, errors.New("JWT_SECRET is required when TOKEN_FORMAT=jwt")
		}
	default:
		return Config{}, fmt.Errorf("unknown TOKEN_FORMAT %q", cfg.TokenFormat)
	}

	return cfg, nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

func positiveInt(value string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	var out []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

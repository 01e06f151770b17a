package util

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultServerAddr      = "localhost:8080"
	defaultWriteTimeout    = 10 * time.Second
	defaultReadTimeout     = 10 * time.Second
	defaultIdleTimeout     = 30 * time.Second
	defaultGracefulTimeout = 5 * time.Second

	defaultAccessTTL  = 5 * time.Minute
	defaultRefreshTTL = 30 * 24 * time.Hour

	defaultKeyPathDBName    = "devtasks"
	defaultKeyPathDBTimeout = 5 * time.Second

	defaultBcryptCost = 10

	// DefaultSecretKey is the placeholder key shipped in sample environments.
	DefaultSecretKey = "secret-key"
	MinSecretKeyLen  = 32
)

const (
	BackendMemory   = "memory"
	BackendKeyPath  = "keypath"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

var (
	ErrMissingTokenKey   = errors.New("token signing key is not set")
	ErrSameTokenKeys     = errors.New("access and refresh keys must differ")
	ErrInvalidTokenTTL   = errors.New("token lifetimes must be positive and refresh must outlive access")
	ErrUnknownBackend    = errors.New("unknown backend")
	ErrMissingBackendCfg = errors.New("backend configuration is missing")
)

type Config struct {
	Server            *ServerConfig
	Token             *TokenConfig
	KeyPath           *KeyPathConfig
	Redis             *RedisConfig
	DB                *DBConfig
	Cookie            *CookieConfig
	StorageBackend    string
	RevocationBackend string
	WebhookURL        string
	LogLevel          string
	BcryptCost        int
}

// LoadConfig читает .env (если он есть) и переменные окружения.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: could not load .env file: %v", err)
	}

	cfg := &Config{
		Server:            NewServerConfig(),
		Token:             NewTokenConfig(),
		KeyPath:           NewKeyPathConfig(),
		Redis:             NewRedisConfig(),
		DB:                NewDBConfig(),
		Cookie:            NewCookieConfig(),
		StorageBackend:    stringOrDefault("STORAGE_BACKEND", BackendKeyPath),
		RevocationBackend: stringOrDefault("REVOCATION_BACKEND", BackendKeyPath),
		WebhookURL:        os.Getenv("WEBHOOK_URL"),
		LogLevel:          stringOrDefault("LOG_LEVEL", "info"),
		BcryptCost:        parseIntOrDefault("BCRYPT_COST", defaultBcryptCost),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := c.Token.Validate(); err != nil {
		return fmt.Errorf("token config: %w", err)
	}

	switch c.StorageBackend {
	case BackendMemory:
	case BackendKeyPath:
		if c.KeyPath.URL == "" {
			return fmt.Errorf("%w: KEYPATH_DB_URL", ErrMissingBackendCfg)
		}
	default:
		return fmt.Errorf("%w: STORAGE_BACKEND=%q", ErrUnknownBackend, c.StorageBackend)
	}

	switch c.RevocationBackend {
	case BackendMemory:
	case BackendKeyPath:
		if c.KeyPath.URL == "" {
			return fmt.Errorf("%w: KEYPATH_DB_URL", ErrMissingBackendCfg)
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("%w: REDIS_ADDR", ErrMissingBackendCfg)
		}
	case BackendPostgres:
		if c.DB.DSN == "" {
			return fmt.Errorf("%w: DATABASE_URL", ErrMissingBackendCfg)
		}
	default:
		return fmt.Errorf("%w: REVOCATION_BACKEND=%q", ErrUnknownBackend, c.RevocationBackend)
	}

	return nil
}

type ServerConfig struct {
	ServerAddr      string
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	IdleTimeout     time.Duration
	GracefulTimeout time.Duration
}

func NewServerConfig() *ServerConfig {
	return &ServerConfig{
		ServerAddr:      stringOrDefault("SERVER_ADDRESS", defaultServerAddr),
		WriteTimeout:    parseDurationOrDefault("WRITE_TIMEOUT", defaultWriteTimeout),
		ReadTimeout:     parseDurationOrDefault("READ_TIMEOUT", defaultReadTimeout),
		IdleTimeout:     parseDurationOrDefault("IDLE_TIMEOUT", defaultIdleTimeout),
		GracefulTimeout: parseDurationOrDefault("GRACEFUL_TIMEOUT", defaultGracefulTimeout),
	}
}

type TokenConfig struct {
	AccessKey  []byte
	RefreshKey []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func NewTokenConfig() *TokenConfig {
	return &TokenConfig{
		AccessKey:  []byte(os.Getenv("ACCESS_TOKEN_KEY")),
		RefreshKey: []byte(os.Getenv("REFRESH_TOKEN_KEY")),
		AccessTTL:  parseDurationOrDefault("ACCESS_TOKEN_TTL", defaultAccessTTL),
		RefreshTTL: parseDurationOrDefault("REFRESH_TOKEN_TTL", defaultRefreshTTL),
	}
}

func (c *TokenConfig) Validate() error {
	if len(c.AccessKey) == 0 || len(c.RefreshKey) == 0 {
		return ErrMissingTokenKey
	}
	if string(c.AccessKey) == string(c.RefreshKey) {
		return ErrSameTokenKeys
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= c.AccessTTL {
		return ErrInvalidTokenTTL
	}
	return nil
}

// WeakKeys returns the names of keys that are the sample default or too short.
func (c *TokenConfig) WeakKeys() []string {
	var weak []string
	for name, key := range map[string][]byte{"ACCESS_TOKEN_KEY": c.AccessKey, "REFRESH_TOKEN_KEY": c.RefreshKey} {
		if string(key) == DefaultSecretKey || len(key) < MinSecretKeyLen {
			weak = append(weak, name)
		}
	}
	return weak
}

type KeyPathConfig struct {
	URL      string
	Password string
	Database string
	Timeout  time.Duration
}

func NewKeyPathConfig() *KeyPathConfig {
	return &KeyPathConfig{
		URL:      strings.TrimRight(os.Getenv("KEYPATH_DB_URL"), "/"),
		Password: os.Getenv("KEYPATH_DB_PASSWORD"),
		Database: stringOrDefault("KEYPATH_DB_NAME", defaultKeyPathDBName),
		Timeout:  parseDurationOrDefault("KEYPATH_DB_TIMEOUT", defaultKeyPathDBTimeout),
	}
}

type CookieConfig struct {
	Secure   bool
	SameSite http.SameSite
}

func NewCookieConfig() *CookieConfig {
	return &CookieConfig{
		Secure:   parseBoolOrDefault("COOKIE_SECURE", true),
		SameSite: ParseSameSite(os.Getenv("COOKIE_SAMESITE")),
	}
}

// ParseSameSite defaults to Strict for empty or unknown values.
func ParseSameSite(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "none":
		return http.SameSiteNoneMode
	case "lax":
		return http.SameSiteLaxMode
	default:
		return http.SameSiteStrictMode
	}
}

func stringOrDefault(varName, def string) string {
	if v := os.Getenv(varName); v != "" {
		return v
	}
	return def
}

func parseDurationOrDefault(varName string, def time.Duration) time.Duration {
	if v := os.Getenv(varName); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("Invalid duration in %s: %s, using default %s", varName, v, def)
	}
	return def
}

func parseIntOrDefault(varName string, def int) int {
	if v := os.Getenv(varName); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("Invalid %s: %s, using default %d", varName, v, def)
	}
	return def
}

func parseBoolOrDefault(varName string, def bool) bool {
	if v := os.Getenv(varName); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		log.Printf("Invalid %s: %s, using default %t", varName, v, def)
	}
	return def
}

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
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"
)

type Config struct {
	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	RequestTimeout          time.Duration

	StoreBackend string
	DatabaseURL  string
	DBMaxConns   int32
	DBMinConns   int32

	RedisAddr     string
	RedisUsername string
	RedisPassword string
	RedisDB       int
	CacheAlias    []Alias

	AuthName        string
	AuthScheme      string
	JWTSecret       string
	JWTAlgorithm    string
	SessionDuration time.Duration
	BcryptCost      int

	CORSOrigins      []string
	RateLimitRPM     int
	AuthRateLimitRPM int

	LogFormat string
	LogLevel  string
}

// Alias is a literal substring replacement applied to cache keys.
type Alias struct {
	From string
	To   string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	aliases, err := ParseAliases(os.Getenv("CACHE_ALIAS"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ServerPort:              getEnv("SERVER_PORT", "8080"),
		ServerReadHeaderTimeout: getDuration("SERVER_READ_HEADER_TIMEOUT", 10*time.Second),
		ServerWriteTimeout:      getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:       getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:          getDuration("REQUEST_TIMEOUT", 30*time.Second),
		StoreBackend:            strings.ToLower(getEnv("STORE_BACKEND", StoreBackendPostgres)),
		DatabaseURL:             strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:              int32(getInt("DB_MAX_CONNS", 20)),
		DBMinConns:              int32(getInt("DB_MIN_CONNS", 2)),
		RedisAddr:               strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisUsername:           strings.TrimSpace(os.Getenv("REDIS_USERNAME")),
		RedisPassword:           os.Getenv("REDIS_PASSWORD"),
		RedisDB:                 getInt("REDIS_DB", 0),
		CacheAlias:              aliases,
		AuthName:                getEnv("AUTH_NAME", "Authorization"),
		AuthScheme:              getEnv("AUTH_SCHEME", "Bearer"),
		JWTSecret:               strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTAlgorithm:            getEnv("JWT_ALGORITHM", "HS256"),
		SessionDuration:         getDuration("SESSION_DURATION", 24*time.Hour),
		BcryptCost:              getInt("BCRYPT_COST", 12),
		CORSOrigins:             splitCSV(getEnv("CORS_ORIGINS", "*")),
		RateLimitRPM:            getInt("RATE_LIMIT_RPM", 300),
		AuthRateLimitRPM:        getInt("AUTH_RATE_LIMIT_RPM", 10),
		LogFormat:               strings.ToLower(getEnv("LOG_FORMAT", "pretty")),
		LogLevel:                strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if strings.TrimSpace(c.JWTAlgorithm) == "" {
		return fmt.Errorf("JWT_ALGORITHM cannot be empty")
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	switch c.StoreBackend {
	case StoreBackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store backend")
		}
	case StoreBackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q", StoreBackendPostgres, StoreBackendMemory)
	}

	if strings.TrimSpace(c.AuthName) == "" {
		return fmt.Errorf("AUTH_NAME cannot be empty")
	}

	if strings.TrimSpace(c.AuthScheme) == "" || strings.Contains(c.AuthScheme, " ") {
		return fmt.Errorf("AUTH_SCHEME must be a single word")
	}

	if c.SessionDuration <= 0 {
		return fmt.Errorf("SESSION_DURATION must be positive")
	}

	if c.LogFormat != "pretty" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be pretty or json")
	}

	return nil
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}

// ParseAliases reads "from=>to" pairs separated by commas, keeping their order.
func ParseAliases(raw string) ([]Alias, error) {
	parts := splitCSV(raw)
	if len(parts) == 0 {
		return nil, nil
	}

	aliases := make([]Alias, 0, len(parts))
	for _, part := range parts {
		from, to, found := strings.Cut(part, "=>")
		from = strings.TrimSpace(from)
		if !found || from == "" {
			return nil, fmt.Errorf("CACHE_ALIAS entry %q must look like from=>to", part)
		}
		aliases = append(aliases, Alias{From: from, To: strings.TrimSpace(to)})
	}

	return aliases, nil
}

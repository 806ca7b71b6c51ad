package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        int
	Env         string
	LogLevel    string
	DatabaseURL string
	SQLitePath  string
	RedisURL    string

	JWTSecret        string
	JWTExpiryMinutes int
	// APIToken is an admin token accepted in place of a session.
	APIToken   string
	TOTPIssuer string

	RequireFutureEntry     bool
	AllowedOrigins         []string
	LoginAttemptsPerMinute int
}

// Load reads the environment after merging an optional .env file from the
// working directory. Values that fail to parse keep their defaults.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Port:                   8080,
		Env:                    envOr("CHRONOS_ENV", "development"),
		LogLevel:               os.Getenv("CHRONOS_LOG_LEVEL"),
		DatabaseURL:            os.Getenv("CHRONOS_DATABASE_URL"),
		SQLitePath:             os.Getenv("CHRONOS_SQLITE_PATH"),
		RedisURL:               os.Getenv("CHRONOS_REDIS_URL"),
		JWTSecret:              os.Getenv("CHRONOS_JWT_SECRET"),
		JWTExpiryMinutes:       120,
		APIToken:               os.Getenv("CHRONOS_API_TOKEN"),
		TOTPIssuer:             envOr("CHRONOS_TOTP_ISSUER", "ChronosSuite"),
		RequireFutureEntry:     true,
		LoginAttemptsPerMinute: 10,
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	if v := os.Getenv("CHRONOS_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 && p < 65536 {
			cfg.Port = p
		}
	}

	if v := os.Getenv("CHRONOS_JWT_EXPIRY_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.JWTExpiryMinutes = n
		}
	}

	if v := os.Getenv("CHRONOS_REQUIRE_FUTURE_ENTRY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.RequireFutureEntry = b
		}
	}

	if v := os.Getenv("CHRONOS_LOGIN_ATTEMPTS_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.LoginAttemptsPerMinute = n
		}
	}

	for _, origin := range strings.Split(os.Getenv("CHRONOS_ALLOWED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	return cfg
}

func (c Config) ListenAddr() string {
	return ":" + strconv.Itoa(c.Port)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

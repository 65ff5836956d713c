package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tallyworks/tally/pkg/jwtx"
)

type Config struct {
	SessionSecret string        // Required: HS256 signing secret for session tokens
	Issuer        string        // Optional: issuer claim for session tokens (default: tally-api)
	SessionTTL    time.Duration // Optional: session token lifetime (default: 7 days)

	DatabaseFile string // Optional: path to SQLite database file (default: ./tally.db)
	PepperFile   string // Optional: path to file containing pepper for password hashing (default: ./pepper)

	PublicBaseURL   string   // Optional: externally reachable API base, used for OAuth redirects
	FrontendBaseURL string   // Optional: SPA origin for invite/approval links (default: http://localhost:5173)
	AllowedOrigins  []string // Optional: CORS allow-list (default: frontend base URL)

	SMTPHost     string // Optional: SMTP relay host; mail is logged instead of sent when empty
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	GoogleClientID     string // Optional: OAuth client credentials per provider
	GoogleClientSecret string
	GitHubClientID     string
	GitHubClientSecret string

	RedisAddr     string // Optional: enables shared login rate limiting when set
	RedisPassword string

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	cfg := Config{
		SessionSecret: os.Getenv("TALLY_SESSION_SECRET"),
		Issuer:        getEnvOrDefault("TALLY_ISSUER", "tally-api"),
		SessionTTL:    getEnvDurationOrDefault("TALLY_SESSION_TTL", jwtx.DefaultSessionTTL),

		DatabaseFile: getEnvOrDefault("TALLY_DATABASE_FILE", "tally.db"),
		PepperFile:   getEnvOrDefault("TALLY_PEPPER_FILE", "pepper"),

		PublicBaseURL:   getEnvOrDefault("TALLY_PUBLIC_BASE_URL", "http://localhost:8080"),
		FrontendBaseURL: getEnvOrDefault("TALLY_FRONTEND_BASE_URL", "http://localhost:5173"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getEnvOrDefault("SMTP_PORT", "587"),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     os.Getenv("SMTP_FROM"),

		GoogleClientID:     os.Getenv("OAUTH_GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("OAUTH_GOOGLE_CLIENT_SECRET"),
		GitHubClientID:     os.Getenv("OAUTH_GITHUB_CLIENT_ID"),
		GitHubClientSecret: os.Getenv("OAUTH_GITHUB_CLIENT_SECRET"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	} else {
		cfg.AllowedOrigins = []string{cfg.FrontendBaseURL}
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	return defaultValue
}

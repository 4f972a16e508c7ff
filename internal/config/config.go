package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	LogLevel    string

	LedgerEnabled  bool
	LedgerURL      string
	LedgerContract string
	LedgerTimeout  time.Duration

	RedisAddr     string
	RedisPassword string

	SMTPAddr     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	OTPExpiry time.Duration

	ReleaseAttemptLimit  int
	ReleaseAttemptWindow time.Duration

	PolicyPath string
}

// Load reads an optional .env file, then the process environment. Missing
// keys fall back to development defaults; only POSTGRES_DSN is required to
// actually run against a database.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		HTTPAddr:    envDefault("HTTP_ADDR", ":8080"),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		LogLevel:    envDefault("LOG_LEVEL", "info"),

		LedgerEnabled:  envBool("LEDGER_ENABLED", false),
		LedgerURL:      envDefault("LEDGER_URL", "http://localhost:8545"),
		LedgerContract: os.Getenv("LEDGER_CONTRACT"),
		LedgerTimeout:  envDuration("LEDGER_TIMEOUT", 5*time.Second),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		SMTPAddr:     os.Getenv("SMTP_ADDR"),
		SMTPFrom:     envDefault("SMTP_FROM", "vaultd@localhost"),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),

		OTPExpiry: envDuration("OTP_EXPIRY", 10*time.Minute),

		ReleaseAttemptLimit:  envInt("RELEASE_ATTEMPT_LIMIT", 0),
		ReleaseAttemptWindow: envDuration("RELEASE_ATTEMPT_WINDOW", time.Minute),

		PolicyPath: os.Getenv("POLICY_PATH"),
	}
}

func envDefault(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		return def
	}
	return value
}

func envBool(key string, def bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return def
	}
	return parsed
}

func envInt(key string, def int) int {
	value := os.Getenv(key)
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func envDuration(key string, def time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}

package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	RedisAddr  string
	JWTSecret  string

	LogLevel  string
	LogFormat string

	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	SMTPFromName  string
	SMTPFromEmail string

	AppBaseURL string

	ConferencingURL    string
	ConferencingAPIKey string
	TelephonyURL       string
	TelephonyAPIKey    string
}

func Load() *Config {
	// A missing .env file is fine, real env vars still apply.
	_ = godotenv.Load()

	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "peerlink"),
		DBPassword: getEnv("DB_PASSWORD", "peerlink_dev_password"),
		DBName:     getEnv("DB_NAME", "peerlink"),
		RedisAddr:  getEnv("REDIS_ADDR", "localhost:6379"),
		JWTSecret:  getEnv("JWT_SECRET", "dev-secret-change-me"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		SMTPHost:      getEnv("SMTP_HOST", ""),
		SMTPPort:      getEnvInt("SMTP_PORT", 587),
		SMTPUsername:  getEnv("SMTP_USERNAME", ""),
		SMTPPassword:  getEnv("SMTP_PASSWORD", ""),
		SMTPFromName:  getEnv("SMTP_FROM_NAME", "Peerlink"),
		SMTPFromEmail: getEnv("SMTP_FROM_EMAIL", "no-reply@peerlink.app"),

		AppBaseURL: getEnv("APP_BASE_URL", "http://localhost:3000"),

		ConferencingURL:    getEnv("CONFERENCING_URL", ""),
		ConferencingAPIKey: getEnv("CONFERENCING_API_KEY", ""),
		TelephonyURL:       getEnv("TELEPHONY_URL", ""),
		TelephonyAPIKey:    getEnv("TELEPHONY_API_KEY", ""),
	}
}

func getEnv(key, fallback string) string {
	val, exists := os.LookupEnv(key)

	if exists {
		return val
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	val, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}

	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Telegram
	BotToken  string
	ChannelID int64

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Access policy
	InviteValidity time.Duration
	GrantDays      int
	SweepInterval  time.Duration

	// HTTP surface
	Port         string
	WebhookToken string
}

func Load() *Config {
	return &Config{
		BotToken:  getEnv("BOT_TOKEN", ""),
		ChannelID: parseInt64(getEnv("CHANNEL_ID", "0")),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "subgate_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		InviteValidity: parseDuration(getEnv("INVITE_VALIDITY", "60m"), 60*time.Minute),
		GrantDays:      parseInt(getEnv("GRANT_DAYS", "1"), 1),
		SweepInterval:  parseDuration(getEnv("SWEEP_INTERVAL", "30m"), 30*time.Minute),

		Port:         getEnv("PORT", "8080"),
		WebhookToken: getEnv("WEBHOOK_TOKEN", ""),
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func parseInt64(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

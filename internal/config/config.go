package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURI   string
	TelegramToken string

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	SchedulerInterval time.Duration
	SendTimeout       time.Duration
	HTTPAddr          string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env file is optional in production
	}

	interval, err := getDurationOrDefault("SCHEDULER_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}
	sendTimeout, err := getDurationOrDefault("SEND_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURI:       os.Getenv("DATABASE_URI"),
		TelegramToken:     os.Getenv("TELEGRAM_TOKEN"),
		SMTPHost:          os.Getenv("SMTP_HOST"),
		SMTPPort:          getEnvOrDefault("SMTP_PORT", "465"),
		SMTPUsername:      os.Getenv("SMTP_USERNAME"),
		SMTPPassword:      os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:          os.Getenv("SMTP_FROM"),
		SchedulerInterval: interval,
		SendTimeout:       sendTimeout,
		HTTPAddr:          getEnvOrDefault("HTTP_ADDR", ":8080"),
	}
	if cfg.SMTPFrom == "" {
		cfg.SMTPFrom = cfg.SMTPUsername
	}
	return cfg, nil
}

// Validate checks the values the notification channels cannot run without.
// It is called once at startup so a bad deployment fails before the first
// scheduler tick instead of per reminder.
func (c *Config) Validate() error {
	required := map[string]string{
		"DATABASE_URI":   c.DatabaseURI,
		"TELEGRAM_TOKEN": c.TelegramToken,
		"SMTP_HOST":      c.SMTPHost,
		"SMTP_USERNAME":  c.SMTPUsername,
		"SMTP_PASSWORD":  c.SMTPPassword,
	}
	for key, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", key)
		}
	}
	if c.SchedulerInterval <= 0 {
		return fmt.Errorf("SCHEDULER_INTERVAL must be positive, got %s", c.SchedulerInterval)
	}
	if c.SendTimeout <= 0 {
		return fmt.Errorf("SEND_TIMEOUT must be positive, got %s", c.SendTimeout)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

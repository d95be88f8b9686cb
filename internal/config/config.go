package config

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	LISTEN_ADDR   string
	CORE_API_URL  string
	AUTH_API_URL  string
	STATE_PATH    string
	KAFKA_ADDRESS string
	LOG_LEVEL     string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		LISTEN_ADDR:   getenv("LISTEN_ADDR", ":8090"),
		CORE_API_URL:  os.Getenv("CORE_API_URL"),
		AUTH_API_URL:  os.Getenv("AUTH_API_URL"),
		STATE_PATH:    getenv("STATE_PATH", "storefront.db"),
		KAFKA_ADDRESS: os.Getenv("KAFKA_ADDRESS"),
		LOG_LEVEL:     getenv("LOG_LEVEL", "info"),
	}

	// the auth endpoints commonly live on the same gateway host
	if config.AUTH_API_URL == "" {
		config.AUTH_API_URL = config.CORE_API_URL
	}

	return config, nil
}

// KafkaBrokers splits KAFKA_ADDRESS into broker addresses. Empty means
// events are disabled.
func (c *Config) KafkaBrokers() []string {
	if c.KAFKA_ADDRESS == "" {
		return nil
	}
	parts := strings.Split(c.KAFKA_ADDRESS, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

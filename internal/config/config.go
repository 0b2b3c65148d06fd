package config

import (
	"os"
	"strconv"
	"strings"
)

type AppConfig struct {
	ListenAddr string

	RedisURL    string
	DatabaseURL string

	OpenAIAPIURL string
	OpenAIAPIKey string
	OpenAIModel  string

	// Optional directory of YAML files overriding the embedded message catalog.
	MessageDir string

	// Buffer size of each notification subscriber channel.
	NotifyBuffer int
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:   ":8080",
		OpenAIAPIURL: "https://api.openai.com/v1/chat/completions",
		OpenAIModel:  "gpt-4o-mini",
		NotifyBuffer: 16,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	if v := strings.TrimSpace(os.Getenv("OPENAI_API_URL")); v != "" {
		cfg.OpenAIAPIURL = v
	}
	cfg.OpenAIAPIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if v := strings.TrimSpace(os.Getenv("OPENAI_MODEL")); v != "" {
		cfg.OpenAIModel = v
	}

	cfg.MessageDir = strings.TrimSpace(os.Getenv("MESSAGE_DIR"))

	if v := strings.TrimSpace(os.Getenv("NOTIFY_BUFFER")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.NotifyBuffer = n
		}
	}

	return cfg, nil
}

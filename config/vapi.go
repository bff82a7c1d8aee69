package config

import (
	"errors"
	"os"
	"time"
)

type VapiConfig struct {
	APIKey        string
	BaseURL       string
	ServerURL     string // public URL of POST /api/vapi/webhook
	WebhookSecret string
	StartTimeout  time.Duration
}

func LoadVapi() (VapiConfig, error) {
	cfg := VapiConfig{
		APIKey:        os.Getenv("VAPI_API_KEY"),
		BaseURL:       os.Getenv("VAPI_BASE_URL"),
		ServerURL:     os.Getenv("VAPI_SERVER_URL"),
		WebhookSecret: os.Getenv("VAPI_WEBHOOK_SECRET"),
		StartTimeout:  15 * time.Second,
	}
	if cfg.APIKey == "" {
		return cfg, errors.New("VAPI_API_KEY environment variable is not set")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.vapi.ai"
	}
	if s := os.Getenv("VAPI_START_TIMEOUT"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return cfg, errors.New("VAPI_START_TIMEOUT must be a duration, ex: 15s")
		}
		cfg.StartTimeout = d
	}
	return cfg, nil
}

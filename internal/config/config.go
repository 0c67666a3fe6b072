package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds the environment driven configuration for the service.
type Config struct {
	HTTPPort  string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`

	DatabaseURL string `env:"DATABASE_URL" envDefault:"financial_chatbot.db"`
	JWTSecret   string `env:"JWT_SECRET,notEmpty"`

	// OpenAI
	OpenAIAPIKey    string        `env:"OPENAI_API_KEY,notEmpty"`
	OpenAIBaseURL   string        `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	AssistantModel  string        `env:"ASSISTANT_MODEL" envDefault:"gpt-4o"`
	TitleModel      string        `env:"TITLE_MODEL" envDefault:"gpt-4o-mini"`
	TTSModel        string        `env:"TTS_MODEL" envDefault:"tts-1"`
	TTSVoice        string        `env:"TTS_VOICE" envDefault:"alloy"`
	RunPollInterval time.Duration `env:"RUN_POLL_INTERVAL" envDefault:"1s"`
	RunTimeout      time.Duration `env:"RUN_TIMEOUT" envDefault:"2m"`

	// Market data
	MarketDataBaseURL string        `env:"MARKET_DATA_BASE_URL" envDefault:"https://query1.finance.yahoo.com"`
	MarketCacheTTL    time.Duration `env:"MARKET_CACHE_TTL" envDefault:"5m"`
}

// Load reads .env (if present) and parses the environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, relying on environment variables")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	cfg.OpenAIBaseURL = strings.TrimSuffix(strings.TrimSpace(cfg.OpenAIBaseURL), "/")
	cfg.MarketDataBaseURL = strings.TrimSuffix(strings.TrimSpace(cfg.MarketDataBaseURL), "/")

	if !strings.HasPrefix(cfg.OpenAIAPIKey, "sk-") {
		log.Warn().Msg("OPENAI_API_KEY does not look like an OpenAI key (expected sk- prefix)")
	}

	return cfg, nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%s", c.HTTPPort)
}

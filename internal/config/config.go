package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"chat-client/internal/session"
)

// Config is read from the environment.
type Config struct {
	APIURL         string        `env:"CHAT_API_URL" envDefault:"http://localhost:8000"`
	Username       string        `env:"CHAT_USERNAME"`
	DefaultChannel string        `env:"CHAT_DEFAULT_CHANNEL" envDefault:"general"`
	ReconnectDelay time.Duration `env:"CHAT_RECONNECT_DELAY" envDefault:"2s"`
	TypingIdle     time.Duration `env:"CHAT_TYPING_IDLE" envDefault:"1s"`
	TypingExpiry   time.Duration `env:"CHAT_TYPING_EXPIRY" envDefault:"3s"`
	SwitchDebounce time.Duration `env:"CHAT_SWITCH_DEBOUNCE" envDefault:"500ms"`
	HTTPTimeout    time.Duration `env:"CHAT_HTTP_TIMEOUT" envDefault:"10s"`
	LogFile        string        `env:"CHAT_LOG_FILE" envDefault:"chat-client.log"`

	AdminAddr   string `env:"ADMIN_ADDR"`
	AdminToken  string `env:"ADMIN_TOKEN"`
	DebugRoutes bool   `env:"DEBUG_ROUTES" envDefault:"false"`
	Environment string `env:"APP_ENV" envDefault:"development"`

	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"chat.events"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load parses and validates the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.APIURL = strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	cfg.Username = strings.TrimSpace(cfg.Username)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil {
		return fmt.Errorf("CHAT_API_URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("CHAT_API_URL: want http(s)://host, got %q", c.APIURL)
	}
	if strings.TrimSpace(c.DefaultChannel) == "" {
		return errors.New("CHAT_DEFAULT_CHANNEL must not be empty")
	}
	for name, d := range map[string]time.Duration{
		"CHAT_RECONNECT_DELAY": c.ReconnectDelay,
		"CHAT_TYPING_IDLE":     c.TypingIdle,
		"CHAT_TYPING_EXPIRY":   c.TypingExpiry,
		"CHAT_SWITCH_DEBOUNCE": c.SwitchDebounce,
		"CHAT_HTTP_TIMEOUT":    c.HTTPTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	return nil
}

func (c Config) SessionOptions() session.Options {
	return session.Options{
		DefaultChannel: c.DefaultChannel,
		ReconnectDelay: c.ReconnectDelay,
		TypingIdle:     c.TypingIdle,
		TypingExpiry:   c.TypingExpiry,
		SwitchDebounce: c.SwitchDebounce,
	}
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Store     StoreConfig     `yaml:"store"`
	Events    EventsConfig    `yaml:"events"`
	Publish   PublishConfig   `yaml:"publish"`
	Notify    NotifyConfig    `yaml:"notify"`
	Promotion PromotionConfig `yaml:"promotion"`
	Scraper   ScraperConfig   `yaml:"scraper"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type StoreConfig struct {
	Sqlite SqliteConfig `yaml:"sqlite"`
}

type SqliteConfig struct {
	Path string `yaml:"path"`
}

// EventsConfig configures the quote-inserted trigger. With no brokers the
// trigger runs in-process.
type EventsConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	Group   string   `yaml:"group"`
}

type PublishConfig struct {
	// Sink selects the outbound capability: kafka, webhook or log.
	Sink    string        `yaml:"sink"`
	Topic   string        `yaml:"topic"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	Webhook WebhookConfig `yaml:"webhook"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
}

type WebhookConfig struct {
	URL       string `yaml:"url"`
	Secret    string `yaml:"secret"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

type NotifyConfig struct {
	Sender            string          `yaml:"sender"`
	Subject           string          `yaml:"subject"`
	RateLimit         RateLimitConfig `yaml:"rate_limit"`
	SubscriberRetries int             `yaml:"subscriber_retries"`
}

type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute"`
	Burst     int `yaml:"burst"`
}

type PromotionConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
}

type ScraperConfig struct {
	Enabled         bool         `yaml:"enabled"`
	PollIntervalSec int          `yaml:"poll_interval_sec"`
	MaxTries        int          `yaml:"max_tries"`
	Banks           []BankConfig `yaml:"banks"`
}

type BankConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Config{
		Server: ServerConfig{Port: 8080},
		Log:    LogConfig{Level: "info"},
		Store: StoreConfig{
			Sqlite: SqliteConfig{Path: "data/app.db"},
		},
		Events: EventsConfig{
			Topic: "mortgage.quote-inserted",
			Group: "mortgagewatch",
		},
		Publish: PublishConfig{
			Sink:  "log",
			Topic: "notification-email",
			Webhook: WebhookConfig{
				TimeoutMs: 5000,
			},
		},
		Notify: NotifyConfig{
			RateLimit:         RateLimitConfig{PerMinute: 60, Burst: 10},
			SubscriberRetries: 3,
		},
		Promotion: PromotionConfig{MaxAttempts: 3},
		Scraper: ScraperConfig{
			PollIntervalSec: 900,
			MaxTries:        5,
		},
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p <= 0 || p > 65535 {
			return fmt.Errorf("invalid PORT: %q", v)
		}
		cfg.Server.Port = p
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers := strings.Split(v, ",")
		cfg.Events.Brokers = brokers
		cfg.Publish.Kafka.Brokers = brokers
	}
	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		cfg.Publish.Webhook.URL = v
	}
	if v := os.Getenv("WEBHOOK_SECRET"); v != "" {
		cfg.Publish.Webhook.Secret = v
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Documents DocumentsConfig `yaml:"documents"`
	Queue     QueueConfig     `yaml:"queue"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type DocumentsConfig struct {
	Path string `yaml:"path"`
}

type QueueConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"`
}

type WebhookConfig struct {
	URL     string        `yaml:"url"`
	Secret  string        `yaml:"secret"`
	Timeout time.Duration `yaml:"timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "./data/printsmart.db",
		},
		Documents: DocumentsConfig{
			Path: "./data/documents",
		},
		Queue: QueueConfig{
			TickInterval: 7 * time.Second,
		},
		Webhook: WebhookConfig{
			Timeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func Load(configPath string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(cfg)

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PRINTSMART_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("PRINTSMART_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("PRINTSMART_DOCUMENTS_PATH"); v != "" {
		cfg.Documents.Path = v
	}

	if v := os.Getenv("PRINTSMART_WEBHOOK_URL"); v != "" {
		cfg.Webhook.URL = v
	}

	if v := os.Getenv("PRINTSMART_WEBHOOK_SECRET"); v != "" {
		cfg.Webhook.Secret = v
	}

	if v := os.Getenv("PRINTSMART_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be non-negative")
	}

	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server write timeout must be non-negative")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if c.Documents.Path == "" {
		return fmt.Errorf("documents path is required")
	}

	if c.Queue.TickInterval <= 0 {
		return fmt.Errorf("queue tick interval must be positive")
	}

	if c.Webhook.Timeout < 0 {
		return fmt.Errorf("webhook timeout must be non-negative")
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json":  true,
		"text":  true,
		"plain": true,
	}

	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (valid: json, text, plain)", c.Logging.Format)
	}

	return nil
}

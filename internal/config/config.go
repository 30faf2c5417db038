package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	DefaultWebhookPath         = "/webhook"
	DefaultWebhookSecretHeader = "X-Bot-Key"
	DefaultHTTPTimeout         = 10 * time.Second
	DefaultPriceCurrency       = "MMK"
	DefaultWelcomeText         = "Welcome! Choose an option below."
	DefaultListenAddr          = ":8080"
)

// WebhookConfig describes the inbound endpoint.
type WebhookConfig struct {
	Path         string `yaml:"path" envconfig:"WEBHOOK_PATH"`
	SecretHeader string `yaml:"secret_header" envconfig:"WEBHOOK_SECRET_HEADER"`
}

// TelegramConfig holds outbound Bot API settings.
type TelegramConfig struct {
	APIEndpoint string        `yaml:"api_endpoint" envconfig:"TELEGRAM_API_ENDPOINT"`
	HTTPTimeout time.Duration `yaml:"http_timeout" envconfig:"HTTP_TIMEOUT"`
	ControlKey  string        `yaml:"control_key" envconfig:"CONTROL_KEY"`
}

// TextsConfig holds operator-facing strings that are not stored content.
type TextsConfig struct {
	SupportContact     string `yaml:"support_contact" envconfig:"SUPPORT_CONTACT"`
	SupportLink        string `yaml:"support_link" envconfig:"SUPPORT_LINK"`
	PriceCurrency      string `yaml:"price_currency" envconfig:"PRICE_CURRENCY"`
	DefaultWelcomeText string `yaml:"default_welcome_text" envconfig:"DEFAULT_WELCOME_TEXT"`
}

// LocalConfig is only read by the local runner.
type LocalConfig struct {
	ListenAddr    string `yaml:"listen_addr" envconfig:"LISTEN_ADDR"`
	BotToken      string `yaml:"bot_token" envconfig:"BOT_TOKEN"`
	WebhookSecret string `yaml:"webhook_secret" envconfig:"WEBHOOK_SECRET"`
}

// Config aggregates everything the entrypoints need.
type Config struct {
	ParamPrefix     string            `yaml:"param_prefix" envconfig:"PARAM_PREFIX"`
	NamespaceTables map[string]string `yaml:"namespace_tables" envconfig:"NAMESPACE_TABLES"`
	AdminIDs        []int64           `yaml:"admin_ids" envconfig:"ADMIN_IDS"`
	LogLevel        string            `yaml:"log_level" envconfig:"LOG_LEVEL"`
	Webhook         WebhookConfig     `yaml:"webhook"`
	Telegram        TelegramConfig    `yaml:"telegram"`
	Texts           TextsConfig       `yaml:"texts"`
	Local           LocalConfig       `yaml:"local"`
}

// Load reads the optional YAML file at path and overlays environment variables.
// Environment values win over the file.
func Load(path string) (*Config, error) {
	var cfg Config

	if path = strings.TrimSpace(path); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse YAML: %w", err)
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: process env: %w", err)
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize trims values, applies defaults and validates the result.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil config")
	}

	cfg.ParamPrefix = strings.TrimRight(strings.TrimSpace(cfg.ParamPrefix), "/")

	tables := make(map[string]string, len(cfg.NamespaceTables))
	for ns, table := range cfg.NamespaceTables {
		ns, table = strings.TrimSpace(ns), strings.TrimSpace(table)
		if ns == "" || table == "" {
			return fmt.Errorf("config: invalid namespace binding %q:%q", ns, table)
		}
		tables[ns] = table
	}
	cfg.NamespaceTables = tables

	seen := make(map[int64]bool, len(cfg.AdminIDs))
	admins := cfg.AdminIDs[:0]
	for _, id := range cfg.AdminIDs {
		if id <= 0 {
			return fmt.Errorf("config: invalid admin id %d", id)
		}
		if !seen[id] {
			seen[id] = true
			admins = append(admins, id)
		}
	}
	cfg.AdminIDs = admins

	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return err
	}

	cfg.Webhook.Path = strings.TrimSpace(cfg.Webhook.Path)
	if cfg.Webhook.Path == "" {
		cfg.Webhook.Path = DefaultWebhookPath
	}
	if !strings.HasPrefix(cfg.Webhook.Path, "/") {
		cfg.Webhook.Path = "/" + cfg.Webhook.Path
	}
	cfg.Webhook.SecretHeader = strings.TrimSpace(cfg.Webhook.SecretHeader)
	if cfg.Webhook.SecretHeader == "" {
		cfg.Webhook.SecretHeader = DefaultWebhookSecretHeader
	}

	cfg.Telegram.APIEndpoint = strings.TrimSpace(cfg.Telegram.APIEndpoint)
	if cfg.Telegram.APIEndpoint != "" && strings.Count(cfg.Telegram.APIEndpoint, "%s") != 2 {
		return fmt.Errorf("config: telegram api endpoint %q must contain two %%s verbs", cfg.Telegram.APIEndpoint)
	}
	if cfg.Telegram.HTTPTimeout < 0 {
		return errors.New("config: http timeout must be >= 0")
	}
	if cfg.Telegram.HTTPTimeout == 0 {
		cfg.Telegram.HTTPTimeout = DefaultHTTPTimeout
	}

	cfg.Texts.PriceCurrency = strings.TrimSpace(cfg.Texts.PriceCurrency)
	if cfg.Texts.PriceCurrency == "" {
		cfg.Texts.PriceCurrency = DefaultPriceCurrency
	}
	if strings.TrimSpace(cfg.Texts.DefaultWelcomeText) == "" {
		cfg.Texts.DefaultWelcomeText = DefaultWelcomeText
	}

	if strings.TrimSpace(cfg.Local.ListenAddr) == "" {
		cfg.Local.ListenAddr = DefaultListenAddr
	}
	return nil
}

// RequireLambda checks the settings the Lambda entrypoint cannot run without.
func (c *Config) RequireLambda() error {
	if c.ParamPrefix == "" {
		return errors.New("config: PARAM_PREFIX is required")
	}
	if len(c.NamespaceTables) == 0 {
		return errors.New("config: NAMESPACE_TABLES is required")
	}
	return nil
}

// Namespaces returns the bound namespace names in sorted order.
func (c *Config) Namespaces() []string {
	out := make([]string, 0, len(c.NamespaceTables))
	for ns := range c.NamespaceTables {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// SlogLevel returns the configured log level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	lvl, _ := parseLevel(c.LogLevel)
	return lvl
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("config: invalid log level %q; allowed: debug, info, warn, error", s)
	}
}

// Package config provides application configuration management using Viper.
// It supports loading from environment variables, config files, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Telegram  TelegramConfig
	AI        AIConfig
	Users     UsersConfig
	Followup  FollowupConfig
	Export    ExportConfig
	Log       LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string
	Port        int
	Environment string
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	// URL, when set, takes precedence over the individual fields.
	URL                   string
	Host                  string
	Port                  int
	User                  string
	Password              string
	Name                  string
	SSLMode               string
	MaxConnections        int
	MaxIdleConnections    int
	ConnectionMaxLifetime time.Duration
	AutoMigrate           bool
}

// ConnectionString returns a PostgreSQL connection string.
func (d *DatabaseConfig) ConnectionString() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// TelegramConfig holds bot API settings.
type TelegramConfig struct {
	// Token is the bot access token. Startup aborts without it.
	Token string
	// WebhookBaseURL is the public base URL the bot API pushes updates to.
	WebhookBaseURL string
	// WebhookPath is the local path updates arrive on. The bot token is
	// appended so the full path is unguessable.
	WebhookPath string
	// AdminIDs is the allowlist of chat IDs permitted to run privileged
	// commands.
	AdminIDs []int64
	// NotifyChatIDs, when non-empty, restricts new-lead fan-out to these
	// chats instead of every registered user.
	NotifyChatIDs []int64
}

// IsAdmin reports whether the given chat ID is on the admin allowlist.
func (t *TelegramConfig) IsAdmin(id int64) bool {
	for _, admin := range t.AdminIDs {
		if admin == id {
			return true
		}
	}
	return false
}

// AIConfig holds settings for both AI providers. Either or both may be left
// unconfigured; the responder degrades to a static reply.
type AIConfig struct {
	OpenAI      OpenAIConfig
	HuggingFace HuggingFaceConfig
}

// OpenAIConfig holds OpenAI-compatible chat completion settings.
type OpenAIConfig struct {
	APIKey string
	Model  string
	APIURL string
}

// Enabled reports whether the provider is usable.
func (c *OpenAIConfig) Enabled() bool { return c.APIKey != "" }

// HuggingFaceConfig holds HuggingFace Inference API settings.
type HuggingFaceConfig struct {
	Token  string
	Model  string
	APIURL string
}

// Enabled reports whether the provider is usable.
func (c *HuggingFaceConfig) Enabled() bool { return c.Token != "" }

// UsersConfig holds registered-user settings.
type UsersConfig struct {
	// ScoreCap bounds the lead score; bumps are clamped to it.
	ScoreCap int
}

// FollowupConfig holds follow-up message settings.
type FollowupConfig struct {
	// Delay before the one-shot follow-up message is sent.
	Delay time.Duration
	// Enabled turns the scheduler on.
	Enabled bool
}

// ExportConfig holds CSV export settings.
type ExportConfig struct {
	// Passphrase guards the CSV download. May be a bcrypt hash (prefixed
	// "$2") or a plain value compared in constant time. Empty disables
	// the export endpoint.
	Passphrase string
}

// Enabled reports whether the export endpoint is available.
func (e *ExportConfig) Enabled() bool { return e.Passphrase != "" }

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// RateLimitConfig holds HTTP rate limiting settings.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Load reads configuration from environment variables and config files.
// Environment variables take precedence over config file values.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/leadbot")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configNotFoundErr viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFoundErr) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:        v.GetString("server.host"),
			Port:        v.GetInt("server.port"),
			Environment: v.GetString("server.env"),
		},
		Database: DatabaseConfig{
			URL:                   v.GetString("database.url"),
			Host:                  v.GetString("database.host"),
			Port:                  v.GetInt("database.port"),
			User:                  v.GetString("database.user"),
			Password:              v.GetString("database.password"),
			Name:                  v.GetString("database.name"),
			SSLMode:               v.GetString("database.sslmode"),
			MaxConnections:        v.GetInt("database.max_connections"),
			MaxIdleConnections:    v.GetInt("database.max_idle_connections"),
			ConnectionMaxLifetime: v.GetDuration("database.connection_max_lifetime"),
			AutoMigrate:           v.GetBool("database.auto_migrate"),
		},
		Telegram: TelegramConfig{
			Token:          v.GetString("telegram.token"),
			WebhookBaseURL: v.GetString("telegram.webhook_base_url"),
			WebhookPath:    v.GetString("telegram.webhook_path"),
			AdminIDs:       parseIDList(v.GetString("telegram.admin_ids")),
			NotifyChatIDs:  parseIDList(v.GetString("telegram.notify_chat_ids")),
		},
		AI: AIConfig{
			OpenAI: OpenAIConfig{
				APIKey: v.GetString("ai.openai.api_key"),
				Model:  v.GetString("ai.openai.model"),
				APIURL: v.GetString("ai.openai.api_url"),
			},
			HuggingFace: HuggingFaceConfig{
				Token:  v.GetString("ai.huggingface.token"),
				Model:  v.GetString("ai.huggingface.model"),
				APIURL: v.GetString("ai.huggingface.api_url"),
			},
		},
		Users: UsersConfig{
			ScoreCap: v.GetInt("users.score_cap"),
		},
		Followup: FollowupConfig{
			Delay:   v.GetDuration("followup.delay"),
			Enabled: v.GetBool("followup.enabled"),
		},
		Export: ExportConfig{
			Passphrase: v.GetString("export.passphrase"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		RateLimit: RateLimitConfig{
			Requests: v.GetInt("rate_limit.requests"),
			Window:   v.GetDuration("rate_limit.window"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults configures default values for all settings.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.env", "development")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "leadbot")
	v.SetDefault("database.name", "leadbot")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.max_idle_connections", 5)
	v.SetDefault("database.connection_max_lifetime", "5m")
	v.SetDefault("database.auto_migrate", true)

	// Telegram defaults
	v.SetDefault("telegram.webhook_path", "/webhook/telegram")

	// AI defaults
	v.SetDefault("ai.openai.model", "gpt-4o-mini")
	v.SetDefault("ai.openai.api_url", "https://api.openai.com/v1")
	v.SetDefault("ai.huggingface.model", "google/flan-t5-large")
	v.SetDefault("ai.huggingface.api_url", "https://api-inference.huggingface.co/models")

	// User defaults
	v.SetDefault("users.score_cap", 100)

	// Follow-up defaults
	v.SetDefault("followup.delay", "24h")
	v.SetDefault("followup.enabled", true)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Rate limit defaults
	v.SetDefault("rate_limit.requests", 100)
	v.SetDefault("rate_limit.window", "1m")
}

// Validate checks that all required configuration values are present.
// Missing bot token or database credentials abort startup entirely.
func (c *Config) Validate() error {
	var missing []string

	if c.Telegram.Token == "" {
		missing = append(missing, "TELEGRAM_TOKEN")
	}
	if c.Database.URL == "" && c.Database.Password == "" {
		missing = append(missing, "DATABASE_URL or DATABASE_PASSWORD")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// WebhookURL returns the full public URL the Telegram webhook is registered
// under, with the bot token appended to the path.
func (c *Config) WebhookURL() string {
	base := strings.TrimSuffix(c.Telegram.WebhookBaseURL, "/")
	return base + c.TelegramWebhookPath()
}

// TelegramWebhookPath returns the local route the Telegram webhook listens on.
func (c *Config) TelegramWebhookPath() string {
	return c.TelegramWebhookBasePath() + "/" + c.Telegram.Token
}

// TelegramWebhookBasePath returns the webhook route without the token
// segment, normalized to carry a leading slash.
func (c *Config) TelegramWebhookBasePath() string {
	path := c.Telegram.WebhookPath
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

// parseIDList parses a comma-separated list of chat IDs.
func parseIDList(raw string) []int64 {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		var id int64
		if _, err := fmt.Sscanf(p, "%d", &id); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone    = "UTC"
	databaseDSNEnv     = "DATABASE_DSN"
	openAIAPIKeyEnv    = "OPENAI_API_KEY"
	anthropicAPIKeyEnv = "ANTHROPIC_API_KEY"
	smtpPasswordEnv    = "SMTP_PASSWORD"
)

// Config holds all settings required across the application.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Crawler   CrawlerConfig   `yaml:"crawler"`
	AI        AIConfig        `yaml:"ai"`
	Email     EmailConfig     `yaml:"email"`
	Exporter  ExporterConfig  `yaml:"exporter"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Logging   LoggingConfig   `yaml:"logging"`
	SiteList  string          `yaml:"site_list"`
}

// DatabaseConfig selects and parameterizes the storage backend.
type DatabaseConfig struct {
	Type     string         `yaml:"type"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// CrawlerConfig tunes fetching politeness and extraction limits.
type CrawlerConfig struct {
	UserAgent          string `yaml:"user_agent"`
	TimeoutSeconds     int    `yaml:"timeout"`
	MaxRetries         int    `yaml:"max_retries"`
	DelaySeconds       int    `yaml:"delay_between_requests"`
	MaxArticlesPerSite int    `yaml:"max_articles_per_site"`
	ContentMaxChars    int    `yaml:"content_max_chars"`
}

// Timeout returns the per-fetch timeout.
func (c CrawlerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Delay returns the inter-request delay applied between sites.
func (c CrawlerConfig) Delay() time.Duration {
	return time.Duration(c.DelaySeconds) * time.Second
}

// AIConfig selects the completion provider and summary budgets.
type AIConfig struct {
	Provider         string         `yaml:"provider"`
	MaxSummaryLength int            `yaml:"max_summary_length"`
	TimeoutSeconds   int            `yaml:"timeout"`
	OpenAI           ProviderConfig `yaml:"openai"`
	Anthropic        ProviderConfig `yaml:"anthropic"`
}

// Timeout returns the per-provider-call timeout.
func (c AIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ProviderConfig is shared between the OpenAI-style and Anthropic-style
// completion providers.
type ProviderConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
	MaxTokens int    `yaml:"max_tokens"`
}

// EmailConfig wires the SMTP digest sink.
type EmailConfig struct {
	SMTP       SMTPConfig `yaml:"smtp"`
	From       string     `yaml:"from"`
	Recipients []string   `yaml:"recipients"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	UseTLS   bool   `yaml:"use_tls"`
}

// ExporterConfig parameterizes the per-date markdown export sink.
type ExporterConfig struct {
	OutputDir string `yaml:"output_dir"`
}

// SchedulerConfig defines when scheduled runs execute.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}

// Load reads YAML configuration, expands ${VAR} references, applies defaults
// and environment overrides, and validates the result.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(raw))), &fileCfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg = mergeConfig(cfg, fileCfg)

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.Type = "postgres"
		c.Database.Postgres.DSN = v
	}
	if v := os.Getenv(openAIAPIKeyEnv); v != "" {
		c.AI.OpenAI.APIKey = v
	}
	if v := os.Getenv(anthropicAPIKeyEnv); v != "" {
		c.AI.Anthropic.APIKey = v
	}
	if v := os.Getenv(smtpPasswordEnv); v != "" {
		c.Email.SMTP.Password = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func (c Config) validate() error {
	switch c.Database.Type {
	case "sqlite":
		if c.Database.SQLite.Path == "" {
			return fmt.Errorf("config: database.sqlite.path is required")
		}
	case "postgres":
		if c.Database.Postgres.DSN == "" {
			return fmt.Errorf("config: database.postgres.dsn is required")
		}
	default:
		return fmt.Errorf("config: unsupported database type %q (supported: sqlite, postgres)", c.Database.Type)
	}

	switch c.AI.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("config: unsupported ai provider %q (supported: openai, anthropic)", c.AI.Provider)
	}

	if len(c.Email.Recipients) > 0 {
		if c.Email.SMTP.Host == "" {
			return fmt.Errorf("config: email.smtp.host is required when recipients are set")
		}
		if c.Email.From == "" {
			return fmt.Errorf("config: email.from is required when recipients are set")
		}
	}
	return nil
}

func mergeConfig(base, override Config) Config {
	if override.Database.Type != "" {
		base.Database.Type = override.Database.Type
	}
	if override.Database.SQLite.Path != "" {
		base.Database.SQLite = override.Database.SQLite
	}
	if override.Database.Postgres.DSN != "" {
		base.Database.Postgres = override.Database.Postgres
	}

	if override.Crawler.UserAgent != "" {
		base.Crawler.UserAgent = override.Crawler.UserAgent
	}
	if override.Crawler.TimeoutSeconds != 0 {
		base.Crawler.TimeoutSeconds = override.Crawler.TimeoutSeconds
	}
	if override.Crawler.MaxRetries != 0 {
		base.Crawler.MaxRetries = override.Crawler.MaxRetries
	}
	if override.Crawler.DelaySeconds != 0 {
		base.Crawler.DelaySeconds = override.Crawler.DelaySeconds
	}
	if override.Crawler.MaxArticlesPerSite != 0 {
		base.Crawler.MaxArticlesPerSite = override.Crawler.MaxArticlesPerSite
	}
	if override.Crawler.ContentMaxChars != 0 {
		base.Crawler.ContentMaxChars = override.Crawler.ContentMaxChars
	}

	if override.AI.Provider != "" {
		base.AI.Provider = override.AI.Provider
	}
	if override.AI.MaxSummaryLength != 0 {
		base.AI.MaxSummaryLength = override.AI.MaxSummaryLength
	}
	if override.AI.TimeoutSeconds != 0 {
		base.AI.TimeoutSeconds = override.AI.TimeoutSeconds
	}
	base.AI.OpenAI = mergeProvider(base.AI.OpenAI, override.AI.OpenAI)
	base.AI.Anthropic = mergeProvider(base.AI.Anthropic, override.AI.Anthropic)

	if override.Email.SMTP.Host != "" {
		base.Email.SMTP = override.Email.SMTP
	}
	if override.Email.From != "" {
		base.Email.From = override.Email.From
	}
	if len(override.Email.Recipients) > 0 {
		base.Email.Recipients = override.Email.Recipients
	}

	if override.Exporter.OutputDir != "" {
		base.Exporter = override.Exporter
	}

	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}
	if override.SiteList != "" {
		base.SiteList = override.SiteList
	}

	return base
}

func mergeProvider(base, override ProviderConfig) ProviderConfig {
	if override.Endpoint != "" {
		base.Endpoint = override.Endpoint
	}
	if override.Model != "" {
		base.Model = override.Model
	}
	if override.APIKey != "" {
		base.APIKey = override.APIKey
	}
	if override.MaxTokens != 0 {
		base.MaxTokens = override.MaxTokens
	}
	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Database: DatabaseConfig{
			Type:   "sqlite",
			SQLite: SQLiteConfig{Path: "data/news.db"},
		},
		Crawler: CrawlerConfig{
			UserAgent:          "Mozilla/5.0",
			TimeoutSeconds:     30,
			MaxRetries:         3,
			DelaySeconds:       2,
			MaxArticlesPerSite: 10,
			ContentMaxChars:    10000,
		},
		AI: AIConfig{
			Provider:         "openai",
			MaxSummaryLength: 500,
			TimeoutSeconds:   120,
			OpenAI: ProviderConfig{
				Endpoint:  "https://api.openai.com/v1/chat/completions",
				Model:     "gpt-4o-mini",
				MaxTokens: 1000,
			},
			Anthropic: ProviderConfig{
				Endpoint:  "https://api.anthropic.com/v1/messages",
				Model:     "claude-3-5-haiku-latest",
				MaxTokens: 1000,
			},
		},
		Email: EmailConfig{
			SMTP: SMTPConfig{Port: 587, UseTLS: true},
		},
		Exporter:  ExporterConfig{OutputDir: "output/markdown"},
		Scheduler: SchedulerConfig{CronExpression: "0 7 * * *", Timezone: defaultTimezone, location: tz},
		Logging:   LoggingConfig{Level: "info"},
		SiteList:  "site-list.txt",
	}
}

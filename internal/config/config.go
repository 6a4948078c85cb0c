package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // timezone database for minimal containers

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/weeklymenu/weeklymenu/internal/apperr"
)

// Config holds all configuration for the application
type Config struct {
	LLM      LLMConfig      `mapstructure:"llm"`
	Email    EmailConfig    `mapstructure:"email"`
	OAuth    OAuthConfig    `mapstructure:"oauth"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Log      LogConfig      `mapstructure:"log"`
	Server   ServerConfig   `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// LLMConfig holds the OpenAI-compatible chat completion endpoint settings
type LLMConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// EmailConfig holds email sending configuration
type EmailConfig struct {
	// Provider is the sender to use: "gmail" or "log" (dry run)
	Provider string `mapstructure:"provider"`
	// SenderAddress is the "From" email address
	SenderAddress string `mapstructure:"sender_address"`
	// Recipients is a comma-separated list of recipient addresses
	Recipients string `mapstructure:"recipients"`
	// GmailEndpoint overrides the Gmail API base URL (tests, proxies)
	GmailEndpoint string `mapstructure:"gmail_endpoint"`
}

// RecipientList splits Recipients on commas, dropping blanks.
func (c EmailConfig) RecipientList() []string {
	var out []string
	for _, r := range strings.Split(c.Recipients, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// OAuthConfig holds the mailbox provider credential files and consent settings
type OAuthConfig struct {
	TokenPath       string `mapstructure:"token_path"`
	CredentialsPath string `mapstructure:"credentials_path"`
	// Headless selects the console paste flow instead of the loopback
	// listener. It is true for "1" or "true".
	Headless bool `mapstructure:"-"`
	Port     int  `mapstructure:"port"`
}

// ScheduleConfig holds the trigger and mode-selection settings
type ScheduleConfig struct {
	Timezone       string `mapstructure:"timezone"`
	Cron           string `mapstructure:"cron"`
	// CI and RunImmediately are true only for a case-insensitive "true";
	// any other value means daemon mode
	CI             bool `mapstructure:"-"`
	RunImmediately bool `mapstructure:"-"`
}

// OneShot reports whether the job should run once and exit.
func (c ScheduleConfig) OneShot() bool {
	return c.CI || c.RunImmediately
}

// Location resolves Timezone.
func (c ScheduleConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, apperr.Configuration("unknown timezone %q: %v", c.Timezone, err)
	}
	return loc, nil
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds the optional health endpoint configuration
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// Addr returns the listen address
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RedisConfig holds the optional run-lock Redis configuration
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

// Addr returns the Redis address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// envAliases maps config keys to the environment variables recognized for
// them, first match wins.
var envAliases = map[string][]string{
	"llm.base_url":             {"MAMMOTH_API_BASE", "MAMMOUTH_API_BASE"},
	"llm.api_key":              {"MAMMOTH_API_KEY", "MAMMOUTH_API_KEY"},
	"llm.model":                {"MAMMOTH_MODEL", "MAMMOUTH_MODEL"},
	"llm.temperature":          {"LLM_TEMPERATURE"},
	"llm.timeout":              {"LLM_TIMEOUT"},
	"email.provider":           {"EMAIL_PROVIDER"},
	"email.sender_address":     {"SENDER_EMAIL"},
	"email.recipients":         {"RECIPIENT_EMAILS"},
	"email.gmail_endpoint":     {"GMAIL_ENDPOINT"},
	"oauth.token_path":         {"TOKEN_PATH"},
	"oauth.credentials_path":   {"CREDENTIALS_PATH"},
	"oauth.headless":           {"OAUTH_HEADLESS"},
	"oauth.port":               {"OAUTH_PORT"},
	"schedule.timezone":        {"TZ"},
	"schedule.cron":            {"SCHEDULE_CRON"},
	"schedule.ci":              {"GITHUB_ACTIONS"},
	"schedule.run_immediately": {"RUN_IMMEDIATELY"},
	"log.level":                {"LOG_LEVEL"},
	"log.format":               {"LOG_FORMAT"},
	"server.enabled":           {"HEALTH_ENABLED"},
	"server.port":              {"HEALTH_PORT"},
	"redis.enabled":            {"REDIS_ENABLED"},
	"redis.host":               {"REDIS_HOST"},
	"redis.port":               {"REDIS_PORT"},
	"redis.password":           {"REDIS_PASSWORD"},
	"redis.db":                 {"REDIS_DB"},
}

// Load reads configuration from .env, an optional config file and the
// environment. It does not validate; see Validate.
func Load() (*Config, error) {
	// A missing .env is fine outside local development
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/weeklymenu")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("WEEKLYMENU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range envAliases {
		args := append([]string{key}, names...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Schedule.CI = isTrue(v.GetString("schedule.ci"))
	cfg.Schedule.RunImmediately = isTrue(v.GetString("schedule.run_immediately"))
	headless := strings.TrimSpace(v.GetString("oauth.headless"))
	cfg.OAuth.Headless = headless == "1" || isTrue(headless)

	return &cfg, nil
}

func isTrue(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "true")
}

// Validate checks the settings every mode of the job needs, so a daemon
// fails at startup rather than at the first trigger.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return apperr.Configuration("MAMMOUTH_API_KEY is required")
	}
	if strings.TrimSpace(c.Email.SenderAddress) == "" {
		return apperr.Configuration("SENDER_EMAIL is required")
	}
	if len(c.Email.RecipientList()) == 0 {
		return apperr.Configuration("RECIPIENT_EMAILS is required")
	}
	if _, err := c.Schedule.Location(); err != nil {
		return err
	}
	switch c.Email.Provider {
	case "gmail", "log":
	default:
		return apperr.Configuration("unsupported email provider: %s (supported: gmail, log)", c.Email.Provider)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// LLM defaults
	v.SetDefault("llm.base_url", "https://api.mammouth.ai/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gpt-4.1")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.timeout", "120s")

	// Email defaults
	v.SetDefault("email.provider", "gmail")
	v.SetDefault("email.sender_address", "")
	v.SetDefault("email.recipients", "")
	v.SetDefault("email.gmail_endpoint", "")

	// OAuth defaults
	v.SetDefault("oauth.token_path", "data/token.json")
	v.SetDefault("oauth.credentials_path", "data/credentials.json")
	v.SetDefault("oauth.headless", true)
	v.SetDefault("oauth.port", 8080)

	// Schedule defaults: Fridays 10:30
	v.SetDefault("schedule.timezone", "Europe/Paris")
	v.SetDefault("schedule.cron", "30 10 * * 5")
	v.SetDefault("schedule.ci", false)
	v.SetDefault("schedule.run_immediately", false)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Health server defaults
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8081)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", "30m")
}

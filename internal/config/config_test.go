package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weeklymenu/weeklymenu/internal/apperr"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TZ", "")
	t.Setenv("MAMMOTH_API_KEY", "")
	t.Setenv("MAMMOUTH_API_KEY", "")
	t.Setenv("GITHUB_ACTIONS", "")
	t.Setenv("RUN_IMMEDIATELY", "")
	t.Setenv("OAUTH_HEADLESS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.mammouth.ai/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "gpt-4.1", cfg.LLM.Model)
	assert.InDelta(t, 0.7, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 120*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "gmail", cfg.Email.Provider)
	assert.Equal(t, "data/token.json", cfg.OAuth.TokenPath)
	assert.Equal(t, "data/credentials.json", cfg.OAuth.CredentialsPath)
	assert.True(t, cfg.OAuth.Headless)
	assert.Equal(t, 8080, cfg.OAuth.Port)
	assert.Equal(t, "Europe/Paris", cfg.Schedule.Timezone)
	assert.Equal(t, "30 10 * * 5", cfg.Schedule.Cron)
	assert.False(t, cfg.Schedule.OneShot())
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_EnvAliases(t *testing.T) {
	t.Setenv("MAMMOTH_API_KEY", "")
	t.Setenv("MAMMOUTH_API_KEY", "sk-test")
	t.Setenv("MAMMOUTH_API_BASE", "http://llm.local/v1")
	t.Setenv("MAMMOUTH_MODEL", "mistral-large")
	t.Setenv("SENDER_EMAIL", "chef@example.com")
	t.Setenv("RECIPIENT_EMAILS", " a@example.com, ,b@example.com ")
	t.Setenv("TZ", "America/New_York")
	t.Setenv("GITHUB_ACTIONS", "true")
	t.Setenv("OAUTH_HEADLESS", "false")
	t.Setenv("OAUTH_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "http://llm.local/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "mistral-large", cfg.LLM.Model)
	assert.Equal(t, "chef@example.com", cfg.Email.SenderAddress)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.Email.RecipientList())
	assert.Equal(t, "America/New_York", cfg.Schedule.Timezone)
	assert.True(t, cfg.Schedule.CI)
	assert.True(t, cfg.Schedule.OneShot())
	assert.False(t, cfg.OAuth.Headless)
	assert.Equal(t, 9090, cfg.OAuth.Port)
}

func TestLoad_AliasPrecedence(t *testing.T) {
	t.Setenv("MAMMOTH_API_KEY", "first")
	t.Setenv("MAMMOUTH_API_KEY", "second")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "first", cfg.LLM.APIKey)
}

func TestLoad_ModeFlags(t *testing.T) {
	tests := []struct {
		name           string
		githubActions  string
		runImmediately string
		wantOneShot    bool
	}{
		{name: "unset", wantOneShot: false},
		{name: "ci true", githubActions: "true", wantOneShot: true},
		{name: "ci upper case", githubActions: "TRUE", wantOneShot: true},
		{name: "run immediately mixed case", runImmediately: "True", wantOneShot: true},
		{name: "yes is not true", githubActions: "yes", wantOneShot: false},
		{name: "on is not true", runImmediately: "on", wantOneShot: false},
		{name: "one is not true", runImmediately: "1", wantOneShot: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GITHUB_ACTIONS", tt.githubActions)
			t.Setenv("RUN_IMMEDIATELY", tt.runImmediately)

			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, tt.wantOneShot, cfg.Schedule.OneShot())
		})
	}
}

func TestLoad_HeadlessFlag(t *testing.T) {
	for value, want := range map[string]bool{
		"1":     true,
		"true":  true,
		"TRUE":  true,
		"0":     false,
		"false": false,
		"yes":   false,
	} {
		t.Run(value, func(t *testing.T) {
			t.Setenv("OAUTH_HEADLESS", value)

			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, want, cfg.OAuth.Headless)
		})
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			LLM:      LLMConfig{APIKey: "sk-test"},
			Email:    EmailConfig{Provider: "gmail", SenderAddress: "chef@example.com", Recipients: "a@example.com"},
			Schedule: ScheduleConfig{Timezone: "Europe/Paris"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing api key", mutate: func(c *Config) { c.LLM.APIKey = "  " }, wantErr: true},
		{name: "bad timezone", mutate: func(c *Config) { c.Schedule.Timezone = "Mars/Olympus" }, wantErr: true},
		{name: "unknown provider", mutate: func(c *Config) { c.Email.Provider = "smtp" }, wantErr: true},
		{name: "log provider", mutate: func(c *Config) { c.Email.Provider = "log" }},
		{name: "missing sender", mutate: func(c *Config) { c.Email.SenderAddress = " " }, wantErr: true},
		{name: "missing recipients", mutate: func(c *Config) { c.Email.Recipients = "" }, wantErr: true},
		{name: "blank recipients", mutate: func(c *Config) { c.Email.Recipients = " , " }, wantErr: true},
		{name: "dry run still needs addressing", mutate: func(c *Config) {
			c.Email.Provider = "log"
			c.Email.SenderAddress = ""
		}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, apperr.ErrConfiguration)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRecipientList_Empty(t *testing.T) {
	assert.Nil(t, EmailConfig{Recipients: " , "}.RecipientList())
}

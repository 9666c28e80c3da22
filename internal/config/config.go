// Package config holds all familymatter configuration: a yaml file with
// environment overrides applied after load. Sweep thresholds can be
// hot-swapped when the file changes so a tuning edit takes effect on the
// next sweep without a restart.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"familymatter/internal/steward"
)

// Config is the full deployment configuration.
type Config struct {
	Estate   EstateConfig       `yaml:"estate"`
	Database DatabaseConfig     `yaml:"database"`
	LLM      LLMConfig          `yaml:"llm"`
	Telegram TelegramConfig     `yaml:"telegram"`
	SMTP     SMTPConfig         `yaml:"smtp"`
	Jobs     JobsConfig         `yaml:"jobs"`
	Sweep    steward.Thresholds `yaml:"sweep"`
	Verbose  bool               `yaml:"verbose"`
}

// EstateConfig identifies the home estate this deployment coordinates.
type EstateConfig struct {
	ID           int64  `yaml:"id"`
	Name         string `yaml:"name"`
	ExecutorName string `yaml:"executor_name"`
	Channel      string `yaml:"channel"`
}

// DatabaseConfig locates the SQLite ledger.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LLMConfig configures the responder collaborator.
type LLMConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// TelegramConfig configures the executor chat channel.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// SMTPConfig configures outbound family email.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// JobsConfig sets the scheduled trigger times and poll intervals.
type JobsConfig struct {
	BriefingTime          string `yaml:"briefing_time"`           // "HH:MM" local
	SweepTime             string `yaml:"sweep_time"`              // "HH:MM" local
	SuggestionPollMinutes int    `yaml:"suggestion_poll_minutes"`
	ChatPollSeconds       int    `yaml:"chat_poll_seconds"`
	JobTimeoutSeconds     int    `yaml:"job_timeout_seconds"`
}

// Default returns a configuration with every default filled in.
func Default() *Config {
	return &Config{
		Estate:   EstateConfig{ID: 1, Name: "the estate", ExecutorName: "the executor", Channel: "telegram"},
		Database: DatabaseConfig{Path: "data/familymatter.db"},
		LLM:      LLMConfig{Model: "gemini-2.0-flash"},
		Jobs: JobsConfig{
			BriefingTime:          "09:00",
			SweepTime:             "09:30",
			SuggestionPollMinutes: 10,
			ChatPollSeconds:       2,
			JobTimeoutSeconds:     120,
		},
		Sweep: steward.DefaultThresholds(),
	}
}

// Load reads the yaml file at path and applies environment overrides.
// A missing file is not an error: defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.fillDefaults()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FM_ESTATE_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Estate.ID = id
		}
	}
	if v := os.Getenv("FM_ESTATE_NAME"); v != "" {
		c.Estate.Name = v
	}
	if v := os.Getenv("FM_EXECUTOR_NAME"); v != "" {
		c.Estate.ExecutorName = v
	}
	if v := os.Getenv("FM_DB"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("SMTP_HOST"); v != "" {
		c.SMTP.Host = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.SMTP.Port = port
		}
	}
	if v := os.Getenv("SMTP_USERNAME"); v != "" {
		c.SMTP.Username = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		c.SMTP.Password = v
	}
	if v := os.Getenv("SMTP_FROM"); v != "" {
		c.SMTP.From = v
	}
}

// fillDefaults backfills zero values a sparse yaml file left behind.
func (c *Config) fillDefaults() {
	def := Default()
	if c.Estate.ID == 0 {
		c.Estate.ID = def.Estate.ID
	}
	if c.Estate.Name == "" {
		c.Estate.Name = def.Estate.Name
	}
	if c.Estate.ExecutorName == "" {
		c.Estate.ExecutorName = def.Estate.ExecutorName
	}
	if c.Estate.Channel == "" {
		c.Estate.Channel = def.Estate.Channel
	}
	if c.Database.Path == "" {
		c.Database.Path = def.Database.Path
	}
	if c.LLM.Model == "" {
		c.LLM.Model = def.LLM.Model
	}
	if c.Jobs.BriefingTime == "" {
		c.Jobs.BriefingTime = def.Jobs.BriefingTime
	}
	if c.Jobs.SweepTime == "" {
		c.Jobs.SweepTime = def.Jobs.SweepTime
	}
	if c.Jobs.SuggestionPollMinutes <= 0 {
		c.Jobs.SuggestionPollMinutes = def.Jobs.SuggestionPollMinutes
	}
	if c.Jobs.ChatPollSeconds <= 0 {
		c.Jobs.ChatPollSeconds = def.Jobs.ChatPollSeconds
	}
	if c.Jobs.JobTimeoutSeconds <= 0 {
		c.Jobs.JobTimeoutSeconds = def.Jobs.JobTimeoutSeconds
	}
	zero := steward.Thresholds{}
	if c.Sweep == zero {
		c.Sweep = steward.DefaultThresholds()
	}
}

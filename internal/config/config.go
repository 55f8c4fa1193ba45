// Package config provides YAML-based configuration loading for Agendabot.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Agendabot configuration, loaded from agendabot.yaml.
type Config struct {
	Timezone      string              `yaml:"timezone"`
	Database      DatabaseConfig      `yaml:"database"`
	Bot           BotConfig           `yaml:"bot"`
	Reminders     RemindersConfig     `yaml:"reminders"`
	Digest        DigestConfig        `yaml:"digest"`
	Sessions      SessionsConfig      `yaml:"sessions"`
	Extract       ExtractConfig       `yaml:"extract"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Dashboard     DashboardConfig     `yaml:"dashboard"`
}

// DatabaseConfig selects and configures the relational store.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "mysql"
	Path   string `yaml:"path"`   // sqlite file path
	Host   string `yaml:"host"`   // mysql
	Port   int    `yaml:"port"`   // mysql
	Name   string `yaml:"name"`   // mysql database name
	User   string `yaml:"user"`   // mysql
}

// BotConfig holds chat platform settings.
type BotConfig struct {
	Platform string        `yaml:"platform"` // "discord" or "slack"
	Channel  string        `yaml:"channel"`  // default channel for digests
	Discord  DiscordConfig `yaml:"discord"`
	Slack    SlackConfig   `yaml:"slack"`
}

// DiscordConfig holds Discord Gateway credentials.
type DiscordConfig struct {
	BotToken string `yaml:"bot_token"`
}

// SlackConfig holds Slack Socket Mode credentials.
type SlackConfig struct {
	AppToken string `yaml:"app_token"`
	BotToken string `yaml:"bot_token"`
}

// RemindersConfig controls the reminder dispatch loop.
type RemindersConfig struct {
	LeadMinutes int    `yaml:"lead_minutes"` // how long before start the reminder fires
	PollCron    string `yaml:"poll_cron"`    // 5-field cron for dispatch cycles
	MaxAttempts int    `yaml:"max_attempts"` // delivery attempts before a reminder is marked failed
}

// DigestConfig controls the optional daily agenda digest.
type DigestConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
}

// SessionsConfig controls conversational session expiry. TTL of zero keeps
// sessions alive for the process lifetime.
type SessionsConfig struct {
	TTLMinutes int `yaml:"ttl_minutes"`
}

// ExtractConfig tunes the date/location extractor.
type ExtractConfig struct {
	YearRollover *bool    `yaml:"year_rollover"` // roll past dates into next year (default true)
	ExtraPlaces  []string `yaml:"extra_places"`  // gazetteer additions
}

// TranscriptionConfig holds voice-note transcription settings. The API key
// falls back to the OPENAI_API_KEY environment variable.
type TranscriptionConfig struct {
	OpenAIAPIKey string `yaml:"openai_api_key"`
}

// DashboardConfig holds web dashboard settings.
type DashboardConfig struct {
	Port int `yaml:"port"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Timezone == "" {
		c.Timezone = "America/Sao_Paulo"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "agendabot.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
		if c.Database.Name == "" {
			c.Database.Name = "agendabot"
		}
	}
	if c.Reminders.LeadMinutes == 0 {
		c.Reminders.LeadMinutes = 60
	}
	if c.Reminders.PollCron == "" {
		c.Reminders.PollCron = "* * * * *"
	}
	if c.Reminders.MaxAttempts == 0 {
		c.Reminders.MaxAttempts = 5
	}
	if c.Digest.Enabled && c.Digest.Cron == "" {
		c.Digest.Cron = "0 8 * * *"
	}
	if c.Transcription.OpenAIAPIKey == "" {
		c.Transcription.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8080
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("timezone %q is not a valid IANA zone", c.Timezone))
	}
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (sqlite, mysql)", c.Database.Driver))
	}
	switch c.Bot.Platform {
	case "", "discord", "slack":
	default:
		errs = append(errs, fmt.Sprintf("bot.platform %q is not supported (discord, slack)", c.Bot.Platform))
	}
	if c.Bot.Platform == "discord" && c.Bot.Discord.BotToken == "" {
		errs = append(errs, "bot.discord.bot_token is required for the discord platform")
	}
	if c.Bot.Platform == "slack" {
		if c.Bot.Slack.AppToken == "" {
			errs = append(errs, "bot.slack.app_token is required for the slack platform")
		}
		if c.Bot.Slack.BotToken == "" {
			errs = append(errs, "bot.slack.bot_token is required for the slack platform")
		}
	}
	if c.Reminders.LeadMinutes < 0 {
		errs = append(errs, "reminders.lead_minutes must not be negative")
	}
	if c.Sessions.TTLMinutes < 0 {
		errs = append(errs, "sessions.ttl_minutes must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Location returns the configured timezone. Falls back to UTC if the zone
// cannot be loaded (validate rejects unknown zones up front).
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ReminderLead returns the reminder lead as a duration.
func (c *Config) ReminderLead() time.Duration {
	return time.Duration(c.Reminders.LeadMinutes) * time.Minute
}

// SessionTTL returns the session TTL as a duration, zero meaning no expiry.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Sessions.TTLMinutes) * time.Minute
}

// YearRollover reports whether past dates should roll into the next year.
func (c *Config) YearRollover() bool {
	if c.Extract.YearRollover == nil {
		return true
	}
	return *c.Extract.YearRollover
}

package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/robfig/cron/v3"
)

type Config struct {
	// Backend selection
	DataBackend string

	// Database
	SQLiteDBPath string
	DatabaseURL  string

	// AMQP; an empty URL disables publishing
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Calendar used to interpret dates typed by the user and to print dates
	Timezone string

	// Reminder daemon
	NotifySchedule string

	LogLevel string
}

var validBackends = []string{"sqlite", "postgres", "memory"}

// Defaults returns the values used for every variable left unset.
func Defaults() Config {
	return Config{
		DataBackend:    "sqlite",
		SQLiteDBPath:   defaultSQLitePath(),
		AMQPExchange:   "dues",
		AMQPQueue:      "dues_events",
		Timezone:       "Local",
		NotifySchedule: "0 9 * * *",
		LogLevel:       "info",
	}
}

func defaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".expenses", "data.sqlite")
	}
	return filepath.Join(home, ".expenses", "data.sqlite")
}

// Load reads the environment and fills unset values from Defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DataBackend:    os.Getenv("DATA_BACKEND"),
		SQLiteDBPath:   os.Getenv("SQLITE_DB_PATH"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		AMQPURL:        os.Getenv("AMQP_URL"),
		AMQPExchange:   os.Getenv("AMQP_EXCHANGE"),
		AMQPQueue:      os.Getenv("AMQP_QUEUE"),
		Timezone:       os.Getenv("TIMEZONE"),
		NotifySchedule: os.Getenv("NOTIFY_SCHEDULE"),
		LogLevel:       os.Getenv("LOG_LEVEL"),
	}

	if err := mergo.Merge(cfg, Defaults()); err != nil {
		return nil, fmt.Errorf("apply config defaults: %w", err)
	}
	return cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" && c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
	}

	if c.DataBackend == "postgres" {
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid DATABASE_URL: %v", err))
		} else if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			errors = append(errors, fmt.Sprintf("invalid DATABASE_URL scheme '%s': must be 'postgres' or 'postgresql'", u.Scheme))
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if _, err := c.Location(); err != nil {
		errors = append(errors, err.Error())
	}

	if _, err := cron.ParseStandard(c.NotifySchedule); err != nil {
		errors = append(errors, fmt.Sprintf("invalid notify schedule '%s': %v", c.NotifySchedule, err))
	}

	if _, err := c.Level(); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Location resolves Timezone. "Local" and the empty string mean the host zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone '%s': %v", c.Timezone, err)
	}
	return loc, nil
}

// Level parses LogLevel (debug, info, warn, error).
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel)
	}
	return level, nil
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
)

var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrInvalidConfig      = errors.New("invalid configuration")
)

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig `json:"database"`
	Log      LogConfig      `json:"log"`
	Host     HostConfig     `json:"host"`
	Settings SettingsConfig `json:"settings"`
	Apps     []AppConfig    `json:"apps"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `json:"path"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json or text
}

// HostConfig describes the host environment the daemon runs on
type HostConfig struct {
	Version         int  `json:"version"`           // host OS version, selects the overlay creation profile
	DisplayOverApps bool `json:"display_over_apps"` // initial display-over-other-apps grant
	Notifications   bool `json:"notifications"`     // initial notification grant
}

// SettingsConfig holds the persisted user settings this core consumes
// read-only.
type SettingsConfig struct {
	CountdownSecs      int  `json:"countdown_seconds"`
	MathChallenge      bool `json:"math_challenge_enabled"`
	DefaultSessionMins int  `json:"default_session_minutes"`
	ChallengeLevel     int  `json:"challenge_difficulty"`
}

// AppConfig represents a restricted application known to the launcher
type AppConfig struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Settings accessors satisfy the coordinator's read-only settings view.

func (s SettingsConfig) CountdownSeconds() int      { return s.CountdownSecs }
func (s SettingsConfig) MathChallengeEnabled() bool { return s.MathChallenge }
func (s SettingsConfig) DefaultSessionMinutes() int { return s.DefaultSessionMins }

func (s SettingsConfig) ChallengeDifficulty() int {
	if s.ChallengeLevel > 0 {
		return s.ChallengeLevel
	}
	return 1
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database path is required", ErrInvalidConfig)
	}

	if c.Settings.CountdownSecs < 0 {
		return fmt.Errorf("%w: countdown_seconds cannot be negative", ErrInvalidConfig)
	}

	if c.Settings.DefaultSessionMins <= 0 {
		return fmt.Errorf("%w: default_session_minutes must be positive", ErrInvalidConfig)
	}

	if c.Host.Version < 0 {
		return fmt.Errorf("%w: host version cannot be negative", ErrInvalidConfig)
	}

	for _, app := range c.Apps {
		if app.ID == "" || app.Name == "" {
			return fmt.Errorf("%w: app entries need both id and name", ErrInvalidConfig)
		}
	}

	return nil
}

// Load loads configuration from a JSON file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigFileNotFound
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadFromEnv loads configuration from environment variables
// This is useful for containerized deployments
func LoadFromEnv() (*Config, error) {
	config := &Config{
		Database: DatabaseConfig{
			Path: getEnv("TIMEGATE_DB_PATH", "./timegate.db"),
		},
		Log: LogConfig{
			Level:  getEnv("TIMEGATE_LOG_LEVEL", "info"),
			Format: getEnv("TIMEGATE_LOG_FORMAT", "json"),
		},
		Host: HostConfig{
			Version:         getEnvInt("TIMEGATE_HOST_VERSION", 29),
			DisplayOverApps: getEnvBool("TIMEGATE_DISPLAY_OVER_APPS", false),
			Notifications:   getEnvBool("TIMEGATE_NOTIFICATIONS", false),
		},
		Settings: SettingsConfig{
			CountdownSecs:      getEnvInt("TIMEGATE_COUNTDOWN_SECONDS", 10),
			MathChallenge:      getEnvBool("TIMEGATE_MATH_CHALLENGE", true),
			DefaultSessionMins: getEnvInt("TIMEGATE_DEFAULT_SESSION_MINUTES", 30),
			ChallengeLevel:     getEnvInt("TIMEGATE_CHALLENGE_DIFFICULTY", 1),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	App    AppConfig    `yaml:"app"`
	Google GoogleConfig `yaml:"google"`
	Cron   CronConfig   `yaml:"cron"`
	Sync   SyncConfig   `yaml:"sync"`
	Server ServerConfig `yaml:"server"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
	TestMode bool   `yaml:"test_mode"`
}

// GoogleConfig contains Drive and Apps Script API settings
type GoogleConfig struct {
	ServiceAccountKeyPath string `yaml:"service_account_key_path"`
	DelegatedUser         string `yaml:"delegated_user"`
}

// CronConfig contains settings for the cron sync route.
// An empty Secret leaves the route open.
type CronConfig struct {
	Secret             string `yaml:"secret"`
	BaseURL            string `yaml:"base_url"`
	PlatformHost       string `yaml:"platform_host"`
	MaxDurationSeconds int    `yaml:"max_duration_seconds"`
}

// SyncConfig contains content and execution-log sync settings
type SyncConfig struct {
	MaxScripts        int `yaml:"max_scripts"`
	ExecutionPageSize int `yaml:"execution_page_size"`
	ExecutionPages    int `yaml:"execution_pages"`
}

// ServerConfig contains server mode settings
type ServerConfig struct {
	Port            int    `yaml:"port"`
	ScheduleEnabled bool   `yaml:"schedule_enabled"`
	Schedule        string `yaml:"schedule"`
}

const (
	// DefaultPort is the server port when none is configured. It matches
	// DefaultBaseURL so a default server reaches its own sync services.
	DefaultPort = 3000

	// DefaultBaseURL is used when neither a base URL nor a platform host is configured.
	DefaultBaseURL = "http://localhost:3000"

	defaultMaxDurationSeconds = 300
)

// envFiles are loaded in order; earlier files win because godotenv never overrides.
var envFiles = []string{".env.local", ".env"}

// LoadEnvFiles loads dotenv files from the working directory if present.
// Variables already set in the process environment are left untouched.
func LoadEnvFiles() error {
	for _, name := range envFiles {
		if err := godotenv.Load(name); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load env file %s: %w", name, err)
		}
	}
	return nil
}

// Load loads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	// Substitute environment variables
	configData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(configData), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	return &config, nil
}

// FindConfigFile searches for configuration file in common locations
func FindConfigFile() (string, error) {
	locations := []string{
		"./config.yaml",
		"./config.yml",
		"~/.config/gas-dashboard/config.yaml",
		"~/.config/gas-dashboard/config.yml",
	}

	for _, location := range locations {
		if strings.HasPrefix(location, "~/") {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				continue
			}
			location = strings.Replace(location, "~", homeDir, 1)
		}

		if _, err := os.Stat(location); err == nil {
			return location, nil
		}
	}

	return "", fmt.Errorf("no configuration file found in any of these locations: %v", locations)
}

// ApplyEnv overlays well-known environment variables onto the configuration.
// getenv is usually os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("CRON_SECRET"); v != "" {
		c.Cron.Secret = v
	}

	if v := getenv("APP_BASE_URL"); v != "" {
		c.Cron.BaseURL = v
	} else if v := getenv("NEXT_PUBLIC_APP_URL"); v != "" {
		c.Cron.BaseURL = v
	}

	if v := getenv("VERCEL_URL"); v != "" {
		c.Cron.PlatformHost = v
	}

	if v := getenv("GOOGLE_APPLICATION_CREDENTIALS"); v != "" && c.Google.ServiceAccountKeyPath == "" {
		c.Google.ServiceAccountKeyPath = v
	}
}

// SetDefaults sets default values for configuration
func (c *Config) SetDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}

	if c.Cron.MaxDurationSeconds == 0 {
		c.Cron.MaxDurationSeconds = defaultMaxDurationSeconds
	}

	if c.Sync.MaxScripts == 0 {
		c.Sync.MaxScripts = 500
	}

	if c.Sync.ExecutionPageSize == 0 {
		c.Sync.ExecutionPageSize = 50
	}

	if c.Sync.ExecutionPages == 0 {
		c.Sync.ExecutionPages = 1
	}

	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}

	if c.Server.Schedule == "" {
		c.Server.Schedule = "0 */6 * * *" // Every 6 hours by default
	}
}

// ResolveBaseURL returns the address of the downstream sync services:
// the configured base URL, then the platform host over https, then DefaultBaseURL.
func (c *Config) ResolveBaseURL() string {
	if c.Cron.BaseURL != "" {
		return strings.TrimSuffix(c.Cron.BaseURL, "/")
	}
	if c.Cron.PlatformHost != "" {
		return "https://" + strings.TrimSuffix(c.Cron.PlatformHost, "/")
	}
	return DefaultBaseURL
}

// MaxDuration returns the wall-clock ceiling for one cron sync run
func (c *Config) MaxDuration() time.Duration {
	if c.Cron.MaxDurationSeconds <= 0 {
		return defaultMaxDurationSeconds * time.Second
	}
	return time.Duration(c.Cron.MaxDurationSeconds) * time.Second
}

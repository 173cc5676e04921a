package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/robfig/cron/v3"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidationErrors represents multiple validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var messages []string
	for _, err := range e {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// ValidateOptions provides options for validation
type ValidateOptions struct {
	SkipGoogle bool // Skip Google credential checks (cron-sync only talks to the HTTP routes)
}

// Validate validates the configuration and returns any errors
func (c *Config) Validate() error {
	return c.ValidateWithOptions(ValidateOptions{})
}

// ValidateWithOptions validates the configuration with custom options
func (c *Config) ValidateWithOptions(opts ValidateOptions) error {
	var errors ValidationErrors

	// Validate App config
	if c.App.LogLevel != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		if !contains(validLevels, c.App.LogLevel) {
			errors = append(errors, ValidationError{
				Field:   "app.log_level",
				Message: fmt.Sprintf("must be one of: %v", validLevels),
			})
		}
	}

	// Validate Google config (skipped when only the HTTP routes are used)
	if !opts.SkipGoogle {
		if c.Google.ServiceAccountKeyPath == "" {
			errors = append(errors, ValidationError{
				Field:   "google.service_account_key_path",
				Message: "service account key path is required",
			})
		} else if _, err := os.Stat(c.Google.ServiceAccountKeyPath); os.IsNotExist(err) {
			errors = append(errors, ValidationError{
				Field:   "google.service_account_key_path",
				Message: fmt.Sprintf("service account key file not found: %s", c.Google.ServiceAccountKeyPath),
			})
		}

		if c.Google.DelegatedUser != "" && !strings.Contains(c.Google.DelegatedUser, "@") {
			errors = append(errors, ValidationError{
				Field:   "google.delegated_user",
				Message: fmt.Sprintf("invalid email format: %s", c.Google.DelegatedUser),
			})
		}
	}

	// Validate Cron config
	if c.Cron.BaseURL != "" {
		u, err := url.Parse(c.Cron.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, ValidationError{
				Field:   "cron.base_url",
				Message: fmt.Sprintf("must be an absolute URL: %s", c.Cron.BaseURL),
			})
		}
	}

	if c.Cron.MaxDurationSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "cron.max_duration_seconds",
			Message: "max duration must be non-negative",
		})
	}

	// Validate Sync config
	if c.Sync.MaxScripts < 0 {
		errors = append(errors, ValidationError{
			Field:   "sync.max_scripts",
			Message: "max scripts must be non-negative",
		})
	}

	if c.Sync.ExecutionPageSize < 0 || c.Sync.ExecutionPageSize > 200 {
		errors = append(errors, ValidationError{
			Field:   "sync.execution_page_size",
			Message: "execution page size must be between 0 and 200",
		})
	}

	if c.Sync.ExecutionPages < 0 {
		errors = append(errors, ValidationError{
			Field:   "sync.execution_pages",
			Message: "execution pages must be non-negative",
		})
	}

	// Validate Server config
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "server.port",
			Message: "port must be between 1 and 65535",
		})
	}

	if c.Server.ScheduleEnabled {
		if c.Server.Schedule == "" {
			errors = append(errors, ValidationError{
				Field:   "server.schedule",
				Message: "schedule must be provided when schedule_enabled is true",
			})
		} else if _, err := cron.ParseStandard(c.Server.Schedule); err != nil {
			errors = append(errors, ValidationError{
				Field:   "server.schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}

	if len(errors) > 0 {
		return errors
	}

	return nil
}

// contains checks if a slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		App: AppConfig{
			LogLevel: "info",
		},
		Google: GoogleConfig{
			ServiceAccountKeyPath: "/tmp/test.json",
			DelegatedUser:         "admin@test.com",
		},
		Cron: CronConfig{
			BaseURL: "https://dashboard.test.com",
		},
		Server: ServerConfig{
			Port: 8080,
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		config      func() *Config
		expectError bool
		errorFields []string // Expected field names in error
	}{
		{
			name:        "valid config",
			config:      validConfig,
			expectError: false,
		},
		{
			name: "missing required fields",
			config: func() *Config {
				return &Config{App: AppConfig{LogLevel: "info"}}
			},
			expectError: true,
			errorFields: []string{
				"google.service_account_key_path",
				"server.port",
			},
		},
		{
			name: "invalid log level",
			config: func() *Config {
				c := validConfig()
				c.App.LogLevel = "invalid"
				return c
			},
			expectError: true,
			errorFields: []string{"app.log_level"},
		},
		{
			name: "invalid delegated user",
			config: func() *Config {
				c := validConfig()
				c.Google.DelegatedUser = "not-an-email"
				return c
			},
			expectError: true,
			errorFields: []string{"google.delegated_user"},
		},
		{
			name: "relative base URL",
			config: func() *Config {
				c := validConfig()
				c.Cron.BaseURL = "/api"
				return c
			},
			expectError: true,
			errorFields: []string{"cron.base_url"},
		},
		{
			name: "negative limits",
			config: func() *Config {
				c := validConfig()
				c.Cron.MaxDurationSeconds = -1
				c.Sync.MaxScripts = -1
				c.Sync.ExecutionPages = -1
				c.Sync.ExecutionPageSize = 500
				return c
			},
			expectError: true,
			errorFields: []string{
				"cron.max_duration_seconds",
				"sync.max_scripts",
				"sync.execution_pages",
				"sync.execution_page_size",
			},
		},
		{
			name: "schedule enabled without schedule",
			config: func() *Config {
				c := validConfig()
				c.Server.ScheduleEnabled = true
				return c
			},
			expectError: true,
			errorFields: []string{"server.schedule"},
		},
		{
			name: "invalid cron expression",
			config: func() *Config {
				c := validConfig()
				c.Server.ScheduleEnabled = true
				c.Server.Schedule = "every six hours"
				return c
			},
			expectError: true,
			errorFields: []string{"server.schedule"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := tt.config()

			// Point the key path at a real file so only the intended fields fail
			if config.Google.ServiceAccountKeyPath != "" {
				serviceAccountPath := filepath.Join(t.TempDir(), "test.json")
				err := os.WriteFile(serviceAccountPath, []byte(`{"type": "service_account"}`), 0644)
				if err != nil {
					t.Fatalf("Failed to create test service account file: %v", err)
				}
				config.Google.ServiceAccountKeyPath = serviceAccountPath
			}

			err := config.Validate()

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected validation error, got nil")
					return
				}

				errorStr := err.Error()
				for _, field := range tt.errorFields {
					if !containsField(errorStr, field) {
						t.Errorf("Expected error to mention field '%s', but error was: %s", field, errorStr)
					}
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected validation error: %v", err)
				}
			}
		})
	}
}

func TestValidate_MissingKeyFile(t *testing.T) {
	config := validConfig()
	config.Google.ServiceAccountKeyPath = filepath.Join(t.TempDir(), "missing.json")

	err := config.Validate()
	if err == nil {
		t.Fatal("Expected validation error for missing key file")
	}
	if !containsField(err.Error(), "service account key file not found") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestValidateWithOptions(t *testing.T) {
	tests := []struct {
		name        string
		options     ValidateOptions
		expectError bool
	}{
		{
			name:        "skip Google validation",
			options:     ValidateOptions{SkipGoogle: true},
			expectError: false,
		},
		{
			name:        "do not skip Google validation",
			options:     ValidateOptions{SkipGoogle: false},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			config.Google = GoogleConfig{}

			err := config.ValidateWithOptions(tt.options)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected validation error, got nil")
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected validation error: %v", err)
				}
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	err := ValidationError{
		Field:   "test.field",
		Message: "test message",
	}

	expected := "validation error for field 'test.field': test message"
	if err.Error() != expected {
		t.Errorf("Expected error string '%s', got '%s'", expected, err.Error())
	}
}

func TestValidationErrors(t *testing.T) {
	errors := ValidationErrors{
		ValidationError{Field: "field1", Message: "message1"},
		ValidationError{Field: "field2", Message: "message2"},
	}

	expected := "validation error for field 'field1': message1; validation error for field 'field2': message2"
	if errors.Error() != expected {
		t.Errorf("Expected error string '%s', got '%s'", expected, errors.Error())
	}
}

// Helper function to check if an error string contains a field name
func containsField(errorStr string, field string) bool {
	return strings.Contains(errorStr, field)
}

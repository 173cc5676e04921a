package setup

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gobeyondidentity/gas-dashboard/internal/config"
	"github.com/gobeyondidentity/gas-dashboard/internal/google"
	"google.golang.org/api/googleapi"
)

// Mock script lister for testing
type mockLister struct {
	scripts []*google.ScriptFile
	err     error
	limit   int
}

func (m *mockLister) ListScripts(ctx context.Context, limit int) ([]*google.ScriptFile, error) {
	m.limit = limit
	return m.scripts, m.err
}

func writeKeyFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "service-account.json")
	if err := os.WriteFile(path, []byte(`{"type": "service_account"}`), 0644); err != nil {
		t.Fatalf("Failed to create test service account file: %v", err)
	}
	return path
}

func newTestValidator(cfg *config.Config, lister ScriptLister, listerErr error) (*Validator, *bytes.Buffer) {
	var out bytes.Buffer
	v := NewValidator(cfg)
	v.out = &out
	v.newLister = func(ctx context.Context) (ScriptLister, error) {
		if listerErr != nil {
			return nil, listerErr
		}
		return lister, nil
	}
	return v, &out
}

func TestNewValidator(t *testing.T) {
	cfg := &config.Config{}
	validator := NewValidator(cfg)

	if validator == nil {
		t.Error("Expected validator to be created, got nil")
		return
	}

	if validator.config != cfg {
		t.Error("Expected validator config to match input config")
	}

	if validator.logger == nil {
		t.Error("Expected logger to be initialized")
	}
}

func TestValidateConfiguration(t *testing.T) {
	tests := []struct {
		name         string
		config       *config.Config
		withKeyFile  bool
		expectStatus string
	}{
		{
			name: "valid configuration",
			config: &config.Config{
				App:    config.AppConfig{LogLevel: "info"},
				Google: config.GoogleConfig{DelegatedUser: "admin@example.com"},
				Server: config.ServerConfig{Port: 8080},
			},
			withKeyFile:  true,
			expectStatus: "PASS",
		},
		{
			name: "invalid configuration",
			config: &config.Config{
				App: config.AppConfig{LogLevel: "invalid"},
			},
			expectStatus: "FAIL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.withKeyFile {
				tt.config.Google.ServiceAccountKeyPath = writeKeyFile(t)
			}

			validator, _ := newTestValidator(tt.config, nil, nil)
			result := validator.validateConfiguration()

			if result.Status != tt.expectStatus {
				t.Errorf("Expected status %s, got %s (%s)", tt.expectStatus, result.Status, result.Details)
			}

			if result.Component != "Configuration" {
				t.Errorf("Expected component 'Configuration', got %s", result.Component)
			}
		})
	}
}

func TestValidateEnvironment(t *testing.T) {
	tests := []struct {
		name          string
		keyPath       string
		withKeyFile   bool
		secret        string
		expectStatus  string
		expectDetails string
	}{
		{
			name:          "secret configured",
			withKeyFile:   true,
			secret:        "abc123",
			expectStatus:  "PASS",
			expectDetails: "secret required",
		},
		{
			name:          "open auth",
			withKeyFile:   true,
			expectStatus:  "PASS",
			expectDetails: "open",
		},
		{
			name:         "missing key path",
			expectStatus: "FAIL",
		},
		{
			name:         "missing service account file",
			keyPath:      "nonexistent.json",
			expectStatus: "FAIL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				Google: config.GoogleConfig{ServiceAccountKeyPath: tt.keyPath},
				Cron:   config.CronConfig{Secret: tt.secret},
			}
			if tt.withKeyFile {
				cfg.Google.ServiceAccountKeyPath = writeKeyFile(t)
			}

			validator, _ := newTestValidator(cfg, nil, nil)
			result := validator.validateEnvironment()

			if result.Status != tt.expectStatus {
				t.Errorf("Expected status %s, got %s", tt.expectStatus, result.Status)
			}

			if result.Component != "Environment" {
				t.Errorf("Expected component 'Environment', got %s", result.Component)
			}

			if !strings.Contains(result.Details, tt.expectDetails) {
				t.Errorf("Expected details to contain %q, got %q", tt.expectDetails, result.Details)
			}
		})
	}
}

func TestValidateGoogle(t *testing.T) {
	tests := []struct {
		name          string
		lister        *mockLister
		listerErr     error
		expectStatus  string
		expectMessage string
	}{
		{
			name:          "scripts listed",
			lister:        &mockLister{scripts: []*google.ScriptFile{{ID: "s1"}}},
			expectStatus:  "PASS",
			expectMessage: "Google APIs are accessible",
		},
		{
			name:          "client creation fails",
			listerErr:     errors.New("bad key"),
			expectStatus:  "FAIL",
			expectMessage: "Failed to create Google client",
		},
		{
			name:          "permission denied",
			lister:        &mockLister{err: &googleapi.Error{Code: http.StatusForbidden}},
			expectStatus:  "FAIL",
			expectMessage: "Permission denied; check domain-wide delegation scopes",
		},
		{
			name:          "listing fails",
			lister:        &mockLister{err: errors.New("boom")},
			expectStatus:  "FAIL",
			expectMessage: "Failed to list Apps Script projects",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{Google: config.GoogleConfig{DelegatedUser: "admin@example.com"}}

			var lister ScriptLister
			if tt.lister != nil {
				lister = tt.lister
			}
			validator, _ := newTestValidator(cfg, lister, tt.listerErr)
			result := validator.validateGoogle(context.Background())

			if result.Status != tt.expectStatus {
				t.Errorf("Expected status %s, got %s", tt.expectStatus, result.Status)
			}

			if result.Message != tt.expectMessage {
				t.Errorf("Expected message %q, got %q", tt.expectMessage, result.Message)
			}

			if tt.lister != nil && tt.lister.limit != 1 {
				t.Errorf("Expected listing limit 1, got %d", tt.lister.limit)
			}
		})
	}
}

func TestValidateBaseURL(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		expectStatus string
	}{
		{"healthy", http.StatusOK, "PASS"},
		{"not found still reachable", http.StatusNotFound, "PASS"},
		{"server error", http.StatusBadGateway, "FAIL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			cfg := &config.Config{Cron: config.CronConfig{BaseURL: srv.URL}}
			validator, _ := newTestValidator(cfg, nil, nil)
			result := validator.validateBaseURL(context.Background())

			if result.Status != tt.expectStatus {
				t.Errorf("Expected status %s, got %s (%s)", tt.expectStatus, result.Status, result.Details)
			}
		})
	}
}

func TestValidateBaseURL_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	cfg := &config.Config{Cron: config.CronConfig{BaseURL: url}}
	validator, _ := newTestValidator(cfg, nil, nil)
	result := validator.validateBaseURL(context.Background())

	if result.Status != "FAIL" {
		t.Errorf("Expected status FAIL, got %s", result.Status)
	}
}

func TestValidateSetup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := &config.Config{
		Google: config.GoogleConfig{ServiceAccountKeyPath: writeKeyFile(t), DelegatedUser: "admin@example.com"},
		Cron:   config.CronConfig{BaseURL: srv.URL, Secret: "abc123"},
	}
	cfg.SetDefaults()

	validator, out := newTestValidator(cfg, &mockLister{}, nil)
	summary, err := validator.ValidateSetup(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if summary.OverallStatus != "PASS" {
		t.Errorf("Expected overall status PASS, got %s: %s", summary.OverallStatus, out.String())
	}
	if summary.TotalChecks != 4 {
		t.Errorf("Expected 4 checks, got %d", summary.TotalChecks)
	}
	if !strings.Contains(out.String(), "All checks passed") {
		t.Errorf("Expected success banner in output, got %s", out.String())
	}
}

func TestValidateSetup_ReportsFailures(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{LogLevel: "invalid"}, Cron: config.CronConfig{BaseURL: "http://127.0.0.1:1"}}

	validator, out := newTestValidator(cfg, nil, errors.New("no credentials"))
	summary, _ := validator.ValidateSetup(context.Background())

	if summary.OverallStatus != "FAIL" {
		t.Errorf("Expected overall status FAIL, got %s", summary.OverallStatus)
	}
	if summary.Passed+summary.Failed != summary.TotalChecks {
		t.Errorf("Expected passed+failed to equal total, got %d+%d != %d", summary.Passed, summary.Failed, summary.TotalChecks)
	}
	if !strings.Contains(out.String(), "Failed Checks") {
		t.Errorf("Expected failed checks in output, got %s", out.String())
	}
}

func TestAddResult(t *testing.T) {
	validator := NewValidator(&config.Config{})
	summary := &ValidationSummary{
		Results: make([]*ValidationResult, 0),
	}

	result := &ValidationResult{
		Component: "Test",
		Status:    "PASS",
		Duration:  100 * time.Millisecond,
	}

	validator.addResult(summary, result)

	if len(summary.Results) != 1 {
		t.Errorf("Expected 1 result after adding, got %d", len(summary.Results))
	}

	if summary.Results[0] != result {
		t.Error("Expected added result to match input result")
	}
}

package setup

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/carlmjohnson/requests"
	"github.com/gobeyondidentity/gas-dashboard/internal/config"
	"github.com/gobeyondidentity/gas-dashboard/internal/cronsync"
	"github.com/gobeyondidentity/gas-dashboard/internal/google"
	"github.com/sirupsen/logrus"
)

// ScriptLister lists Apps Script projects; satisfied by *google.Client
type ScriptLister interface {
	ListScripts(ctx context.Context, limit int) ([]*google.ScriptFile, error)
}

// Validator handles setup validation and connectivity testing
type Validator struct {
	config     *config.Config
	logger     *logrus.Logger
	out        io.Writer
	httpClient *http.Client
	newLister  func(ctx context.Context) (ScriptLister, error)
}

// ValidationResult represents the result of a validation check
type ValidationResult struct {
	Component string        `json:"component"`
	Status    string        `json:"status"`
	Message   string        `json:"message"`
	Details   string        `json:"details,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// ValidationSummary contains overall validation results
type ValidationSummary struct {
	OverallStatus string              `json:"overall_status"`
	TotalChecks   int                 `json:"total_checks"`
	Passed        int                 `json:"passed"`
	Failed        int                 `json:"failed"`
	Results       []*ValidationResult `json:"results"`
	Duration      time.Duration       `json:"duration"`
}

// NewValidator creates a new setup validator
func NewValidator(cfg *config.Config) *Validator {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel) // Only show errors during validation

	return &Validator{
		config:     cfg,
		logger:     logger,
		out:        os.Stdout,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		newLister: func(ctx context.Context) (ScriptLister, error) {
			return google.NewClient(ctx, cfg.Google.ServiceAccountKeyPath, cfg.Google.DelegatedUser)
		},
	}
}

// ValidateSetup performs comprehensive setup validation
func (v *Validator) ValidateSetup(ctx context.Context) (*ValidationSummary, error) {
	startTime := time.Now()

	fmt.Fprintln(v.out, "🔍 Validating Apps Script dashboard setup")
	fmt.Fprintln(v.out, "═════════════════════════════════════════")
	fmt.Fprintln(v.out)

	summary := &ValidationSummary{
		Results: make([]*ValidationResult, 0),
	}

	v.addResult(summary, v.validateConfiguration())
	v.addResult(summary, v.validateEnvironment())
	v.addResult(summary, v.validateGoogle(ctx))
	v.addResult(summary, v.validateBaseURL(ctx))

	summary.Duration = time.Since(startTime)
	summary.TotalChecks = len(summary.Results)

	for _, result := range summary.Results {
		if result.Status == "PASS" {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}

	if summary.Failed == 0 {
		summary.OverallStatus = "PASS"
	} else {
		summary.OverallStatus = "FAIL"
	}

	v.printSummary(summary)

	return summary, nil
}

// validateConfiguration validates the configuration structure
func (v *Validator) validateConfiguration() *ValidationResult {
	fmt.Fprint(v.out, "📋 Configuration validation... ")
	start := time.Now()

	if err := v.config.Validate(); err != nil {
		return v.fail("Configuration", "Configuration validation failed", err.Error(), start)
	}

	return v.pass("Configuration", "Configuration is valid", "", start)
}

// validateEnvironment validates the cron secret and credential file
func (v *Validator) validateEnvironment() *ValidationResult {
	fmt.Fprint(v.out, "🌍 Environment validation... ")
	start := time.Now()

	var issues []string

	keyPath := v.config.Google.ServiceAccountKeyPath
	if keyPath == "" {
		issues = append(issues, "Service account key path not set (google.service_account_key_path or GOOGLE_APPLICATION_CREDENTIALS)")
	} else if _, err := os.Stat(keyPath); os.IsNotExist(err) {
		issues = append(issues, fmt.Sprintf("Service account file not found: %s", keyPath))
	}

	if len(issues) > 0 {
		return v.fail("Environment", "Environment setup issues found", fmt.Sprintf("Issues: %v", issues), start)
	}

	details := "Cron auth: secret required"
	if cronsync.AuthFromSecret(v.config.Cron.Secret).IsOpen() {
		// Open auth is allowed, but worth surfacing
		details = "Cron auth: open (CRON_SECRET not set, any caller may trigger a sync)"
	}
	return v.pass("Environment", "Environment is properly configured", details, start)
}

// validateGoogle lists one script to prove the delegated credentials work
func (v *Validator) validateGoogle(ctx context.Context) *ValidationResult {
	fmt.Fprint(v.out, "🔵 Google Drive / Apps Script connectivity... ")
	start := time.Now()

	lister, err := v.newLister(ctx)
	if err != nil {
		return v.fail("Google", "Failed to create Google client", err.Error(), start)
	}

	scripts, err := lister.ListScripts(ctx, 1)
	if err != nil {
		message := "Failed to list Apps Script projects"
		if google.IsPermissionDenied(err) {
			message = "Permission denied; check domain-wide delegation scopes"
		}
		return v.fail("Google", message, err.Error(), start)
	}

	details := fmt.Sprintf("Delegated user: %s", v.config.Google.DelegatedUser)
	if len(scripts) == 0 {
		details += " (no scripts visible yet)"
	}
	return v.pass("Google", "Google APIs are accessible", details, start)
}

// validateBaseURL checks that the sync routes' host answers
func (v *Validator) validateBaseURL(ctx context.Context) *ValidationResult {
	fmt.Fprint(v.out, "🟢 Sync base URL reachability... ")
	start := time.Now()

	baseURL := v.config.ResolveBaseURL()

	var status int
	err := requests.
		URL(baseURL).
		Client(v.httpClient).
		AddValidator(func(res *http.Response) error {
			status = res.StatusCode
			return nil
		}).
		Fetch(ctx)
	if err != nil {
		return v.fail("Base URL", "Failed to reach sync base URL", fmt.Sprintf("%s: %v", baseURL, err), start)
	}

	if status >= http.StatusInternalServerError {
		return v.fail("Base URL", "Sync base URL returned a server error", fmt.Sprintf("%s: HTTP %d", baseURL, status), start)
	}

	return v.pass("Base URL", "Sync base URL is reachable", fmt.Sprintf("Endpoint: %s (HTTP %d)", baseURL, status), start)
}

func (v *Validator) pass(component, message, details string, start time.Time) *ValidationResult {
	fmt.Fprintln(v.out, "✅ PASS")
	return &ValidationResult{
		Component: component,
		Status:    "PASS",
		Message:   message,
		Details:   details,
		Duration:  time.Since(start),
	}
}

func (v *Validator) fail(component, message, details string, start time.Time) *ValidationResult {
	fmt.Fprintln(v.out, "❌ FAIL")
	v.logger.Errorf("%s check failed: %s", component, details)
	return &ValidationResult{
		Component: component,
		Status:    "FAIL",
		Message:   message,
		Details:   details,
		Duration:  time.Since(start),
	}
}

// addResult adds a validation result to the summary
func (v *Validator) addResult(summary *ValidationSummary, result *ValidationResult) {
	summary.Results = append(summary.Results, result)
}

// printSummary prints the validation summary
func (v *Validator) printSummary(summary *ValidationSummary) {
	fmt.Fprintln(v.out)
	fmt.Fprintln(v.out, "📊 Validation Summary")
	fmt.Fprintln(v.out, "════════════════════")

	if summary.OverallStatus == "PASS" {
		fmt.Fprintf(v.out, "✅ Overall Status: %s\n", summary.OverallStatus)
	} else {
		fmt.Fprintf(v.out, "❌ Overall Status: %s\n", summary.OverallStatus)
	}

	fmt.Fprintf(v.out, "📈 Results: %d passed, %d failed (total: %d)\n",
		summary.Passed, summary.Failed, summary.TotalChecks)
	fmt.Fprintf(v.out, "⏱️  Duration: %v\n", summary.Duration.Round(time.Millisecond))

	if summary.Failed > 0 {
		fmt.Fprintln(v.out)
		fmt.Fprintln(v.out, "❌ Failed Checks:")
		for _, result := range summary.Results {
			if result.Status == "FAIL" {
				fmt.Fprintf(v.out, "   • %s: %s\n", result.Component, result.Message)
				if result.Details != "" {
					fmt.Fprintf(v.out, "     Details: %s\n", result.Details)
				}
			}
		}

		fmt.Fprintln(v.out)
		fmt.Fprintln(v.out, "💡 Next Steps:")
		fmt.Fprintln(v.out, "   1. Fix the issues listed above")
		fmt.Fprintln(v.out, "   2. Run validation again: ./gas-dashboard setup validate")
	} else {
		fmt.Fprintln(v.out)
		fmt.Fprintln(v.out, "🎉 All checks passed! Your setup is ready.")
		fmt.Fprintln(v.out, "💡 Next Steps:")
		fmt.Fprintln(v.out, "   1. Start server mode: ./gas-dashboard server")
		fmt.Fprintln(v.out, "   2. Trigger a sync: ./gas-dashboard cron-sync")
		fmt.Fprintln(v.out, "   3. Check the health endpoint: curl http://localhost:3000/health")
	}
}

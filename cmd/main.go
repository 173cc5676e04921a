package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gobeyondidentity/gas-dashboard/internal/config"
	"github.com/gobeyondidentity/gas-dashboard/internal/cronsync"
	"github.com/gobeyondidentity/gas-dashboard/internal/logger"
	"github.com/gobeyondidentity/gas-dashboard/internal/server"
	"github.com/gobeyondidentity/gas-dashboard/internal/setup"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gas-dashboard",
	Short: "Apps Script dashboard sync server",
	Long: `Backend for a dashboard monitoring Google Apps Script projects.

This application supports two modes:
- Server mode: HTTP API with the cron sync route, the content and execution-log
  sync services, dashboard read routes and optional in-process scheduling
- One-shot mode: trigger a single cron sync against a running server and exit`,
}

// cronSyncCmd represents the cron-sync command
var cronSyncCmd = &cobra.Command{
	Use:   "cron-sync",
	Short: "Run one cron sync against the configured base URL",
	Long: `Run the cron sync orchestration once: content sync, then execution-log sync,
against the sync services at the configured base URL. Prints the aggregate report.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCronSync()
	},
}

// validateConfigCmd represents the validate-config command
var validateConfigCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Validate configuration file",
	Long:  `Validate the configuration file for syntax and required fields.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateConfig()
	},
}

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run in server mode with HTTP API and optional scheduling",
	Long: `Run the application in server mode. This serves the cron sync route, the sync services,
the dashboard read routes, health checks and metrics. If scheduling is enabled in configuration,
cron syncs run automatically according to the specified cron schedule.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

// setupCmd represents the setup command
var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Setup helpers",
	Long:  `Helpers for first-time configuration of the dashboard server.`,
}

// setupValidateCmd represents the setup validate subcommand
var setupValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current setup and connectivity",
	Long:  `Validate configuration, environment, Google API access and reachability of the sync base URL.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetupValidation(cmd.Context())
	},
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print version information for gas-dashboard.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gas-dashboard version %s\n", server.Version)
		fmt.Println("Built with Go")
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	setupCmd.AddCommand(setupValidateCmd)

	rootCmd.AddCommand(cronSyncCmd)
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(validateConfigCmd)
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads .env files, the config file and environment overrides
func initConfig() {
	if err := config.LoadEnvFiles(); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading env files: %v\n", err)
		os.Exit(1)
	}

	var err error
	if cfgFile == "" {
		cfgFile, err = config.FindConfigFile()
	}

	if err != nil {
		// No config file: environment variables alone may be enough
		cfg = &config.Config{}
	} else if cfg, err = config.Load(cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	cfg.ApplyEnv(os.Getenv)
	cfg.SetDefaults()
}

// runCronSync runs the orchestrator once and prints its report
func runCronSync() error {
	if err := cfg.ValidateWithOptions(config.ValidateOptions{SkipGoogle: true}); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	log := logger.Setup(cfg.App.LogLevel, cfg.App.LogFile, cfg.App.TestMode)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	downstream := cronsync.NewHTTPClient(cfg.ResolveBaseURL(), cfg.Cron.Secret, cfg.MaxDuration())
	log.Infof("Running one cron sync against %s", downstream.BaseURL())
	orchestrator := cronsync.NewOrchestrator(downstream, cronsync.AuthFromSecret(cfg.Cron.Secret), cfg.MaxDuration(), log)

	outcome := orchestrator.Run(ctx)

	report, err := json.MarshalIndent(outcome.Report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	fmt.Println(string(report))

	if !outcome.Succeeded() {
		return fmt.Errorf("cron sync failed with status %d: %w", outcome.Status, outcome.Err)
	}
	return nil
}

// validateConfig validates the configuration file
func validateConfig() error {
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation failed:\n%v\n", err)
		return err
	}

	authMode := "secret"
	if cronsync.AuthFromSecret(cfg.Cron.Secret).IsOpen() {
		authMode = "open"
	}

	fmt.Printf("✅ Configuration file '%s' is valid\n", cfgFile)
	fmt.Printf("   - Delegated user: %s\n", cfg.Google.DelegatedUser)
	fmt.Printf("   - Sync base URL: %s\n", cfg.ResolveBaseURL())
	fmt.Printf("   - Cron auth: %s\n", authMode)
	fmt.Printf("   - Max sync duration: %v\n", cfg.MaxDuration())
	fmt.Printf("   - Test mode: %t\n", cfg.App.TestMode)
	fmt.Printf("   - Log level: %s\n", cfg.App.LogLevel)

	return nil
}

// runServer executes server mode
func runServer() error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	log := logger.Setup(cfg.App.LogLevel, cfg.App.LogFile, cfg.App.TestMode)
	logger.LogSchedule(log, cfg.Server.ScheduleEnabled, cfg.Server.Schedule, cfg.ResolveBaseURL())

	srv, err := server.NewServer(cfg, log)
	if err != nil {
		log.Errorf("Failed to create server: %v", err)
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}

// runSetupValidation executes setup validation
func runSetupValidation(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	validator := setup.NewValidator(cfg)
	summary, err := validator.ValidateSetup(ctx)
	if err != nil {
		return err
	}

	// Exit with error code if validation failed
	if summary.OverallStatus != "PASS" {
		os.Exit(1)
	}

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

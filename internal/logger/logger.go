package logger

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LineFormatter formats log entries as single human-readable lines
type LineFormatter struct{}

// Format renders an entry as: 2025-05-30 12:21:53,426 - INFO - Starting sync process
// Fields are appended as key=value pairs.
func (f *LineFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	timestamp := entry.Time.Format("2006-01-02 15:04:05,000")

	var level string
	switch entry.Level {
	case logrus.DebugLevel, logrus.TraceLevel:
		level = "DEBUG"
	case logrus.InfoLevel:
		level = "INFO"
	case logrus.WarnLevel:
		level = "WARNING"
	case logrus.ErrorLevel:
		level = "ERROR"
	default:
		level = "CRITICAL"
	}

	formatted := fmt.Sprintf("%s - %s - %s", timestamp, level, entry.Message)
	for _, key := range sortedKeys(entry.Data) {
		formatted += fmt.Sprintf(" %s=%v", key, entry.Data[key])
	}
	return []byte(formatted + "\n"), nil
}

// Setup configures the logger. When logFile is set, output is mirrored to a
// rotating file next to stdout.
func Setup(logLevel, logFile string, testMode bool) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	logger.SetFormatter(&LineFormatter{})
	logger.SetOutput(output(logFile))

	logger.Info("Starting Apps Script dashboard sync server")

	if testMode {
		logger.Info("TEST MODE ENABLED - synced data will not be stored")
	}

	return logger
}

// Discard returns a logger that drops everything, for tests and quiet commands
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func output(logFile string) io.Writer {
	if logFile == "" {
		return os.Stdout
	}
	return io.MultiWriter(os.Stdout, &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	})
}

// LogSchedule logs how the sync schedule is configured
func LogSchedule(logger *logrus.Logger, enabled bool, schedule, baseURL string) {
	if enabled {
		logger.Infof("Scheduled cron sync enabled with schedule: %s", schedule)
	} else {
		logger.Info("Scheduling disabled - cron sync runs only when triggered")
	}
	logger.Infof("Downstream sync services addressed at %s", baseURL)
}

func sortedKeys(fields logrus.Fields) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

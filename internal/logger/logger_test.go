package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestLineFormatter(t *testing.T) {
	tests := []struct {
		name     string
		level    logrus.Level
		fields   logrus.Fields
		expected string
	}{
		{"info", logrus.InfoLevel, nil, "2025-05-30 12:21:53,426 - INFO - hello\n"},
		{"warn", logrus.WarnLevel, nil, "2025-05-30 12:21:53,426 - WARNING - hello\n"},
		{"error", logrus.ErrorLevel, nil, "2025-05-30 12:21:53,426 - ERROR - hello\n"},
		{"fatal", logrus.FatalLevel, nil, "2025-05-30 12:21:53,426 - CRITICAL - hello\n"},
		{"fields sorted", logrus.DebugLevel, logrus.Fields{"step": "content", "run_id": "r1"}, "2025-05-30 12:21:53,426 - DEBUG - hello run_id=r1 step=content\n"},
	}

	ts := time.Date(2025, 5, 30, 12, 21, 53, 426000000, time.UTC)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &logrus.Entry{
				Time:    ts,
				Level:   tt.level,
				Message: "hello",
				Data:    tt.fields,
			}

			out, err := (&LineFormatter{}).Format(entry)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if string(out) != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, string(out))
			}
		})
	}
}

func TestSetup_InvalidLevelFallsBackToInfo(t *testing.T) {
	log := Setup("nonsense", "", false)
	if log.GetLevel() != logrus.InfoLevel {
		t.Errorf("Expected info level, got %s", log.GetLevel())
	}
}

func TestSetup_WritesLogFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "dashboard.log")

	log := Setup("debug", logFile, true)
	log.Debug("written to file")

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "TEST MODE ENABLED") {
		t.Errorf("Expected test mode banner in log file, got %q", string(data))
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("Expected debug line in log file, got %q", string(data))
	}
}

func TestLogSchedule(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&LineFormatter{})

	LogSchedule(log, true, "0 */6 * * *", "http://localhost:3000")

	out := buf.String()
	if !strings.Contains(out, "0 */6 * * *") {
		t.Errorf("Expected schedule in output, got %q", out)
	}
	if !strings.Contains(out, "http://localhost:3000") {
		t.Errorf("Expected base URL in output, got %q", out)
	}
}

package server

import (
	"sync"
	"time"

	"github.com/gobeyondidentity/gas-dashboard/internal/cronsync"
)

// Metrics collects and tracks cron sync run metrics
type Metrics struct {
	mu                     sync.RWMutex
	totalRuns              int
	successfulRuns         int
	failedRuns             int
	executionSyncFailures  int
	lastRunDuration        time.Duration
	averageRunDuration     time.Duration
	lastRunTime            *time.Time
	lastStatus             int
	lastError              error
	lastExecutionSyncError error
	uptime                 time.Time
}

// MetricsStats represents the current metrics statistics
type MetricsStats struct {
	TotalRuns              int           `json:"total_runs"`
	SuccessfulRuns         int           `json:"successful_runs"`
	FailedRuns             int           `json:"failed_runs"`
	SuccessRate            float64       `json:"success_rate"`
	ExecutionSyncFailures  int           `json:"execution_sync_failures"`
	LastRunDuration        time.Duration `json:"last_run_duration"`
	AverageRunDuration     time.Duration `json:"average_run_duration"`
	LastRunTime            *time.Time    `json:"last_run_time"`
	LastStatus             int           `json:"last_status,omitempty"`
	LastError              string        `json:"last_error,omitempty"`
	LastExecutionSyncError string        `json:"last_execution_sync_error,omitempty"`
	Uptime                 time.Duration `json:"uptime"`
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		uptime: time.Now(),
	}
}

// ObserveRun records a finished cron sync run
func (m *Metrics) ObserveRun(outcome *cronsync.Outcome, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalRuns++
	if outcome.Succeeded() {
		m.successfulRuns++
		m.lastError = nil
	} else {
		m.failedRuns++
		m.lastError = outcome.Err
	}

	if outcome.ExecutionErr != nil {
		m.executionSyncFailures++
		m.lastExecutionSyncError = outcome.ExecutionErr
	}

	m.lastStatus = outcome.Status
	m.lastRunDuration = duration

	// Running average over all runs
	totalDuration := time.Duration(int64(m.averageRunDuration) * int64(m.totalRuns-1))
	m.averageRunDuration = (totalDuration + duration) / time.Duration(m.totalRuns)

	now := time.Now()
	m.lastRunTime = &now
}

// GetStats returns the current metrics statistics
func (m *Metrics) GetStats() *MetricsStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var successRate float64
	if m.totalRuns > 0 {
		successRate = float64(m.successfulRuns) / float64(m.totalRuns) * 100
	}

	stats := &MetricsStats{
		TotalRuns:             m.totalRuns,
		SuccessfulRuns:        m.successfulRuns,
		FailedRuns:            m.failedRuns,
		SuccessRate:           successRate,
		ExecutionSyncFailures: m.executionSyncFailures,
		LastRunDuration:       m.lastRunDuration,
		AverageRunDuration:    m.averageRunDuration,
		LastRunTime:           m.lastRunTime,
		LastStatus:            m.lastStatus,
		Uptime:                time.Since(m.uptime),
	}
	if m.lastError != nil {
		stats.LastError = m.lastError.Error()
	}
	if m.lastExecutionSyncError != nil {
		stats.LastExecutionSyncError = m.lastExecutionSyncError.Error()
	}
	return stats
}

// LastRunTime returns when the last run finished
func (m *Metrics) LastRunTime() *time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRunTime
}

// Reset resets all metrics
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalRuns = 0
	m.successfulRuns = 0
	m.failedRuns = 0
	m.executionSyncFailures = 0
	m.lastRunDuration = 0
	m.averageRunDuration = 0
	m.lastRunTime = nil
	m.lastStatus = 0
	m.lastError = nil
	m.lastExecutionSyncError = nil
	m.uptime = time.Now()
}

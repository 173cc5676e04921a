package server

import (
	"context"

	"github.com/gobeyondidentity/gas-dashboard/internal/catalog"
	"github.com/gobeyondidentity/gas-dashboard/internal/cronsync"
	"github.com/gobeyondidentity/gas-dashboard/internal/google"
	"github.com/gobeyondidentity/gas-dashboard/internal/sync"
)

// SyncEngine interface for content and execution-log sync operations
type SyncEngine interface {
	SyncContent(ctx context.Context) (*sync.ContentResult, error)
	SyncExecutions(ctx context.Context) (*sync.ExecutionResult, error)
	Catalog() *catalog.Catalog
}

// MetricsSource fetches live Apps Script usage metrics
type MetricsSource interface {
	GetMetrics(ctx context.Context, scriptID, granularity string) (*google.Metrics, error)
}

// CronRunner runs the cron sync
type CronRunner interface {
	Run(ctx context.Context) *cronsync.Outcome
	Auth() cronsync.AuthMode
}

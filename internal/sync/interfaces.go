package sync

import (
	"context"

	"github.com/gobeyondidentity/gas-dashboard/internal/google"
)

// GoogleClient interface for Drive and Apps Script operations
type GoogleClient interface {
	ListScripts(ctx context.Context, limit int) ([]*google.ScriptFile, error)
	GetProject(ctx context.Context, scriptID string) (*google.Project, error)
	GetContent(ctx context.Context, scriptID string) ([]*google.SourceFile, error)
	ListProcesses(ctx context.Context, scriptID string, pageSize, pages int) ([]*google.Process, error)
}

package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/gobeyondidentity/gas-dashboard/internal/catalog"
	"github.com/gobeyondidentity/gas-dashboard/internal/config"
	"github.com/gobeyondidentity/gas-dashboard/internal/google"
	"github.com/sirupsen/logrus"
)

// Engine refreshes the catalog from Drive and the Apps Script API
type Engine struct {
	google  GoogleClient
	catalog *catalog.Catalog
	config  *config.Config
	logger  *logrus.Logger
	now     func() time.Time
}

// ContentResult contains the results of a content sync
type ContentResult struct {
	ScriptsFound int
	Created      int
	Updated      int
	Errors       []error
}

// Synced returns how many scripts were stored
func (r *ContentResult) Synced() int {
	return r.Created + r.Updated
}

// ExecutionResult contains the results of an execution-log sync
type ExecutionResult struct {
	ScriptsProcessed int
	Executions       int
	Errors           []error
}

// NewEngine creates a new sync engine
func NewEngine(googleClient GoogleClient, store *catalog.Catalog, cfg *config.Config, logger *logrus.Logger) *Engine {
	return &Engine{
		google:  googleClient,
		catalog: store,
		config:  cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Catalog returns the store the engine writes to
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// SyncContent refreshes script metadata and source. Only a failure to list
// scripts is returned as an error; per-script failures land in the result.
func (e *Engine) SyncContent(ctx context.Context) (*ContentResult, error) {
	result := &ContentResult{}

	e.logger.Info("Starting content sync...")

	// Get scripts from Drive
	files, err := e.google.ListScripts(ctx, e.config.Sync.MaxScripts)
	if err != nil {
		return nil, fmt.Errorf("failed to list scripts: %w", err)
	}
	result.ScriptsFound = len(files)
	e.logger.Infof("Found %d Apps Script projects in Drive", len(files))

	// Process each script
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("content sync interrupted: %w", err)
		}

		if err := e.syncScript(ctx, file, result); err != nil {
			e.logger.Errorf("Failed to sync script %s (%s): %v", file.Name, file.ID, err)
			result.Errors = append(result.Errors, fmt.Errorf("script %s: %w", file.ID, err))
		}
	}

	e.logger.Infof("Content sync completed. Found: %d, Created: %d, Updated: %d, Errors: %d",
		result.ScriptsFound, result.Created, result.Updated, len(result.Errors))

	return result, nil
}

// syncScript fetches one project and stores it
func (e *Engine) syncScript(ctx context.Context, file *google.ScriptFile, result *ContentResult) error {
	project, err := e.google.GetProject(ctx, file.ID)
	if err != nil {
		return fmt.Errorf("failed to get project: %w", err)
	}

	sources, err := e.google.GetContent(ctx, file.ID)
	if err != nil {
		return fmt.Errorf("failed to get content: %w", err)
	}

	// Create catalog entry, preferring Apps Script timestamps over Drive's
	script := &catalog.Script{
		ID:           file.ID,
		Name:         file.Name,
		Description:  file.Description,
		Owner:        file.Owner,
		ParentID:     project.ParentID,
		CreateTime:   firstNonEmpty(project.CreateTime, file.CreatedTime),
		UpdateTime:   firstNonEmpty(project.UpdateTime, file.ModifiedTime),
		WebViewLink:  file.WebViewLink,
		LastSyncedAt: e.now().UTC(),
	}
	if script.Name == "" {
		script.Name = project.Title
	}
	for _, src := range sources {
		script.Files = append(script.Files, &catalog.SourceFile{
			Name:       src.Name,
			Type:       src.Type,
			Source:     src.Source,
			UpdateTime: src.UpdateTime,
		})
	}

	if e.config.App.TestMode {
		e.logger.Infof("TEST MODE: Would store script '%s' with %d files", script.Name, len(script.Files))
		return nil
	}

	// Store script
	if e.catalog.UpsertScript(script) {
		result.Created++
		e.logger.Debugf("Added script: %s (ID: %s)", script.Name, script.ID)
	} else {
		result.Updated++
		e.logger.Debugf("Updated script: %s (ID: %s)", script.Name, script.ID)
	}

	return nil
}

// SyncExecutions refreshes execution history for every catalogued script.
// It fails only when every script failed.
func (e *Engine) SyncExecutions(ctx context.Context) (*ExecutionResult, error) {
	result := &ExecutionResult{}

	scriptIDs := e.catalog.ScriptIDs()
	e.logger.Infof("Starting execution-log sync for %d scripts...", len(scriptIDs))

	for _, id := range scriptIDs {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("execution sync interrupted: %w", err)
		}

		processes, err := e.google.ListProcesses(ctx, id, e.config.Sync.ExecutionPageSize, e.config.Sync.ExecutionPages)
		if err != nil {
			e.logger.Errorf("Failed to list executions for script %s: %v", id, err)
			result.Errors = append(result.Errors, fmt.Errorf("script %s: %w", id, err))
			continue
		}

		// Convert processes to execution records
		executions := make([]*catalog.Execution, 0, len(processes))
		for _, p := range processes {
			executions = append(executions, &catalog.Execution{
				ScriptID:        id,
				FunctionName:    p.FunctionName,
				ProcessType:     p.ProcessType,
				Status:          p.ProcessStatus,
				StartTime:       p.StartTime,
				Duration:        p.Duration,
				UserAccessLevel: p.UserAccessLevel,
			})
		}

		if e.config.App.TestMode {
			e.logger.Infof("TEST MODE: Would store %d executions for script %s", len(executions), id)
		} else {
			e.catalog.ReplaceExecutions(id, executions)
		}

		result.ScriptsProcessed++
		result.Executions += len(executions)
	}

	e.logger.Infof("Execution-log sync completed. Scripts: %d, Executions: %d, Errors: %d",
		result.ScriptsProcessed, result.Executions, len(result.Errors))

	if len(scriptIDs) > 0 && result.ScriptsProcessed == 0 {
		return result, fmt.Errorf("execution sync failed for all %d scripts: %w", len(scriptIDs), result.Errors[0])
	}

	return result, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/script/v1"
)

// ScriptMimeType identifies Apps Script projects in Drive
const ScriptMimeType = "application/vnd.google-apps.script"

// Scopes needed to list projects and read their content, processes and metrics
var Scopes = []string{
	drive.DriveReadonlyScope,
	"https://www.googleapis.com/auth/script.projects.readonly",
	"https://www.googleapis.com/auth/script.processes",
	"https://www.googleapis.com/auth/script.metrics",
}

// Client handles Drive and Apps Script API operations
type Client struct {
	drive         *drive.Service
	script        *script.Service
	delegatedUser string
}

// ScriptFile is a Drive entry for an Apps Script project
type ScriptFile struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	CreatedTime  string `json:"createdTime"`
	ModifiedTime string `json:"modifiedTime"`
	WebViewLink  string `json:"webViewLink,omitempty"`
	Owner        string `json:"owner,omitempty"`
}

// Project is Apps Script project metadata
type Project struct {
	ScriptID   string `json:"scriptId"`
	Title      string `json:"title"`
	ParentID   string `json:"parentId,omitempty"`
	CreateTime string `json:"createTime"`
	UpdateTime string `json:"updateTime"`
}

// SourceFile is one file of a project's content
type SourceFile struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Source     string `json:"source"`
	UpdateTime string `json:"updateTime,omitempty"`
}

// Process is one recorded execution of a script function
type Process struct {
	FunctionName    string `json:"functionName"`
	ProcessType     string `json:"processType"`
	ProcessStatus   string `json:"processStatus"`
	StartTime       string `json:"startTime"`
	Duration        string `json:"duration"`
	UserAccessLevel string `json:"userAccessLevel,omitempty"`
}

// MetricsPoint is one bucket of an Apps Script metrics series
type MetricsPoint struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Value     int64  `json:"value"`
}

// Metrics holds the usage series of a project
type Metrics struct {
	ActiveUsers      []MetricsPoint `json:"activeUsers"`
	TotalExecutions  []MetricsPoint `json:"totalExecutions"`
	FailedExecutions []MetricsPoint `json:"failedExecutions"`
}

// NewClient creates a client authorised as the service account, impersonating
// delegatedUser through domain-wide delegation when it is set.
func NewClient(ctx context.Context, serviceAccountKeyPath, delegatedUser string) (*Client, error) {
	credentialsJSON, err := os.ReadFile(serviceAccountKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read service account file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT config: %w", err)
	}
	config.Subject = delegatedUser

	return NewClientWithHTTP(ctx, config.Client(ctx), delegatedUser)
}

// NewClientWithHTTP creates a client on an already-authorised HTTP client
func NewClientWithHTTP(ctx context.Context, httpClient *http.Client, delegatedUser string, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)

	driveService, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive service: %w", err)
	}

	scriptService, err := script.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Apps Script service: %w", err)
	}

	return &Client{
		drive:         driveService,
		script:        scriptService,
		delegatedUser: delegatedUser,
	}, nil
}

// ListScripts lists Apps Script projects visible in Drive, up to limit (0 for no limit)
func (c *Client) ListScripts(ctx context.Context, limit int) ([]*ScriptFile, error) {
	var all []*ScriptFile
	pageToken := ""

	for {
		call := c.drive.Files.List().
			Q(fmt.Sprintf("mimeType='%s' and trashed=false", ScriptMimeType)).
			Fields("nextPageToken, files(id, name, description, createdTime, modifiedTime, webViewLink, owners(emailAddress))").
			OrderBy("modifiedTime desc").
			PageSize(100).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list scripts: %w", err)
		}

		for _, f := range resp.Files {
			file := &ScriptFile{
				ID:           f.Id,
				Name:         f.Name,
				Description:  f.Description,
				CreatedTime:  f.CreatedTime,
				ModifiedTime: f.ModifiedTime,
				WebViewLink:  f.WebViewLink,
			}
			if len(f.Owners) > 0 {
				file.Owner = f.Owners[0].EmailAddress
			}
			all = append(all, file)

			if limit > 0 && len(all) >= limit {
				return all, nil
			}
		}

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	return all, nil
}

// GetProject retrieves project metadata
func (c *Client) GetProject(ctx context.Context, scriptID string) (*Project, error) {
	p, err := c.script.Projects.Get(scriptID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get project %s: %w", scriptID, err)
	}

	return &Project{
		ScriptID:   p.ScriptId,
		Title:      p.Title,
		ParentID:   p.ParentId,
		CreateTime: p.CreateTime,
		UpdateTime: p.UpdateTime,
	}, nil
}

// GetContent retrieves the source files of a project
func (c *Client) GetContent(ctx context.Context, scriptID string) ([]*SourceFile, error) {
	content, err := c.script.Projects.GetContent(scriptID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get content for %s: %w", scriptID, err)
	}

	files := make([]*SourceFile, 0, len(content.Files))
	for _, f := range content.Files {
		files = append(files, &SourceFile{
			Name:       f.Name,
			Type:       f.Type,
			Source:     f.Source,
			UpdateTime: f.UpdateTime,
		})
	}
	return files, nil
}

// ListProcesses lists recent executions of a project, at most pages pages of pageSize
func (c *Client) ListProcesses(ctx context.Context, scriptID string, pageSize, pages int) ([]*Process, error) {
	var all []*Process
	pageToken := ""

	for page := 0; pages <= 0 || page < pages; page++ {
		call := c.script.Processes.ListScriptProcesses().
			ScriptId(scriptID).
			PageSize(int64(pageSize)).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			// Projects that never ran have no process history
			if IsNotFound(err) {
				return all, nil
			}
			return nil, fmt.Errorf("failed to list processes for %s: %w", scriptID, err)
		}

		for _, p := range resp.Processes {
			all = append(all, &Process{
				FunctionName:    p.FunctionName,
				ProcessType:     p.ProcessType,
				ProcessStatus:   p.ProcessStatus,
				StartTime:       p.StartTime,
				Duration:        p.Duration,
				UserAccessLevel: p.UserAccessLevel,
			})
		}

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	return all, nil
}

// GetMetrics retrieves usage metrics; granularity is DAILY or WEEKLY
func (c *Client) GetMetrics(ctx context.Context, scriptID, granularity string) (*Metrics, error) {
	m, err := c.script.Projects.GetMetrics(scriptID).
		MetricsGranularity(granularity).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics for %s: %w", scriptID, err)
	}

	return &Metrics{
		ActiveUsers:      convertMetrics(m.ActiveUsers),
		TotalExecutions:  convertMetrics(m.TotalExecutions),
		FailedExecutions: convertMetrics(m.FailedExecutions),
	}, nil
}

func convertMetrics(values []*script.MetricsValue) []MetricsPoint {
	points := make([]MetricsPoint, 0, len(values))
	for _, v := range values {
		points = append(points, MetricsPoint{
			StartTime: v.StartTime,
			EndTime:   v.EndTime,
			Value:     int64(v.Value),
		})
	}
	return points
}

// IsNotFound checks if the error is a 404 not found error
func IsNotFound(err error) bool {
	var googleErr *googleapi.Error
	if errors.As(err, &googleErr) {
		return googleErr.Code == http.StatusNotFound
	}
	errorStr := err.Error()
	return strings.Contains(errorStr, "404") || strings.Contains(errorStr, "notFound")
}

// IsPermissionDenied reports a 403 from either API
func IsPermissionDenied(err error) bool {
	var googleErr *googleapi.Error
	return errors.As(err, &googleErr) && googleErr.Code == http.StatusForbidden
}

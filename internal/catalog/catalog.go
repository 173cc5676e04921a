// Package catalog holds the synced view of Apps Script projects and their executions.
package catalog

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Script is a synced Apps Script project
type Script struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Description  string        `json:"description,omitempty"`
	Owner        string        `json:"owner,omitempty"`
	ParentID     string        `json:"parentId,omitempty"`
	CreateTime   string        `json:"createTime,omitempty"`
	UpdateTime   string        `json:"updateTime,omitempty"`
	WebViewLink  string        `json:"webViewLink,omitempty"`
	Files        []*SourceFile `json:"files,omitempty"`
	LastSyncedAt time.Time     `json:"lastSyncedAt"`
}

// SourceFile is one file of a script's content
type SourceFile struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Source     string `json:"source"`
	UpdateTime string `json:"updateTime,omitempty"`
}

// Execution is one recorded run of a script function
type Execution struct {
	ScriptID        string `json:"scriptId"`
	FunctionName    string `json:"functionName"`
	ProcessType     string `json:"processType"`
	Status          string `json:"status"`
	StartTime       string `json:"startTime"`
	Duration        string `json:"duration"`
	UserAccessLevel string `json:"userAccessLevel,omitempty"`
}

// Failed reports whether the execution ended in an error state
func (e *Execution) Failed() bool {
	switch e.Status {
	case "FAILED", "TIMED_OUT", "CANCELED":
		return true
	}
	return false
}

// Stats summarises the catalog for the dashboard
type Stats struct {
	Scripts          int        `json:"scripts"`
	Executions       int        `json:"executions"`
	FailedExecutions int        `json:"failedExecutions"`
	LastSyncedAt     *time.Time `json:"lastSyncedAt,omitempty"`
}

// Catalog is a thread-safe in-memory store
type Catalog struct {
	mu         sync.RWMutex
	scripts    map[string]*Script
	executions map[string][]*Execution
}

// New creates an empty catalog
func New() *Catalog {
	return &Catalog{
		scripts:    make(map[string]*Script),
		executions: make(map[string][]*Execution),
	}
}

// UpsertScript stores or replaces a script, reporting whether it was new
func (c *Catalog) UpsertScript(s *Script) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, exists := c.scripts[s.ID]
	stored := *s
	c.scripts[s.ID] = &stored
	return !exists
}

// Script returns a copy of one script
func (c *Catalog) Script(id string) (*Script, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.scripts[id]
	if !ok {
		return nil, false
	}
	copied := *s
	return &copied, true
}

// Scripts returns all scripts ordered by name, then ID
func (c *Catalog) Scripts() []*Script {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]*Script, 0, len(c.scripts))
	for _, s := range c.scripts {
		copied := *s
		result = append(result, &copied)
	}

	sort.Slice(result, func(i, j int) bool {
		ni, nj := strings.ToLower(result[i].Name), strings.ToLower(result[j].Name)
		if ni != nj {
			return ni < nj
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// ScriptIDs returns the IDs of all scripts in name order
func (c *Catalog) ScriptIDs() []string {
	scripts := c.Scripts()
	ids := make([]string, len(scripts))
	for i, s := range scripts {
		ids[i] = s.ID
	}
	return ids
}

// ReplaceExecutions swaps the execution history of a script
func (c *Catalog) ReplaceExecutions(scriptID string, executions []*Execution) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := make([]*Execution, len(executions))
	copy(stored, executions)
	c.executions[scriptID] = stored
}

// Executions returns the execution history of a script, newest first
func (c *Catalog) Executions(scriptID string) []*Execution {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]*Execution, len(c.executions[scriptID]))
	copy(result, c.executions[scriptID])
	sort.SliceStable(result, func(i, j int) bool {
		return startedAfter(result[i], result[j])
	})
	return result
}

// startedAfter orders by parsed start time; unparseable times sort last
func startedAfter(a, b *Execution) bool {
	ta, errA := time.Parse(time.RFC3339Nano, a.StartTime)
	tb, errB := time.Parse(time.RFC3339Nano, b.StartTime)
	switch {
	case errA != nil && errB != nil:
		return a.StartTime > b.StartTime
	case errA != nil:
		return false
	case errB != nil:
		return true
	}
	return ta.After(tb)
}

// Stats computes summary counts
func (c *Catalog) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := Stats{Scripts: len(c.scripts)}
	for _, s := range c.scripts {
		if stats.LastSyncedAt == nil || s.LastSyncedAt.After(*stats.LastSyncedAt) {
			t := s.LastSyncedAt
			stats.LastSyncedAt = &t
		}
	}
	for _, execs := range c.executions {
		stats.Executions += len(execs)
		for _, e := range execs {
			if e.Failed() {
				stats.FailedExecutions++
			}
		}
	}
	return stats
}

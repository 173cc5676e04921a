package cronsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CompletedMessage is reported when the content sync succeeded
const CompletedMessage = "Cron sync completed"

const timestampLayout = "2006-01-02T15:04:05.000Z"

// Report is the aggregate result returned to the trigger
type Report struct {
	Success       bool            `json:"success"`
	Message       string          `json:"message,omitempty"`
	Error         string          `json:"error,omitempty"`
	Details       json.RawMessage `json:"details,omitempty"`
	ScriptSync    json.RawMessage `json:"scriptSync,omitempty"`
	ExecutionSync json.RawMessage `json:"executionSync,omitempty"`
	Timestamp     string          `json:"timestamp"`
}

// Outcome is a finished run: the HTTP status and report to send, plus the
// failures behind them.
type Outcome struct {
	RunID  string
	Status int
	Report *Report

	// Err is the content-sync or transport failure that failed the run
	Err error
	// ExecutionErr is an execution-log sync failure recorded in the report
	ExecutionErr error
}

// Succeeded reports whether the run as a whole succeeded
func (o *Outcome) Succeeded() bool {
	return o.Err == nil
}

// Observer is notified after every run
type Observer interface {
	ObserveRun(outcome *Outcome, duration time.Duration)
}

// Orchestrator runs content sync then execution-log sync and aggregates the results
type Orchestrator struct {
	downstream  Downstream
	auth        AuthMode
	logger      *logrus.Logger
	maxDuration time.Duration
	observer    Observer
	now         func() time.Time
}

// NewOrchestrator creates an orchestrator. A zero maxDuration disables the run ceiling.
func NewOrchestrator(downstream Downstream, auth AuthMode, maxDuration time.Duration, logger *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		downstream:  downstream,
		auth:        auth,
		logger:      logger,
		maxDuration: maxDuration,
		now:         time.Now,
	}
}

// SetObserver registers the run observer. Call before serving.
func (o *Orchestrator) SetObserver(observer Observer) {
	o.observer = observer
}

// Auth returns the orchestrator's auth mode
func (o *Orchestrator) Auth() AuthMode {
	return o.auth
}

// Trigger authorizes the supplied secret and runs a sync.
// It returns ErrUnauthorized without calling either service when the secret is rejected.
func (o *Orchestrator) Trigger(ctx context.Context, secret string) (*Outcome, error) {
	if err := o.auth.Authorize(secret); err != nil {
		o.logger.Warn("Rejected cron sync trigger: secret missing or mismatched")
		return nil, err
	}
	return o.Run(ctx), nil
}

// Run performs one sync without authorization
func (o *Orchestrator) Run(ctx context.Context) *Outcome {
	start := time.Now()
	outcome := o.run(ctx)
	if o.observer != nil {
		o.observer.ObserveRun(outcome, time.Since(start))
	}
	return outcome
}

func (o *Orchestrator) run(ctx context.Context) *Outcome {
	if o.maxDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.maxDuration)
		defer cancel()
	}

	runID := uuid.NewString()
	log := o.logger.WithField("run_id", runID)

	log.Info("Starting cron sync: content sync")
	scriptSync, err := o.syncContent(ctx)
	if err != nil {
		var downstreamErr *DownstreamError
		if errors.As(err, &downstreamErr) {
			log.Errorf("Content sync failed: %v", err)
			return &Outcome{
				RunID:  runID,
				Status: downstreamErr.Status,
				Report: &Report{
					Success:   false,
					Error:     "Script sync failed",
					Details:   downstreamErr.Body,
					Timestamp: o.timestamp(),
				},
				Err: err,
			}
		}

		log.Errorf("Cron sync failed: %v", err)
		details, _ := json.Marshal(err.Error())
		return &Outcome{
			RunID:  runID,
			Status: http.StatusInternalServerError,
			Report: &Report{
				Success:   false,
				Error:     "Cron sync failed",
				Details:   details,
				Timestamp: o.timestamp(),
			},
			Err: err,
		}
	}
	log.Info("Content sync completed, starting execution-log sync")

	executionSync, execErr := o.syncExecutions(ctx)
	if execErr != nil {
		log.Warnf("Execution-log sync failed, continuing: %v", execErr)
	} else {
		log.Info("Execution-log sync completed")
	}

	return &Outcome{
		RunID:  runID,
		Status: http.StatusOK,
		Report: &Report{
			Success:       true,
			Message:       CompletedMessage,
			ScriptSync:    scriptSync,
			ExecutionSync: executionSync,
			Timestamp:     o.timestamp(),
		},
		ExecutionErr: execErr,
	}
}

// syncContent returns the content-sync payload. Any error is fatal to the run.
func (o *Orchestrator) syncContent(ctx context.Context) (json.RawMessage, error) {
	res, err := o.downstream.Post(ctx, ContentSyncPath)
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, newDownstreamError(StepContent, res)
	}
	if !res.IsJSON() {
		return nil, fmt.Errorf("failed to parse %s response: body is not valid JSON", ContentSyncPath)
	}
	return res.Payload(), nil
}

// syncExecutions always returns a payload for the report; the error says
// whether that payload records a failure.
func (o *Orchestrator) syncExecutions(ctx context.Context) (json.RawMessage, error) {
	res, err := o.downstream.Post(ctx, ExecutionSyncPath)
	if err != nil {
		return errorPayload(err.Error()), err
	}
	if !res.OK() {
		downstreamErr := newDownstreamError(StepExecutions, res)
		if res.IsJSON() {
			return res.Payload(), downstreamErr
		}
		return errorPayload(downstreamErr.Reason), downstreamErr
	}
	if !res.IsJSON() {
		err := fmt.Errorf("failed to parse %s response: body is not valid JSON", ExecutionSyncPath)
		return errorPayload(err.Error()), err
	}
	return res.Payload(), nil
}

func (o *Orchestrator) timestamp() string {
	return o.now().UTC().Format(timestampLayout)
}

// ServeHTTP handles the cron sync route. GET and POST are equivalent.
func (o *Orchestrator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	outcome, err := o.Trigger(r.Context(), SecretFromRequest(r))
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}
	writeJSON(w, outcome.Status, outcome.Report)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

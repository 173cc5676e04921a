package cronsync

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Step names a downstream sync call
type Step string

const (
	StepContent    Step = "content"
	StepExecutions Step = "executions"
)

// DownstreamResult is the raw outcome of one downstream call that produced a response
type DownstreamResult struct {
	Path   string
	Status int
	Body   []byte
}

// OK reports whether the downstream answered with a 2xx status
func (r *DownstreamResult) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// IsJSON reports whether the body is a valid JSON document
func (r *DownstreamResult) IsJSON() bool {
	body := bytes.TrimSpace(r.Body)
	return len(body) > 0 && gjson.ValidBytes(body)
}

// Payload returns the body as JSON. Bodies that are not JSON are returned as
// a JSON string holding the raw text, or a status description when empty.
func (r *DownstreamResult) Payload() json.RawMessage {
	if r.IsJSON() {
		return json.RawMessage(bytes.TrimSpace(r.Body))
	}
	text := strings.TrimSpace(string(r.Body))
	if text == "" {
		text = statusText(r.Status)
	}
	quoted, _ := json.Marshal(text)
	return quoted
}

// Message returns a human-readable summary of a failed response
func (r *DownstreamResult) Message() string {
	if r.IsJSON() {
		for _, key := range []string{"error", "message", "details"} {
			if v := gjson.GetBytes(r.Body, key); v.Exists() && v.Type == gjson.String && v.String() != "" {
				return v.String()
			}
		}
	}
	if text := strings.TrimSpace(string(r.Body)); text != "" && !r.IsJSON() {
		return fmt.Sprintf("%s: %s", statusText(r.Status), text)
	}
	return statusText(r.Status)
}

// DownstreamError is a non-2xx answer from a downstream sync service
type DownstreamError struct {
	Step   Step
	Status int
	Body   json.RawMessage
	Reason string
}

func (e *DownstreamError) Error() string {
	return fmt.Sprintf("%s sync failed with status %d: %s", e.Step, e.Status, e.Reason)
}

func newDownstreamError(step Step, res *DownstreamResult) *DownstreamError {
	return &DownstreamError{
		Step:   step,
		Status: res.Status,
		Body:   res.Payload(),
		Reason: res.Message(),
	}
}

// errorPayload builds {"error": message}
func errorPayload(message string) json.RawMessage {
	out, err := sjson.SetBytes([]byte(`{}`), "error", message)
	if err != nil {
		quoted, _ := json.Marshal(map[string]string{"error": message})
		return quoted
	}
	return out
}

func statusText(status int) string {
	if text := http.StatusText(status); text != "" {
		return fmt.Sprintf("HTTP %d %s", status, text)
	}
	return fmt.Sprintf("HTTP %d", status)
}

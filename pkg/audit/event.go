// Package audit provides audit logging for offloaded function calls.
package audit

import (
	"fmt"
	"time"
)

// Stage identifies where in a call's lifecycle an Event was recorded.
type Stage string

const (
	StageSubmitted Stage = "submitted"
	StageUploaded  Stage = "uploaded"
	StageExecuted  Stage = "executed"
	StageDropped   Stage = "dropped"
)

// Severity indicates the importance of an audit event.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Event represents one point in the lifecycle of an offloaded call:
// submission to the queue, function upload, remote execution, or a
// drop (capacity/validation failure before the call ever reached the
// fabric).
type Event struct {
	ID          string        `json:"id"`
	Timestamp   time.Time     `json:"timestamp"`
	CallID      string        `json:"call_id"`
	FunctionID  string        `json:"function_id"`
	Fingerprint string        `json:"fingerprint,omitempty"`
	Mode        string        `json:"mode"` // "sync" or "async"
	Stage       Stage         `json:"stage"`
	Cluster     string        `json:"cluster,omitempty"`
	Success     bool          `json:"success"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// Filter defines criteria for querying audit events.
type Filter struct {
	CallID      string
	FunctionID  string
	Stage       Stage
	StartTime   time.Time
	EndTime     time.Time
	SuccessOnly bool
	FailureOnly bool
	Limit       int
	Offset      int
}

// NewEvent creates a new audit event for the given call.
func NewEvent(callID, functionID string, stage Stage) *Event {
	return &Event{
		ID:         generateID(),
		Timestamp:  time.Now(),
		CallID:     callID,
		FunctionID: functionID,
		Stage:      stage,
	}
}

// WithFingerprint sets the content hash of the uploaded function.
func (e *Event) WithFingerprint(fingerprint string) *Event {
	e.Fingerprint = fingerprint
	return e
}

// WithMode sets the call's execution mode ("sync" or "async").
func (e *Event) WithMode(mode string) *Event {
	e.Mode = mode
	return e
}

// WithCluster records which edge cluster served (or was offered) the call.
func (e *Event) WithCluster(cluster string) *Event {
	e.Cluster = cluster
	return e
}

// WithSuccess marks the event as successful.
func (e *Event) WithSuccess() *Event {
	e.Success = true
	return e
}

// WithError marks the event as failed.
func (e *Event) WithError(err error) *Event {
	e.Success = false
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithDuration sets the stage's duration.
func (e *Event) WithDuration(d time.Duration) *Event {
	e.Duration = d
	return e
}

func generateID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

// File: api/schemas/events.go
package schemas

import "time"

// EventKind enumerates the progress-stream event types.
type EventKind string

const (
	EventLog             EventKind = "log"
	EventStatus          EventKind = "status"
	EventBugFound        EventKind = "bug_found"
	EventTestResult      EventKind = "test_result"
	EventFixApplied      EventKind = "fix_applied"
	EventAttemptComplete EventKind = "attempt_complete"
	EventScore           EventKind = "score"
	EventError           EventKind = "error"
)

// Event is a single progress-stream message. Consumers may join mid-stream;
// the persisted session remains the source of truth.
type Event struct {
	SessionID string    `json:"session_id"`
	Kind      EventKind `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// StatusPayload accompanies EventStatus.
type StatusPayload struct {
	Phase   SessionStatus `json:"phase"`
	Message string        `json:"message,omitempty"`
}

// LogPayload accompanies EventLog.
type LogPayload struct {
	Text string `json:"text"`
}

// BugFoundPayload accompanies EventBugFound.
type BugFoundPayload struct {
	Category BugCategory `json:"category"`
	File     string      `json:"file"`
	Line     int         `json:"line"`
	Message  string      `json:"message"`
}

// TestResultPayload accompanies EventTestResult.
type TestResultPayload struct {
	Passed     bool   `json:"passed"`
	Output     string `json:"output"`
	ErrorCount int    `json:"error_count"`
	Attempt    int    `json:"attempt"`
}

// FixAppliedPayload accompanies EventFixApplied.
type FixAppliedPayload struct {
	File        string `json:"file"`
	Description string `json:"description"`
	BugID       string `json:"bug_id"`
}

// AttemptCompletePayload accompanies EventAttemptComplete.
type AttemptCompletePayload struct {
	Attempt    int           `json:"attempt"`
	Status     AttemptStatus `json:"status"`
	BugsFound  int           `json:"bugs_found"`
	BugsFixed  int           `json:"bugs_fixed"`
	DurationMs int64         `json:"duration_ms"`
}

// ErrorPayload accompanies EventError.
type ErrorPayload struct {
	Message string `json:"message"`
}

// NewEvent stamps an event with the current time.
func NewEvent(sessionID string, kind EventKind, payload any) Event {
	return Event{
		SessionID: sessionID,
		Kind:      kind,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// IncidentKind enumerates proctoring journal entries.
type IncidentKind string

const (
	IncidentGraceStarted       IncidentKind = "grace_started"
	IncidentGraceCleared       IncidentKind = "grace_cleared"
	IncidentViolationConfirmed IncidentKind = "violation_confirmed"
	IncidentCriticalExit       IncidentKind = "critical_exit"
	IncidentUnloadAttempt      IncidentKind = "unload_attempt"
	IncidentSubmitted          IncidentKind = "submitted"
)

// SignalKind names the browser signal behind an incident.
type SignalKind string

const (
	SignalVisibility SignalKind = "visibility"
	SignalFullscreen SignalKind = "fullscreen"
)

// Incident is one proctoring event of a session.
type Incident struct {
	ID         uuid.UUID    `json:"id"`
	SessionID  string       `json:"session_id"`
	QuizCode   string       `json:"quiz_code"`
	Kind       IncidentKind `json:"kind"`
	Signal     SignalKind   `json:"signal,omitempty"`
	Count      int          `json:"count"`
	Trigger    Trigger      `json:"trigger,omitempty"`
	RecordedAt time.Time    `json:"recorded_at"`
}

package model

import (
	"time"
)

// SessionState is the one-directional lifecycle of an exam session.
type SessionState string

const (
	SessionStateNotStarted SessionState = "NOT_STARTED"
	SessionStateRunning    SessionState = "RUNNING"
	SessionStateSubmitted  SessionState = "SUBMITTED"
)

// Trigger is the reason a submission happened.
type Trigger string

const (
	TriggerManual         Trigger = "manual"
	TriggerTimeout        Trigger = "timeout"
	TriggerViolationLimit Trigger = "violation-limit"
)

// Result is the outcome of the single submission of a session. Score is the
// optimistic MCQ tally; the server grades authoritatively.
type Result struct {
	Trigger     Trigger   `json:"trigger"`
	Score       int       `json:"score"`
	Total       int       `json:"total"`
	Delivered   bool      `json:"delivered"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// SessionSnapshot is a read-only view of a session.
type SessionSnapshot struct {
	ID               string       `json:"id"`
	QuizCode         string       `json:"quiz_code"`
	State            SessionState `json:"state"`
	Loaded           bool         `json:"loaded"`
	CurrentIndex     int          `json:"current_index"`
	QuestionCount    int          `json:"question_count"`
	RemainingSeconds int          `json:"remaining_seconds"`
	Violations       int          `json:"violations"`
	MaxViolations    int          `json:"max_violations"`
	Answered         int          `json:"answered"`
	Result           *Result      `json:"result,omitempty"`
}

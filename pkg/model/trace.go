package model

import (
	"time"

	"github.com/google/uuid"
)

type Verdict string

const (
	VerdictUnverified Verdict = "unverified"
	VerdictPassed     Verdict = "passed"
	VerdictFailed     Verdict = "failed"
)

type TraceID string

func NewTraceID() TraceID {
	return TraceID(uuid.New().String())
}

// Trace records how an answer was produced.
type Trace struct {
	ID            TraceID       `json:"id"`
	SessionID     SessionID     `json:"session_id,omitempty"`
	Query         string        `json:"query"`
	Intent        Intent        `json:"intent"`
	Sources       []string      `json:"sources,omitempty"`
	Topics        []string      `json:"topics,omitempty"`
	Simplified    []string      `json:"simplified,omitempty"`
	Failed        []string      `json:"failed,omitempty"`
	Winner        string        `json:"winner,omitempty"`
	Ambiguous     bool          `json:"ambiguous,omitempty"`
	Clarification bool          `json:"clarification,omitempty"`
	Verdict       Verdict       `json:"verdict"`
	Violations    []string      `json:"violations,omitempty"`
	Regenerated   bool          `json:"regenerated"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
}

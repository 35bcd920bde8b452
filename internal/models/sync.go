package models

import "time"

// SyncTrigger names what started a sync pass.
type SyncTrigger string

const (
	SyncTriggerReconnect SyncTrigger = "reconnect"
	SyncTriggerManual    SyncTrigger = "manual"
	SyncTriggerStartup   SyncTrigger = "startup"
)

// SyncOutcome is the per-entry result of a sync pass.
type SyncOutcome string

const (
	SyncOutcomeSynced    SyncOutcome = "synced"
	SyncOutcomeFailed    SyncOutcome = "failed"
	SyncOutcomeExhausted SyncOutcome = "skipped_exhausted"
	SyncOutcomeDeferred  SyncOutcome = "skipped_deferred"
	SyncOutcomeResolved  SyncOutcome = "skipped_resolved"
)

// SyncItemResult reports what happened to one pending entry.
type SyncItemResult struct {
	EventID    int64       `json:"eventId"`
	AttendeeID int64       `json:"attendeeId"`
	Outcome    SyncOutcome `json:"outcome"`
	Attempt    int         `json:"attempt"`
	ErrorCode  string      `json:"errorCode,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// SyncResult aggregates one sync pass.
type SyncResult struct {
	Trigger    SyncTrigger      `json:"trigger"`
	StartedAt  time.Time        `json:"startedAt"`
	FinishedAt time.Time        `json:"finishedAt"`
	Attempted  int              `json:"attempted"`
	Synced     int              `json:"synced"`
	Failed     int              `json:"failed"`
	Skipped    int              `json:"skipped"`
	Remaining  int              `json:"remaining"`
	Items      []SyncItemResult `json:"items"`
}

// Completed reports whether the pass confirmed at least one check-in.
func (r SyncResult) Completed() bool {
	return r.Synced > 0
}

package models

import "time"

// SnapshotVersion is bumped whenever the persisted layout changes incompatibly.
const SnapshotVersion = 1

// Snapshot is the persisted subset of agent state. Connectivity is never persisted.
type Snapshot struct {
	Version          int                       `json:"version"`
	Session          *Session                  `json:"session,omitempty"`
	Events           []Event                   `json:"events"`
	LastFetched      *time.Time                `json:"lastFetched,omitempty"`
	AttendeesByEvent map[int64][]Attendee      `json:"attendeesByEvent"`
	CheckinsByEvent  map[int64][]CheckinRecord `json:"checkinsByEvent"`
	PendingCheckins  []CheckinRecord           `json:"pendingCheckins"`
	SavedAt          time.Time                 `json:"savedAt"`
}

package dto

import (
	"time"

	"github.com/noah-isme/checkin-sync-agent/internal/models"
)

// AttendeeFilter narrows attendee listings.
type AttendeeFilter struct {
	Search string                `form:"search"`
	Status models.AttendeeStatus `form:"status" validate:"omitempty,oneof=checked_in pending not_checked"`
}

// AttendeeWithStatus pairs an attendee with its resolved status.
type AttendeeWithStatus struct {
	models.Attendee
	Status models.AttendeeStatus `json:"status"`
}

// AttendeeListResponse is the attendee listing payload.
type AttendeeListResponse struct {
	EventID   int64                `json:"eventId"`
	Attendees []AttendeeWithStatus `json:"attendees"`
	Summary   AttendeeSummary      `json:"summary"`
	Stale     bool                 `json:"stale"`
}

// AttendeeSummary counts attendees per status.
type AttendeeSummary struct {
	Total      int `json:"total"`
	CheckedIn  int `json:"checkedIn"`
	Pending    int `json:"pending"`
	NotChecked int `json:"notChecked"`
}

// EventListResponse carries events plus cache metadata.
type EventListResponse struct {
	Events      []models.Event `json:"events"`
	LastFetched *time.Time     `json:"lastFetched,omitempty"`
	Stale       bool           `json:"stale"`
}

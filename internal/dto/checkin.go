package dto

import "github.com/noah-isme/checkin-sync-agent/internal/models"

// CheckinRequest is the body of POST /events/:id/checkins.
type CheckinRequest struct {
	AttendeeID int64 `json:"attendeeId" validate:"required,gt=0"`
	// Connected overrides the agent's connectivity flag for this call when set.
	Connected *bool `json:"connected,omitempty"`
}

// CheckinResult reports what an interactive check-in did.
type CheckinResult struct {
	EventID    int64                 `json:"eventId"`
	AttendeeID int64                 `json:"attendeeId"`
	Status     models.AttendeeStatus `json:"status"`
	Queued     bool                  `json:"queued"`
	Duplicate  bool                  `json:"duplicate,omitempty"`
	Record     *models.CheckinRecord `json:"record,omitempty"`
	ErrorCode  string                `json:"errorCode,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// StatusResponse is returned by the attendee status endpoint.
type StatusResponse struct {
	EventID    int64                 `json:"eventId"`
	AttendeeID int64                 `json:"attendeeId"`
	Status     models.AttendeeStatus `json:"status"`
}

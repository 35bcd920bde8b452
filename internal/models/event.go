package models

import "time"

// Event is fetched from the backend and replaced wholesale on refresh.
type Event struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	Location    string    `json:"location"`
	OrganizerID int64     `json:"organizerId"`
	Image       string    `json:"image,omitempty"`
}

// Attendee belongs to exactly one event.
type Attendee struct {
	ID      int64  `json:"id"`
	EventID int64  `json:"eventId"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company,omitempty"`
}

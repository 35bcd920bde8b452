package models

import "fmt"

// CheckinStatus is the status carried by a check-in record.
type CheckinStatus string

const (
	CheckinStatusPending   CheckinStatus = "pending"
	CheckinStatusCheckedIn CheckinStatus = "checked_in"
)

// AttendeeStatus is the display status derived for an attendee.
type AttendeeStatus string

const (
	AttendeeStatusCheckedIn  AttendeeStatus = "checked_in"
	AttendeeStatusPending    AttendeeStatus = "pending"
	AttendeeStatusNotChecked AttendeeStatus = "not_checked"
)

// CheckinRecord is either a server-confirmed check-in or a locally queued attempt.
// Synced is omitted on the wire when false; an absent flag means unsynced.
type CheckinRecord struct {
	ID         int64         `json:"id"`
	EventID    int64         `json:"eventId"`
	AttendeeID int64         `json:"attendeeId"`
	Status     CheckinStatus `json:"status"`
	Timestamp  string        `json:"timestamp"`
	Synced     bool          `json:"synced,omitempty"`
	ClientRef  string        `json:"clientRef,omitempty"`
}

// Valid reports whether the record references a usable event/attendee pair.
func (c CheckinRecord) Valid() bool {
	return c.EventID > 0 && c.AttendeeID > 0
}

// Pair returns the (event, attendee) key of the record.
func (c CheckinRecord) Pair() CheckinPair {
	return CheckinPair{EventID: c.EventID, AttendeeID: c.AttendeeID}
}

// CheckinPair identifies an attendee within an event.
type CheckinPair struct {
	EventID    int64 `json:"eventId"`
	AttendeeID int64 `json:"attendeeId"`
}

func (p CheckinPair) String() string {
	return fmt.Sprintf("%d:%d", p.EventID, p.AttendeeID)
}

package service

import "github.com/noah-isme/checkin-sync-agent/internal/models"

// ResolveStatus derives the display status of an attendee from the pending queue and
// the confirmed check-ins. A pending entry always wins over a confirmed record.
func ResolveStatus(eventID, attendeeID int64, pending, confirmed []models.CheckinRecord) models.AttendeeStatus {
	for _, p := range pending {
		if p.EventID == eventID && p.AttendeeID == attendeeID && !p.Synced {
			return models.AttendeeStatusPending
		}
	}
	for _, c := range confirmed {
		if c.EventID == eventID && c.AttendeeID == attendeeID && c.Status == models.CheckinStatusCheckedIn {
			return models.AttendeeStatusCheckedIn
		}
	}
	return models.AttendeeStatusNotChecked
}

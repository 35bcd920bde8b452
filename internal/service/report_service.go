package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/checkin-sync-agent/internal/dto"
	"github.com/noah-isme/checkin-sync-agent/internal/models"
	appErrors "github.com/noah-isme/checkin-sync-agent/pkg/errors"
	"github.com/noah-isme/checkin-sync-agent/pkg/export"
)

type rosterStore interface {
	Event(id int64) (models.Event, bool)
	Attendees(eventID int64) []models.Attendee
	View(eventID int64) (pending, confirmed []models.CheckinRecord)
}

type rosterRenderer func(format export.Format, roster export.Roster) ([]byte, error)

// ExportResult is a rendered roster ready to be streamed to the client.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

var rosterColumns = []export.Column{
	{Key: "id", Title: "ID", Weight: 0.6},
	{Key: "name", Title: "Name", Weight: 2},
	{Key: "email", Title: "Email", Weight: 2.4},
	{Key: "company", Title: "Company", Weight: 1.6},
	{Key: "status", Title: "Status", Weight: 1.2},
	{Key: "checked_in_at", Title: "Checked In At", Weight: 1.8},
}

// ReportService exports the attendee roster of an event from the local cache, so
// it works offline and reflects queued check-ins.
type ReportService struct {
	store  rosterStore
	render rosterRenderer
	logger *zap.Logger
	now    func() time.Time
}

// NewReportService constructs a ReportService.
func NewReportService(store rosterStore, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		store:  store,
		render: export.Render,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Roster renders the roster of an event. An empty format defaults to CSV.
func (s *ReportService) Roster(ctx context.Context, eventID int64, format dto.RosterFormat) (*ExportResult, error) {
	if eventID <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid event id")
	}
	if format == "" {
		format = dto.RosterFormatCSV
	}
	if format != dto.RosterFormatCSV && format != dto.RosterFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	attendees := s.store.Attendees(eventID)
	event, known := s.store.Event(eventID)
	if !known && len(attendees) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "event not cached")
	}

	pending, confirmed := s.store.View(eventID)
	checkedAt := make(map[int64]string, len(confirmed))
	for _, c := range confirmed {
		checkedAt[c.AttendeeID] = c.Timestamp
	}

	var summary dto.AttendeeSummary
	rows := make([]map[string]string, 0, len(attendees))
	for _, a := range attendees {
		status := ResolveStatus(eventID, a.ID, pending, confirmed)
		countStatus(&summary, status)
		row := map[string]string{
			"id":      fmt.Sprintf("%d", a.ID),
			"name":    a.Name,
			"email":   a.Email,
			"company": a.Company,
			"status":  string(status),
		}
		if status == models.AttendeeStatusCheckedIn {
			row["checked_in_at"] = checkedAt[a.ID]
		}
		rows = append(rows, row)
	}

	title := event.Title
	if title == "" {
		title = fmt.Sprintf("Event %d", eventID)
	}
	roster := export.Roster{
		Title:       title,
		Subtitle:    fmt.Sprintf("%d attendees, %d checked in, %d pending", summary.Total, summary.CheckedIn, summary.Pending),
		Columns:     rosterColumns,
		Rows:        rows,
		GeneratedAt: s.now(),
	}

	data, err := s.render(export.Format(format), roster)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}

	s.logger.Info("roster exported",
		zap.Int64("event_id", eventID),
		zap.String("format", string(format)),
		zap.Int("rows", len(rows)),
	)
	return &ExportResult{
		Filename:    fmt.Sprintf("event-%d-roster-%s.%s", eventID, roster.GeneratedAt.Format("20060102-150405"), format),
		ContentType: export.Format(format).ContentType(),
		Data:        data,
	}, nil
}

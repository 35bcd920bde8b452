package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/checkin-sync-agent/internal/dto"
	"github.com/noah-isme/checkin-sync-agent/internal/models"
	appErrors "github.com/noah-isme/checkin-sync-agent/pkg/errors"
)

type eventAPI interface {
	FetchEvents(ctx context.Context) ([]models.Event, error)
	FetchEvent(ctx context.Context, id int64) (*models.Event, error)
	FetchAttendees(ctx context.Context, eventID int64) ([]models.Attendee, error)
	FetchCheckins(ctx context.Context, eventID int64) ([]models.CheckinRecord, error)
}

type eventStore interface {
	Connectivity() models.ConnectivityState
	SetEvents(events []models.Event)
	Events() []models.Event
	Event(id int64) (models.Event, bool)
	LastFetched() (time.Time, bool)
	SetAttendees(eventID int64, attendees []models.Attendee)
	Attendees(eventID int64) []models.Attendee
	SetCheckins(eventID int64, records []models.CheckinRecord)
	View(eventID int64) (pending, confirmed []models.CheckinRecord)
}

// EventService serves events and attendees, refreshing from the backend while
// online and falling back to the cached copy otherwise.
type EventService struct {
	api    eventAPI
	store  eventStore
	logger *zap.Logger
}

// NewEventService constructs an EventService.
func NewEventService(api eventAPI, store eventStore, logger *zap.Logger) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{api: api, store: store, logger: logger}
}

// ListEvents returns events sorted by start time. A failed refresh is tolerated
// when a cached copy exists; the response is then marked stale.
func (s *EventService) ListEvents(ctx context.Context) (*dto.EventListResponse, error) {
	stale := true
	if s.online() {
		events, err := s.api.FetchEvents(ctx)
		switch {
		case err == nil:
			s.store.SetEvents(events)
			stale = false
		case appErrors.IsUnauthorized(err):
			return nil, err
		default:
			if _, ok := s.store.LastFetched(); !ok {
				return nil, err
			}
			s.logger.Warn("event refresh failed, serving cache", zap.Error(err))
		}
	}

	events := s.store.Events()
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].StartTime.Before(events[j].StartTime)
	})
	resp := &dto.EventListResponse{Events: events, Stale: stale}
	if fetched, ok := s.store.LastFetched(); ok {
		resp.LastFetched = &fetched
	}
	return resp, nil
}

// GetEvent returns one event, preferring the backend when online.
func (s *EventService) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	if id <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid event id")
	}
	if s.online() {
		event, err := s.api.FetchEvent(ctx, id)
		if err == nil {
			return event, nil
		}
		if appErrors.IsUnauthorized(err) {
			return nil, err
		}
		s.logger.Debug("event fetch failed, trying cache", zap.Int64("event_id", id), zap.Error(err))
	}
	if event, ok := s.store.Event(id); ok {
		return &event, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
}

// RefreshAttendees reloads attendees and confirmed check-ins of one event.
func (s *EventService) RefreshAttendees(ctx context.Context, eventID int64) error {
	attendees, err := s.api.FetchAttendees(ctx, eventID)
	if err != nil {
		return err
	}
	checkins, err := s.api.FetchCheckins(ctx, eventID)
	if err != nil {
		return err
	}
	s.store.SetAttendees(eventID, attendees)
	s.store.SetCheckins(eventID, checkins)
	return nil
}

// ListAttendees returns the attendees of an event with their resolved status,
// filtered case-insensitively by name, email or company.
func (s *EventService) ListAttendees(ctx context.Context, eventID int64, filter dto.AttendeeFilter) (*dto.AttendeeListResponse, error) {
	if eventID <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid event id")
	}

	stale := true
	if s.online() {
		err := s.RefreshAttendees(ctx, eventID)
		switch {
		case err == nil:
			stale = false
		case appErrors.IsUnauthorized(err):
			return nil, err
		default:
			s.logger.Warn("attendee refresh failed, serving cache", zap.Int64("event_id", eventID), zap.Error(err))
		}
	}

	attendees := s.store.Attendees(eventID)
	pending, confirmed := s.store.View(eventID)
	term := strings.ToLower(strings.TrimSpace(filter.Search))

	resp := &dto.AttendeeListResponse{EventID: eventID, Attendees: []dto.AttendeeWithStatus{}, Stale: stale}
	for _, a := range attendees {
		status := ResolveStatus(eventID, a.ID, pending, confirmed)
		countStatus(&resp.Summary, status)
		if term != "" && !matchesAttendee(a, term) {
			continue
		}
		if filter.Status != "" && filter.Status != status {
			continue
		}
		resp.Attendees = append(resp.Attendees, dto.AttendeeWithStatus{Attendee: a, Status: status})
	}
	return resp, nil
}

func (s *EventService) online() bool {
	return s.store.Connectivity().IsConnected
}

func matchesAttendee(a models.Attendee, term string) bool {
	return strings.Contains(strings.ToLower(a.Name), term) ||
		strings.Contains(strings.ToLower(a.Email), term) ||
		strings.Contains(strings.ToLower(a.Company), term)
}

func countStatus(summary *dto.AttendeeSummary, status models.AttendeeStatus) {
	summary.Total++
	switch status {
	case models.AttendeeStatusCheckedIn:
		summary.CheckedIn++
	case models.AttendeeStatusPending:
		summary.Pending++
	default:
		summary.NotChecked++
	}
}

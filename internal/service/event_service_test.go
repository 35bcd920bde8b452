package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/checkin-sync-agent/internal/dto"
	"github.com/noah-isme/checkin-sync-agent/internal/models"
	"github.com/noah-isme/checkin-sync-agent/internal/state"
	appErrors "github.com/noah-isme/checkin-sync-agent/pkg/errors"
)

type stubEventAPI struct {
	events    []models.Event
	attendees map[int64][]models.Attendee
	checkins  map[int64][]models.CheckinRecord
	err       error
	calls     int
}

func (s *stubEventAPI) FetchEvents(ctx context.Context) ([]models.Event, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.events, nil
}

func (s *stubEventAPI) FetchEvent(ctx context.Context, id int64) (*models.Event, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	for _, e := range s.events {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, appErrors.FromHTTPStatus(http.StatusNotFound, "")
}

func (s *stubEventAPI) FetchAttendees(ctx context.Context, eventID int64) ([]models.Attendee, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.attendees[eventID], nil
}

func (s *stubEventAPI) FetchCheckins(ctx context.Context, eventID int64) ([]models.CheckinRecord, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.checkins[eventID], nil
}

func sampleEventAPI() *stubEventAPI {
	day := time.Date(2025, 12, 14, 9, 0, 0, 0, time.UTC)
	return &stubEventAPI{
		events: []models.Event{
			{ID: 2, Title: "Afternoon", StartTime: day.Add(5 * time.Hour)},
			{ID: 1, Title: "Morning", StartTime: day},
		},
		attendees: map[int64][]models.Attendee{
			1: {
				{ID: 7, EventID: 1, Name: "Ada Lovelace", Email: "ada@example.com", Company: "Analytical"},
				{ID: 8, EventID: 1, Name: "Grace Hopper", Email: "grace@navy.mil", Company: "Navy"},
				{ID: 9, EventID: 1, Name: "Linus", Email: "linus@example.com"},
			},
		},
		checkins: map[int64][]models.CheckinRecord{
			1: {{ID: 100, EventID: 1, AttendeeID: 8, Status: models.CheckinStatusCheckedIn, Synced: true}},
		},
	}
}

func TestListEventsRefreshesWhenOnline(t *testing.T) {
	store := state.New()
	svc := NewEventService(sampleEventAPI(), store, nil)

	resp, err := svc.ListEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, resp.Events, 2)
	assert.Equal(t, "Morning", resp.Events[0].Title)
	assert.False(t, resp.Stale)
	assert.NotNil(t, resp.LastFetched)
}

func TestListEventsServesCacheOffline(t *testing.T) {
	store := state.New()
	api := sampleEventAPI()
	svc := NewEventService(api, store, nil)
	_, err := svc.ListEvents(context.Background())
	require.NoError(t, err)

	store.SetConnectivity(false)
	api.calls = 0
	resp, err := svc.ListEvents(context.Background())
	require.NoError(t, err)
	assert.Zero(t, api.calls)
	assert.True(t, resp.Stale)
	assert.Len(t, resp.Events, 2)
}

func TestListEventsRefreshFailure(t *testing.T) {
	store := state.New()
	api := &stubEventAPI{err: appErrors.Clone(appErrors.ErrNetwork, "down")}
	svc := NewEventService(api, store, nil)

	_, err := svc.ListEvents(context.Background())
	require.Error(t, err, "no cache to fall back to")

	store.SetEvents([]models.Event{{ID: 1, Title: "Cached"}})
	resp, err := svc.ListEvents(context.Background())
	require.NoError(t, err)
	assert.True(t, resp.Stale)
	assert.Equal(t, "Cached", resp.Events[0].Title)
}

func TestGetEventFallsBackToCache(t *testing.T) {
	store := state.New(state.WithConnectivity(false))
	store.SetEvents([]models.Event{{ID: 1, Title: "Cached"}})
	svc := NewEventService(sampleEventAPI(), store, nil)

	event, err := svc.GetEvent(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Cached", event.Title)

	_, err = svc.GetEvent(context.Background(), 5)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestListAttendeesResolvesStatusAndSearches(t *testing.T) {
	store := state.New()
	store.EnqueuePending(models.CheckinRecord{EventID: 1, AttendeeID: 7})
	svc := NewEventService(sampleEventAPI(), store, nil)

	resp, err := svc.ListAttendees(context.Background(), 1, dto.AttendeeFilter{})
	require.NoError(t, err)
	require.Len(t, resp.Attendees, 3)
	assert.Equal(t, models.AttendeeStatusPending, resp.Attendees[0].Status)
	assert.Equal(t, models.AttendeeStatusCheckedIn, resp.Attendees[1].Status)
	assert.Equal(t, models.AttendeeStatusNotChecked, resp.Attendees[2].Status)
	assert.Equal(t, dto.AttendeeSummary{Total: 3, CheckedIn: 1, Pending: 1, NotChecked: 1}, resp.Summary)

	resp, err = svc.ListAttendees(context.Background(), 1, dto.AttendeeFilter{Search: "NAVY"})
	require.NoError(t, err)
	require.Len(t, resp.Attendees, 1)
	assert.Equal(t, "Grace Hopper", resp.Attendees[0].Name)

	resp, err = svc.ListAttendees(context.Background(), 1, dto.AttendeeFilter{Search: "example.com", Status: models.AttendeeStatusNotChecked})
	require.NoError(t, err)
	require.Len(t, resp.Attendees, 1)
	assert.Equal(t, int64(9), resp.Attendees[0].ID)
}

func TestListAttendeesOfflineUsesCache(t *testing.T) {
	store := state.New(state.WithConnectivity(false))
	store.SetAttendees(1, []models.Attendee{{ID: 7, Name: "Ada"}})
	api := sampleEventAPI()
	svc := NewEventService(api, store, nil)

	resp, err := svc.ListAttendees(context.Background(), 1, dto.AttendeeFilter{})
	require.NoError(t, err)
	assert.Zero(t, api.calls)
	assert.True(t, resp.Stale)
	require.Len(t, resp.Attendees, 1)
}

func TestListAttendeesPropagatesUnauthorized(t *testing.T) {
	store := state.New()
	api := &stubEventAPI{err: appErrors.FromHTTPStatus(http.StatusUnauthorized, "expired")}
	svc := NewEventService(api, store, nil)

	_, err := svc.ListAttendees(context.Background(), 1, dto.AttendeeFilter{})
	require.Error(t, err)
	assert.True(t, appErrors.IsUnauthorized(err))
}

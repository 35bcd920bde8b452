package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/checkin-sync-agent/internal/models"
	appErrors "github.com/noah-isme/checkin-sync-agent/pkg/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(Config{BaseURL: server.URL + "/", Timeout: time.Second})
}

func TestCreateCheckinSendsPayloadAndHeaders(t *testing.T) {
	var got CheckinPayload
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/checkins", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "ref-1", r.Header.Get("Idempotency-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(models.CheckinRecord{
			ID: 55, EventID: got.EventID, AttendeeID: got.AttendeeID,
			Status: models.CheckinStatusCheckedIn, Timestamp: got.Timestamp, Synced: true,
		})
	})
	client.SetTokenProvider(func() string { return "tok-1" })

	rec, err := client.CreateCheckin(context.Background(), CheckinPayload{
		EventID: 1, AttendeeID: 7, Status: models.CheckinStatusCheckedIn,
		Timestamp: "2025-12-14T09:00:00Z", Synced: true, ClientRef: "ref-1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(55), rec.ID)
	assert.Equal(t, int64(7), got.AttendeeID)
	assert.True(t, got.Synced)
}

func TestServerErrorIsNormalized(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"database down"}`))
	})

	_, err := client.CreateCheckin(context.Background(), CheckinPayload{EventID: 1, AttendeeID: 7})
	require.Error(t, err)
	apiErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "database down", apiErr.Message)
}

func TestUnauthorizedInvokesHandler(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"token expired"}}`))
	})
	called := 0
	client.SetUnauthorizedHandler(func() { called++ })

	_, err := client.FetchEvents(context.Background())
	require.Error(t, err)
	assert.True(t, appErrors.IsUnauthorized(err))
	assert.Equal(t, "token expired", appErrors.FromError(err).Message)
	assert.Equal(t, 1, called)
}

func TestNetworkFailureIsNormalized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := New(Config{BaseURL: url, Timeout: time.Second})
	_, err := client.FetchEvents(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNetwork.Code, appErrors.FromError(err).Code)
}

func TestFetchAttendeesAndCheckinsQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/attendees":
			assert.Equal(t, "3", r.URL.Query().Get("eventId"))
			_ = json.NewEncoder(w).Encode([]models.Attendee{{ID: 1, EventID: 3, Name: "Ada"}})
		case "/checkins":
			assert.Empty(t, r.URL.Query().Get("eventId"))
			_ = json.NewEncoder(w).Encode([]models.CheckinRecord{{ID: 9, EventID: 3, AttendeeID: 1}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	attendees, err := client.FetchAttendees(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, attendees, 1)

	records, err := client.FetchCheckins(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestFindUserEmptyListIsInvalidCredentials(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ada@example.com", r.URL.Query().Get("email"))
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := client.FindUser(context.Background(), "ada@example.com", "secret")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestMalformedBodyIsUpstreamError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	})
	_, err := client.FetchEvent(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUpstream.Code, appErrors.FromError(err).Code)
}

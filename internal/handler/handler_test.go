package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/checkin-sync-agent/internal/dto"
	"github.com/noah-isme/checkin-sync-agent/internal/middleware"
	"github.com/noah-isme/checkin-sync-agent/internal/models"
	"github.com/noah-isme/checkin-sync-agent/internal/service"
	"github.com/noah-isme/checkin-sync-agent/internal/websocket"
	appErrors "github.com/noah-isme/checkin-sync-agent/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(r http.Handler, method, target string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NoError(t, json.Unmarshal(env.Data, out))
}

type checkinServiceMock struct {
	result    *dto.CheckinResult
	err       error
	connected *bool
	status    models.AttendeeStatus
}

func (m *checkinServiceMock) CheckIn(ctx context.Context, eventID, attendeeID int64) (*dto.CheckinResult, error) {
	return m.result, m.err
}

func (m *checkinServiceMock) RecordCheckIn(ctx context.Context, eventID, attendeeID int64, isConnected bool) (*dto.CheckinResult, error) {
	m.connected = &isConnected
	return m.result, m.err
}

func (m *checkinServiceMock) GetStatus(eventID, attendeeID int64) models.AttendeeStatus {
	return m.status
}

type publisherMock struct {
	types []websocket.MessageType
}

func (p *publisherMock) Publish(msgType websocket.MessageType, payload interface{}) {
	p.types = append(p.types, msgType)
}

func checkinRouter(svc checkinService, pub checkinPublisher) *gin.Engine {
	r := gin.New()
	h := NewCheckinHandler(svc, pub, nil)
	r.POST("/events/:id/checkins", h.Create)
	r.GET("/events/:id/attendees/:attendeeId/status", h.Status)
	return r
}

func TestCheckinHandlerStatusCodes(t *testing.T) {
	cases := []struct {
		name   string
		result dto.CheckinResult
		code   int
		pushed int
	}{
		{"confirmed", dto.CheckinResult{Status: models.AttendeeStatusCheckedIn}, http.StatusCreated, 1},
		{"queued", dto.CheckinResult{Status: models.AttendeeStatusPending, Queued: true}, http.StatusAccepted, 1},
		{"duplicate", dto.CheckinResult{Status: models.AttendeeStatusPending, Queued: true, Duplicate: true}, http.StatusOK, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := tc.result
			pub := &publisherMock{}
			r := checkinRouter(&checkinServiceMock{result: &result}, pub)

			w := perform(r, http.MethodPost, "/events/1/checkins", dto.CheckinRequest{AttendeeID: 7})
			assert.Equal(t, tc.code, w.Code)
			assert.Len(t, pub.types, tc.pushed)
		})
	}
}

func TestCheckinHandlerHonoursConnectedOverride(t *testing.T) {
	svc := &checkinServiceMock{result: &dto.CheckinResult{Status: models.AttendeeStatusPending, Queued: true}}
	r := checkinRouter(svc, nil)
	offline := false

	w := perform(r, http.MethodPost, "/events/1/checkins", dto.CheckinRequest{AttendeeID: 7, Connected: &offline})
	assert.Equal(t, http.StatusAccepted, w.Code)
	require.NotNil(t, svc.connected)
	assert.False(t, *svc.connected)
}

func TestCheckinHandlerValidation(t *testing.T) {
	r := checkinRouter(&checkinServiceMock{}, nil)

	assert.Equal(t, http.StatusBadRequest, perform(r, http.MethodPost, "/events/abc/checkins", dto.CheckinRequest{AttendeeID: 7}).Code)
	assert.Equal(t, http.StatusBadRequest, perform(r, http.MethodPost, "/events/1/checkins", dto.CheckinRequest{}).Code)
	assert.Equal(t, http.StatusBadRequest, perform(r, http.MethodPost, "/events/1/checkins", dto.CheckinRequest{AttendeeID: -3}).Code)
}

func TestCheckinHandlerStatus(t *testing.T) {
	r := checkinRouter(&checkinServiceMock{status: models.AttendeeStatusPending}, nil)

	w := perform(r, http.MethodGet, "/events/1/attendees/7/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var res dto.StatusResponse
	decodeData(t, w, &res)
	assert.Equal(t, dto.StatusResponse{EventID: 1, AttendeeID: 7, Status: models.AttendeeStatusPending}, res)
}

type eventServiceMock struct {
	list   *dto.EventListResponse
	filter dto.AttendeeFilter
	err    error
}

func (m *eventServiceMock) ListEvents(ctx context.Context) (*dto.EventListResponse, error) {
	return m.list, m.err
}

func (m *eventServiceMock) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Event{ID: id, Title: "Launch"}, nil
}

func (m *eventServiceMock) ListAttendees(ctx context.Context, eventID int64, filter dto.AttendeeFilter) (*dto.AttendeeListResponse, error) {
	m.filter = filter
	return &dto.AttendeeListResponse{EventID: eventID, Attendees: []dto.AttendeeWithStatus{}}, m.err
}

func eventRouter(svc eventService) *gin.Engine {
	r := gin.New()
	h := NewEventHandler(svc, nil)
	r.GET("/events", h.List)
	r.GET("/events/:id", h.Get)
	r.GET("/events/:id/attendees", h.Attendees)
	return r
}

func TestEventHandlerListCarriesStaleMeta(t *testing.T) {
	r := eventRouter(&eventServiceMock{list: &dto.EventListResponse{Events: []models.Event{{ID: 1}}, Stale: true}})

	w := perform(r, http.MethodGet, "/events", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"stale":true`)
}

func TestEventHandlerAttendeesFilter(t *testing.T) {
	svc := &eventServiceMock{}
	r := eventRouter(svc)

	w := perform(r, http.MethodGet, "/events/1/attendees?search=ada&status=pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.AttendeeFilter{Search: "ada", Status: models.AttendeeStatusPending}, svc.filter)

	w = perform(r, http.MethodGet, "/events/1/attendees?status=unknown", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEventHandlerPropagatesErrors(t *testing.T) {
	r := eventRouter(&eventServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "event not found")})
	assert.Equal(t, http.StatusNotFound, perform(r, http.MethodGet, "/events/9", nil).Code)
}

type syncServiceMock struct {
	result *models.SyncResult
	err    error
	last   *models.SyncResult
}

func (m *syncServiceMock) Sync(ctx context.Context, trigger models.SyncTrigger) (*models.SyncResult, error) {
	if m.result != nil {
		m.result.Trigger = trigger
	}
	return m.result, m.err
}

func (m *syncServiceMock) LastResult() (models.SyncResult, bool) {
	if m.last == nil {
		return models.SyncResult{}, false
	}
	return *m.last, true
}

type pendingMock []models.CheckinRecord

func (p pendingMock) Pending() []models.CheckinRecord { return p }

func syncRouter(svc syncService, pending pendingReader) *gin.Engine {
	r := gin.New()
	h := NewSyncHandler(svc, pending)
	r.GET("/sync/pending", h.Pending)
	r.POST("/sync", h.Trigger)
	r.GET("/sync/last", h.Last)
	return r
}

func TestSyncHandler(t *testing.T) {
	svc := &syncServiceMock{result: &models.SyncResult{Synced: 2}}
	r := syncRouter(svc, pendingMock{{EventID: 1, AttendeeID: 7}})

	w := perform(r, http.MethodGet, "/sync/pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var pending dto.PendingResponse
	decodeData(t, w, &pending)
	assert.Equal(t, 1, pending.Count)

	w = perform(r, http.MethodPost, "/sync", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var result models.SyncResult
	decodeData(t, w, &result)
	assert.Equal(t, models.SyncTriggerManual, result.Trigger)
	assert.Equal(t, 2, result.Synced)

	assert.Equal(t, http.StatusNotFound, perform(r, http.MethodGet, "/sync/last", nil).Code)
}

func TestSyncHandlerConflictWhileRunning(t *testing.T) {
	r := syncRouter(&syncServiceMock{err: appErrors.ErrSyncInProgress}, pendingMock(nil))

	assert.Equal(t, http.StatusConflict, perform(r, http.MethodPost, "/sync", nil).Code)

	w := perform(r, http.MethodGet, "/sync/pending", nil)
	assert.Contains(t, w.Body.String(), `"pending":[]`)
}

type connectivityMock struct {
	state models.ConnectivityState
}

func (m *connectivityMock) Connectivity() models.ConnectivityState { return m.state }
func (m *connectivityMock) Set(isConnected bool)                   { m.state.IsConnected = isConnected }

func TestConnectivityHandler(t *testing.T) {
	mock := &connectivityMock{state: models.ConnectivityState{IsConnected: true}}
	r := gin.New()
	h := NewConnectivityHandler(mock, mock, nil)
	r.GET("/connectivity", h.Get)
	r.PUT("/connectivity", h.Set)

	w := perform(r, http.MethodPut, "/connectivity", map[string]bool{"isConnected": false})
	require.Equal(t, http.StatusOK, w.Code)
	var state models.ConnectivityState
	decodeData(t, w, &state)
	assert.False(t, state.IsConnected)

	assert.Equal(t, http.StatusBadRequest, perform(r, http.MethodPut, "/connectivity", map[string]string{}).Code)
}

type reportServiceMock struct {
	format dto.RosterFormat
	err    error
}

func (m *reportServiceMock) Roster(ctx context.Context, eventID int64, format dto.RosterFormat) (*service.ExportResult, error) {
	m.format = format
	if m.err != nil {
		return nil, m.err
	}
	return &service.ExportResult{Filename: "event-1-roster.csv", ContentType: "text/csv", Data: []byte("ID\n")}, nil
}

func TestReportHandlerRoster(t *testing.T) {
	svc := &reportServiceMock{}
	r := gin.New()
	h := NewReportHandler(svc, nil)
	r.GET("/events/:id/roster", h.Roster)

	w := perform(r, http.MethodGet, "/events/1/roster?format=csv", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "event-1-roster.csv")
	assert.Equal(t, dto.RosterFormatCSV, svc.format)

	assert.Equal(t, http.StatusBadRequest, perform(r, http.MethodGet, "/events/1/roster?format=xlsx", nil).Code)
}

type authServiceMock struct {
	loggedOut string
}

func (m *authServiceMock) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if req.Password != "secret" {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "Invalid credentials")
	}
	return &models.LoginResponse{AccessToken: "token"}, nil
}

func (m *authServiceMock) Logout(reason string) { m.loggedOut = reason }

func (m *authServiceMock) CurrentUser() (*models.UserInfo, error) {
	return &models.UserInfo{ID: 1, Role: models.RoleOrganizer}, nil
}

func TestAuthHandler(t *testing.T) {
	svc := &authServiceMock{}
	h := NewAuthHandler(svc)
	r := gin.New()
	r.POST("/auth/login", h.Login)
	r.POST("/auth/logout", h.Logout)
	r.GET("/auth/me", h.Me)
	r.GET("/auth/me-authed", func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: 1})
		h.Me(c)
	})

	assert.Equal(t, http.StatusOK, perform(r, http.MethodPost, "/auth/login", models.LoginRequest{Email: "a@b.co", Password: "secret"}).Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodPost, "/auth/login", models.LoginRequest{Email: "a@b.co", Password: "nope"}).Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodGet, "/auth/me", nil).Code)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/auth/me-authed", nil).Code)

	assert.Equal(t, http.StatusNoContent, perform(r, http.MethodPost, "/auth/logout", nil).Code)
	assert.Equal(t, "user logout", svc.loggedOut)
}

func TestMetricsHandlerReadiness(t *testing.T) {
	healthy := NewMetricsHandler(service.NewMetricsService(), map[string]ReadinessCheck{
		"storage": func(ctx context.Context) error { return nil },
	})
	failing := NewMetricsHandler(nil, map[string]ReadinessCheck{
		"storage": func(ctx context.Context) error { return appErrors.ErrInternal },
	})
	r := gin.New()
	r.GET("/ready", healthy.Ready)
	r.GET("/ready-failing", failing.Ready)
	r.GET("/metrics", healthy.Prometheus)
	r.GET("/metrics-nil", failing.Prometheus)

	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/ready", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, perform(r, http.MethodGet, "/ready-failing", nil).Code)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/metrics", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, perform(r, http.MethodGet, "/metrics-nil", nil).Code)
}

func TestWebSocketHandlerStreamsHubMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := websocket.NewHub(nil)
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/ws", NewWebSocketHandler(hub, nil).Stream)
	server := httptest.NewServer(r)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, hub.Publish(websocket.TypeSyncCompleted, map[string]int{"synced": 1}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg websocket.Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, websocket.TypeSyncCompleted, msg.Type)
}

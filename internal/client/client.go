// Package client talks to the remote check-in backend.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/checkin-sync-agent/internal/models"
	appErrors "github.com/noah-isme/checkin-sync-agent/pkg/errors"
)

const (
	pathEvents   = "/events"
	pathAttendee = "/attendees"
	pathCheckins = "/checkins"
	pathUsers    = "/users"

	idempotencyHeader = "Idempotency-Key"
	maxErrorBody      = 64 << 10
)

// TokenProvider returns the bearer token to attach, or "" for anonymous calls.
type TokenProvider func() string

// UnauthorizedHandler is invoked whenever the backend answers 401.
type UnauthorizedHandler func()

// Config configures the backend client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// CheckinPayload is the body of POST /checkins.
type CheckinPayload struct {
	EventID    int64                `json:"eventId"`
	AttendeeID int64                `json:"attendeeId"`
	Status     models.CheckinStatus `json:"status"`
	Timestamp  string               `json:"timestamp"`
	Synced     bool                 `json:"synced"`
	ClientRef  string               `json:"clientRef,omitempty"`
}

// Client is a thin JSON client over the backend REST API. Every failure is
// returned as *errors.Error carrying the upstream status and message.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger

	mu             sync.RWMutex
	tokenProvider  TokenProvider
	onUnauthorized UnauthorizedHandler
}

// New constructs a Client. A zero timeout defaults to 15 seconds.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		logger:  logger,
	}
}

// SetTokenProvider swaps the bearer token source.
func (c *Client) SetTokenProvider(p TokenProvider) {
	c.mu.Lock()
	c.tokenProvider = p
	c.mu.Unlock()
}

// SetUnauthorizedHandler registers the 401 hook.
func (c *Client) SetUnauthorizedHandler(h UnauthorizedHandler) {
	c.mu.Lock()
	c.onUnauthorized = h
	c.mu.Unlock()
}

// BaseURL exposes the configured backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchEvents lists all events.
func (c *Client) FetchEvents(ctx context.Context) ([]models.Event, error) {
	var events []models.Event
	if err := c.do(ctx, http.MethodGet, pathEvents, nil, nil, nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// FetchEvent loads one event.
func (c *Client) FetchEvent(ctx context.Context, id int64) (*models.Event, error) {
	var event models.Event
	path := pathEvents + "/" + strconv.FormatInt(id, 10)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, nil, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// FetchAttendees lists the attendees of an event.
func (c *Client) FetchAttendees(ctx context.Context, eventID int64) ([]models.Attendee, error) {
	query := url.Values{"eventId": {strconv.FormatInt(eventID, 10)}}
	var attendees []models.Attendee
	if err := c.do(ctx, http.MethodGet, pathAttendee, query, nil, nil, &attendees); err != nil {
		return nil, err
	}
	return attendees, nil
}

// FetchCheckins lists confirmed check-ins; eventID 0 lists every event.
func (c *Client) FetchCheckins(ctx context.Context, eventID int64) ([]models.CheckinRecord, error) {
	var query url.Values
	if eventID > 0 {
		query = url.Values{"eventId": {strconv.FormatInt(eventID, 10)}}
	}
	var records []models.CheckinRecord
	if err := c.do(ctx, http.MethodGet, pathCheckins, query, nil, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// CreateCheckin posts one check-in. ClientRef travels as the idempotency key.
func (c *Client) CreateCheckin(ctx context.Context, payload CheckinPayload) (*models.CheckinRecord, error) {
	headers := http.Header{}
	if payload.ClientRef != "" {
		headers.Set(idempotencyHeader, payload.ClientRef)
	}
	var record models.CheckinRecord
	if err := c.do(ctx, http.MethodPost, pathCheckins, nil, payload, headers, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// FindUser resolves credentials against the backend user listing.
func (c *Client) FindUser(ctx context.Context, email, password string) (*models.User, error) {
	query := url.Values{"email": {email}, "password": {password}}
	var users []models.User
	if err := c.do(ctx, http.MethodGet, pathUsers, query, nil, nil, &users); err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "Invalid credentials")
	}
	return &users[0], nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}, headers http.Header, out interface{}) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("backend request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return appErrors.FromError(err)
	}
	defer resp.Body.Close()

	c.logger.Debug("backend request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := appErrors.FromHTTPStatus(resp.StatusCode, extractMessage(raw))
		if resp.StatusCode == http.StatusUnauthorized {
			c.unauthorized()
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, fmt.Sprintf("invalid response from %s", path))
	}
	return nil
}

func (c *Client) token() string {
	c.mu.RLock()
	p := c.tokenProvider
	c.mu.RUnlock()
	if p == nil {
		return ""
	}
	return p()
}

func (c *Client) unauthorized() {
	c.mu.RLock()
	h := c.onUnauthorized
	c.mu.RUnlock()
	if h != nil {
		h()
	}
}

// extractMessage pulls a human message out of either {"message": ...} or the
// {"error": {"message": ...}} envelope.
func extractMessage(raw []byte) string {
	if len(bytes.TrimSpace(raw)) == 0 {
		return ""
	}
	var body struct {
		Message string `json:"message"`
		Error   *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	if body.Error != nil {
		return body.Error.Message
	}
	return ""
}

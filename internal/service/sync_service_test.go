package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/checkin-sync-agent/internal/models"
	"github.com/noah-isme/checkin-sync-agent/internal/state"
	appErrors "github.com/noah-isme/checkin-sync-agent/pkg/errors"
)

type stubSubmitter struct {
	mu      sync.Mutex
	calls   []models.CheckinRecord
	fail    map[models.CheckinPair]error
	nextID  int64
	block   chan struct{}
	entered chan struct{}
}

func (s *stubSubmitter) Submit(ctx context.Context, record models.CheckinRecord) (*models.CheckinRecord, error) {
	s.mu.Lock()
	s.calls = append(s.calls, record)
	err := s.fail[record.Pair()]
	s.nextID++
	id := s.nextID
	block, entered := s.block, s.entered
	s.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	return &models.CheckinRecord{
		ID:         id,
		EventID:    record.EventID,
		AttendeeID: record.AttendeeID,
		Status:     models.CheckinStatusCheckedIn,
		Timestamp:  "2025-12-14T09:00:00Z",
		Synced:     true,
	}, nil
}

func (s *stubSubmitter) setFailure(pair models.CheckinPair, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail == nil {
		s.fail = make(map[models.CheckinPair]error)
	}
	if err == nil {
		delete(s.fail, pair)
		return
	}
	s.fail[pair] = err
}

func (s *stubSubmitter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type countingNotifier struct {
	results []models.SyncResult
}

func (n *countingNotifier) SyncCompleted(_ context.Context, result models.SyncResult) {
	n.results = append(n.results, result)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 12, 14, 9, 0, 0, 0, time.UTC)}
}

func pendingEntry(eventID, attendeeID int64) models.CheckinRecord {
	return models.CheckinRecord{EventID: eventID, AttendeeID: attendeeID, Timestamp: "2025-12-14T08:59:00Z"}
}

var errNetwork = appErrors.Clone(appErrors.ErrNetwork, "connection refused")

func TestSyncDrainsQueue(t *testing.T) {
	store := state.New()
	for _, a := range []int64{7, 8, 9} {
		store.EnqueuePending(pendingEntry(1, a))
	}
	submitter := &stubSubmitter{}
	notifier := &countingNotifier{}
	svc := NewSyncService(store, submitter, nil, SyncConfig{Notifier: notifier, Metrics: NewMetricsService()})

	result, err := svc.Sync(context.Background(), models.SyncTriggerReconnect)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Attempted)
	assert.Equal(t, 3, result.Synced)
	assert.Zero(t, result.Remaining)
	assert.Zero(t, store.PendingCount())
	confirmed := store.Checkins(1)
	require.Len(t, confirmed, 3)
	for _, c := range confirmed {
		assert.True(t, c.Synced)
		assert.Equal(t, models.AttendeeStatusCheckedIn, ResolveStatus(1, c.AttendeeID, store.Pending(), confirmed))
	}
	require.Len(t, notifier.results, 1)
	assert.Equal(t, 3, notifier.results[0].Synced)
	assert.Equal(t, []int64{7, 8, 9}, []int64{submitter.calls[0].AttendeeID, submitter.calls[1].AttendeeID, submitter.calls[2].AttendeeID})
}

func TestSyncPartialFailureKeepsFailedEntry(t *testing.T) {
	store := state.New()
	for _, a := range []int64{7, 8, 9} {
		store.EnqueuePending(pendingEntry(1, a))
	}
	submitter := &stubSubmitter{}
	submitter.setFailure(models.CheckinPair{EventID: 1, AttendeeID: 8}, errNetwork)
	notifier := &countingNotifier{}
	svc := NewSyncService(store, submitter, nil, SyncConfig{Notifier: notifier})

	result, err := svc.Sync(context.Background(), models.SyncTriggerReconnect)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Synced)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Remaining)
	pending := store.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, int64(8), pending[0].AttendeeID)
	assert.Len(t, store.Checkins(1), 2)
	assert.Len(t, notifier.results, 1)

	failed := result.Items[1]
	assert.Equal(t, models.SyncOutcomeFailed, failed.Outcome)
	assert.Equal(t, appErrors.ErrNetwork.Code, failed.ErrorCode)
	assert.Equal(t, 1, svc.Attempts(1, 8))
}

func TestSyncEmptyQueueDoesNotNotify(t *testing.T) {
	store := state.New()
	submitter := &stubSubmitter{}
	notifier := &countingNotifier{}
	svc := NewSyncService(store, submitter, nil, SyncConfig{Notifier: notifier})

	result, err := svc.Sync(context.Background(), models.SyncTriggerReconnect)
	require.NoError(t, err)
	assert.Zero(t, result.Attempted)
	assert.Zero(t, submitter.callCount())
	assert.Empty(t, notifier.results)
}

func TestSyncAllFailuresDoNotNotify(t *testing.T) {
	store := state.New()
	store.EnqueuePending(pendingEntry(1, 7))
	submitter := &stubSubmitter{}
	submitter.setFailure(models.CheckinPair{EventID: 1, AttendeeID: 7}, errNetwork)
	notifier := &countingNotifier{}
	svc := NewSyncService(store, submitter, nil, SyncConfig{Notifier: notifier})

	result, err := svc.Sync(context.Background(), models.SyncTriggerReconnect)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.False(t, result.Completed())
	assert.Empty(t, notifier.results)
	assert.Equal(t, 1, store.PendingCount())
}

func TestSyncDuplicatePendingEntriesSubmitOnce(t *testing.T) {
	store := state.New()
	store.EnqueuePending(pendingEntry(1, 7))
	store.EnqueuePending(pendingEntry(1, 7))
	submitter := &stubSubmitter{}
	svc := NewSyncService(store, submitter, nil, SyncConfig{})

	result, err := svc.Sync(context.Background(), models.SyncTriggerReconnect)
	require.NoError(t, err)

	assert.Equal(t, 1, submitter.callCount())
	assert.Equal(t, 1, result.Synced)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, models.SyncOutcomeResolved, result.Items[1].Outcome)
	assert.Zero(t, store.PendingCount())
	assert.Len(t, store.Checkins(1), 1)
}

func TestSyncDuplicateOfFailedPairIsDeferred(t *testing.T) {
	store := state.New()
	store.EnqueuePending(pendingEntry(1, 7))
	store.EnqueuePending(pendingEntry(1, 7))
	submitter := &stubSubmitter{}
	submitter.setFailure(models.CheckinPair{EventID: 1, AttendeeID: 7}, errNetwork)
	svc := NewSyncService(store, submitter, nil, SyncConfig{})

	result, err := svc.Sync(context.Background(), models.SyncTriggerReconnect)
	require.NoError(t, err)

	assert.Equal(t, 1, submitter.callCount())
	assert.Equal(t, models.SyncOutcomeDeferred, result.Items[1].Outcome)
	assert.Equal(t, 2, store.PendingCount())
}

func TestSyncBoundedRetry(t *testing.T) {
	store := state.New()
	store.EnqueuePending(pendingEntry(1, 7))
	submitter := &stubSubmitter{}
	pair := models.CheckinPair{EventID: 1, AttendeeID: 7}
	submitter.setFailure(pair, errNetwork)
	svc := NewSyncService(store, submitter, nil, SyncConfig{Policy: RetryPolicy{MaxAttempts: 2}})

	for i := 0; i < 2; i++ {
		_, err := svc.Sync(context.Background(), models.SyncTriggerReconnect)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, submitter.callCount())

	result, err := svc.Sync(context.Background(), models.SyncTriggerReconnect)
	require.NoError(t, err)
	assert.Equal(t, 2, submitter.callCount())
	require.Len(t, result.Items, 1)
	assert.Equal(t, models.SyncOutcomeExhausted, result.Items[0].Outcome)
	assert.Equal(t, 1, store.PendingCount())

	submitter.setFailure(pair, nil)
	result, err = svc.Sync(context.Background(), models.SyncTriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 3, submitter.callCount())
	assert.Equal(t, 1, result.Synced)
	assert.Zero(t, store.PendingCount())
	assert.Zero(t, svc.Attempts(1, 7))
}

func TestSyncBackoffDefersUntilClockAdvances(t *testing.T) {
	store := state.New()
	store.EnqueuePending(pendingEntry(1, 7))
	submitter := &stubSubmitter{}
	pair := models.CheckinPair{EventID: 1, AttendeeID: 7}
	submitter.setFailure(pair, errNetwork)
	clock := newFakeClock()
	svc := NewSyncService(store, submitter, nil, SyncConfig{
		Policy: RetryPolicy{Backoff: ExponentialBackoff(time.Minute, time.Hour)},
		Clock:  clock.Now,
	})

	_, err := svc.Sync(context.Background(), models.SyncTriggerReconnect)
	require.NoError(t, err)
	require.Equal(t, 1, submitter.callCount())

	clock.Advance(30 * time.Second)
	result, err := svc.Sync(context.Background(), models.SyncTriggerReconnect)
	require.NoError(t, err)
	assert.Equal(t, 1, submitter.callCount())
	assert.Equal(t, models.SyncOutcomeDeferred, result.Items[0].Outcome)

	clock.Advance(31 * time.Second)
	submitter.setFailure(pair, nil)
	result, err = svc.Sync(context.Background(), models.SyncTriggerReconnect)
	require.NoError(t, err)
	assert.Equal(t, 2, submitter.callCount())
	assert.Equal(t, 1, result.Synced)
}

func TestSyncUnauthorizedContinuesWithRemainingEntries(t *testing.T) {
	store := state.New()
	store.EnqueuePending(pendingEntry(1, 7))
	store.EnqueuePending(pendingEntry(1, 8))
	submitter := &stubSubmitter{}
	submitter.setFailure(models.CheckinPair{EventID: 1, AttendeeID: 7}, appErrors.FromHTTPStatus(http.StatusUnauthorized, "expired"))
	notifier := &countingNotifier{}
	svc := NewSyncService(store, submitter, nil, SyncConfig{Notifier: notifier})

	result, err := svc.Sync(context.Background(), models.SyncTriggerReconnect)
	require.NoError(t, err)
	assert.Equal(t, 2, submitter.callCount())
	assert.Equal(t, 2, result.Attempted)
	assert.Equal(t, 1, result.Synced)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Remaining)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, result.Items[0].ErrorCode)
	assert.True(t, store.HasPending(1, 7))
	assert.False(t, store.HasPending(1, 8))
	assert.Len(t, notifier.results, 1)
}

func TestSyncPassesDoNotOverlap(t *testing.T) {
	store := state.New()
	store.EnqueuePending(pendingEntry(1, 7))
	submitter := &stubSubmitter{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	svc := NewSyncService(store, submitter, nil, SyncConfig{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = svc.Sync(context.Background(), models.SyncTriggerReconnect)
	}()
	<-submitter.entered

	_, err := svc.Sync(context.Background(), models.SyncTriggerManual)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrSyncInProgress))

	close(submitter.block)
	<-done
	last, ok := svc.LastResult()
	require.True(t, ok)
	assert.Equal(t, 1, last.Synced)
}

func TestSyncStopsOnCancelledContext(t *testing.T) {
	store := state.New()
	store.EnqueuePending(pendingEntry(1, 7))
	submitter := &stubSubmitter{}
	svc := NewSyncService(store, submitter, nil, SyncConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := svc.Sync(ctx, models.SyncTriggerReconnect)
	require.NoError(t, err)
	assert.Zero(t, submitter.callCount())
	assert.Equal(t, 1, result.Remaining)
}

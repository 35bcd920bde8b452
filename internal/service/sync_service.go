package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/checkin-sync-agent/internal/models"
	appErrors "github.com/noah-isme/checkin-sync-agent/pkg/errors"
)

type syncStore interface {
	Pending() []models.CheckinRecord
	PendingCount() int
	HasPending(eventID, attendeeID int64) bool
	UpsertCheckin(record models.CheckinRecord)
	DequeuePending(eventID, attendeeID int64) int
}

type checkinSubmitter interface {
	Submit(ctx context.Context, record models.CheckinRecord) (*models.CheckinRecord, error)
}

// SyncConfig wires optional collaborators of the SyncService.
type SyncConfig struct {
	Policy   RetryPolicy
	Clock    func() time.Time
	Notifier Notifier
	Metrics  *MetricsService
}

type attemptState struct {
	failures    int
	nextAttempt time.Time
}

// SyncService drains the pending queue through the submitter. Passes never overlap.
type SyncService struct {
	store     syncStore
	submitter checkinSubmitter
	notifier  Notifier
	metrics   *MetricsService
	policy    RetryPolicy
	now       func() time.Time
	logger    *zap.Logger

	running sync.Mutex

	mu       sync.Mutex
	attempts map[models.CheckinPair]*attemptState
	last     *models.SyncResult
}

// NewSyncService constructs a SyncService.
func NewSyncService(store syncStore, submitter checkinSubmitter, logger *zap.Logger, cfg SyncConfig) *SyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return time.Now().UTC() }
	}
	if cfg.Policy.Backoff == nil {
		cfg.Policy.Backoff = NoBackoff
	}
	return &SyncService{
		store:     store,
		submitter: submitter,
		notifier:  cfg.Notifier,
		metrics:   cfg.Metrics,
		policy:    cfg.Policy,
		now:       cfg.Clock,
		logger:    logger,
		attempts:  make(map[models.CheckinPair]*attemptState),
	}
}

// Sync runs one pass over the pending queue. Entries are submitted one at a time in
// queue order; a success upserts the server record and then dequeues the pair, a
// failure leaves the entry queued and the pass moves on. Manual passes ignore the
// retry budget and backoff. The notifier fires once iff something synced.
func (s *SyncService) Sync(ctx context.Context, trigger models.SyncTrigger) (*models.SyncResult, error) {
	if !s.running.TryLock() {
		return nil, appErrors.Clone(appErrors.ErrSyncInProgress, "a sync pass is already running")
	}
	defer s.running.Unlock()

	forced := trigger == models.SyncTriggerManual
	if forced {
		s.resetAttempts()
	}

	result := models.SyncResult{Trigger: trigger, StartedAt: s.now(), Items: []models.SyncItemResult{}}

	queue := s.store.Pending()
	failedThisPass := make(map[models.CheckinPair]bool)

	for _, entry := range queue {
		if entry.Synced {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		pair := entry.Pair()

		if !s.store.HasPending(pair.EventID, pair.AttendeeID) {
			result.Items = append(result.Items, models.SyncItemResult{EventID: pair.EventID, AttendeeID: pair.AttendeeID, Outcome: models.SyncOutcomeResolved})
			result.Skipped++
			continue
		}
		if failedThisPass[pair] {
			result.Items = append(result.Items, models.SyncItemResult{EventID: pair.EventID, AttendeeID: pair.AttendeeID, Outcome: models.SyncOutcomeDeferred})
			result.Skipped++
			continue
		}

		failures, nextAttempt := s.attemptInfo(pair)
		if !forced {
			if s.policy.exhausted(failures) {
				result.Items = append(result.Items, models.SyncItemResult{EventID: pair.EventID, AttendeeID: pair.AttendeeID, Outcome: models.SyncOutcomeExhausted, Attempt: failures})
				result.Skipped++
				continue
			}
			if s.now().Before(nextAttempt) {
				result.Items = append(result.Items, models.SyncItemResult{EventID: pair.EventID, AttendeeID: pair.AttendeeID, Outcome: models.SyncOutcomeDeferred, Attempt: failures})
				result.Skipped++
				continue
			}
		}

		attempt := failures + 1
		result.Attempted++
		confirmed, err := s.submitter.Submit(ctx, entry)
		if err != nil {
			apiErr := appErrors.FromError(err)
			s.recordFailure(pair)
			failedThisPass[pair] = true
			result.Failed++
			result.Items = append(result.Items, models.SyncItemResult{
				EventID: pair.EventID, AttendeeID: pair.AttendeeID,
				Outcome: models.SyncOutcomeFailed, Attempt: attempt,
				ErrorCode: apiErr.Code, Error: apiErr.Message,
			})
			s.logger.Warn("pending check-in not synced",
				zap.String("pair", pair.String()),
				zap.Int("attempt", attempt),
				zap.String("code", apiErr.Code),
			)
			continue
		}

		s.store.UpsertCheckin(*confirmed)
		s.store.DequeuePending(pair.EventID, pair.AttendeeID)
		s.clearAttempts(pair)
		result.Synced++
		result.Items = append(result.Items, models.SyncItemResult{EventID: pair.EventID, AttendeeID: pair.AttendeeID, Outcome: models.SyncOutcomeSynced, Attempt: attempt})
	}

	result.FinishedAt = s.now()
	result.Remaining = s.store.PendingCount()

	s.mu.Lock()
	last := result
	s.last = &last
	s.mu.Unlock()

	s.metrics.ObserveSyncPass(result)
	if result.Attempted > 0 || result.Skipped > 0 {
		s.logger.Info("sync pass finished",
			zap.String("trigger", string(trigger)),
			zap.Int("attempted", result.Attempted),
			zap.Int("synced", result.Synced),
			zap.Int("failed", result.Failed),
			zap.Int("skipped", result.Skipped),
			zap.Int("remaining", result.Remaining),
		)
	}

	if result.Completed() && s.notifier != nil {
		s.notifier.SyncCompleted(ctx, result)
	}

	return &result, nil
}

// LastResult returns the most recent pass result, if any.
func (s *SyncService) LastResult() (models.SyncResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return models.SyncResult{}, false
	}
	return *s.last, true
}

// Attempts returns the recorded failure count of a pair.
func (s *SyncService) Attempts(eventID, attendeeID int64) int {
	failures, _ := s.attemptInfo(models.CheckinPair{EventID: eventID, AttendeeID: attendeeID})
	return failures
}

func (s *SyncService) attemptInfo(pair models.CheckinPair) (int, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.attempts[pair]
	if !ok {
		return 0, time.Time{}
	}
	return st.failures, st.nextAttempt
}

func (s *SyncService) recordFailure(pair models.CheckinPair) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.attempts[pair]
	if !ok {
		st = &attemptState{}
		s.attempts[pair] = st
	}
	st.failures++
	st.nextAttempt = s.now().Add(s.policy.delay(st.failures))
}

func (s *SyncService) clearAttempts(pair models.CheckinPair) {
	s.mu.Lock()
	delete(s.attempts, pair)
	s.mu.Unlock()
}

func (s *SyncService) resetAttempts() {
	s.mu.Lock()
	s.attempts = make(map[models.CheckinPair]*attemptState)
	s.mu.Unlock()
}

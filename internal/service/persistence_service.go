package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/checkin-sync-agent/internal/models"
	"github.com/noah-isme/checkin-sync-agent/internal/state"
	appErrors "github.com/noah-isme/checkin-sync-agent/pkg/errors"
)

type snapshotRepository interface {
	Load(ctx context.Context) (*models.Snapshot, error)
	Save(ctx context.Context, snap models.Snapshot) error
	Driver() string
}

type snapshotStore interface {
	Snapshot() models.Snapshot
	Restore(snap models.Snapshot)
	OnChange(l state.Listener) func()
}

// PersistenceService mirrors the persisted subset of the store into a snapshot
// repository. Saves are coalesced: bursts of mutations produce one write.
type PersistenceService struct {
	repo    snapshotRepository
	store   snapshotStore
	metrics *MetricsService
	logger  *zap.Logger

	dirty       chan struct{}
	unsubscribe func()
	wg          sync.WaitGroup
	mu          sync.Mutex
}

// NewPersistenceService constructs a PersistenceService.
func NewPersistenceService(repo snapshotRepository, store snapshotStore, metrics *MetricsService, logger *zap.Logger) *PersistenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PersistenceService{
		repo:    repo,
		store:   store,
		metrics: metrics,
		logger:  logger,
		dirty:   make(chan struct{}, 1),
	}
}

// Restore loads the last snapshot into the store. A missing snapshot is not an error.
func (s *PersistenceService) Restore(ctx context.Context) error {
	snap, err := s.repo.Load(ctx)
	if err != nil {
		if errors.Is(err, appErrors.ErrSnapshotNotFound) {
			s.logger.Info("no persisted snapshot, starting empty", zap.String("driver", s.repo.Driver()))
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load snapshot")
	}
	s.store.Restore(*snap)
	s.logger.Info("state restored",
		zap.String("driver", s.repo.Driver()),
		zap.Int("events", len(snap.Events)),
		zap.Int("pending", len(snap.PendingCheckins)),
	)
	return nil
}

// Start subscribes to store changes and saves in the background until ctx is done.
// A final save runs on shutdown.
func (s *PersistenceService) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsubscribe != nil {
		return
	}
	s.unsubscribe = s.store.OnChange(func(change state.Change) {
		if change == state.ChangeConnectivity || change == state.ChangeRestore {
			return
		}
		select {
		case s.dirty <- struct{}{}:
		default:
		}
	})

	s.wg.Add(1)
	go s.loop(ctx)
}

// Wait blocks until the background loop has exited.
func (s *PersistenceService) Wait() {
	s.wg.Wait()
}

// Flush saves the current snapshot immediately.
func (s *PersistenceService) Flush(ctx context.Context) error {
	start := time.Now()
	if err := s.repo.Save(ctx, s.store.Snapshot()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save snapshot")
	}
	s.metrics.ObserveSnapshotWrite(s.repo.Driver(), time.Since(start))
	return nil
}

func (s *PersistenceService) loop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			if s.unsubscribe != nil {
				s.unsubscribe()
				s.unsubscribe = nil
			}
			s.mu.Unlock()
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.Flush(flushCtx); err != nil {
				s.logger.Error("final snapshot save failed", zap.Error(err))
			}
			cancel()
			return
		case <-s.dirty:
			if err := s.Flush(ctx); err != nil {
				s.logger.Warn("snapshot save failed", zap.Error(err))
			}
		}
	}
}

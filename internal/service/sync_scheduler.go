package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/checkin-sync-agent/internal/models"
	appErrors "github.com/noah-isme/checkin-sync-agent/pkg/errors"
	"github.com/noah-isme/checkin-sync-agent/pkg/jobs"
)

const syncJobType = "sync"

type syncRunner interface {
	Sync(ctx context.Context, trigger models.SyncTrigger) (*models.SyncResult, error)
}

// SyncScheduler serializes automatic sync triggers onto a single worker. Triggers
// arriving while one is already waiting collapse into it.
type SyncScheduler struct {
	runner syncRunner
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewSyncScheduler constructs a SyncScheduler.
func NewSyncScheduler(runner syncRunner, logger *zap.Logger) *SyncScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &SyncScheduler{runner: runner, logger: logger}
	s.queue = jobs.NewQueue("sync", s.handle, jobs.QueueConfig{
		Workers:    1,
		BufferSize: 4,
		MaxRetries: 3,
		RetryDelay: 2 * time.Second,
		Coalesce:   true,
		Logger:     logger,
	})
	return s
}

// Start begins processing triggers.
func (s *SyncScheduler) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop waits for the worker to exit.
func (s *SyncScheduler) Stop() {
	s.queue.Stop()
}

// Trigger schedules a pass and reports whether a new job was queued.
func (s *SyncScheduler) Trigger(trigger models.SyncTrigger) bool {
	queued, err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: syncJobType, Payload: trigger})
	if err != nil {
		s.logger.Warn("failed to schedule sync", zap.String("trigger", string(trigger)), zap.Error(err))
		return false
	}
	return queued
}

func (s *SyncScheduler) handle(ctx context.Context, job jobs.Job) error {
	trigger, ok := job.Payload.(models.SyncTrigger)
	if !ok {
		trigger = models.SyncTriggerReconnect
	}
	_, err := s.runner.Sync(ctx, trigger)
	if err != nil && errors.Is(err, appErrors.ErrSyncInProgress) {
		// a manual pass holds the lock; try again shortly
		return err
	}
	if err != nil {
		s.logger.Error("sync pass failed", zap.Error(err))
	}
	return nil
}

package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/checkin-sync-agent/internal/dto"
	"github.com/noah-isme/checkin-sync-agent/internal/models"
	"github.com/noah-isme/checkin-sync-agent/pkg/config"
	appErrors "github.com/noah-isme/checkin-sync-agent/pkg/errors"
)

type checkinStore interface {
	Connectivity() models.ConnectivityState
	View(eventID int64) (pending, confirmed []models.CheckinRecord)
	EnqueuePending(record models.CheckinRecord)
	UpsertCheckin(record models.CheckinRecord)
	PendingCount() int
}

// CheckinService handles interactive check-ins from the organizer UI.
type CheckinService struct {
	store     checkinStore
	submitter checkinSubmitter
	strategy  string
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewCheckinService constructs a CheckinService. Unknown strategies fall back to confirm.
func NewCheckinService(store checkinStore, submitter checkinSubmitter, strategy string, metrics *MetricsService, logger *zap.Logger) *CheckinService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strategy != config.StrategyOptimistic {
		strategy = config.StrategyConfirm
	}
	return &CheckinService{
		store:     store,
		submitter: submitter,
		strategy:  strategy,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// GetStatus resolves the current status of an attendee.
func (s *CheckinService) GetStatus(eventID, attendeeID int64) models.AttendeeStatus {
	pending, confirmed := s.store.View(eventID)
	return ResolveStatus(eventID, attendeeID, pending, confirmed)
}

// CheckIn records a check-in using the agent's own connectivity flag.
func (s *CheckinService) CheckIn(ctx context.Context, eventID, attendeeID int64) (*dto.CheckinResult, error) {
	return s.RecordCheckIn(ctx, eventID, attendeeID, s.store.Connectivity().IsConnected)
}

// RecordCheckIn records a tap. Offline taps are queued. Online taps are submitted
// and queued when the submission fails, so the caller never sees a hard error for
// connectivity problems. A pair that is already pending or checked in is not
// submitted again.
func (s *CheckinService) RecordCheckIn(ctx context.Context, eventID, attendeeID int64, isConnected bool) (*dto.CheckinResult, error) {
	if eventID <= 0 || attendeeID <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "eventId and attendeeId must be positive")
	}

	result := &dto.CheckinResult{EventID: eventID, AttendeeID: attendeeID}

	switch s.GetStatus(eventID, attendeeID) {
	case models.AttendeeStatusPending:
		result.Status = models.AttendeeStatusPending
		result.Queued = true
		result.Duplicate = true
		return result, nil
	case models.AttendeeStatusCheckedIn:
		if !s.hasLocalOnlyRecord(eventID, attendeeID) {
			result.Status = models.AttendeeStatusCheckedIn
			result.Duplicate = true
			return result, nil
		}
	}

	tap := models.CheckinRecord{
		EventID:    eventID,
		AttendeeID: attendeeID,
		Status:     models.CheckinStatusCheckedIn,
		Timestamp:  s.now().Format(time.RFC3339),
		ClientRef:  uuid.NewString(),
	}

	if s.strategy == config.StrategyOptimistic {
		s.store.UpsertCheckin(tap)
	}

	if !isConnected {
		s.enqueue(tap)
		result.Status = models.AttendeeStatusPending
		result.Queued = true
		s.logger.Info("check-in queued while offline", zap.Int64("event_id", eventID), zap.Int64("attendee_id", attendeeID))
		return result, nil
	}

	confirmed, err := s.submitter.Submit(ctx, tap)
	if err != nil {
		apiErr := appErrors.FromError(err)
		s.enqueue(tap)
		result.Status = models.AttendeeStatusPending
		result.Queued = true
		result.ErrorCode = apiErr.Code
		result.Error = apiErr.Message
		return result, nil
	}

	s.store.UpsertCheckin(*confirmed)
	result.Status = models.AttendeeStatusCheckedIn
	result.Record = confirmed
	return result, nil
}

func (s *CheckinService) enqueue(tap models.CheckinRecord) {
	s.store.EnqueuePending(tap)
	s.metrics.SetPending(s.store.PendingCount())
}

// hasLocalOnlyRecord reports whether the confirmed record for the pair is an
// optimistic local write that the server never acknowledged.
func (s *CheckinService) hasLocalOnlyRecord(eventID, attendeeID int64) bool {
	_, confirmed := s.store.View(eventID)
	for _, c := range confirmed {
		if c.AttendeeID == attendeeID {
			return !c.Synced
		}
	}
	return false
}

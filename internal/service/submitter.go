package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/checkin-sync-agent/internal/client"
	"github.com/noah-isme/checkin-sync-agent/internal/models"
	appErrors "github.com/noah-isme/checkin-sync-agent/pkg/errors"
)

type checkinAPI interface {
	CreateCheckin(ctx context.Context, payload client.CheckinPayload) (*models.CheckinRecord, error)
}

// CheckinSubmitter performs a single check-in call against the backend. It never
// retries; failures come back as *errors.Error.
type CheckinSubmitter struct {
	api     checkinAPI
	logger  *zap.Logger
	metrics *MetricsService
	now     func() time.Time
}

// NewCheckinSubmitter constructs a CheckinSubmitter.
func NewCheckinSubmitter(api checkinAPI, logger *zap.Logger, metrics *MetricsService) *CheckinSubmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckinSubmitter{
		api:     api,
		logger:  logger,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Submit posts the check-in described by record. Only the pair, the client reference
// and the original tap timestamp are used; the returned record is the server copy
// with Status forced to checked_in and Synced forced to true.
func (s *CheckinSubmitter) Submit(ctx context.Context, record models.CheckinRecord) (*models.CheckinRecord, error) {
	if !record.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "eventId and attendeeId must be positive")
	}

	ref := record.ClientRef
	if ref == "" {
		ref = uuid.NewString()
	}
	timestamp := record.Timestamp
	if timestamp == "" {
		timestamp = s.now().Format(time.RFC3339)
	}

	start := time.Now()
	created, err := s.api.CreateCheckin(ctx, client.CheckinPayload{
		EventID:    record.EventID,
		AttendeeID: record.AttendeeID,
		Status:     models.CheckinStatusCheckedIn,
		Timestamp:  timestamp,
		Synced:     true,
		ClientRef:  ref,
	})
	elapsed := time.Since(start)
	if err != nil {
		apiErr := appErrors.FromError(err)
		s.metrics.ObserveSubmit("error", elapsed)
		s.logger.Warn("check-in submission failed",
			zap.Int64("event_id", record.EventID),
			zap.Int64("attendee_id", record.AttendeeID),
			zap.String("code", apiErr.Code),
			zap.Int("status", apiErr.Status),
		)
		return nil, apiErr
	}
	s.metrics.ObserveSubmit("success", elapsed)

	confirmed := *created
	if confirmed.EventID == 0 {
		confirmed.EventID = record.EventID
	}
	if confirmed.AttendeeID == 0 {
		confirmed.AttendeeID = record.AttendeeID
	}
	if confirmed.Timestamp == "" {
		confirmed.Timestamp = timestamp
	}
	if confirmed.ClientRef == "" {
		confirmed.ClientRef = ref
	}
	confirmed.Status = models.CheckinStatusCheckedIn
	confirmed.Synced = true
	return &confirmed, nil
}

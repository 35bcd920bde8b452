package repository

import (
	"encoding/json"
	"fmt"

	"github.com/noah-isme/checkin-sync-agent/internal/models"
	appErrors "github.com/noah-isme/checkin-sync-agent/pkg/errors"
)

func encodeSnapshot(snap models.Snapshot) ([]byte, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return payload, nil
}

func decodeSnapshot(raw []byte) (*models.Snapshot, error) {
	var snap models.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snap.Version > models.SnapshotVersion {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("snapshot version %d is newer than supported %d", snap.Version, models.SnapshotVersion))
	}
	return &snap, nil
}

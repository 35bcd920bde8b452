package repository

import (
	"context"
	"sync"

	"github.com/noah-isme/checkin-sync-agent/internal/models"
	appErrors "github.com/noah-isme/checkin-sync-agent/pkg/errors"
)

// MemorySnapshotRepository keeps the encoded snapshot in process memory.
type MemorySnapshotRepository struct {
	mu      sync.RWMutex
	payload []byte
}

// NewMemorySnapshotRepository constructs an empty in-memory repository.
func NewMemorySnapshotRepository() *MemorySnapshotRepository {
	return &MemorySnapshotRepository{}
}

// Driver names the backend.
func (r *MemorySnapshotRepository) Driver() string { return "memory" }

// Load returns the stored snapshot.
func (r *MemorySnapshotRepository) Load(ctx context.Context) (*models.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.payload == nil {
		return nil, appErrors.ErrSnapshotNotFound
	}
	return decodeSnapshot(r.payload)
}

// Save replaces the stored snapshot.
func (r *MemorySnapshotRepository) Save(ctx context.Context, snap models.Snapshot) error {
	payload, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.payload = payload
	r.mu.Unlock()
	return nil
}

// Clear drops the stored snapshot.
func (r *MemorySnapshotRepository) Clear(ctx context.Context) error {
	r.mu.Lock()
	r.payload = nil
	r.mu.Unlock()
	return nil
}

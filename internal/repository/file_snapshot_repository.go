package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/noah-isme/checkin-sync-agent/internal/models"
	appErrors "github.com/noah-isme/checkin-sync-agent/pkg/errors"
)

// FileSnapshotRepository persists the snapshot as a JSON file on disk.
type FileSnapshotRepository struct {
	path string
	mu   sync.Mutex
}

// NewFileSnapshotRepository ensures the parent directory exists and returns a handle.
func NewFileSnapshotRepository(path string) (*FileSnapshotRepository, error) {
	if path == "" {
		path = "./data/state.json"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	return &FileSnapshotRepository{path: path}, nil
}

// Driver names the backend.
func (r *FileSnapshotRepository) Driver() string { return "file" }

// Path exposes the snapshot file location.
func (r *FileSnapshotRepository) Path() string { return r.path }

// Load reads and decodes the snapshot file.
func (r *FileSnapshotRepository) Load(ctx context.Context) (*models.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, appErrors.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("read snapshot file: %w", err)
	}
	return decodeSnapshot(raw)
}

// Save writes the snapshot through a temporary file and renames it into place so a
// crash never leaves a truncated file behind.
func (r *FileSnapshotRepository) Save(ctx context.Context, snap models.Snapshot) error {
	payload, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create snapshot temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write snapshot file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close snapshot file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace snapshot file: %w", err)
	}
	return nil
}

// Clear removes the snapshot file if present.
func (r *FileSnapshotRepository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete snapshot file: %w", err)
	}
	return nil
}

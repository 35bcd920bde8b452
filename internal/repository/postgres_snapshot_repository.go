package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/checkin-sync-agent/internal/models"
	appErrors "github.com/noah-isme/checkin-sync-agent/pkg/errors"
)

type snapshotRow struct {
	Key     string    `db:"key"`
	Version int       `db:"version"`
	Payload []byte    `db:"payload"`
	SavedAt time.Time `db:"saved_at"`
}

// PostgresSnapshotRepository keeps one snapshot row per agent key.
type PostgresSnapshotRepository struct {
	db  *sqlx.DB
	key string
}

// NewPostgresSnapshotRepository constructs the repository.
func NewPostgresSnapshotRepository(db *sqlx.DB, key string) *PostgresSnapshotRepository {
	if key == "" {
		key = "checkin:state"
	}
	return &PostgresSnapshotRepository{db: db, key: key}
}

// Driver names the backend.
func (r *PostgresSnapshotRepository) Driver() string { return "postgres" }

// EnsureSchema creates the snapshot table when missing.
func (r *PostgresSnapshotRepository) EnsureSchema(ctx context.Context) error {
	const query = `CREATE TABLE IF NOT EXISTS client_snapshots (
    key TEXT PRIMARY KEY,
    version INTEGER NOT NULL,
    payload JSONB NOT NULL,
    saved_at TIMESTAMPTZ NOT NULL
)`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure snapshot schema: %w", err)
	}
	return nil
}

// Load fetches the stored snapshot.
func (r *PostgresSnapshotRepository) Load(ctx context.Context) (*models.Snapshot, error) {
	const query = `SELECT key, version, payload, saved_at FROM client_snapshots WHERE key = $1`
	var row snapshotRow
	if err := r.db.GetContext(ctx, &row, query, r.key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return decodeSnapshot(row.Payload)
}

// Save upserts the snapshot row.
func (r *PostgresSnapshotRepository) Save(ctx context.Context, snap models.Snapshot) error {
	payload, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	const query = `INSERT INTO client_snapshots (key, version, payload, saved_at)
VALUES (:key, :version, :payload, :saved_at)
ON CONFLICT (key)
DO UPDATE SET version = EXCLUDED.version, payload = EXCLUDED.payload, saved_at = EXCLUDED.saved_at`
	row := snapshotRow{Key: r.key, Version: snap.Version, Payload: payload, SavedAt: snap.SavedAt}
	if row.SavedAt.IsZero() {
		row.SavedAt = time.Now().UTC()
	}
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Clear deletes the snapshot row.
func (r *PostgresSnapshotRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM client_snapshots WHERE key = $1`, r.key); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/checkin-sync-agent/internal/models"
	appErrors "github.com/noah-isme/checkin-sync-agent/pkg/errors"
)

func sampleSnapshot() models.Snapshot {
	fetched := time.Date(2025, 12, 14, 8, 0, 0, 0, time.UTC)
	return models.Snapshot{
		Version:     models.SnapshotVersion,
		Session:     &models.Session{Token: "tok", User: models.User{ID: 3, Name: "Org"}},
		Events:      []models.Event{{ID: 1, Title: "Launch"}},
		LastFetched: &fetched,
		AttendeesByEvent: map[int64][]models.Attendee{
			1: {{ID: 7, EventID: 1, Name: "Ada"}},
		},
		CheckinsByEvent: map[int64][]models.CheckinRecord{
			1: {{ID: 100, EventID: 1, AttendeeID: 8, Status: models.CheckinStatusCheckedIn, Synced: true}},
		},
		PendingCheckins: []models.CheckinRecord{{EventID: 1, AttendeeID: 7, Status: models.CheckinStatusPending, ClientRef: "ref-1"}},
		SavedAt:         fetched.Add(time.Minute),
	}
}

func TestFileSnapshotRepositoryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	repo, err := NewFileSnapshotRepository(path)
	require.NoError(t, err)

	_, err = repo.Load(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrSnapshotNotFound)

	snap := sampleSnapshot()
	require.NoError(t, repo.Save(context.Background(), snap))

	loaded, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, snap.Events, loaded.Events)
	assert.Equal(t, snap.PendingCheckins, loaded.PendingCheckins)
	assert.Equal(t, snap.CheckinsByEvent, loaded.CheckinsByEvent)
	assert.Equal(t, "tok", loaded.Session.Token)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")

	require.NoError(t, repo.Clear(context.Background()))
	_, err = repo.Load(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrSnapshotNotFound)
	require.NoError(t, repo.Clear(context.Background()))
}

func TestFileSnapshotRepositoryRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))
	repo, err := NewFileSnapshotRepository(path)
	require.NoError(t, err)

	_, err = repo.Load(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, appErrors.ErrSnapshotNotFound)
}

func TestDecodeSnapshotRejectsNewerVersion(t *testing.T) {
	_, err := decodeSnapshot([]byte(`{"version": 99}`))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestMemorySnapshotRepositoryRoundTrip(t *testing.T) {
	repo := NewMemorySnapshotRepository()
	_, err := repo.Load(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrSnapshotNotFound)

	require.NoError(t, repo.Save(context.Background(), sampleSnapshot()))
	loaded, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, loaded.PendingCheckins, 1)

	require.NoError(t, repo.Clear(context.Background()))
	_, err = repo.Load(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrSnapshotNotFound)
}

func TestRedisSnapshotRepositoryWithoutClient(t *testing.T) {
	repo := NewRedisSnapshotRepository(nil, "", nil)
	_, err := repo.Load(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrSnapshotNotFound)
	assert.NoError(t, repo.Save(context.Background(), sampleSnapshot()))
	assert.NoError(t, repo.Clear(context.Background()))
	assert.NoError(t, repo.Close())
	assert.Equal(t, "redis", repo.Driver())
}

func newSnapshotRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

func TestPostgresSnapshotRepositorySave(t *testing.T) {
	db, mock, cleanup := newSnapshotRepoMock(t)
	defer cleanup()
	repo := NewPostgresSnapshotRepository(db, "agent-1")

	mock.ExpectExec("INSERT INTO client_snapshots").
		WithArgs("agent-1", int64(models.SnapshotVersion), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Save(context.Background(), sampleSnapshot()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSnapshotRepositoryLoad(t *testing.T) {
	db, mock, cleanup := newSnapshotRepoMock(t)
	defer cleanup()
	repo := NewPostgresSnapshotRepository(db, "agent-1")

	payload, err := encodeSnapshot(sampleSnapshot())
	require.NoError(t, err)
	rows := sqlmock.NewRows([]string{"key", "version", "payload", "saved_at"}).
		AddRow("agent-1", models.SnapshotVersion, payload, time.Now())
	mock.ExpectQuery("SELECT key, version, payload, saved_at FROM client_snapshots").
		WithArgs("agent-1").
		WillReturnRows(rows)

	loaded, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, loaded.Events, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSnapshotRepositoryLoadMissing(t *testing.T) {
	db, mock, cleanup := newSnapshotRepoMock(t)
	defer cleanup()
	repo := NewPostgresSnapshotRepository(db, "")

	mock.ExpectQuery("SELECT key, version, payload, saved_at FROM client_snapshots").
		WithArgs("checkin:state").
		WillReturnRows(sqlmock.NewRows([]string{"key", "version", "payload", "saved_at"}))

	_, err := repo.Load(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrSnapshotNotFound)
}

func TestPostgresSnapshotRepositoryEnsureSchemaAndClear(t *testing.T) {
	db, mock, cleanup := newSnapshotRepoMock(t)
	defer cleanup()
	repo := NewPostgresSnapshotRepository(db, "agent-1")

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS client_snapshots").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM client_snapshots").WithArgs("agent-1").WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.EnsureSchema(context.Background()))
	require.NoError(t, repo.Clear(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

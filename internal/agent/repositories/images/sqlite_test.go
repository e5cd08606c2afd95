package images

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/edgekeeper/internal/agent/models"
	"github.com/dmitrijs2005/edgekeeper/internal/common"
	"github.com/dmitrijs2005/edgekeeper/internal/dbx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columns = []string{"id", "event_id", "seq", "file_path", "checksum", "size_bytes", "width", "height", "format",
	"captured_at", "sync_status", "upload_attempts", "last_attempt_at", "retry_count", "next_retry_at", "last_error", "updated_at"}

func newRepoWithMock(t *testing.T) (*SQLiteRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewSQLiteRepository(db), mock, db
}

func imageRow(rows *sqlmock.Rows, id, eventID string, seq int, status string, at time.Time) *sqlmock.Rows {
	return rows.AddRow(id, eventID, seq, "/img/"+id+".jpg", "c0ffee", int64(2048), 640, 480, "jpeg",
		at.UnixNano(), status, 0, nil, 0, nil, "", at.UnixNano())
}

func TestInsert_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	at := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec(`(?s)^INSERT INTO images\b.*VALUES`).
		WithArgs("im-1", "ev-1", 3, "/img/im-1.jpg", "abc", int64(100), 640, 480, "jpeg",
			at.UnixNano(), "PENDING", 0, sqlmock.AnyArg(), 0, sqlmock.AnyArg(), "", at.UnixNano()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Insert(context.Background(), &models.ImageRecord{
		ID: "im-1", EventID: "ev-1", Seq: 3, FilePath: "/img/im-1.jpg", Checksum: "abc", SizeBytes: 100,
		Width: 640, Height: 480, Format: "jpeg", CapturedAt: at,
		SyncState: models.SyncState{Status: models.StatusPending, UpdatedAt: at},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM images WHERE images.id = \?`).WithArgs("x").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "x")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestListSyncable_RequiresConfirmedParent(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	at := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(columns)
	imageRow(rows, "im-1", "ev-1", 0, "PENDING", at)
	imageRow(rows, "im-2", "ev-1", 1, "PENDING", at)

	mock.ExpectQuery(`(?s)JOIN capture_events ON capture_events.id = images.event_id\s+WHERE images.sync_status = 'PENDING' AND capture_events.sync_status = 'CONFIRMED'\s+ORDER BY images.captured_at`).
		WithArgs(10).
		WillReturnRows(rows)

	got, err := repo.ListSyncable(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[1].Seq)
	assert.Equal(t, int64(2048), got[0].SizeBytes)
	assert.True(t, got[0].LastAttemptAt.IsZero())
}

func TestClaim_CountsAttempt(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	q := `(?s)UPDATE images\s+SET sync_status = 'UPLOADING', upload_attempts = upload_attempts \+ 1.*WHERE id = \? AND sync_status = 'PENDING'`

	mock.ExpectExec(q).WithArgs(now.UnixNano(), now.UnixNano(), "im-1").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Claim(context.Background(), "im-1", now))

	mock.ExpectExec(q).WithArgs(now.UnixNano(), now.UnixNano(), "im-1").WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, repo.Claim(context.Background(), "im-1", now), dbx.ErrNoRowsAffected)
}

func TestTransitionAndFail(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE images SET sync_status = \?, updated_at = \? WHERE id = \? AND sync_status = \?`).
		WithArgs("CONFIRMED", now.UnixNano(), "im-1", "UPLOADING").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Transition(context.Background(), "im-1", models.StatusUploading, models.StatusConfirmed, now))

	next := now.Add(time.Minute)
	mock.ExpectExec(`(?s)UPDATE images\s+SET sync_status = 'FAILED', retry_count = retry_count \+ 1`).
		WithArgs(next.UnixNano(), "checksum mismatch", now.UnixNano(), "im-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Fail(context.Background(), "im-2", next, "checksum mismatch", now))

	err := repo.Transition(context.Background(), "im-1", models.StatusConfirmed, models.StatusFailed, now)
	require.ErrorIs(t, err, common.ErrInvalidTransition)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecoverUploading_OnlyStaleRows(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	stale := now.Add(-30 * time.Second)

	mock.ExpectExec(`(?s)UPDATE images\s+SET sync_status = 'FAILED'.*last_error = 'upload interrupted'.*WHERE sync_status = 'UPLOADING' AND updated_at <= \?`).
		WithArgs(now.UnixNano(), now.UnixNano(), stale.UnixNano()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.RecoverUploading(context.Background(), stale, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	mock.ExpectExec(`(?s)UPDATE images\s+SET sync_status = 'FAILED'.*WHERE sync_status = 'UPLOADING'`).
		WillReturnError(errors.New("disk I/O error"))
	_, err = repo.RecoverUploading(context.Background(), stale, now)
	require.ErrorContains(t, err, "recover images")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListPurgeable_AndGuardedDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	cutoff := time.Date(2026, 9, 19, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(columns)
	imageRow(rows, "im-1", "ev-1", 0, "CONFIRMED", cutoff.Add(-time.Hour))

	mock.ExpectQuery(`(?s)WHERE images.sync_status = 'CONFIRMED' AND images.captured_at < \?`).
		WithArgs(cutoff.UnixNano(), 100).
		WillReturnRows(rows)

	got, err := repo.ListPurgeable(context.Background(), cutoff, 100)
	require.NoError(t, err)
	require.Len(t, got, 1)

	mock.ExpectExec(`DELETE FROM images WHERE id = \? AND sync_status = 'CONFIRMED' AND captured_at < \?`).
		WithArgs("im-1", cutoff.UnixNano()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, repo.DeleteIfPurgeable(context.Background(), "im-1", cutoff), dbx.ErrNoRowsAffected)
}

func TestTotalBytes(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(size_bytes\), 0\) FROM images`).
		WillReturnRows(sqlmock.NewRows([]string{"total"}).AddRow(int64(4096)))

	total, err := repo.TotalBytes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4096), total)

	mock.ExpectQuery(`SUM\(size_bytes\)`).WillReturnError(errors.New("disk I/O error"))
	_, err = repo.TotalBytes(context.Background())
	require.Error(t, err)
}

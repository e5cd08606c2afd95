package dbx

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:dbx_tests?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS t (id INTEGER PRIMARY KEY, v TEXT);`)
	require.NoError(t, err)
	return db
}

func countRows(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM t`).Scan(&n))
	return n
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	db := setupDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('ok')`)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, 1, countRows(t, db), "must commit on success")
}

func TestWithTx_RollbackOnFnError(t *testing.T) {
	db := setupDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, e := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('fail')`)
		require.NoError(t, e)
		return errors.New("boom")
	})
	require.Error(t, err)

	require.Equal(t, 0, countRows(t, db), "must rollback when fn returns error")
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	db := setupDB(t)

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic to propagate")
		}
		require.Equal(t, 0, countRows(t, db), "must rollback on panic")
	}()

	_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, e := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('panic')`)
		require.NoError(t, e)
		panic("kaput")
	})
}

func TestWithTx_BeginError(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Close())

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		return nil
	})
	require.Error(t, err, "begin should fail when DB is closed")
}

func TestExpectOneRow(t *testing.T) {
	t.Run("exactly one", func(t *testing.T) {
		require.NoError(t, ExpectOneRow(sqlmock.NewResult(0, 1), nil))
	})

	t.Run("none", func(t *testing.T) {
		err := ExpectOneRow(sqlmock.NewResult(0, 0), nil)
		require.ErrorIs(t, err, ErrNoRowsAffected)
	})

	t.Run("too many", func(t *testing.T) {
		err := ExpectOneRow(sqlmock.NewResult(0, 3), nil)
		require.Error(t, err)
		require.NotErrorIs(t, err, ErrNoRowsAffected)
	})

	t.Run("exec error wins", func(t *testing.T) {
		boom := errors.New("disk I/O error")
		require.ErrorIs(t, ExpectOneRow(nil, boom), boom)
	})

	t.Run("rows affected error", func(t *testing.T) {
		err := ExpectOneRow(sqlmock.NewErrorResult(errors.New("unsupported")), nil)
		require.ErrorContains(t, err, "rows affected")
	})
}

func TestWithTx_EachCommitPersists(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, WithTx(ctx, db, nil, func(ctx context.Context, tx DBTX) error {
			res, err := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('row')`)
			return ExpectOneRow(res, err)
		}))
	}
	require.Equal(t, 3, countRows(t, db))
}

func TestInTx_ReturnsValueOnCommit(t *testing.T) {
	db := setupDB(t)

	id, err := InTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) (int64, error) {
		res, err := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('value')`)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	})
	require.NoError(t, err)
	require.Positive(t, id)
	require.Equal(t, 1, countRows(t, db))
}

func TestInTx_ZeroValueOnRollback(t *testing.T) {
	db := setupDB(t)
	boom := errors.New("constraint failed")

	got, err := InTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) (string, error) {
		_, e := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('gone')`)
		require.NoError(t, e)
		return "partial", boom
	})
	require.ErrorIs(t, err, boom)
	require.Empty(t, got)
	require.Equal(t, 0, countRows(t, db))
}

func TestInTx_CommitErrorIsReported(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("database is locked"))

	got, err := InTx(context.Background(), db, nil, func(context.Context, DBTX) (bool, error) {
		return true, nil
	})
	require.ErrorContains(t, err, "commit tx")
	require.False(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

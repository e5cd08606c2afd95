package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/edgekeeper/internal/agent/repositories/metadata"
	"github.com/dmitrijs2005/edgekeeper/internal/agent/repositories/repomanager"
	"github.com/dmitrijs2005/edgekeeper/internal/backoff"
	"github.com/dmitrijs2005/edgekeeper/internal/common"
	"github.com/dmitrijs2005/edgekeeper/internal/dbx"
	"github.com/dmitrijs2005/edgekeeper/internal/filex"
	"github.com/dmitrijs2005/edgekeeper/internal/logging"

	_ "modernc.org/sqlite"
)

// DefaultStaleAfter is how long a record may sit in UPLOADING before the
// pending listings treat the upload as abandoned.
const DefaultStaleAfter = time.Minute

// Options configure Open. Only Path and DeviceID are required.
type Options struct {
	Path     string
	DeviceID string
	Backoff  backoff.Policy
	// StaleAfter must exceed the longest upload call.
	StaleAfter time.Duration
	Now        func() time.Time
	Logger     logging.Logger
	Repos      repomanager.RepositoryManager
}

type Store struct {
	db       *sql.DB
	repos    repomanager.RepositoryManager
	deviceID   string
	backoff    backoff.Policy
	staleAfter time.Duration
	now        func() time.Time
	logger     logging.Logger
}

func dsn(path string) string {
	return "file:" + path +
		"?_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(FULL)" +
		"&_pragma=foreign_keys(1)"
}

// Open opens (creating if needed) the database at opts.Path, applies
// migrations, binds it to opts.DeviceID and fails any upload a previous
// process left half-done. Every error is fatal for the agent.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Path == "" || opts.DeviceID == "" {
		return nil, fmt.Errorf("store: path and device id are required: %w", common.ErrStorage)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop{}
	}
	if opts.Repos == nil {
		opts.Repos = repomanager.NewSQLiteRepositoryManager(opts.Logger)
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	if opts.Backoff == (backoff.Policy{}) {
		opts.Backoff = backoff.DefaultPolicy()
	}

	if _, err := filex.EnsureDir(filepath.Dir(opts.Path)); err != nil {
		return nil, fmt.Errorf("store: %w: %w", common.ErrStorage, err)
	}

	db, err := sql.Open("sqlite", dsn(opts.Path))
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w: %w", opts.Path, common.ErrStorage, err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{
		db:         db,
		repos:      opts.Repos,
		deviceID:   opts.DeviceID,
		backoff:    opts.Backoff,
		staleAfter: opts.StaleAfter,
		now:        opts.Now,
		logger:     opts.Logger.With("module", "store"),
	}

	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storageErr("ping", err)
	}
	if err := s.repos.RunMigrations(ctx, s.db); err != nil {
		return storageErr("migrate", err)
	}
	if err := s.bindDevice(ctx); err != nil {
		return err
	}
	return s.recoverInterrupted(ctx)
}

func (s *Store) bindDevice(ctx context.Context) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		md := s.repos.Metadata(tx)

		stored, err := md.Get(ctx, metadata.KeyDeviceID)
		if err != nil {
			return storageErr("read device binding", err)
		}
		if stored == nil {
			if err := md.Set(ctx, metadata.KeyDeviceID, []byte(s.deviceID)); err != nil {
				return storageErr("write device binding", err)
			}
			return md.Set(ctx, metadata.KeyCreatedAt, []byte(s.now().UTC().Format(time.RFC3339)))
		}
		if string(stored) != s.deviceID {
			return fmt.Errorf("store belongs to %q, agent is %q: %w", stored, s.deviceID, common.ErrDeviceMismatch)
		}
		return nil
	})
}

func (s *Store) recoverInterrupted(ctx context.Context) error {
	now := s.now()
	var nEvents, nImages int64

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		if nEvents, err = s.repos.Events(tx).RecoverUploading(ctx, now, now); err != nil {
			return err
		}
		nImages, err = s.repos.Images(tx).RecoverUploading(ctx, now, now)
		return err
	})
	if err != nil {
		return storageErr("recover interrupted uploads", err)
	}
	if nEvents+nImages > 0 {
		s.logger.Warn(ctx, "recovered interrupted uploads", "events", nEvents, "images", nImages)
	}
	return nil
}

// Close releases the database. It is safe to call once all loops stopped.
func (s *Store) Close() error {
	return s.db.Close()
}

func storageErr(op string, err error) error {
	if errors.Is(err, common.ErrStorage) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, common.ErrStorage, err)
}

package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/edgekeeper/internal/agent/migrations"
	"github.com/dmitrijs2005/edgekeeper/internal/agent/repositories/events"
	"github.com/dmitrijs2005/edgekeeper/internal/agent/repositories/images"
	"github.com/dmitrijs2005/edgekeeper/internal/agent/repositories/metadata"
	"github.com/dmitrijs2005/edgekeeper/internal/agent/repositories/readings"
	"github.com/dmitrijs2005/edgekeeper/internal/dbx"
	"github.com/dmitrijs2005/edgekeeper/internal/logging"
	"github.com/pressly/goose/v3"
)

// goose keeps its base FS, dialect and logger in package globals.
var gooseMu sync.Mutex

type SQLiteRepositoryManager struct {
	logger logging.Logger
}

// NewSQLiteRepositoryManager returns a manager whose migration output goes
// to logger. A nil logger discards it.
func NewSQLiteRepositoryManager(logger logging.Logger) *SQLiteRepositoryManager {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &SQLiteRepositoryManager{logger: logger.With("module", "migrations")}
}

// gooseLogger routes goose's printf-style output into a logging.Logger.
type gooseLogger struct {
	ctx    context.Context
	logger logging.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.logger.Info(l.ctx, strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.logger.Error(l.ctx, strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (m *SQLiteRepositoryManager) Events(db dbx.DBTX) events.Repository {
	return events.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Readings(db dbx.DBTX) readings.Repository {
	return readings.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Images(db dbx.DBTX) images.Repository {
	return images.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Metadata(db dbx.DBTX) metadata.Repository {
	return metadata.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetLogger(gooseLogger{ctx: ctx, logger: m.logger})
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

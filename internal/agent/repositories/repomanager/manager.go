// Package repomanager vends repositories bound to a dbx.DBTX, so the same
// code runs against *sql.DB or inside a transaction, and applies the schema
// migrations.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/edgekeeper/internal/agent/repositories/events"
	"github.com/dmitrijs2005/edgekeeper/internal/agent/repositories/images"
	"github.com/dmitrijs2005/edgekeeper/internal/agent/repositories/metadata"
	"github.com/dmitrijs2005/edgekeeper/internal/agent/repositories/readings"
	"github.com/dmitrijs2005/edgekeeper/internal/dbx"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Events(db dbx.DBTX) events.Repository
	Readings(db dbx.DBTX) readings.Repository
	Images(db dbx.DBTX) images.Repository
	Metadata(db dbx.DBTX) metadata.Repository
}

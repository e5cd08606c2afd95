package readings

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/edgekeeper/internal/agent/models"
	"github.com/dmitrijs2005/edgekeeper/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Insert(ctx context.Context, rd *models.Reading) error {
	query := `INSERT INTO readings (id, event_id, sensor_type, value, unit, captured_at) VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query, rd.ID, rd.EventID, rd.SensorType, rd.Value, rd.Unit, dbx.Nanos(rd.CapturedAt))
	if err != nil {
		return fmt.Errorf("failed to insert reading %s: %w", rd.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) ListByEvent(ctx context.Context, eventID string) ([]*models.Reading, error) {
	query := `SELECT id, event_id, sensor_type, value, unit, captured_at FROM readings
		WHERE event_id = ? ORDER BY captured_at, id`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("error selecting readings: %w", err)
	}
	defer rows.Close()

	var result []*models.Reading
	for rows.Next() {
		var rd models.Reading
		var at int64
		if err := rows.Scan(&rd.ID, &rd.EventID, &rd.SensorType, &rd.Value, &rd.Unit, &at); err != nil {
			return nil, fmt.Errorf("failed to scan reading row: %w", err)
		}
		rd.CapturedAt = dbx.FromNanos(at)
		result = append(result, &rd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reading rows: %w", err)
	}
	return result, nil
}

// Package readings persists sensor readings. Readings are immutable and are
// removed only by the cascade when their event is deleted.
package readings

import (
	"context"

	"github.com/dmitrijs2005/edgekeeper/internal/agent/models"
)

type Repository interface {
	Insert(ctx context.Context, r *models.Reading) error
	ListByEvent(ctx context.Context, eventID string) ([]*models.Reading, error)
}

package entries

import (
	"context"

	"github.com/dmitrijs2005/tradesync/internal/records"
	"github.com/dmitrijs2005/tradesync/internal/server/models"
)

type Repository interface {
	Lock(ctx context.Context, userID string, c records.Collection) error
	Get(ctx context.Context, userID string, c records.Collection, id string) (*models.Entry, error)
	Upsert(ctx context.Context, entry *models.Entry) error
	SelectSince(ctx context.Context, userID string, c records.Collection, since int64, limit int) ([]*models.Entry, error)
	SelectLive(ctx context.Context, userID string, c records.Collection) ([]*models.Entry, error)
}

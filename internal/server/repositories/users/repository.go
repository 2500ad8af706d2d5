package users

import (
	"context"

	"github.com/dmitrijs2005/tradesync/internal/records"
)

type Repository interface {
	IncrementCurrentVersion(ctx context.Context, userID string, c records.Collection, n int) (int64, error)
	CurrentVersion(ctx context.Context, userID string, c records.Collection) (int64, error)
}

package pointers

import (
	"context"

	"github.com/dmitrijs2005/feedkeeper/internal/server/models"
)

type Repository interface {
	Write(ctx context.Context, ptr *models.ContentPointer, expectedVersion uint64) error
	Get(ctx context.Context, objectID string) (*models.ContentPointer, error)
	SelectReadable(ctx context.Context, requesterID string, objectIDs []string) ([]*models.ContentPointer, error)
}

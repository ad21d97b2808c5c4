package assets

import (
	"context"

	"github.com/dmitrijs2005/assetsync/internal/client/models"
)

// Repository persists FinishedAsset records.
type Repository interface {
	// CreateOrUpdate inserts a new asset or replaces an existing one by ID.
	CreateOrUpdate(ctx context.Context, a *models.FinishedAsset) error

	// GetByID returns common.ErrorNotFound when the id is unknown.
	GetByID(ctx context.Context, id string) (*models.FinishedAsset, error)

	// ListByOwner returns the owner's assets ordered by creation time, then id.
	// An empty owner lists every asset.
	ListByOwner(ctx context.Context, ownerID string) ([]*models.FinishedAsset, error)

	// DeleteByID removes an asset. Returns common.ErrorNotFound when absent.
	DeleteByID(ctx context.Context, id string) error
}

package uploads

import (
	"context"

	"github.com/dmitrijs2005/assetsync/internal/client/models"
)

// Filter selects upload requests. Empty fields match everything.
type Filter struct {
	OwnerID   string
	SessionID string
	Statuses  []models.UploadStatus
}

// Repository persists UploadRequest records.
type Repository interface {
	// Insert stores a new record. The id must be unique.
	Insert(ctx context.Context, r *models.UploadRequest) error

	// Update overwrites every mutable column of an existing record.
	// Returns common.ErrorNotFound when no row has r.ID.
	Update(ctx context.Context, r *models.UploadRequest) error

	// GetByID returns common.ErrorNotFound when the id is unknown.
	GetByID(ctx context.Context, id string) (*models.UploadRequest, error)

	// List returns matching records ordered by creation time, then id.
	List(ctx context.Context, f Filter) ([]*models.UploadRequest, error)
}

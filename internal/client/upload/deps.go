package upload

import (
	"context"
	"image"

	"github.com/dmitrijs2005/assetsync/internal/client/models"
	"github.com/dmitrijs2005/assetsync/internal/feed"
	"github.com/dmitrijs2005/assetsync/internal/media"
	"github.com/dmitrijs2005/assetsync/internal/netx"
)

// Source resolves a local media handle.
type Source interface {
	Probe(ctx context.Context, handle string) (*media.Info, error)
	Image(ctx context.Context, handle string) (image.Image, error)
	Frame(ctx context.Context, handle string) (image.Image, error)
	Bytes(ctx context.Context, handle string) ([]byte, error)
}

type Deriver interface {
	DeriveVariant(img image.Image, edge int) (image.Image, error)
	Encode(img image.Image, contentType string) ([]byte, error)
	Swatch(img image.Image) (string, error)
}

type Transferrer interface {
	PutBytes(ctx context.Context, body []byte, url, contentType string, progress netx.ProgressFunc) error
}

// Store is the part of the local store the service reads, writes and
// observes.
type Store interface {
	InsertUpload(ctx context.Context, r *models.UploadRequest) error
	WriteUpload(ctx context.Context, id string, mutate func(r *models.UploadRequest) error) (*models.UploadRequest, error)
	GetUpload(ctx context.Context, id string) (*models.UploadRequest, error)
	InsertAsset(ctx context.Context, a *models.FinishedAsset) error
	UpsertAsset(ctx context.Context, a *models.FinishedAsset) error
	ObserveUploads(ctx context.Context, ownerID, sessionID string) (*feed.Subscription[models.UploadRequest], error)
	ObserveAssets(ctx context.Context, ownerID string) (*feed.Subscription[models.FinishedAsset], error)
}

// AssetClient fetches the backend's copy of an asset.
type AssetClient interface {
	RefreshAsset(ctx context.Context, id string) (*models.AssetModel, error)
}

// Issuer fills in destinations for a prepared request.
type Issuer interface {
	Issue(ctx context.Context, req *models.UploadRequest) (models.Manifest, error)
}

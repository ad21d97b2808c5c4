package client

import (
	"context"

	"github.com/dmitrijs2005/assetsync/internal/client/models"
)

type Client interface {
	Close() error
	Ping(ctx context.Context) error
	RefreshAsset(ctx context.Context, id string) (*models.AssetModel, error)
}

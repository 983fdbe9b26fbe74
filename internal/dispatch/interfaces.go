package dispatch

import (
	"context"

	"github.com/raine/wardrobe/internal/objectstore"
	"github.com/raine/wardrobe/internal/relay"
	"github.com/raine/wardrobe/internal/remote"
	"github.com/raine/wardrobe/internal/wardrobe"
)

// PrimaryStore writes items directly to the hosted store with the caller's
// own credentials.
type PrimaryStore interface {
	Insert(ctx context.Context, item wardrobe.Item) ([]wardrobe.Item, error)
	Update(ctx context.Context, id, ownerID string, patch map[string]any) ([]wardrobe.Item, error)
	Delete(ctx context.Context, id, ownerID string) ([]wardrobe.Item, error)
}

// FallbackStore performs the same writes through the trusted relay.
type FallbackStore interface {
	AddItem(ctx context.Context, idempotencyKey string, item wardrobe.Item) (*wardrobe.Item, error)
	UpdateItem(ctx context.Context, idempotencyKey string, item wardrobe.Item) (*wardrobe.Item, error)
	DeleteItem(ctx context.Context, idempotencyKey, id, ownerID string) (*wardrobe.Item, error)
}

// SessionRefresher renews the caller's credentials.
type SessionRefresher interface {
	RefreshSession(ctx context.Context) error
}

// ObjectStore is the primary upload path.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
	KeyFromURL(url string) (string, bool)
}

// RelayUploader is the fallback upload path.
type RelayUploader interface {
	UploadFile(ctx context.Context, ownerID string, photo wardrobe.Photo) (string, error)
}

// AssetRemover releases the stored photo of a deleted item.
type AssetRemover interface {
	Remove(ctx context.Context, url string)
}

var (
	_ PrimaryStore     = (*remote.Client)(nil)
	_ SessionRefresher = (*remote.Session)(nil)
	_ FallbackStore    = (*relay.Client)(nil)
	_ RelayUploader    = (*relay.Client)(nil)
	_ ObjectStore      = (*objectstore.S3Store)(nil)
	_ AssetRemover     = (*Coordinator)(nil)
)

package cart

import "context"

// Storage is the blob store a cart is persisted to. Get reports found=false
// when nothing was ever stored under key.
type Storage interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
}

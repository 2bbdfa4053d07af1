package cart

import "context"

type ctxKey struct{}

// NewContext attaches s to ctx for consumers resolved with FromContext.
func NewContext(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the store attached to ctx. It fails with
// ErrNotInitialized when none is attached or the attached one is closed.
func FromContext(ctx context.Context) (Cart, error) {
	s, ok := ctx.Value(ctxKey{}).(*Store)
	if !ok || s == nil || !s.active() {
		return nil, ErrNotInitialized
	}
	return s, nil
}

func MustFromContext(ctx context.Context) Cart {
	c, err := FromContext(ctx)
	if err != nil {
		panic(err)
	}
	return c
}

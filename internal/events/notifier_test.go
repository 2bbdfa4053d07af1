package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/andreasstove999/ecommerce-system/cart-store-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/cart-store-go/internal/contracts"
	"github.com/andreasstove999/ecommerce-system/cart-store-go/internal/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakePublisher struct {
	mu      sync.Mutex
	events  []contracts.EventEnvelope
	err     error
	release chan struct{}
}

func (f *fakePublisher) PublishCartUpdated(ctx context.Context, env contracts.EventEnvelope) error {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, env)
	return nil
}

func (f *fakePublisher) sequences() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int64, 0, len(f.events))
	for _, ev := range f.events {
		out = append(out, ev.Sequence)
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifierPublishesStoreChanges(t *testing.T) {
	pub := &fakePublisher{}
	n := NewNotifier(pub, discardLogger(), NotifierOptions{PartitionKey: "cart:device-1"})

	s := cart.New(storage.NewMemory())
	unsubscribe := s.Subscribe(n.Notify)

	s.AddToCart(cart.Product{ID: "A", Title: "T", Price: 4})
	s.Increment("A")
	s.Increment("missing")
	s.Decrement("A")

	unsubscribe()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, n.Close(ctx))
	require.NoError(t, s.Close(ctx))

	require.Equal(t, []int64{1, 2, 3}, pub.sequences())
	last := pub.events[2]
	require.Equal(t, "cart:device-1", last.PartitionKey)
	require.Equal(t, contracts.CartUpdatedEventName, last.EventName)
	require.Equal(t, 1, last.Payload.Items[0].Quantity)
	require.Equal(t, "4.00", last.Payload.Subtotal)
	require.Equal(t, uint64(3), n.published.Load())
}

func TestNotifierDropsWhenBufferFull(t *testing.T) {
	pub := &fakePublisher{release: make(chan struct{})}
	n := NewNotifier(pub, discardLogger(), NotifierOptions{Buffer: 1})

	for i := 1; i <= 5; i++ {
		n.Notify(cart.Snapshot{Revision: uint64(i)})
	}
	require.Positive(t, n.dropped.Load())

	close(pub.release)
	require.NoError(t, n.Close(context.Background()))
	require.Equal(t, uint64(5), n.published.Load()+n.dropped.Load())
}

func TestNotifierCountsPublishFailures(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	n := NewNotifier(pub, discardLogger(), NotifierOptions{})

	n.Notify(cart.Snapshot{Revision: 1})
	require.NoError(t, n.Close(context.Background()))

	require.Equal(t, uint64(1), n.failed.Load())
	require.Zero(t, n.published.Load())
}

func TestNotifierIgnoresSnapshotsAfterClose(t *testing.T) {
	pub := &fakePublisher{}
	n := NewNotifier(pub, discardLogger(), NotifierOptions{})
	require.NoError(t, n.Close(context.Background()))
	require.NoError(t, n.Close(context.Background()))

	n.Notify(cart.Snapshot{Revision: 1})
	require.Empty(t, pub.sequences())
}

package events

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/andreasstove999/ecommerce-system/cart-store-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/cart-store-go/internal/contracts"
)

type CartEventsPublisher interface {
	PublishCartUpdated(ctx context.Context, env contracts.EventEnvelope) error
}

type NotifierOptions struct {
	PartitionKey string
	Producer     string
	// Buffer is how many snapshots may wait for the broker before new ones
	// are dropped. Defaults to 64.
	Buffer int
}

// Notifier publishes a CartUpdated event for every snapshot it is handed.
// Notify never blocks, so it can be registered as a store subscriber.
type Notifier struct {
	pub    CartEventsPublisher
	opts   NotifierOptions
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	queue  chan cart.Snapshot
	done   chan struct{}

	published atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
}

func NewNotifier(pub CartEventsPublisher, logger *slog.Logger, opts NotifierOptions) *Notifier {
	if opts.Buffer <= 0 {
		opts.Buffer = 64
	}
	n := &Notifier{
		pub:    pub,
		opts:   opts,
		logger: logger.With("component", "cart-notifier"),
		queue:  make(chan cart.Snapshot, opts.Buffer),
		done:   make(chan struct{}),
	}
	go n.run()
	return n
}

func (n *Notifier) Notify(snap cart.Snapshot) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}
	select {
	case n.queue <- snap:
	default:
		n.dropped.Add(1)
		n.logger.Warn("cart event queue full, dropping snapshot", "revision", snap.Revision)
	}
}

func (n *Notifier) run() {
	defer close(n.done)

	for snap := range n.queue {
		env := contracts.BuildCartUpdatedEvent(snap, contracts.EnvelopeOptions{
			PartitionKey: n.opts.PartitionKey,
			Producer:     n.opts.Producer,
		})
		if err := n.pub.PublishCartUpdated(context.Background(), env); err != nil {
			n.failed.Add(1)
			n.logger.Warn("publish cart updated failed", "revision", snap.Revision, "err", err)
			continue
		}
		n.published.Add(1)
	}
}

// Close stops accepting snapshots and waits for queued ones to be published.
func (n *Notifier) Close(ctx context.Context) error {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()

	select {
	case <-n.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

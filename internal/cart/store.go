package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrNotInitialized  = errors.New("cart store not initialized")
	ErrCorruptSnapshot = errors.New("corrupt cart snapshot")
)

const defaultWriteTimeout = 5 * time.Second

// Cart is what consumers of a hosted store see.
type Cart interface {
	Items() []Item
	AddToCart(p Product)
	Increment(id string)
	Decrement(id string)
	Subscribe(fn func(Snapshot)) (unsubscribe func())
}

// Option configures a Store in New and Open.
type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithKey overrides StorageKey.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithWriteTimeout bounds every single persistence write.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

// Stats reports the current revision and the writer's counters.
type Stats struct {
	Revision      uint64
	Writes        uint64
	WriteFailures uint64
}

// Store owns the in-memory cart and keeps the persisted copy in sync
// after every mutation. It is safe for concurrent use.
type Store struct {
	storage      Storage
	key          string
	writeTimeout time.Duration
	logger       *slog.Logger
	writer       *writer

	mu       sync.RWMutex
	items    []Item
	revision uint64
	closed   bool

	// opMu serializes state changes so subscribers see them in revision order.
	opMu    sync.Mutex
	subMu   sync.Mutex
	subs    []subscription
	nextSub uint64

	hydrateOnce sync.Once
	hydrated    chan struct{}
	hydrateErr  error
}

type subscription struct {
	id uint64
	fn func(Snapshot)
}

// New returns an empty store. Call Hydrate to load the persisted cart.
func New(storage Storage, opts ...Option) *Store {
	s := &Store{
		storage:      storage,
		key:          StorageKey,
		writeTimeout: defaultWriteTimeout,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		items:        []Item{},
		hydrated:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "cart-store")
	s.writer = newWriter(storage, s.key, s.writeTimeout, s.logger, s.awaitHydration)
	return s
}

// awaitHydration holds the first write until the stored snapshot has
// been read, starting hydration itself if nobody has.
func (s *Store) awaitHydration() {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()
	_ = s.Hydrate(ctx)
}

// Open returns a store that hydrates in the background. Until hydration
// finishes the cart reads as empty.
func Open(ctx context.Context, storage Storage, opts ...Option) *Store {
	s := New(storage, opts...)
	go func() {
		_ = s.Hydrate(ctx)
	}()
	return s
}

// Hydrate loads the persisted cart once. Later calls return the first
// outcome. A missing blob is not an error; a read failure or an
// undecodable blob is returned and leaves the cart empty.
//
// A stored snapshot replaces mutations made before it was read, and it
// is written back so the pending early write cannot overwrite it.
func (s *Store) Hydrate(ctx context.Context) error {
	s.hydrateOnce.Do(func() {
		s.hydrateErr = s.hydrate(ctx)
		close(s.hydrated)
	})
	<-s.hydrated
	return s.hydrateErr
}

func (s *Store) hydrate(ctx context.Context) error {
	raw, found, err := s.storage.Get(ctx, s.key)
	if err != nil {
		s.logger.Warn("read cart snapshot failed, starting empty", "key", s.key, "err", err)
		return fmt.Errorf("read cart snapshot: %w", err)
	}
	if !found || raw == "" {
		s.logger.Debug("no cart snapshot stored", "key", s.key)
		return nil
	}

	var items []Item
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		s.logger.Error("decode cart snapshot failed, starting empty", "key", s.key, "err", err)
		return fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}
	if items == nil {
		items = []Item{}
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	mutated := s.revision > 0
	if s.closed {
		if mutated {
			s.writer.supersede(s.revision, []byte(raw))
		}
		s.mu.Unlock()
		return nil
	}
	s.items = items
	s.revision++
	if mutated {
		s.writer.supersede(s.revision, []byte(raw))
	}
	snap := Snapshot{Items: cloneItems(items), Revision: s.revision}
	s.mu.Unlock()

	s.logger.Info("cart hydrated", "key", s.key, "items", len(items))
	s.notify(snap)
	return nil
}

// Hydrated is closed once hydration has finished, whatever its outcome.
func (s *Store) Hydrated() <-chan struct{} {
	return s.hydrated
}

// HydrateErr reports the hydration outcome. It is also nil while
// hydration is still running, so wait on Hydrated first.
func (s *Store) HydrateErr() error {
	select {
	case <-s.hydrated:
		return s.hydrateErr
	default:
		return nil
	}
}

func (s *Store) Items() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneItems(s.items)
}

// AddToCart appends p with quantity 1, or bumps the quantity of the item
// with the same id and refreshes its title, image and price.
func (s *Store) AddToCart(p Product) {
	s.mutate("add", func(items []Item) ([]Item, bool) {
		next := cloneItems(items)
		if i := indexOf(next, p.ID); i >= 0 {
			next[i] = Item{
				ID:       p.ID,
				Title:    p.Title,
				ImageURL: p.ImageURL,
				Price:    p.Price,
				Quantity: next[i].Quantity + 1,
			}
			return next, true
		}
		return append(next, Item{
			ID:       p.ID,
			Title:    p.Title,
			ImageURL: p.ImageURL,
			Price:    p.Price,
			Quantity: 1,
		}), true
	})
}

// Increment is a no-op for unknown ids.
func (s *Store) Increment(id string) {
	s.mutate("increment", func(items []Item) ([]Item, bool) {
		i := indexOf(items, id)
		if i < 0 {
			return items, false
		}
		next := cloneItems(items)
		next[i].Quantity++
		return next, true
	})
}

// Decrement lowers the quantity but never below 1; the item is kept.
// Unknown ids are a no-op.
func (s *Store) Decrement(id string) {
	s.mutate("decrement", func(items []Item) ([]Item, bool) {
		i := indexOf(items, id)
		if i < 0 {
			return items, false
		}
		next := cloneItems(items)
		if next[i].Quantity-1 > 0 {
			next[i].Quantity--
		}
		return next, true
	})
}

func (s *Store) mutate(op string, fn func([]Item) ([]Item, bool)) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Debug("mutation on closed cart ignored", "op", op)
		return
	}

	next, changed := fn(s.items)
	if !changed {
		s.mu.Unlock()
		return
	}
	s.items = next
	s.revision++
	rev := s.revision

	body, err := json.Marshal(next)
	if err != nil {
		s.logger.Error("encode cart snapshot failed", "op", op, "revision", rev, "err", err)
	} else {
		s.writer.enqueue(rev, body)
	}

	snap := Snapshot{Items: cloneItems(next), Revision: rev}
	s.mu.Unlock()

	s.notify(snap)
}

// Subscribe registers fn to run after every state change, synchronously
// and before the mutating call returns. fn must not mutate or flush the
// store.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.subMu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscription{id: id, fn: fn})
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Store) notify(snap Snapshot) {
	s.subMu.Lock()
	subs := make([]subscription, len(s.subs))
	copy(subs, s.subs)
	s.subMu.Unlock()

	for _, sub := range subs {
		sub.fn(snap)
	}
}

// Flush waits for every persistence write issued before the call.
func (s *Store) Flush(ctx context.Context) error {
	return s.writer.flush(ctx)
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	rev := s.revision
	s.mu.RUnlock()

	return Stats{
		Revision:      rev,
		Writes:        s.writer.attempts.Load(),
		WriteFailures: s.writer.failures.Load(),
	}
}

// Close stops the store after writing the last pending snapshot.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	if err := s.writer.close(ctx); err != nil {
		return fmt.Errorf("close cart writer: %w", err)
	}
	return nil
}

func (s *Store) active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed
}

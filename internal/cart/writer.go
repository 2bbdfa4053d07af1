package cart

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// writer persists cart blobs from a single goroutine. Pending blobs
// coalesce, so the newest enqueued blob is always the last one written.
// ready, when set, runs once before the first write.
type writer struct {
	storage Storage
	key     string
	timeout time.Duration
	logger  *slog.Logger
	ready   func()

	mu       sync.Mutex
	pending  []byte
	queued   uint64
	done     uint64
	closed   bool
	progress chan struct{}

	wake    chan struct{}
	stopped chan struct{}

	attempts atomic.Uint64
	failures atomic.Uint64
}

func newWriter(storage Storage, key string, timeout time.Duration, logger *slog.Logger, ready func()) *writer {
	w := &writer{
		storage:  storage,
		key:      key,
		timeout:  timeout,
		logger:   logger,
		ready:    ready,
		progress: make(chan struct{}),
		wake:     make(chan struct{}, 1),
		stopped:  make(chan struct{}),
	}
	go w.run()
	return w
}

// enqueue never blocks. seq must grow with every call.
func (w *writer) enqueue(seq uint64, body []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.pending = body
	w.queued = seq

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// supersede swaps the pending blob for body even after close. It only
// applies while a blob is still pending.
func (w *writer) supersede(seq uint64, body []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending == nil {
		return
	}
	w.pending = body
	w.queued = seq
}

func (w *writer) run() {
	defer close(w.stopped)

	for {
		_, ok := <-w.wake
		w.awaitReady()
		for {
			w.mu.Lock()
			body, seq := w.pending, w.queued
			w.pending = nil
			w.mu.Unlock()

			if body == nil {
				break
			}
			w.write(seq, body)
		}
		if !ok {
			return
		}
	}
}

func (w *writer) awaitReady() {
	if w.ready == nil {
		return
	}
	w.mu.Lock()
	hasWork := w.pending != nil
	w.mu.Unlock()
	if !hasWork {
		return
	}
	w.ready()
	w.ready = nil
}

func (w *writer) write(seq uint64, body []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	w.attempts.Add(1)
	if err := w.storage.Set(ctx, w.key, string(body)); err != nil {
		w.failures.Add(1)
		w.logger.Warn("persist cart snapshot failed", "key", w.key, "revision", seq, "err", err)
	} else {
		w.logger.Debug("persisted cart snapshot", "key", w.key, "revision", seq, "bytes", len(body))
	}

	w.mu.Lock()
	w.done = seq
	close(w.progress)
	w.progress = make(chan struct{})
	w.mu.Unlock()
}

// flush waits until everything enqueued before the call has been attempted.
func (w *writer) flush(ctx context.Context) error {
	w.mu.Lock()
	target := w.queued
	w.mu.Unlock()

	for {
		w.mu.Lock()
		if w.done >= target {
			w.mu.Unlock()
			return nil
		}
		ch := w.progress
		w.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// close drains the pending blob and stops the goroutine.
func (w *writer) close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.wake)
	}
	w.mu.Unlock()

	select {
	case <-w.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

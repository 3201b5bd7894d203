package index

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/poiesic/docrag/index/sparse"
)

// RebuildFunc builds the next snapshot from the current one.
type RebuildFunc func(ctx context.Context, prev *Snapshot) (*Snapshot, error)

type state struct {
	snap *Snapshot
	err  error
}

// Holder owns the published snapshot.
type Holder struct {
	current   atomic.Pointer[state]
	rebuildMu sync.Mutex
	logger    *slog.Logger
}

// HolderOption configures a Holder.
type HolderOption func(*Holder)

// WithHolderLogger sets a custom logger.
func WithHolderLogger(logger *slog.Logger) HolderOption {
	return func(h *Holder) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHolder returns a holder publishing an empty snapshot.
func NewHolder(opts ...HolderOption) *Holder {
	h := &Holder{logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "index")
	// Default params always validate.
	empty, _ := Empty(sparse.DefaultParams())
	h.current.Store(&state{snap: empty})
	return h
}

// Current returns the published snapshot, or the error recorded by
// Invalidate when the persisted index could not be loaded.
func (h *Holder) Current() (*Snapshot, error) {
	st := h.current.Load()
	if st.err != nil {
		return nil, st.err
	}
	return st.snap, nil
}

// Publish makes snap the current snapshot.
func (h *Holder) Publish(snap *Snapshot) {
	h.current.Store(&state{snap: snap})
	h.logger.Info("published index snapshot", "generation", snap.Generation(), "chunks", snap.Len())
}

// Invalidate marks the index unusable until the next successful rebuild.
func (h *Holder) Invalidate(err error) {
	h.current.Store(&state{err: err})
	h.logger.Warn("index invalidated", "err", err)
}

// Rebuild runs fn with rebuilds serialized and publishes its result.
// The published snapshot is untouched when fn fails.
func (h *Holder) Rebuild(ctx context.Context, fn RebuildFunc) (*Snapshot, error) {
	h.rebuildMu.Lock()
	defer h.rebuildMu.Unlock()

	// An invalidated holder rebuilds from nothing.
	prev := h.current.Load().snap
	next, err := fn(ctx, prev)
	if err != nil {
		h.logger.Error("index rebuild failed", "err", err)
		return nil, err
	}
	if next == nil {
		return nil, ErrNilSnapshot
	}
	h.Publish(next)
	return next, nil
}

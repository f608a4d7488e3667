package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Registry owns the shared token -> identity mapping and the anonymous
// slot set. Every operation is one fetch-mutate-store cycle against the
// Store: load the whole snapshot, change it in memory, save the whole
// snapshot back.
//
// The store offers no compare-and-swap, so two concurrent cycles can lose
// the earlier write (the later Save replaces it wholesale). By default the
// Registry serializes its cycles behind a mutex, which closes that window
// for a single process. Serialization can be switched off to get the
// original best-effort behavior; the lost-update race then becomes part of
// the contract, acceptable under low concurrency where the cost is a
// dropped join/leave, not a broken session.
type Registry struct {
	log       *slog.Logger
	store     Store
	transport Transport
	alloc     *Allocator

	serialize bool
	mu        sync.Mutex
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithoutSerialization disables the mutex around fetch-mutate-store
// cycles, restoring the raw last-write-wins behavior of the store.
func WithoutSerialization() RegistryOption {
	return func(r *Registry) { r.serialize = false }
}

// NewRegistry constructs a Registry. All dependencies are required.
func NewRegistry(log *slog.Logger, store Store, transport Transport, alloc *Allocator, opts ...RegistryOption) *Registry {
	r := &Registry{
		log:       log,
		store:     store,
		transport: transport,
		alloc:     alloc,
		serialize: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Registry) lock() func() {
	if !r.serialize {
		return func() {}
	}
	r.mu.Lock()
	return r.mu.Unlock
}

// IssueToken allocates an identity for the caller (authenticated handle or
// a fresh anonymous slot), opens a transport channel for it, and records
// the resulting token.
//
// On pool exhaustion it returns ErrPoolExhausted and nothing is recorded.
func (r *Registry) IssueToken(ctx context.Context, handle string) (string, Identity, error) {
	defer r.lock()()

	snap, err := r.store.Load(ctx)
	if err != nil {
		return "", Identity{}, fmt.Errorf("%w: %v", ErrStore, err)
	}

	id, err := r.alloc.Allocate(handle, snap.UsedSlots)
	if err != nil {
		metricPoolExhausted.Inc()
		r.log.Warn("registry.pool.exhausted", "pool_size", r.alloc.Size())
		return "", Identity{}, err
	}

	token, err := r.transport.OpenChannel(ctx, id.RecipientKey())
	if err != nil {
		return "", Identity{}, fmt.Errorf("open channel for %q: %w", id.RecipientKey(), err)
	}

	snap.Tokens[token] = id
	if err := r.store.Save(ctx, snap); err != nil {
		return "", Identity{}, fmt.Errorf("%w: %v", ErrStore, err)
	}

	metricTokensIssued.Inc()
	r.log.Info("registry.token.issue", "identity", id.DisplayName(), "anonymous", id.IsAnonymous())
	return token, id, nil
}

// Resolve looks a token up and returns its identity together with the
// snapshot it was read from, so a following broadcast sees exactly the
// membership the lookup saw. An unknown token yields ok == false.
func (r *Registry) Resolve(ctx context.Context, token string) (Identity, Snapshot, bool, error) {
	snap, err := r.store.Load(ctx)
	if err != nil {
		return Identity{}, Snapshot{}, false, fmt.Errorf("%w: %v", ErrStore, err)
	}

	id, ok := snap.Tokens[token]
	return id, snap, ok, nil
}

// Release removes a token, frees its anonymous slot, and closes the
// transport channel behind it, returning the removed identity and the
// remaining snapshot. Releasing an unknown token
// is a silent no-op (clients race duplicate releases), reported via
// ok == false rather than an error.
func (r *Registry) Release(ctx context.Context, token string) (Identity, Snapshot, bool, error) {
	defer r.lock()()

	snap, err := r.store.Load(ctx)
	if err != nil {
		return Identity{}, Snapshot{}, false, fmt.Errorf("%w: %v", ErrStore, err)
	}

	id, ok := snap.Tokens[token]
	if !ok {
		return Identity{}, snap, false, nil
	}

	delete(snap.Tokens, token)
	if slot, anon := id.Slot(); anon {
		delete(snap.UsedSlots, slot)
	}

	if err := r.store.Save(ctx, snap); err != nil {
		return Identity{}, Snapshot{}, false, fmt.Errorf("%w: %v", ErrStore, err)
	}

	// Tear the channel down so the released token can no longer feed a
	// connection; the registry entry is already gone either way.
	if err := r.transport.CloseChannel(ctx, token); err != nil {
		r.log.Warn("registry.channel.close.fail", "identity", id.DisplayName(), "err", err)
	}

	metricTokensReleased.Inc()
	r.log.Info("registry.token.release", "identity", id.DisplayName())
	return id, snap, true, nil
}

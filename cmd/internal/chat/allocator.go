package chat

import (
	"math/rand/v2"
)

// DefaultSlots is the size of the anonymous slot pool when no size is
// configured. Raise it to accept more concurrent anonymous users.
const DefaultSlots = 1000

// Allocator assigns identities for new sessions. Authenticated users keep
// their provider handle; everyone else gets one slot from a bounded pool
// [1..size].
//
// The allocator itself is stateless: the set of slots currently in use lives
// in the registry snapshot, so allocation is a pure function of that set.
type Allocator struct {
	size int
}

// NewAllocator constructs an Allocator over the pool [1..size].
// A non-positive size falls back to DefaultSlots.
func NewAllocator(size int) *Allocator {
	if size <= 0 {
		size = DefaultSlots
	}
	return &Allocator{size: size}
}

// Size returns the pool size.
func (a *Allocator) Size() int { return a.size }

// Allocate returns the identity for a new session. A non-empty handle wins
// unconditionally and never consumes a slot. Otherwise one slot is picked
// uniformly at random from the free portion of the pool and reserved in
// used immediately; if every slot is taken, ErrPoolExhausted is returned
// and used is left untouched.
//
// Random (rather than lowest-free) selection avoids pathological slot reuse
// under high churn.
func (a *Allocator) Allocate(handle string, used map[int]struct{}) (Identity, error) {
	if handle != "" {
		return Authenticated(handle), nil
	}

	// A persisted snapshot can carry more used slots than the configured
	// pool (the pool was shrunk between restarts), so size the free list
	// by the pool alone.
	free := make([]int, 0, a.size)
	for slot := 1; slot <= a.size; slot++ {
		if _, taken := used[slot]; !taken {
			free = append(free, slot)
		}
	}
	if len(free) == 0 {
		return Identity{}, ErrPoolExhausted
	}

	slot := free[rand.IntN(len(free))]
	used[slot] = struct{}{}
	return Anonymous(slot), nil
}

package chat

import (
	"context"
	"encoding/json"
	"sort"
)

// Snapshot is the whole registry state as persisted under one well-known
// key in the shared store: the token map and the set of anonymous slots in
// use. Slot usage lives in its own structure rather than as a sentinel key
// inside the token map, so tokens can never collide with it.
type Snapshot struct {
	Tokens    map[string]Identity
	UsedSlots map[int]struct{}
}

// NewSnapshot returns an empty snapshot with both structures allocated.
func NewSnapshot() Snapshot {
	return Snapshot{
		Tokens:    make(map[string]Identity),
		UsedSlots: make(map[int]struct{}),
	}
}

// Clone returns a deep copy. Stores hand out clones so a caller mutating a
// fetched snapshot never aliases stored state.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Tokens:    make(map[string]Identity, len(s.Tokens)),
		UsedSlots: make(map[int]struct{}, len(s.UsedSlots)),
	}
	for tok, id := range s.Tokens {
		out.Tokens[tok] = id
	}
	for slot := range s.UsedSlots {
		out.UsedSlots[slot] = struct{}{}
	}
	return out
}

// Identities returns the deduplicated set of identities reachable from the
// token map. This is the recipient set of a broadcast.
func (s Snapshot) Identities() []Identity {
	seen := make(map[Identity]struct{}, len(s.Tokens))
	out := make([]Identity, 0, len(s.Tokens))
	for _, id := range s.Tokens {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

type snapshotWire struct {
	Tokens    map[string]Identity `json:"tokens"`
	UsedSlots []int               `json:"used_slots"`
}

// MarshalJSON encodes the snapshot with the slot set as a sorted list, so
// the persisted value is stable across saves.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	slots := make([]int, 0, len(s.UsedSlots))
	for slot := range s.UsedSlots {
		slots = append(slots, slot)
	}
	sort.Ints(slots)
	return json.Marshal(snapshotWire{Tokens: s.Tokens, UsedSlots: slots})
}

// UnmarshalJSON decodes a persisted snapshot.
func (s *Snapshot) UnmarshalJSON(b []byte) error {
	var w snapshotWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*s = NewSnapshot()
	for tok, id := range w.Tokens {
		s.Tokens[tok] = id
	}
	for _, slot := range w.UsedSlots {
		s.UsedSlots[slot] = struct{}{}
	}
	return nil
}

// Store is the shared mutable store holding the registry.
//
// The contract is deliberately narrow: fetch the whole snapshot, replace
// the whole snapshot. There is no compare-and-swap, so a read-modify-write
// cycle built on top of it is only as safe as the serialization the caller
// adds around it (see Registry).
type Store interface {
	// Load fetches the current snapshot. A store with no snapshot yet
	// returns an empty one, not an error.
	Load(ctx context.Context) (Snapshot, error)

	// Save replaces the stored snapshot as a whole.
	Save(ctx context.Context, snap Snapshot) error

	Close() error
}

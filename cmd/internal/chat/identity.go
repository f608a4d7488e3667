package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Identity is a logical chat participant: either an authenticated user
// (carrying the identity provider's unique handle) or an anonymous user
// holding one numeric slot from a bounded pool.
//
// The zero value is not a valid identity. Identity is comparable, so it can
// be used directly as a map key for per-identity deduplication.
type Identity struct {
	kind identityKind
	name string
	slot int
}

type identityKind uint8

const (
	kindInvalid identityKind = iota
	kindAuthenticated
	kindAnonymous
)

// Authenticated returns the identity of a logged-in user. The handle is the
// provider's stable unique identifier (email-like).
func Authenticated(handle string) Identity {
	return Identity{kind: kindAuthenticated, name: handle}
}

// Anonymous returns the identity backed by an anonymous pool slot.
func Anonymous(slot int) Identity {
	return Identity{kind: kindAnonymous, slot: slot}
}

// IsZero reports whether the identity is the invalid zero value.
func (id Identity) IsZero() bool { return id.kind == kindInvalid }

// IsAnonymous reports whether the identity holds an anonymous slot.
func (id Identity) IsAnonymous() bool { return id.kind == kindAnonymous }

// Slot returns the anonymous pool slot and true, or 0 and false for
// authenticated identities.
func (id Identity) Slot() (int, bool) {
	if id.kind != kindAnonymous {
		return 0, false
	}
	return id.slot, true
}

// Handle returns the provider handle for authenticated identities and the
// empty string otherwise.
func (id Identity) Handle() string {
	if id.kind != kindAuthenticated {
		return ""
	}
	return id.name
}

// DisplayName is the name shown in chat messages: the local part before "@"
// for authenticated users, "anonymous(<slot>)" for anonymous ones.
func (id Identity) DisplayName() string {
	switch id.kind {
	case kindAuthenticated:
		if i := strings.IndexByte(id.name, '@'); i >= 0 {
			return id.name[:i]
		}
		return id.name
	case kindAnonymous:
		return fmt.Sprintf("anonymous(%d)", id.slot)
	default:
		return ""
	}
}

// RecipientKey is the key the push transport addresses this identity by:
// the full provider handle for authenticated users, the display form for
// anonymous ones.
func (id Identity) RecipientKey() string {
	if id.kind == kindAuthenticated {
		return id.name
	}
	return id.DisplayName()
}

func (id Identity) String() string { return id.DisplayName() }

// identityWire is the persisted form used in the registry snapshot.
type identityWire struct {
	Kind string `json:"kind"`
	Name string `json:"name,omitempty"`
	Slot int    `json:"slot,omitempty"`
}

// MarshalJSON encodes the identity for the shared store.
func (id Identity) MarshalJSON() ([]byte, error) {
	switch id.kind {
	case kindAuthenticated:
		return json.Marshal(identityWire{Kind: "user", Name: id.name})
	case kindAnonymous:
		return json.Marshal(identityWire{Kind: "anon", Slot: id.slot})
	default:
		return nil, errors.New("cannot encode zero identity")
	}
}

// UnmarshalJSON decodes an identity from the shared store.
func (id *Identity) UnmarshalJSON(b []byte) error {
	var w identityWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	switch w.Kind {
	case "user":
		if w.Name == "" {
			return errors.New("authenticated identity without handle")
		}
		*id = Authenticated(w.Name)
	case "anon":
		if w.Slot <= 0 {
			return fmt.Errorf("anonymous identity with invalid slot %d", w.Slot)
		}
		*id = Anonymous(w.Slot)
	default:
		return fmt.Errorf("unknown identity kind %q", w.Kind)
	}
	return nil
}

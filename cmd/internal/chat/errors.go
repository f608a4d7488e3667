package chat

import "errors"

var (
	// ErrPoolExhausted is returned when no anonymous slot is free.
	// Callers should degrade to an empty response; no token is issued.
	ErrPoolExhausted = errors.New("anonymous slot pool exhausted")

	// ErrStore is returned when the shared registry store cannot be
	// read or written.
	ErrStore = errors.New("registry store unavailable")
)

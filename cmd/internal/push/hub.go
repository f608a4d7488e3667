package push

import (
	"log/slog"
	"sync"
)

// Hub tracks which clients are attached to which recipient key. One key
// can have any number of live connections (the same user in several
// browsers); fanout reaches all of them.
//
// Concurrency guarantees:
//   - Attach/Detach are safe under concurrent Fanout.
//   - Fanout never blocks: a full queue or a closing client is skipped.
type Hub struct {
	log *slog.Logger

	mu         sync.RWMutex
	recipients map[string]map[*Client]struct{}
}

// NewHub constructs a Hub.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:        log,
		recipients: make(map[string]map[*Client]struct{}),
	}
}

// Attach registers a connection under a recipient key.
func (h *Hub) Attach(recipientKey string, c *Client) {
	if recipientKey == "" || c == nil {
		return
	}

	h.mu.Lock()
	set := h.recipients[recipientKey]
	if set == nil {
		set = make(map[*Client]struct{})
		h.recipients[recipientKey] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	h.log.Info("push.attach", "recipient", recipientKey)
}

// Detach removes a connection and signals it to shut down. Empty recipient
// sets are dropped so churn does not leak map entries.
func (h *Hub) Detach(recipientKey string, c *Client) {
	if recipientKey == "" || c == nil {
		return
	}

	h.mu.Lock()
	if set, ok := h.recipients[recipientKey]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.recipients, recipientKey)
		}
	}
	h.mu.Unlock()

	// Signal shutdown after removal, so no fanout holds a pointer to a
	// client whose goroutines are tearing down.
	c.Close()

	h.log.Info("push.detach", "recipient", recipientKey)
}

// Fanout queues payload on every live connection of recipientKey and
// returns how many connections accepted it. Connections that are shutting
// down or whose queue is full are skipped rather than blocked on.
func (h *Hub) Fanout(recipientKey, payload string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	queued := 0
	for c := range h.recipients[recipientKey] {
		select {
		case <-c.Done():
			continue
		default:
		}

		select {
		case c.Send <- payload:
			queued++
		default:
			// Drop rather than block the whole fanout.
		}
	}
	return queued
}

// Connections reports the number of live connections for a recipient key.
func (h *Hub) Connections(recipientKey string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.recipients[recipientKey])
}

package chat

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
)

// fakeTransport records every OpenChannel and Send so tests can assert on
// exact delivery sets.
type fakeTransport struct {
	mu     sync.Mutex
	maxLen int
	opened []string
	sends  []fakeSend
	closed []string
	fail   map[string]error
}

type fakeSend struct {
	Recipient string
	Payload   string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{maxLen: 32768, fail: make(map[string]error)}
}

func (t *fakeTransport) OpenChannel(_ context.Context, recipientKey string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.opened = append(t.opened, recipientKey)
	return fmt.Sprintf("chan-%03d", len(t.opened)), nil
}

func (t *fakeTransport) Send(_ context.Context, recipientKey, payload string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.fail[recipientKey]; err != nil {
		return err
	}
	t.sends = append(t.sends, fakeSend{Recipient: recipientKey, Payload: payload})
	return nil
}

func (t *fakeTransport) CloseChannel(_ context.Context, token string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = append(t.closed, token)
	return nil
}

func (t *fakeTransport) MaxMessageLength() int { return t.maxLen }

func (t *fakeTransport) closedTokens() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.closed...)
}

func (t *fakeTransport) sentTo() map[string][]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string][]string)
	for _, s := range t.sends {
		out[s.Recipient] = append(out[s.Recipient], s.Payload)
	}
	return out
}

func (t *fakeTransport) sendCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sends)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestStack wires a full core over the in-memory store and the fake
// transport.
func newTestStack(t *testing.T, slots int) (*Service, *Registry, *MemoryStore, *fakeTransport) {
	t.Helper()

	log := discardLogger()
	store := NewMemoryStore()
	transport := newFakeTransport()
	registry := NewRegistry(log, store, transport, NewAllocator(slots))
	svc := NewService(log, registry, NewBroadcaster(log, transport))
	return svc, registry, store, transport
}

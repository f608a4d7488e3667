package push

import (
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHubFanoutReachesAllConnections(t *testing.T) {
	t.Parallel()

	h := NewHub(testLogger())

	a := NewClient(4)
	b := NewClient(4)
	h.Attach("bob@example.com", a)
	h.Attach("bob@example.com", b)

	if queued := h.Fanout("bob@example.com", `"hi"`); queued != 2 {
		t.Fatalf("queued=%d want=2", queued)
	}
	if got := <-a.Send; got != `"hi"` {
		t.Fatalf("a got %s", got)
	}
	if got := <-b.Send; got != `"hi"` {
		t.Fatalf("b got %s", got)
	}
}

func TestHubFanoutUnknownRecipient(t *testing.T) {
	t.Parallel()

	h := NewHub(testLogger())
	if queued := h.Fanout("nobody", "x"); queued != 0 {
		t.Fatalf("queued=%d for unknown recipient", queued)
	}
}

func TestHubFanoutSkipsClosedAndFullClients(t *testing.T) {
	t.Parallel()

	h := NewHub(testLogger())

	closed := NewClient(4)
	closed.Close()
	h.Attach("k", closed)

	full := NewClient(1)
	full.Send <- "occupied"
	h.Attach("k", full)

	healthy := NewClient(4)
	h.Attach("k", healthy)

	if queued := h.Fanout("k", "msg"); queued != 1 {
		t.Fatalf("queued=%d want=1 (closed and full skipped)", queued)
	}
	if got := <-healthy.Send; got != "msg" {
		t.Fatalf("healthy client got %s", got)
	}
}

func TestHubDetachDropsEmptyRecipients(t *testing.T) {
	t.Parallel()

	h := NewHub(testLogger())
	c := NewClient(4)
	h.Attach("k", c)
	if h.Connections("k") != 1 {
		t.Fatalf("expected one connection")
	}

	h.Detach("k", c)
	if h.Connections("k") != 0 {
		t.Fatalf("expected no connections after detach")
	}

	select {
	case <-c.Done():
	default:
		t.Fatalf("detach did not close the client")
	}

	// Detach is safe to repeat.
	h.Detach("k", c)
}

func TestClientCloseIdempotent(t *testing.T) {
	t.Parallel()

	c := NewClient(0) // falls back to the default queue size
	if cap(c.Send) != defaultSendQueueSize {
		t.Fatalf("cap=%d want=%d", cap(c.Send), defaultSendQueueSize)
	}
	c.Close()
	c.Close()

	var nilClient *Client
	select {
	case <-nilClient.Done():
	default:
		t.Fatalf("nil client Done must read as closed")
	}
}

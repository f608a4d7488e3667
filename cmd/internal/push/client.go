package push

import "sync"

// Client is one live channel connection.
//
// Design notes:
//   - Send is intentionally NOT closed by the server, so concurrent
//     fanouts can never panic on a closed channel.
//   - done signals the connection goroutines to stop.
//   - Close is idempotent.
type Client struct {
	Send chan string

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient constructs a Client with a bounded send queue.
func NewClient(sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = defaultSendQueueSize
	}
	return &Client{
		Send: make(chan string, sendQueueSize),
		done: make(chan struct{}),
	}
}

// Done returns a channel closed when the client is shutting down.
func (c *Client) Done() <-chan struct{} {
	if c == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.done
}

// Close signals the connection goroutines to stop (idempotent). It does
// NOT close Send, to keep fanout safe under concurrency.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

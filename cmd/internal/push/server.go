package push

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/oklog/ulid/v2"
)

const (
	defaultSendQueueSize = 64
	defaultWriteTimeout  = 5 * time.Second

	// DefaultMaxMessageLength is the payload ceiling in bytes. It matches
	// the 32 KiB limit of the channel service this transport stands in for.
	DefaultMaxMessageLength = 32768
)

// ChannelServer implements the push transport: OpenChannel reserves a
// token for a recipient key, HandleWS turns a token into a live WebSocket
// connection, and Send fans a payload out to all connections of a key.
//
// A token stays valid across reconnects until CloseChannel invalidates
// it. Tokens for channels that never connect and are never closed simply
// linger (there is no TTL, matching the registry's no-reaping policy for
// abandoned sessions).
type ChannelServer struct {
	log *slog.Logger
	hub *Hub

	mu       sync.Mutex
	tokens   map[string]string               // channel token -> recipient key
	attached map[string]map[*Client]struct{} // channel token -> live connections

	maxMessageLen int
	sendQueueSize int
	writeTimeout  time.Duration
}

// Option configures a ChannelServer.
type Option func(*ChannelServer)

// WithMaxMessageLength overrides the payload ceiling in bytes.
func WithMaxMessageLength(n int) Option {
	return func(s *ChannelServer) {
		if n > 0 {
			s.maxMessageLen = n
		}
	}
}

// WithSendQueueSize overrides the per-connection send queue length.
func WithSendQueueSize(n int) Option {
	return func(s *ChannelServer) {
		if n > 0 {
			s.sendQueueSize = n
		}
	}
}

// WithWriteTimeout overrides the per-frame write deadline.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *ChannelServer) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

// NewChannelServer constructs a ChannelServer.
func NewChannelServer(log *slog.Logger, opts ...Option) *ChannelServer {
	s := &ChannelServer{
		log:           log,
		hub:           NewHub(log),
		tokens:        make(map[string]string),
		attached:      make(map[string]map[*Client]struct{}),
		maxMessageLen: DefaultMaxMessageLength,
		sendQueueSize: defaultSendQueueSize,
		writeTimeout:  defaultWriteTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// MaxMessageLength is the payload size ceiling in bytes.
func (s *ChannelServer) MaxMessageLength() int { return s.maxMessageLen }

// OpenChannel reserves a fresh opaque token for recipientKey. The token is
// a ULID: unique per issuance, never reused.
func (s *ChannelServer) OpenChannel(ctx context.Context, recipientKey string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if recipientKey == "" {
		return "", errors.New("push: empty recipient key")
	}

	id, err := ulid.New(ulid.Timestamp(time.Now().UTC()), rand.Reader)
	if err != nil {
		return "", err
	}
	token := id.String()

	s.mu.Lock()
	s.tokens[token] = recipientKey
	s.mu.Unlock()

	metricChannelsOpened.Inc()
	s.log.Debug("push.channel.open", "recipient", recipientKey)
	return token, nil
}

// Send queues payload for every live connection of recipientKey. A
// recipient with no live connections is not an error; the channel may not
// have connected yet or may already be gone.
func (s *ChannelServer) Send(ctx context.Context, recipientKey, payload string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(payload) > s.maxMessageLen {
		return errors.New("push: payload exceeds channel limit")
	}

	queued := s.hub.Fanout(recipientKey, payload)
	s.log.Debug("push.send", "recipient", recipientKey, "connections", queued)
	return nil
}

// Resolve maps a channel token back to its recipient key.
func (s *ChannelServer) Resolve(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.tokens[token]
	return key, ok
}

// CloseChannel invalidates a channel token and shuts down every
// connection that attached through it. Each connection's handler then
// detaches itself from the hub on its own way out. Closing an unknown
// token is a no-op.
func (s *ChannelServer) CloseChannel(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.tokens, token)
	clients := s.attached[token]
	delete(s.attached, token)
	s.mu.Unlock()

	for c := range clients {
		c.Close()
	}

	s.log.Debug("push.channel.close", "connections", len(clients))
	return nil
}

func (s *ChannelServer) attach(token string, c *Client) {
	s.mu.Lock()
	set := s.attached[token]
	if set == nil {
		set = make(map[*Client]struct{})
		s.attached[token] = set
	}
	set[c] = struct{}{}
	s.mu.Unlock()
}

func (s *ChannelServer) detach(token string, c *Client) {
	s.mu.Lock()
	if set, ok := s.attached[token]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(s.attached, token)
		}
	}
	s.mu.Unlock()
}

// HandleWS upgrades ?token=... requests into channel connections and pumps
// queued payloads out as text frames until either side goes away.
func (s *ChannelServer) HandleWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	recipientKey, ok := s.Resolve(token)
	if !ok {
		metricRejects.Inc()
		s.log.Info("push.reject.token", "remote", r.RemoteAddr)
		http.Error(w, "unknown channel token", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Error("push.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	client := NewClient(s.sendQueueSize)
	s.hub.Attach(recipientKey, client)
	s.attach(token, client)
	metricConnects.Inc()
	metricLiveConnections.Inc()
	defer func() {
		s.detach(token, client)
		s.hub.Detach(recipientKey, client)
		metricLiveConnections.Dec()
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reader: the channel is push-only, inbound frames are drained just to
	// notice the peer going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				client.Close()
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-client.Done():
			return
		case payload := <-client.Send:
			if err := s.writeFrame(ctx, conn, payload); err != nil {
				s.log.Info("push.write.fail", "recipient", recipientKey,
					"close_status", websocket.CloseStatus(err), "err", err)
				client.Close()
				return
			}
		}
	}
}

func (s *ChannelServer) writeFrame(ctx context.Context, conn *websocket.Conn, payload string) error {
	wctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, []byte(payload))
}

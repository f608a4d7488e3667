package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// Service orchestrates the session lifecycle: token issuance, channel
// open, message post, and token release. The first and last mutate the
// registry; open and post only read it. Each event produces at most one
// broadcast.
//
// There is no enforced state machine. Any event may arrive for any token
// at any time (replays, multi-tab duplicates, releases racing opens) and
// a stale or unknown token degrades to a no-op, never an error.
type Service struct {
	log       *slog.Logger
	registry  *Registry
	broadcast *Broadcaster
}

// NewService constructs the lifecycle service.
func NewService(log *slog.Logger, registry *Registry, broadcast *Broadcaster) *Service {
	return &Service{log: log, registry: registry, broadcast: broadcast}
}

// encodePayload renders the wire payload: a JSON-encoded string, which is
// what connected channel clients expect to parse.
func encodePayload(message string) (string, error) {
	b, err := json.Marshal(message)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// GetToken issues a session token for the caller. handle is the identity
// provider's handle, or empty for anonymous callers. ErrPoolExhausted
// passes through so the HTTP layer can answer with an empty body.
func (s *Service) GetToken(ctx context.Context, handle string) (string, error) {
	token, _, err := s.registry.IssueToken(ctx, handle)
	if err != nil {
		if errors.Is(err, ErrPoolExhausted) {
			return "", err
		}
		s.log.Error("service.get_token.fail", "err", err)
		return "", err
	}
	return token, nil
}

// Open handles the transport "connected" event for a token: everyone in
// the room, the newcomer included, is told who joined. An empty or unknown
// token (released between issue and open) is tolerated silently.
func (s *Service) Open(ctx context.Context, token string) {
	if token == "" {
		return
	}

	id, snap, ok, err := s.registry.Resolve(ctx, token)
	if err != nil {
		s.log.Error("service.open.fail", "err", err)
		return
	}
	if !ok {
		return
	}

	payload, err := encodePayload(id.DisplayName() + " has joined the chat room.")
	if err != nil {
		s.log.Error("service.open.encode.fail", "err", err)
		return
	}
	s.broadcast.Broadcast(ctx, payload, snap)
}

// Post broadcasts "<name>: <content>" to the room. Missing token, missing
// content, unknown token, or an oversized payload all degrade to silence;
// the cost of a dropped event is one missed chat line.
func (s *Service) Post(ctx context.Context, token, content string) {
	if token == "" || content == "" {
		return
	}

	id, snap, ok, err := s.registry.Resolve(ctx, token)
	if err != nil {
		s.log.Error("service.post.fail", "err", err)
		return
	}
	if !ok {
		return
	}

	payload, err := encodePayload(fmt.Sprintf("%s: %s", id.DisplayName(), content))
	if err != nil {
		s.log.Error("service.post.encode.fail", "err", err)
		return
	}
	s.broadcast.Broadcast(ctx, payload, snap)
}

// Release removes the token from the registry and, if it was still live,
// tells the remaining members who left. Unknown tokens are a silent no-op.
func (s *Service) Release(ctx context.Context, token string) {
	if token == "" {
		return
	}

	id, remaining, ok, err := s.registry.Release(ctx, token)
	if err != nil {
		s.log.Error("service.release.fail", "err", err)
		return
	}
	if !ok {
		return
	}

	payload, err := encodePayload(id.DisplayName() + " has left the chat room.")
	if err != nil {
		s.log.Error("service.release.encode.fail", "err", err)
		return
	}
	s.broadcast.Broadcast(ctx, payload, remaining)
}

package chat

import "context"

// Transport is the push-delivery collaborator: it hands out per-connection
// channel tokens and delivers payloads to whatever live connection(s) a
// recipient key currently maps to.
//
// Delivery is best-effort with no confirmation; a Send error means the
// transport could not even attempt delivery, not that the recipient missed
// the message.
type Transport interface {
	// OpenChannel reserves a fresh, unique, opaque channel token for the
	// given recipient key.
	OpenChannel(ctx context.Context, recipientKey string) (string, error)

	// Send pushes payload to every live connection of recipientKey.
	Send(ctx context.Context, recipientKey, payload string) error

	// CloseChannel invalidates a channel token and shuts down any
	// connections attached through it. Closing an unknown token is a
	// no-op.
	CloseChannel(ctx context.Context, token string) error

	// MaxMessageLength is the payload size ceiling in bytes. Larger
	// payloads must not be handed to Send.
	MaxMessageLength() int
}

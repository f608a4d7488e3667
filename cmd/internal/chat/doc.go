// Package chat implements the core of the Banter chat room: identity
// allocation, the token registry, and broadcast fan-out.
//
// The registry is the sole source of truth for live sessions. A token is
// issued per logical connection request, maps to exactly one Identity, and
// is released when the connection goes away. Broadcasts deliver one message
// per distinct Identity, never per token, so a user connected from several
// places receives each message once per broadcast.
package chat

// Package push is the push-delivery transport behind the chat core: it
// issues opaque channel tokens, accepts one WebSocket connection per
// token, and fans payloads out to every live connection of a recipient
// key. Delivery is best-effort with no acknowledgement and no retry.
package push

// Package auth abstracts the external identity provider the chat room
// trusts for authenticated handles. The mechanism behind it (SSO, OAuth,
// a corporate proxy header) is someone else's problem; the chat core only
// ever asks "who is this request, if anyone".
package auth

import "net/http"

// Provider resolves the authenticated caller of a request and generates
// the login/logout redirect targets for the /login flip-flop.
type Provider interface {
	// CurrentIdentity returns the caller's stable unique handle
	// (email-like) and true, or false for anonymous callers.
	CurrentIdentity(r *http.Request) (string, bool)

	// LoginURL returns the URL that starts a login and lands on dest.
	LoginURL(dest string) string

	// LogoutURL returns the URL that ends the session and lands on dest.
	LogoutURL(dest string) string
}

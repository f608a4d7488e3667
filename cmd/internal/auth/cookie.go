package auth

import (
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
)

// DefaultCookieName is the cookie the dev provider keeps the handle in.
const DefaultCookieName = "banter_user"

// CookieProvider is a development stand-in for a real identity provider:
// the caller's handle lives in a plain cookie, and login is a form that
// sets it. Nothing about it is secure and nothing in the chat core should
// care, since any production deployment swaps in a real Provider.
type CookieProvider struct {
	log        *slog.Logger
	cookieName string
}

// NewCookieProvider constructs the dev provider.
func NewCookieProvider(log *slog.Logger, cookieName string) *CookieProvider {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &CookieProvider{log: log, cookieName: cookieName}
}

// CurrentIdentity reads the handle cookie.
func (p *CookieProvider) CurrentIdentity(r *http.Request) (string, bool) {
	c, err := r.Cookie(p.cookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	handle, err := url.QueryUnescape(c.Value)
	if err != nil || strings.TrimSpace(handle) == "" {
		return "", false
	}
	return handle, true
}

// LoginURL points at the provider's own login form.
func (p *CookieProvider) LoginURL(dest string) string {
	return "/auth/login?dest=" + url.QueryEscape(destOrRoot(dest))
}

// LogoutURL points at the provider's own logout endpoint.
func (p *CookieProvider) LogoutURL(dest string) string {
	return "/auth/logout?dest=" + url.QueryEscape(destOrRoot(dest))
}

// Register mounts the dev login/logout endpoints.
func (p *CookieProvider) Register(r chi.Router) {
	r.Get("/auth/login", p.handleLogin)
	r.Post("/auth/login", p.handleLogin)
	r.Get("/auth/logout", p.handleLogout)
}

func (p *CookieProvider) handleLogin(w http.ResponseWriter, r *http.Request) {
	dest := destOrRoot(r.FormValue("dest"))

	handle := strings.TrimSpace(r.FormValue("as"))
	if handle == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, loginForm, html.EscapeString(dest))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     p.cookieName,
		Value:    url.QueryEscape(handle),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	p.log.Info("auth.login", "handle", handle)
	http.Redirect(w, r, dest, http.StatusFound)
}

func (p *CookieProvider) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     p.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	p.log.Info("auth.logout")
	http.Redirect(w, r, destOrRoot(r.FormValue("dest")), http.StatusFound)
}

// destOrRoot keeps redirects local: anything that is not a same-site path
// collapses to "/".
func destOrRoot(dest string) string {
	if dest == "" || !strings.HasPrefix(dest, "/") || strings.HasPrefix(dest, "//") {
		return "/"
	}
	return dest
}

const loginForm = `<!doctype html>
<title>Sign in</title>
<form method="post" action="/auth/login">
  <input type="hidden" name="dest" value="%s">
  <label>Handle <input name="as" placeholder="you@example.com" autofocus></label>
  <button>Sign in</button>
</form>
`

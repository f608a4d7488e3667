package chat

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"banter/cmd/internal/auth"
)

// API exposes the session lifecycle over HTTP. The surface is deliberately
// thin: handlers parse form values, call the Service, and answer with as
// little as possible. Failure modes the core swallows (unknown token,
// empty input, oversized message) stay invisible here too.
type API struct {
	log      *slog.Logger
	svc      *Service
	provider auth.Provider
}

// NewAPI constructs the HTTP layer over the lifecycle service.
func NewAPI(log *slog.Logger, svc *Service, provider auth.Provider) *API {
	return &API{log: log, svc: svc, provider: provider}
}

// Register mounts the chat routes.
func (a *API) Register(r chi.Router) {
	r.Get("/get_token", a.handleGetToken)
	r.Post("/open", a.handleOpen)
	r.Post("/post_msg", a.handlePostMsg)
	r.Post("/del_token", a.handleDelToken)
	r.Get("/login", a.handleLogin)
}

// handleGetToken issues a token for the current caller. The body is the
// bare token, or empty when the anonymous pool is exhausted.
func (a *API) handleGetToken(w http.ResponseWriter, r *http.Request) {
	handle, _ := a.provider.CurrentIdentity(r)

	token, err := a.svc.GetToken(r.Context(), handle)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err != nil {
		if !errors.Is(err, ErrPoolExhausted) {
			http.Error(w, "", http.StatusInternalServerError)
		}
		return
	}
	_, _ = w.Write([]byte(token))
}

func (a *API) handleOpen(w http.ResponseWriter, r *http.Request) {
	a.svc.Open(r.Context(), r.FormValue("token"))
}

func (a *API) handlePostMsg(w http.ResponseWriter, r *http.Request) {
	a.svc.Post(r.Context(), r.FormValue("token"), r.FormValue("content"))
}

func (a *API) handleDelToken(w http.ResponseWriter, r *http.Request) {
	a.svc.Release(r.Context(), r.FormValue("token"))
}

// handleLogin bounces to login or logout depending on whether the caller
// is already signed in.
func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.provider.CurrentIdentity(r); ok {
		http.Redirect(w, r, a.provider.LogoutURL("/"), http.StatusFound)
		return
	}
	http.Redirect(w, r, a.provider.LoginURL("/"), http.StatusFound)
}

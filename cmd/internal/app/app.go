// Package app wires the Banter server runtime: config, logging, the
// registry store, the push channel server, and the HTTP surface.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"banter/cmd/internal/auth"
	"banter/cmd/internal/chat"
	"banter/cmd/internal/push"
)

// App owns the wired server runtime.
type App struct {
	cfg Config
	log Logger

	store     chat.Store
	dbPool    *pgxpool.Pool
	dbEnabled bool

	channels *push.ChannelServer
	api      *chat.API
	provider *auth.CookieProvider
}

// New constructs a fully wired App from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel)
	}

	store, pool, dbEnabled, err := newRegistryStore(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	channels := push.NewChannelServer(log,
		push.WithMaxMessageLength(cfg.MaxMessageLength),
		push.WithSendQueueSize(cfg.SendQueueSize),
		push.WithWriteTimeout(cfg.ChannelWriteTimeout),
	)

	var regOpts []chat.RegistryOption
	if !cfg.RegistrySerialize {
		regOpts = append(regOpts, chat.WithoutSerialization())
	}

	registry := chat.NewRegistry(log, store, channels, chat.NewAllocator(cfg.AnonymousSlots), regOpts...)
	broadcaster := chat.NewBroadcaster(log, channels)
	svc := chat.NewService(log, registry, broadcaster)

	provider := auth.NewCookieProvider(log, cfg.CookieName)
	api := chat.NewAPI(log, svc, provider)

	return &App{
		cfg:       cfg,
		log:       log,
		store:     store,
		dbPool:    pool,
		dbEnabled: dbEnabled,
		channels:  channels,
		api:       api,
		provider:  provider,
	}, nil
}

// Router assembles the full route table.
func (a *App) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if a.dbEnabled && a.dbPool != nil {
			if err := pingPool(req.Context(), a.dbPool, 2*time.Second); err != nil {
				a.log.Info("readyz.db.not_ready", "err", err)
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	r.Handle("/metrics", promhttp.Handler())

	a.api.Register(r)
	a.provider.Register(r)
	r.Get("/channel", a.channels.HandleWS)

	return WithRequestLogging(r, a.log)
}

// Run starts the HTTP server and blocks until context cancellation or a
// fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Router(),
		ReadHeaderTimeout: a.cfg.ReadHeaderTimeout,
		ReadTimeout:       a.cfg.ReadTimeout,
		WriteTimeout:      a.cfg.WriteTimeout,
		IdleTimeout:       a.cfg.IdleTimeout,
		MaxHeaderBytes:    a.cfg.MaxHeaderBytes,
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled,
		"slots", a.cfg.AnonymousSlots, "serialize", a.cfg.RegistrySerialize)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if err := a.store.Close(); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}
	if a.dbPool != nil {
		a.dbPool.Close()
	}

	a.log.Info("server.stopped")
	return nil
}

// newRegistryStore decides between Postgres-backed persistence and the
// in-memory dev store.
func newRegistryStore(ctx context.Context, cfg Config, log Logger) (chat.Store, *pgxpool.Pool, bool, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_registry")
		return chat.NewMemoryStore(), nil, false, nil
	}

	pool, err := newRegistryPool(ctx, cfg)
	if err != nil {
		return nil, nil, false, err
	}

	store, err := chat.NewPostgresStore(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, nil, false, err
	}

	log.Info("db.enabled.postgres_registry")
	return store, pool, true, nil
}

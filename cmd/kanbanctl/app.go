package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"kanbandash/internal/config"
	"kanbandash/internal/dashboard"
	"kanbandash/internal/dnd"
	"kanbandash/internal/gateway"
	"kanbandash/internal/logging"
	"kanbandash/internal/optimistic"
	"kanbandash/internal/store"
)

// app is the client stack for one session.
type app struct {
	logger   *log.Logger
	registry *prometheus.Registry
	client  *gateway.Client
	cache   *store.Cache
	engine  *optimistic.Engine
	board   *dashboard.Board
	tracker *dnd.Tracker
}

func newApp(cfg *config.ClientConfig) (*app, error) {
	session := gateway.Session{Token: cfg.Token, UserID: cfg.UserID}
	if !session.Valid() {
		return nil, errors.New("not logged in: run `kanbanctl login` and export KANBAN_TOKEN")
	}

	logger := logging.New(cfg.LogLevel, "text")
	client := gateway.New(cfg.BaseURL, session,
		gateway.WithTimeout(cfg.HTTPTimeout),
		gateway.WithLogger(logger),
	)
	cache := store.New(session.BoardKey(), client,
		store.WithRefreshInterval(cfg.RefreshInterval),
		store.WithLogger(logger),
	)
	registry := prometheus.NewRegistry()
	engine := optimistic.New(cache, client,
		optimistic.WithLogger(logger),
		optimistic.WithObserver(optimistic.Observers(
			optimistic.LogObserver{Logger: logger},
			optimistic.NewMetrics(registry),
		)),
	)

	return &app{
		logger:   logger,
		registry: registry,
		client:  client,
		cache:   cache,
		engine:  engine,
		board:   dashboard.New(cache, engine, dashboard.LogNotifier{Logger: logger}),
		tracker: dnd.NewTracker(dnd.WithCommit(dnd.EngineCommit(engine)), dnd.WithLogger(logger)),
	}, nil
}

// load fetches the board once so commands start from server state.
func (a *app) load(ctx context.Context) error {
	if err := a.cache.Revalidate(ctx); err != nil {
		return fmt.Errorf("load board: %w", err)
	}
	return nil
}

func (a *app) metricsHandler() http.Handler {
	return promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})
}

// serveMetrics exposes the engine metrics on addr until ctx is done.
func (a *app) serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metricsHandler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		a.logger.Infof("📈 Metrics on %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.WithError(err).Error("metrics server stopped")
		}
	}()
}

// resolveColumn accepts a column id or a case-insensitive title.
func resolveColumn(v dashboard.BoardView, ref string) (string, error) {
	for _, c := range v.Columns {
		if c.ID == ref || strings.EqualFold(c.Title, ref) {
			return c.ID, nil
		}
	}
	return "", fmt.Errorf("column %q not found", ref)
}

// columnOf returns the column holding taskID.
func columnOf(v dashboard.BoardView, taskID string) (string, error) {
	for _, c := range v.Columns {
		for _, t := range c.Tasks {
			if t.ID == taskID {
				return c.ID, nil
			}
		}
	}
	return "", fmt.Errorf("task %q not found", taskID)
}

// Package app wires configuration, infrastructure, the refresh scheduler and the
// HTTP surface into one runnable process.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/glucoview/glucoview/internal/config"
	"github.com/glucoview/glucoview/internal/credentials"
	"github.com/glucoview/glucoview/internal/glucose"
	"github.com/glucoview/glucoview/internal/libre"
	"github.com/glucoview/glucoview/internal/refresh"
	"github.com/glucoview/glucoview/internal/sessions"
	"github.com/glucoview/glucoview/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	Store     *sessions.Store
	Scheduler *refresh.Scheduler

	infra       *Infra
	libre       *libre.Client
	exchanger   *credentials.Exchanger
	revocations *sessions.Revocations
	server      *http.Server
}

// New connects infrastructure and builds the app.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	infra, err := SetupInfra(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return build(cfg, infra, nil), nil
}

// build assembles the app on existing infra. A nil httpClient uses the configured timeout.
func build(cfg *config.Config, infra *Infra, httpClient *http.Client) *App {
	a := &App{infra: infra}
	a.libre = libre.NewClient(cfg.Libre, httpClient)
	a.exchanger = credentials.NewExchanger(a.libre)
	a.revocations = sessions.NewRevocations(infra.Redis)
	a.Store = sessions.NewStore(infra.Repo, cfg.Session.Key)
	a.Scheduler = refresh.New(a.Store, glucose.NewFetcher(a.libre, time.Local),
		refresh.WithInterval(cfg.Refresh.Interval),
		refresh.OnUpdate(func(v refresh.View) {
			logger.Debugf("refresh view: state=%s", v.State)
		}),
		refresh.OnSessionInvalid(func(ctx context.Context, rejected *sessions.Session) {
			removed, err := a.Store.ClearToken(ctx, rejected.Token)
			if err != nil {
				logger.Errorf("clear rejected session: %v", err)
				return
			}
			if removed {
				logger.Infof("remote rejected stored session for user %s; cleared, login required", rejected.UserID)
			}
		}),
	)

	a.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      a.setupRouter(cfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return a
}

// Handler exposes the router, mainly for tests.
func (a *App) Handler() http.Handler { return a.server.Handler }

// Run serves HTTP and drives the scheduler until ctx ends or the listener fails,
// then shuts both down and closes infrastructure.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if err := a.Scheduler.Start(gctx); err != nil {
		return err
	}

	g.Go(func() error {
		logger.Infof("Starting glucoview on %s", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Infof("shutting down")
		a.Scheduler.Stop()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := a.server.Shutdown(sctx)
		return errors.Join(err, a.infra.Close(sctx))
	})

	return g.Wait()
}

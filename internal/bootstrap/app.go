package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/telembed/telembed/internal/domain/qa"
	"github.com/telembed/telembed/internal/infra/backup"
	"github.com/telembed/telembed/internal/infra/config"
)

// App encapsulates the service lifecycle: warm the QA index, then run the
// HTTP server and the backup scheduler until shutdown.
type App struct {
	cfg       *config.Config
	logger    *slog.Logger
	server    *http.Server
	qaSvc     qa.Service
	scheduler *backup.Scheduler
}

// NewApp is used by Wire to build the runnable app.
func NewApp(cfg *config.Config, logger *slog.Logger, server *http.Server, qaSvc qa.Service, scheduler *backup.Scheduler) *App {
	return &App{
		cfg:       cfg,
		logger:    logger.With("component", "bootstrap"),
		server:    server,
		qaSvc:     qaSvc,
		scheduler: scheduler,
	}
}

// Run loads the index, starts the background loops, and blocks until the
// context is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	if err := a.qaSvc.Reload(ctx); err != nil {
		return err
	}
	a.logger.Info("qa service ready", "entries", a.qaSvc.Len())

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		a.logger.Info("http server starting", "address", a.cfg.HTTP.Address)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		return a.scheduler.Run(groupCtx)
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.logger.Info("shutdown signal received")
		return a.server.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

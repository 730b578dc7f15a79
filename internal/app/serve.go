package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/campus/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/campus/internal/adapters/driving/pgnotify"
	"github.com/custodia-labs/campus/internal/config"
	"github.com/custodia-labs/campus/internal/logger"
)

// HTTPServer builds the HTTP API over the app's services.
func (a *App) HTTPServer() (*httpapi.Server, error) {
	return httpapi.New(httpapi.Config{
		Address:            a.Config.Server.Address,
		ChatTimeout:        a.Config.Server.ChatTimeout,
		RateLimitPerMinute: a.Config.Server.RateLimitPerMinute,
		ShutdownTimeout:    a.Config.Server.ShutdownTimeout,
	}, httpapi.Services{
		Chat:      a.Chat,
		Retrieval: a.Retrieval,
		Sync:      a.Sync,
		Publisher: a.Bus,
		Settings:  a.Tuning,
		Kinds:     a.Registry,
		Metrics:   a.Metrics,
		Gatherer:  a.Gatherer,
	})
}

// Serve runs the HTTP API and, depending on configuration, the database
// notification listener, the reindex scheduler and the config watcher.
// It returns when ctx is cancelled or any of them fails.
func (a *App) Serve(ctx context.Context) error {
	server, err := a.HTTPServer()
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Run(ctx)
	})

	if a.Config.Records.Driver == "postgres" && a.Config.Records.NotifyChannel != "" {
		listener, err := pgnotify.New(a.Config.Records.DSN, a.Config.Records.NotifyChannel, a.Bus,
			pgnotify.WithMetrics(a.Metrics),
			pgnotify.WithReconnectHook(func() {
				// Notifications sent while disconnected are lost
				go a.catchUp(ctx)
			}),
		)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return listener.Run(ctx)
		})
	}

	if a.Scheduler != nil {
		if err := a.Scheduler.Start(ctx); err != nil {
			return fmt.Errorf("starting scheduler: %w", err)
		}
		logger.Info("scheduler: reindex schedule %q", a.Config.Sync.ReindexSchedule)
	}

	if a.Config.File != "" {
		g.Go(func() error {
			return config.Watch(ctx, a.Config.File, a.ApplyConfig)
		})
	}

	return g.Wait()
}

func (a *App) catchUp(ctx context.Context) {
	logger.Info("pgnotify: reconnected, reindexing to catch up")
	report, err := a.Sync.Reindex(ctx)
	if err != nil {
		logger.Warn("catch-up reindex: %v", err)
		return
	}
	logger.Info("catch-up reindex: %d synced, %d failed", report.Synced, report.Failed)
}

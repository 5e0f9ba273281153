package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/0xBased-lang/kektech-backend/internal/server"
	"github.com/0xBased-lang/kektech-backend/internal/server/handler"
	"github.com/0xBased-lang/kektech-backend/internal/server/ws"
)

// ServeMode runs the HTTP + WebSocket API on top of the settlement engine.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// ArchiveMode runs the settled-market archiver loop only. Useful as a
// sidecar next to a serve-mode fleet.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")

	g, ctx := errgroup.WithContext(ctx)
	if err := a.startArchiver(ctx, g, deps); err != nil {
		return fmt.Errorf("archive mode: %w", err)
	}
	return g.Wait()
}

// FullMode runs the API server and, when enabled, the archiver loop in one
// process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}

	if a.cfg.Archive.Enabled {
		if err := a.startArchiver(ctx, g, deps); err != nil {
			return fmt.Errorf("full mode: %w", err)
		}
	}

	return g.Wait()
}

// startHTTPServer adds the API server (and the WebSocket hub when Redis is
// wired) to the given errgroup. The server shuts down gracefully when the
// context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	svc := deps.Settlement

	handlers := server.Handlers{
		Health:     handler.NewHealthHandler(a.logger),
		Markets:    handler.NewMarketHandler(svc, a.logger),
		Bets:       handler.NewBetHandler(svc, a.logger),
		Resolution: handler.NewResolutionHandler(svc, a.logger),
		Claims:     handler.NewClaimHandler(svc, deps.BalanceStore, a.logger),
		Audit:      handler.NewAuditHandler(deps.AuditStore, a.logger),
	}
	if deps.BlobReader != nil {
		handlers.Archive = handler.NewArchiveHandler(deps.BlobReader, a.logger)
	}

	// WebSocket hub requires the Redis signal bus.
	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.logger, ws.Config{
			Mode:      a.cfg.Mode,
			StartedAt: time.Now().UTC(),
		})
		g.Go(func() error {
			if err := hub.Run(ctx); err != nil && ctx.Err() == nil {
				return fmt.Errorf("ws hub: %w", err)
			}
			return nil
		})
	} else {
		a.logger.WarnContext(ctx, "redis disabled, websocket event stream unavailable")
	}

	srv := server.NewServer(server.Config{
		Port:          a.cfg.Server.Port,
		CORSOrigins:   a.cfg.Server.CORSOrigins,
		APIKey:        a.cfg.Server.APIKey,
		RatePerMinute: a.cfg.Server.RatePerMinute,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// startArchiver adds the periodic settled-market export loop to the given
// errgroup. Each cycle exports markets settled longer ago than the
// retention window.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) error {
	if deps.Archiver == nil {
		return fmt.Errorf("archiver requires S3 blob storage (set archive.enabled and the s3 section)")
	}

	interval := a.cfg.Archive.Interval.Duration
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour

	runOnce := func() {
		cutoff := time.Now().UTC().Add(-retention)
		count, err := deps.Archiver.ArchiveSettled(ctx, cutoff)
		if err != nil {
			a.logger.ErrorContext(ctx, "archive cycle failed",
				slog.String("error", err.Error()),
			)
			return
		}
		if count > 0 {
			a.logger.InfoContext(ctx, "archived settled markets",
				slog.Int64("count", count),
				slog.Time("cutoff", cutoff),
			)
		}
	}

	g.Go(func() error {
		runOnce()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				runOnce()
			}
		}
	})

	a.logger.InfoContext(ctx, "archiver started",
		slog.Duration("interval", interval),
		slog.Int("retention_days", a.cfg.Archive.RetentionDays),
	)
	return nil
}

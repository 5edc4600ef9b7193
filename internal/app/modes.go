package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nvoloshin/swapbot/internal/domain"
	"github.com/nvoloshin/swapbot/internal/server"
	"github.com/nvoloshin/swapbot/internal/server/handler"
	"github.com/nvoloshin/swapbot/internal/service"
)

// services builds the service layer shared by all modes.
type services struct {
	wallets    *service.WalletService
	trades     *service.TradeService
	prices     *service.PriceService
	reconciler *service.Reconciler
}

func (a *App) buildServices(deps *Dependencies) *services {
	wallets := service.NewWalletService(
		deps.WalletStore, deps.Vault, deps.ChainClient, deps.AuditStore, a.logger,
	)
	trades := service.NewTradeService(
		deps.WalletStore,
		deps.TransactionStore,
		domain.AssetTable(a.cfg.Assets),
		deps.Vault,
		deps.SwapExecutor,
		deps.TransferExecutor,
		deps.LockManager,
		deps.RateLimiter,
		deps.AuditStore,
		deps.Notifier,
		a.cfg.Solana.ExplorerHost,
		a.logger,
	)
	prices := service.NewPriceService(deps.PriceSource, deps.PriceCache, a.logger)
	reconciler := service.NewReconciler(
		deps.TransactionStore,
		deps.ChainClient,
		deps.Notifier,
		a.cfg.Solana.ExplorerHost,
		a.cfg.Solana.ConfirmInterval.Duration*10,
		50,
		a.logger,
	)

	return &services{
		wallets:    wallets,
		trades:     trades,
		prices:     prices,
		reconciler: reconciler,
	}
}

// ServeMode runs the HTTP API plus the unconfirmed-transaction reconciler.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)

	a.startHTTPServer(ctx, g, svcs)

	g.Go(func() error {
		return svcs.reconciler.Run(ctx)
	})

	return g.Wait()
}

// ArchiveMode runs the ledger archiver on its configured interval and exits
// when the context is cancelled.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startArchiver(ctx, g, deps)

	return g.Wait()
}

// FullMode runs everything: HTTP API, reconciler, and archiver.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)

	a.startHTTPServer(ctx, g, svcs)

	g.Go(func() error {
		return svcs.reconciler.Run(ctx)
	})

	a.startArchiver(ctx, g, deps)

	return g.Wait()
}

// startHTTPServer adds the API server and its shutdown watcher to the group.
// Does nothing when the server is disabled in config.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, svcs *services) {
	if !a.cfg.Server.Enabled {
		a.logger.InfoContext(ctx, "http server disabled")
		return
	}

	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIToken:    a.cfg.Server.APIToken,
		},
		server.Handlers{
			Health:  handler.NewHealthHandler(a.logger),
			Wallets: handler.NewWalletHandler(svcs.wallets, a.logger),
			Trades:  handler.NewTradeHandler(svcs.trades, a.logger),
			Prices:  handler.NewPriceHandler(svcs.prices, a.logger),
		},
		a.deps.RateLimiter,
		a.logger,
	)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// startArchiver adds the periodic ledger archiver to the group. Does nothing
// when archiving is disabled or the blob store was not wired.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Archive.Enabled || deps.Archiver == nil {
		a.logger.InfoContext(ctx, "archiver disabled")
		return
	}

	interval := a.cfg.Archive.Interval.Duration
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				cutoff := time.Now().UTC().Add(-retention)
				count, err := deps.Archiver.ArchiveTransactions(ctx, cutoff)
				if err != nil {
					a.logger.ErrorContext(ctx, "archive run failed",
						slog.String("error", err.Error()),
					)
					continue
				}
				if count > 0 {
					a.logger.InfoContext(ctx, "archive run complete",
						slog.Int64("archived", count),
						slog.Time("cutoff", cutoff),
					)
				}
			}
		}
	})
}

// Command surge scans crypto markets for volume and price anomalies and
// turns them into prioritized alerts.
//
// Usage:
//
//	surge --config config.yaml
//	surge --once            (single scan, then exit)
//	surge --setup           (interactive configuration wizard)
package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/surge/config"
	"github.com/vadiminshakov/surge/dashboard"
	"github.com/vadiminshakov/surge/internal"
	"github.com/vadiminshakov/surge/internal/setup"
)

func main() {
	cfg, flags, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	if flags.Setup {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		return
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scanner, err := internal.NewScanner(cfg, logger)
	if err != nil {
		logger.Fatal("failed to create scanner", zap.Error(err))
	}
	defer scanner.Close()

	if flags.Once {
		if err := scanner.Scan(ctx); err != nil {
			logger.Fatal("scan failed", zap.Error(err))
		}
		return
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.DashboardAddr != "" {
		server := dashboard.NewServer(cfg.DashboardAddr, scanner.Store())
		g.Go(func() error {
			logger.Info("starting dashboard", zap.String("addr", cfg.DashboardAddr))
			if cfg.DashboardDomain != "" {
				return server.StartWithAutoTLS(ctx, []string{cfg.DashboardDomain}, "")
			}
			return server.Start(ctx)
		})
	}

	g.Go(func() error {
		return scanner.Run(ctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("scanner stopped", zap.Error(err))
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-chat/internal/bootstrap"
	"storefront-chat/internal/logger"
	"storefront-chat/internal/service/archive"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	if err := run(*configPath, *once); err != nil {
		fmt.Fprintf(os.Stderr, "archive-sweeper: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, once bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, log, err := bootstrap.Load(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	stores, err := bootstrap.OpenStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = stores.Close(closeCtx)
	}()

	sweeper := archive.NewSweeper(stores.Messages, archive.Config{
		Retention: cfg.Archive.Retention,
		Interval:  cfg.Archive.Interval,
		BatchSize: cfg.Archive.BatchSize,
	})

	if once {
		report, err := sweeper.SweepOnce(ctx)
		if err != nil {
			return err
		}
		log.Info("sweep finished",
			zap.Int("archived", report.Archived),
			zap.Int("deleted", report.Deleted),
			zap.Int("reconciled", report.Reconciled),
		)
		return nil
	}

	log.Info("archive sweeper started", zap.Duration("interval", cfg.Archive.Interval))
	sweeper.Run(ctx)
	log.Info("archive sweeper stopped")
	return nil
}

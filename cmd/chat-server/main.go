package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"storefront-chat/internal/api"
	"storefront-chat/internal/api/middleware"
	"storefront-chat/internal/api/router"
	"storefront-chat/internal/bootstrap"
	"storefront-chat/internal/bus"
	"storefront-chat/internal/catalog"
	"storefront-chat/internal/env"
	"storefront-chat/internal/events"
	"storefront-chat/internal/jwt"
	"storefront-chat/internal/logger"
	"storefront-chat/internal/presence"
	"storefront-chat/internal/queue"
	"storefront-chat/internal/service/archive"
	"storefront-chat/internal/service/chat"
	"storefront-chat/internal/websocket"

	"go.uber.org/zap"
)

const routePrefix = "/api/chat/v1"

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "chat-server: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, log, err := bootstrap.Load(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := env.Require(env.UserSecretKey); err != nil {
		return err
	}
	jwt.SetSecret(env.Get(env.UserSecretKey))

	stores, err := bootstrap.OpenStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := stores.Close(closeCtx); err != nil {
			log.Warn("store close failed", zap.Error(err))
		}
	}()

	var mirror presence.Mirror
	if rc := presence.NewRedisClient(); rc != nil {
		mirror = presence.NewRedisMirror(rc, cfg.Presence.RedisPrefix)
		defer rc.Close()
		log.Info("presence mirror enabled")
	}

	publisher := events.New(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn("event publisher close failed", zap.Error(err))
		}
	}()

	var products catalog.Provider
	if cfg.Catalog.URL != "" {
		products = catalog.NewHTTPProvider(cfg.Catalog.URL, cfg.Catalog.Timeout)
	}

	hub := bus.NewHub()
	tracker := presence.NewTracker(presence.Options{
		TypingTimeout: cfg.Presence.TypingTimeout,
		Mirror:        mirror,
	})
	svc := chat.NewService(chat.Deps{
		Messages:  stores.Messages,
		Directory: stores.Directory,
		Publisher: hub,
		Viewing:   hub,
		Presence:  tracker,
		Catalog:   products,
		Events:    publisher,
		Logger:    log,
	})
	tracker.SetNotifier(svc)

	wsHandler := websocket.NewHandler(hub, tracker, chat.NewSessionCommands(svc, hub), websocket.Config{
		PingInterval:   cfg.WS.PingInterval,
		WriteDeadline:  cfg.WS.WriteDeadline,
		MaxFrameBytes:  cfg.WS.MaxFrameBytes,
		SendBuffer:     cfg.WS.SendBuffer,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	queueManager := queue.NewRequestQueueManager(cfg.Server.QueueSize, cfg.Server.QueueWorkers)
	defer queueManager.Shutdown()

	var wg sync.WaitGroup
	if cfg.Archive.InProcess {
		sweeper := archive.NewSweeper(stores.Messages, archive.Config{
			Retention: cfg.Archive.Retention,
			Interval:  cfg.Archive.Interval,
			BatchSize: cfg.Archive.BatchSize,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			sweeper.Run(ctx)
		}()
	}

	server := api.NewAPIServer(
		cfg.Server.ListenAddr,
		queueManager,
		svc,
		wsHandler,
		middleware.DefaultCORSConfig(cfg.Server.AllowedOrigins),
		router.UtilsRoutes(routePrefix),
		router.ChatRoutes(routePrefix),
	)
	server.OnShutdown(hub.Close)

	err = server.Run(ctx)
	stop()
	wg.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

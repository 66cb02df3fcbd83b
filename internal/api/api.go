package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"storefront-chat/internal/api/middleware"
	"storefront-chat/internal/logger"
	"storefront-chat/internal/queue"
	"storefront-chat/internal/service/chat"
	"storefront-chat/internal/websocket"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

type RouteRegistrar func(mux *http.ServeMux, s *APIServer)

type APIServer struct {
	listenAddr          string
	requestQueueManager *queue.RequestQueueManager
	chat                *chat.Service
	handler             *websocket.Handler
	cors                middleware.CORSConfig
	routeRegistrars     []RouteRegistrar
	metrics             *metrics
	onShutdown          []func()
	log                 *zap.Logger
}

func NewAPIServer(listenAddr string, rqm *queue.RequestQueueManager, svc *chat.Service, handler *websocket.Handler, cors middleware.CORSConfig, registrars ...RouteRegistrar) *APIServer {
	return &APIServer{
		listenAddr:          listenAddr,
		requestQueueManager: rqm,
		chat:                svc,
		handler:             handler,
		cors:                cors,
		routeRegistrars:     registrars,
		metrics:             newMetrics(prometheus.DefaultRegisterer, listenAddr, rqm),
		log:                 logger.L().Named("api"),
	}
}

// OnShutdown registers f to run when Run begins shutting down. Hijacked
// websocket connections are not drained by http.Server, so the hub is closed
// here.
func (s *APIServer) OnShutdown(f func()) {
	s.onShutdown = append(s.onShutdown, f)
}

// HTTPHandler builds the instrumented mux with every registered route.
func (s *APIServer) HTTPHandler() http.Handler {
	mux := http.NewServeMux()
	for _, reg := range s.routeRegistrars {
		reg(mux, s)
	}
	mux.Handle("/metrics", s.metrics.metricsHandler())
	return s.metrics.instrument(mux)
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *APIServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listenAddr,
		Handler:           s.HTTPHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	for _, f := range s.onShutdown {
		srv.RegisterOnShutdown(f)
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("server listening", zap.String("addr", s.listenAddr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info("server stopped")
	return nil
}

func (s *APIServer) Chat() *chat.Service {
	return s.chat
}

func (s *APIServer) Websocket() *websocket.Handler {
	return s.handler
}

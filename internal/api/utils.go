package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"storefront-chat/internal/api/middleware"
	"storefront-chat/internal/queue"

	"go.uber.org/zap"
)

type apiFunc func(http.ResponseWriter, *http.Request) error

func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func (s *APIServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		httpErr = &HTTPError{StatusCode: http.StatusInternalServerError, Code: "internal_error", Message: "Internal server error", ErrorLog: err}
	}
	if httpErr.ErrorLog != nil {
		fields := []zap.Field{
			zap.String("path", r.URL.Path),
			zap.Int("status", httpErr.StatusCode),
			zap.Error(httpErr.ErrorLog),
		}
		if httpErr.StatusCode >= http.StatusInternalServerError {
			s.log.Error("request failed", fields...)
		} else {
			s.log.Debug("request rejected", fields...)
		}
	}
	_ = WriteJSON(w, httpErr.StatusCode, ApiError{Code: httpErr.Code, Error: httpErr.Message})
}

func (s *APIServer) middlewares() []middleware.Middleware {
	return []middleware.Middleware{
		middleware.CORS(s.cors),
		middleware.Logging(),
	}
}

// MakeHTTPHandleFunc runs f on a request queue worker behind CORS, logging,
// and any extra middleware (authentication).
func (s *APIServer) MakeHTTPHandleFunc(f apiFunc, extra ...middleware.Middleware) http.HandlerFunc {
	baseHandler := func(w http.ResponseWriter, r *http.Request) {
		errc := make(chan error, 1)

		job := queue.Job{
			Fn:   func() error { return f(w, r) },
			Errc: errc,
		}
		if !s.requestQueueManager.EnqueueJob(r.Context(), job) {
			s.writeError(w, r, &HTTPError{StatusCode: http.StatusServiceUnavailable, Code: "storage_unavailable", Message: "Server busy"})
			return
		}

		if err := <-errc; err != nil {
			s.writeError(w, r, err)
		}
	}

	return middleware.Chain(baseHandler, append(s.middlewares(), extra...)...)
}

// MakeStreamHandleFunc is MakeHTTPHandleFunc without the worker queue, for
// handlers that hold the connection open such as the websocket upgrade.
func (s *APIServer) MakeStreamHandleFunc(f apiFunc, extra ...middleware.Middleware) http.HandlerFunc {
	baseHandler := func(w http.ResponseWriter, r *http.Request) {
		if err := f(w, r); err != nil {
			s.writeError(w, r, err)
		}
	}
	return middleware.Chain(baseHandler, append(s.middlewares(), extra...)...)
}

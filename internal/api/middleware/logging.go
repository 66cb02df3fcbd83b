package middleware

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"storefront-chat/internal/logger"
	"storefront-chat/utils"

	"go.uber.org/zap"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack must pass through or the websocket upgrade fails.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := r.ResponseWriter.(http.Hijacker); ok {
		if r.status == 0 {
			r.status = http.StatusSwitchingProtocols
		}
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("statusRecorder: underlying ResponseWriter does not support hijacking")
}

func (r *statusRecorder) Push(target string, opts *http.PushOptions) error {
	if p, ok := r.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}
	return http.ErrNotSupported
}

const RequestIDHeader = "X-Request-ID"

func Logging() Middleware {
	log := logger.L().Named("http")
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			reqID := r.Header.Get(RequestIDHeader)
			if reqID == "" {
				reqID = utils.NewRequestID()
			}
			w.Header().Set(RequestIDHeader, reqID)

			next(rec, r)

			log.Info("request",
				zap.String("method", r.Method),
				zap.String("uri", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Int("size", rec.size),
				zap.Duration("duration", time.Since(start)),
				zap.String("client_ip", utils.RealClientIP(r)),
				zap.String("user_agent", r.UserAgent()),
				zap.String("request_id", reqID),
			)
		}
	}
}

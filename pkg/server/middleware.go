package server

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"migra/pkg/logger"
)

// RequestIDKey is the header carrying the request id.
const RequestIDKey = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack hands the connection to the websocket upgrader.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Logger logs every request and stores a request scoped logger in the
// context.
func Logger(base *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		skipLogging := r.URL.Path == "/healthz"

		requestID := r.Header.Get(RequestIDKey)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set(RequestIDKey, requestID)

		log := base.With(
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
		)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(logger.WithContext(r.Context(), log)))

		if skipLogging {
			return
		}
		latency := time.Since(start)
		log = log.With("status", rec.status, "latency_ms", latency.Milliseconds())
		switch {
		case rec.status >= 500:
			log.Error("request completed with server error")
		case rec.status >= 400:
			log.Warn("request completed with client error")
		default:
			log.Info("request completed")
		}
	})
}

// Recovery turns a panic into a 500 reply.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.FromContext(r.Context()).Error("panic recovered",
					"panic", fmt.Sprintf("%v", err),
					"stack", string(debug.Stack()),
				)
				writeJSON(w, http.StatusInternalServerError, Response{
					Code:    "INTERNAL_ERROR",
					Message: "internal server error",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// CORS allows the wizard front end to be served from another origin.
func CORS(next http.Handler) http.Handler {
	methods := strings.Join([]string{
		http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
	}, ", ")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", methods)
		h.Set("Access-Control-Allow-Headers", "Content-Type, "+RequestIDKey)
		h.Set("Access-Control-Expose-Headers", RequestIDKey)
		h.Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

package server

import (
	"net/http"
	"time"

	"github.com/eunmann/csvload/internal/logctx"
	"github.com/go-chi/chi/v5/middleware"
)

// requestLogger attaches a request-scoped zerolog logger to the context and
// logs one line per request once it completes. It must run after
// middleware.RequestID.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logctx.WithStr(r.Context(), "request_id", middleware.GetReqID(r.Context()))

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		logger := logctx.FromContext(ctx)
		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Str("remote_addr", r.RemoteAddr).
			Msg("request")
	})
}

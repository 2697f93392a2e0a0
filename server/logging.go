package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/jonwraymond/maildispatch/observe"
)

// requestLogger logs every request with its id, status and duration.
func requestLogger(logger observe.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info(r.Context(), "http request",
				observe.Field{Key: "request_id", Value: middleware.GetReqID(r.Context())},
				observe.Field{Key: "method", Value: r.Method},
				observe.Field{Key: "path", Value: r.URL.Path},
				observe.Field{Key: "status", Value: ww.Status()},
				observe.Field{Key: "bytes", Value: ww.BytesWritten()},
				observe.Field{Key: "duration_ms", Value: time.Since(start).Milliseconds()},
				observe.Field{Key: "remote_addr", Value: r.RemoteAddr},
			)
		})
	}
}

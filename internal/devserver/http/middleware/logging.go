package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/pribylovaa/aihub-client/pkg/log"
	"github.com/pribylovaa/aihub-client/pkg/redact"
)

// Logging кладёт request-scoped логгер в контекст и пишет одну запись
// на запрос. Токен из строки запроса в лог не попадает.
func Logging(l *slog.Logger) Middleware {
	if l == nil {
		l = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLogger := l
			if rid := RequestIDFrom(r.Context()); rid != "" {
				reqLogger = reqLogger.With(slog.String("request_id", rid))
			}
			r = r.WithContext(log.Into(r.Context(), reqLogger))

			sw := newStatusWriter(w)
			start := time.Now()

			next.ServeHTTP(sw, r)

			reqLogger.LogAttrs(r.Context(), slog.LevelInfo, "http",
				slog.String("method", r.Method),
				slog.String("path", redact.URL(r.URL.RequestURI())),
				slog.Int("status", sw.Status()),
				slog.Duration("dur", time.Since(start)),
				slog.Int("bytes", sw.count),
			)
		})
	}
}

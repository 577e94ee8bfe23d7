package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/pribylovaa/go-blog/internal/pkg/log"
)

// Logging кладёт в контекст логгер с request_id и пишет одну запись "http" на запрос.
func Logging(l *slog.Logger, trustProxy bool) Middleware {
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

			log.From(r.Context()).LogAttrs(r.Context(), slog.LevelInfo, "http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.RequestURI()),
				slog.Int("status", sw.Status()),
				slog.Duration("dur", time.Since(start)),
				slog.Int("bytes", sw.count),
				slog.String("ip", ClientIP(r, trustProxy)),
				slog.String("user_agent", r.UserAgent()),
			)
		})
	}
}

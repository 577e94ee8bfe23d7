package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/pribylovaa/go-blog/internal/http/apierrors"
	"github.com/pribylovaa/go-blog/internal/pkg/log"
	"github.com/pribylovaa/go-blog/pkg/envelope"
)

// Timeout ограничивает время обработки запроса; d<=0 отключает ограничение,
// уже заданный deadline не переопределяется.
// Если deadline истёк, а обработчик так ничего и не записал, ответом
// становится 504 TIMEOUT.
func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if _, ok := ctx.Deadline(); !ok {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, d)
				defer cancel()
			}

			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r.WithContext(ctx))

			if sw.wroteHeader() || !errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return
			}

			log.From(ctx).Warn("request_timeout",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)

			apierrors.Status(sw, r, http.StatusGatewayTimeout, envelope.CodeTimeout, "Request timeout")
		})
	}
}

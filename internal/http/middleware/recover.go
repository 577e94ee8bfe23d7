package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/pribylovaa/go-blog/internal/http/apierrors"
	"github.com/pribylovaa/go-blog/internal/pkg/log"
	"github.com/pribylovaa/go-blog/pkg/envelope"
)

// Recover превращает panic в 500 INTERNAL_ERROR. Детали паники клиенту не отдаются.
func Recover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := newStatusWriter(w)

			defer func() {
				rec := recover()
				if rec == nil {
					return
				}

				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				log.From(r.Context()).LogAttrs(r.Context(), slog.LevelError, "panic",
					slog.String("path", r.URL.Path),
					slog.Any("reason", rec),
					slog.String("stack", string(debug.Stack())),
				)

				if sw.wroteHeader() {
					return
				}

				apierrors.Status(sw, r, http.StatusInternalServerError, envelope.CodeInternal, "Internal server error")
			}()

			next.ServeHTTP(sw, r)
		})
	}
}

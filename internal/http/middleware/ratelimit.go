package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pribylovaa/go-blog/internal/http/apierrors"
	"github.com/pribylovaa/go-blog/internal/pkg/log"
	"github.com/pribylovaa/go-blog/internal/ratelimit"
	"github.com/pribylovaa/go-blog/pkg/envelope"
)

const unavailableLogEvery = 10 * time.Second

// RateLimit пропускает запрос, только если его пропускают все ярусы лимитера.
// Отказ — 429 с Retry-After до любой работы обработчика. Сбой лимитера
// пишется в лог не чаще раза в unavailableLogEvery, запрос пропускается.
func RateLimit(l ratelimit.Limiter, trustProxy bool) Middleware {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}

		unavailable := &rate.Sometimes{Interval: unavailableLogEvery}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + ClientIP(r, trustProxy)

			d, err := l.Allow(r.Context(), key)
			if err != nil {
				unavailable.Do(func() {
					log.From(r.Context()).Warn("rate_limit_unavailable", slog.String("err", err.Error()))
				})
				next.ServeHTTP(w, r)
				return
			}

			if !d.Allowed {
				secs := int(math.Ceil(d.RetryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}

				w.Header().Set("Retry-After", strconv.Itoa(secs))

				log.From(r.Context()).Info("rate_limited",
					slog.String("tier", d.Tier),
					slog.String("key", key),
				)

				apierrors.Status(w, r, http.StatusTooManyRequests, envelope.CodeTooManyRequests, "Too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP — адрес клиента. X-Forwarded-For учитывается только за доверенным прокси.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
				return ip.String()
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

package middleware

import (
	"context"
	"net/http"

	"github.com/segmentio/ksuid"
)

// HeaderRequestID — заголовок корреляции.
const HeaderRequestID = "X-Request-ID"

const maxRequestIDLen = 128

type requestIDKey struct{}

// RequestID обеспечивает наличие X-Request-ID:
//  1. берёт входящий заголовок, если он печатный и не длиннее 128 символов;
//  2. иначе генерирует req_<ksuid>;
//  3. выставляет id в заголовок ответа до вызова обработчика и кладёт в контекст.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(HeaderRequestID)
			if !saneRequestID(id) {
				id = "req_" + ksuid.New().String()
				r.Header.Set(HeaderRequestID, id)
			}

			w.Header().Set(HeaderRequestID, id)

			ctx := context.WithValue(r.Context(), requestIDKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDFrom возвращает id запроса из контекста.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func saneRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}

	for i := 0; i < len(id); i++ {
		if c := id[i]; c < 0x21 || c > 0x7e {
			return false
		}
	}

	return true
}

package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pribylovaa/go-blog/internal/http/apierrors"
	imodels "github.com/pribylovaa/go-blog/internal/models"
	"github.com/pribylovaa/go-blog/internal/pkg/log"
	"github.com/pribylovaa/go-blog/internal/service"
	"github.com/pribylovaa/go-blog/pkg/models"
)

// Authenticator проверяет access-токен.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*imodels.Principal, error)
}

type principalKey struct{}

// Authenticate проверяет Bearer-токен, если он передан, и кладёт вызывающего
// в контекст. Без заголовка Authorization запрос анонимный.
// Просроченный токен — 401 TOKEN_EXPIRED, иной невалидный — 401 UNAUTHORIZED.
func Authenticate(a Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			scheme, token, ok := strings.Cut(header, " ")
			token = strings.TrimSpace(token)
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				apierrors.WriteError(w, r, service.ErrInvalidToken)
				return
			}

			p, err := a.Authenticate(r.Context(), token)
			if err != nil {
				apierrors.WriteError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), principalKey{}, p)
			ctx = log.With(ctx, slog.String("user_id", p.UserID.String()))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFrom — вызывающий из контекста; nil для анонимного запроса.
func PrincipalFrom(ctx context.Context) *imodels.Principal {
	p, _ := ctx.Value(principalKey{}).(*imodels.Principal)
	return p
}

// WithPrincipal кладёт вызывающего в контекст.
func WithPrincipal(ctx context.Context, p *imodels.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// RequireAuth — 401 для анонимного запроса.
func RequireAuth() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if PrincipalFrom(r.Context()) == nil {
				apierrors.WriteError(w, r, service.ErrUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole — 401 для анонимного запроса, 403 при другой роли.
func RequireRole(role models.Role) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFrom(r.Context())
			switch {
			case p == nil:
				apierrors.WriteError(w, r, service.ErrUnauthorized)
				return
			case p.Role != role:
				apierrors.WriteError(w, r, service.ErrForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

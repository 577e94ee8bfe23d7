package queries

import (
	"context"
	"fmt"
	"time"

	"github.com/pribylovaa/go-blog/pkg/apiclient"
	"github.com/pribylovaa/go-blog/pkg/models"
	"github.com/pribylovaa/go-blog/pkg/querycache"
)

// TokenWriter — хранилище токена с записью (localstore.Credentials).
type TokenWriter interface {
	SetToken(token string) error
	Clear() error
}

// Session — вход, выход и текущий пользователь.
type Session struct {
	api   *apiclient.Client
	cache *querycache.Cache
	creds TokenWriter
}

func NewSession(api *apiclient.Client, cache *querycache.Cache, creds TokenWriter) *Session {
	return &Session{api: api, cache: cache, creds: creds}
}

// Login сохраняет access-токен и сбрасывает кэш пользователя.
func (s *Session) Login(ctx context.Context, in models.LoginInput) (models.AuthResult, error) {
	const op = "queries.Session.Login"

	res, err := apiclient.Decode[models.AuthResult](s.api.Post(ctx, "/auth/login", in))
	if err != nil {
		return res, err
	}

	if err := s.creds.SetToken(res.Tokens.AccessToken); err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}

	s.cache.Remove(UserKeys.All())
	return res, nil
}

// Refresh обменивает refresh-токен на новую пару.
func (s *Session) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	const op = "queries.Session.Refresh"

	pair, err := apiclient.Decode[models.TokenPair](s.api.Post(ctx, "/auth/refresh", models.RefreshInput{RefreshToken: refreshToken}))
	if err != nil {
		return pair, err
	}

	if err := s.creds.SetToken(pair.AccessToken); err != nil {
		return pair, fmt.Errorf("%s: %w", op, err)
	}

	return pair, nil
}

// Logout отзывает refresh-токен; локальный токен удаляется в любом случае.
func (s *Session) Logout(ctx context.Context, refreshToken string) error {
	_, err := s.api.Post(ctx, "/auth/logout", models.RefreshInput{RefreshToken: refreshToken})

	if cerr := s.creds.Clear(); cerr != nil && err == nil {
		err = cerr
	}

	s.cache.Remove(UserKeys.All())
	return err
}

// Me — текущий пользователь.
func (s *Session) Me(ctx context.Context) (models.User, error) {
	return querycache.Query(ctx, s.cache, UserKeys.Detail("me"),
		func(ctx context.Context) (models.User, error) {
			return apiclient.Decode[models.User](s.api.Get(ctx, "/users/me", nil))
		}, querycache.WithStaleTime(5*time.Minute))
}

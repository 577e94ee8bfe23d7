package service

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pribylovaa/go-blog/internal/cache"
	imodels "github.com/pribylovaa/go-blog/internal/models"
	"github.com/pribylovaa/go-blog/internal/pkg/log"
	"github.com/pribylovaa/go-blog/internal/storage"
	"github.com/pribylovaa/go-blog/pkg/models"
)

const tokenType = "Bearer"

type accessClaims struct {
	UserID string      `json:"uid"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// issueTokens выпускает пару access/refresh для пользователя.
func (s *Service) issueTokens(ctx context.Context, user *models.User) (*models.TokenPair, error) {
	const op = "service.token.issueTokens"

	now := s.now()

	access, err := s.generateAccessToken(ctx, user, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	refresh, err := s.generateRefreshToken(ctx, user.ID, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.auth.AccessTokenTTL / time.Second),
		TokenType:    tokenType,
	}, nil
}

// generateAccessToken подписывает JWT HS256 с uid и ролью.
func (s *Service) generateAccessToken(ctx context.Context, user *models.User, now time.Time) (string, error) {
	const op = "service.token.generateAccessToken"

	claims := accessClaims{
		UserID: user.ID.String(),
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.auth.AccessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.auth.Issuer,
			Subject:   user.ID.String(),
			Audience:  jwt.ClaimStrings(s.auth.Audience),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.auth.JWTSecret))
	if err != nil {
		log.From(ctx).Error("access_token_sign_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// parseAccessToken проверяет подпись, срок, issuer и audience.
func (s *Service) parseAccessToken(tokenStr string) (*imodels.Principal, error) {
	const op = "service.token.parseAccessToken"

	token, err := jwt.ParseWithClaims(tokenStr, &accessClaims{},
		func(t *jwt.Token) (any, error) {
			return []byte(s.auth.JWTSecret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(5*time.Second),
		jwt.WithIssuer(s.auth.Issuer),
		jwt.WithAudience(s.auth.Audience...),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}

		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	claims, ok := token.Claims.(*accessClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	uid, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	switch claims.Role {
	case models.RoleUser, models.RoleAdmin:
	default:
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return &imodels.Principal{UserID: uid, Role: claims.Role}, nil
}

// hashRefresh — HMAC-SHA256 от значения токена; в хранилище попадает только он.
func (s *Service) hashRefresh(plain string) string {
	mac := hmac.New(sha256.New, []byte(s.auth.RefreshSecret))
	mac.Write([]byte(plain))

	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// generateRefreshToken создаёт и сохраняет новый refresh-токен.
func (s *Service) generateRefreshToken(ctx context.Context, userID uuid.UUID, now time.Time) (string, error) {
	const (
		op          = "service.token.generateRefreshToken"
		maxAttempts = 5
	)

	lg := log.From(ctx)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			lg.Error("refresh_rand_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
			return "", fmt.Errorf("%s: %w", op, err)
		}

		plain := base64.RawURLEncoding.EncodeToString(b)

		token := &imodels.RefreshToken{
			TokenHash: s.hashRefresh(plain),
			UserID:    userID,
			CreatedAt: now,
			ExpiresAt: now.Add(s.auth.RefreshTokenTTL),
		}

		if err := s.storage.SaveRefreshToken(ctx, token); err != nil {
			if errors.Is(err, storage.ErrAlreadyExists) {
				continue
			}

			lg.Error("save_refresh_token_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
			return "", fmt.Errorf("%s: %w", op, err)
		}

		s.cacheRefresh(ctx, token)

		return plain, nil
	}

	lg.Error("refresh_collision_exceeded", slog.String("op", op))

	return "", fmt.Errorf("%s: %w", op, ErrRefreshTokenCollision)
}

// lookupRefresh находит активный refresh-токен: сначала кэш, затем БД.
func (s *Service) lookupRefresh(ctx context.Context, hash string) (*imodels.RefreshToken, error) {
	const op = "service.token.lookupRefresh"

	lg := log.From(ctx)

	token, ok := s.cachedRefresh(ctx, hash)
	if !ok {
		var err error

		token, err = s.storage.RefreshTokenByHash(ctx, hash)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				lg.Warn("refresh_lookup_not_found", slog.String("op", op))
				return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
			}

			lg.Error("refresh_lookup_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		s.cacheRefresh(ctx, token)
	}

	if token.Revoked {
		lg.Warn("refresh_revoked",
			slog.String("op", op),
			slog.String("user_id", token.UserID.String()),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrTokenRevoked)
	}

	if s.now().After(token.ExpiresAt) {
		lg.Warn("refresh_expired",
			slog.String("op", op),
			slog.String("user_id", token.UserID.String()),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
	}

	return token, nil
}

// cachedRefresh читает запись из кэша; сбой кэша равносилен промаху.
func (s *Service) cachedRefresh(ctx context.Context, hash string) (*imodels.RefreshToken, bool) {
	if s.rcache == nil {
		return nil, false
	}

	e, ok, err := s.rcache.Get(ctx, hash)
	if err != nil {
		log.From(ctx).Warn("refresh_cache_get_failed", slog.String("err", err.Error()))
		return nil, false
	}

	if !ok {
		return nil, false
	}

	return &imodels.RefreshToken{
		TokenHash: hash,
		UserID:    e.UserID,
		ExpiresAt: e.ExpiresAt,
		Revoked:   e.Revoked,
	}, true
}

func (s *Service) cacheRefresh(ctx context.Context, t *imodels.RefreshToken) {
	if s.rcache == nil {
		return
	}

	entry := &cache.RefreshEntry{UserID: t.UserID, Revoked: t.Revoked, ExpiresAt: t.ExpiresAt}
	if err := s.rcache.Set(ctx, t.TokenHash, entry, t.ExpiresAt.Sub(s.now())); err != nil {
		log.From(ctx).Warn("refresh_cache_set_failed", slog.String("err", err.Error()))
	}
}

func (s *Service) cacheRevoked(ctx context.Context, hash string) {
	if s.rcache == nil {
		return
	}

	if err := s.rcache.MarkRevoked(ctx, hash); err != nil {
		log.From(ctx).Warn("refresh_cache_revoke_failed", slog.String("err", err.Error()))
	}
}

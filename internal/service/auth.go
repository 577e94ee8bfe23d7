package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	imodels "github.com/pribylovaa/go-blog/internal/models"
	"github.com/pribylovaa/go-blog/internal/pkg/log"
	"github.com/pribylovaa/go-blog/internal/pkg/redact"
	"github.com/pribylovaa/go-blog/internal/storage"
	"github.com/pribylovaa/go-blog/pkg/models"
)

// Register создаёт учётную запись и сразу выдаёт пару токенов.
func (s *Service) Register(ctx context.Context, in models.RegisterInput) (*models.AuthResult, error) {
	const op = "service.auth.Register"

	email, err := normalizeEmail("email", in.Email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	username := strings.TrimSpace(in.Username)
	if err := validateUsername(username); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := validatePassword(in.Password); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	role := models.RoleUser
	if s.isAdminEmail(email) {
		role = models.RoleAdmin
	}

	now := s.now()
	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		Username:     username,
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.SaveUser(ctx, user); err != nil {
		return nil, storageErr(op, err, "email")
	}

	log.From(ctx).Info("user_registered",
		slog.String("user_id", user.ID.String()),
		slog.String("email", redact.Email(email)),
		slog.String("role", string(role)),
	)

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.AuthResult{User: *user, Tokens: *tokens}, nil
}

// Login — вход по e-mail и паролю. Любое несовпадение — ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, in models.LoginInput) (*models.AuthResult, error) {
	const op = "service.auth.Login"

	email, err := normalizeEmail("email", in.Email)
	if err != nil || in.Password == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	user, err := s.storage.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !checkPassword(user.PasswordHash, in.Password) {
		log.From(ctx).Warn("login_bad_password", slog.String("email", redact.Email(email)))
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.AuthResult{User: *user, Tokens: *tokens}, nil
}

// Refresh выдаёт новую пару и отзывает предъявленный refresh-токен.
// Повторное предъявление того же токена — ErrTokenRevoked.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	const op = "service.auth.Refresh"

	if strings.TrimSpace(refreshToken) == "" {
		return nil, fmt.Errorf("%s: %w", op, Invalid("refreshToken", "is required"))
	}

	hash := s.hashRefresh(refreshToken)

	token, err := s.lookupRefresh(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	revoked, err := s.storage.RevokeRefreshToken(ctx, hash)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.cacheRevoked(ctx, hash)

	if !revoked {
		// Токен успели отозвать параллельно.
		return nil, fmt.Errorf("%s: %w", op, ErrTokenRevoked)
	}

	user, err := s.storage.UserByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return tokens, nil
}

// Logout отзывает refresh-токен. Повторный выход тем же токеном не ошибка.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	const op = "service.auth.Logout"

	if strings.TrimSpace(refreshToken) == "" {
		return fmt.Errorf("%s: %w", op, Invalid("refreshToken", "is required"))
	}

	hash := s.hashRefresh(refreshToken)

	if _, err := s.storage.RevokeRefreshToken(ctx, hash); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	s.cacheRevoked(ctx, hash)

	return nil
}

// Authenticate проверяет access-токен и возвращает вызывающего.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*imodels.Principal, error) {
	const op = "service.auth.Authenticate"

	p, err := s.parseAccessToken(accessToken)
	if err != nil {
		log.From(ctx).Debug("access_token_rejected", slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return p, nil
}

// CleanupExpiredTokens удаляет просроченные refresh-токены.
func (s *Service) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	const op = "service.auth.CleanupExpiredTokens"

	n, err := s.storage.DeleteExpiredTokens(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

func (s *Service) isAdminEmail(email string) bool {
	return slices.ContainsFunc(s.auth.AdminEmails, func(a string) bool {
		return strings.EqualFold(strings.TrimSpace(a), email)
	})
}

func hashPassword(password string) (string, error) {
	const op = "service.auth.hashPassword"

	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(b), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

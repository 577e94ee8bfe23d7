// service содержит бизнес-логику blog-api: учётные записи и токены,
// посты, рубрики, метки, комментарии, портфолио, поиск и загрузку медиа.
//
// Основные аспекты:
//   - Service не хранит состояние запроса и безопасен для конкурентного
//     использования, если потокобезопасны переданные хранилища.
//   - Ошибки хранилищ сводятся к сентинелам пакета; транспорт маппит их
//     на HTTP-статусы и коды конверта (см. комментарии к переменным ниже).
//   - Ошибки контекста (отмена, дедлайн) возвращаются как есть.
package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/yuin/goldmark"

	"github.com/pribylovaa/go-blog/internal/cache"
	"github.com/pribylovaa/go-blog/internal/config"
	imodels "github.com/pribylovaa/go-blog/internal/models"
	"github.com/pribylovaa/go-blog/internal/storage"
)

var (
	// ErrInvalidArgument — входные данные не прошли проверку.
	// Транспорт: 400 VALIDATION_ERROR; подробности — в *ValidationError.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidCredentials — неверная пара e-mail/пароль. Транспорт: 401 INVALID_CREDENTIALS.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken — токен повреждён, подписан не тем ключом или неизвестен.
	// Транспорт: 401 UNAUTHORIZED.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired — срок действия токена истёк. Транспорт: 401 TOKEN_EXPIRED.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenRevoked — refresh-токен отозван (выход или ротация). Транспорт: 401 UNAUTHORIZED.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrUnauthorized — операция требует аутентификации. Транспорт: 401 UNAUTHORIZED.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden — недостаточно прав. Транспорт: 403 FORBIDDEN.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound — запись не найдена или скрыта от вызывающего. Транспорт: 404 NOT_FOUND.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — конфликт уникальности (e-mail, username, slug). Транспорт: 409 ALREADY_EXISTS.
	ErrAlreadyExists = errors.New("already exists")

	// ErrMediaDisabled — объектное хранилище не сконфигурировано.
	// Транспорт: 503 SERVICE_UNAVAILABLE.
	ErrMediaDisabled = errors.New("media storage disabled")

	// ErrRefreshTokenCollision — исчерпаны попытки выпустить уникальный refresh-токен.
	// Транспорт: 500.
	ErrRefreshTokenCollision = errors.New("refresh token collision")
)

// ValidationError — нарушение ограничения конкретного поля.
// Транспорт отдаёт его в details: {Field: Reason}.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidArgument }

// Invalid создаёт *ValidationError; используется и транспортом при разборе запроса.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Service описывает бизнес-логику blog-api.
type Service struct {
	storage  storage.Storage
	comments storage.CommentStorage
	media    storage.MediaStorage // nil, если S3 не сконфигурирован
	rcache   cache.RefreshCache   // nil, если Redis не сконфигурирован

	auth   config.AuthConfig
	limits config.LimitsConfig

	md  goldmark.Markdown
	now func() time.Time
}

// New создаёт Service. comments может совпадать со storage (Postgres)
// или быть отдельным бэкендом (MongoDB).
func New(st storage.Storage, comments storage.CommentStorage, auth config.AuthConfig, limits config.LimitsConfig) *Service {
	return &Service{
		storage:  st,
		comments: comments,
		auth:     auth,
		limits:   limits,
		md:       newMarkdown(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetRefreshCache устанавливает кэш refresh-токенов (опционально).
func (s *Service) SetRefreshCache(c cache.RefreshCache) {
	s.rcache = c
}

// SetMedia включает загрузку медиа (опционально).
func (s *Service) SetMedia(m storage.MediaStorage) {
	s.media = m
}

// normalizePage подставляет значения по умолчанию и ограничивает limit сверху.
func (s *Service) normalizePage(p imodels.Page) imodels.Page {
	if p.Page < 1 {
		p.Page = 1
	}

	if p.Limit < 1 {
		p.Limit = s.limits.Default
	}

	if s.limits.Max > 0 && p.Limit > s.limits.Max {
		p.Limit = s.limits.Max
	}

	return p
}

// storageErr сводит ошибки хранилища к ошибкам сервиса.
// field — поле запроса, к которому относится нарушенная ссылка или длина.
func storageErr(op string, err error, field string) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, storage.ErrAlreadyExists):
		return fmt.Errorf("%s: %w", op, ErrAlreadyExists)
	case errors.Is(err, storage.ErrInvalidReference):
		return fmt.Errorf("%s: %w", op, Invalid(field, "references a missing record"))
	case errors.Is(err, storage.ErrValueTooLong):
		return fmt.Errorf("%s: %w", op, Invalid(field, "value is too long"))
	}

	return fmt.Errorf("%s: %w", op, err)
}

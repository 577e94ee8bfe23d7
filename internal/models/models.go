// models — служебные типы сервера, которые не ходят по сети как есть:
// refresh-токены, фильтры списков и данные аутентифицированного вызывающего.
// Сетевые сущности лежат в pkg/models.
package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-blog/pkg/models"
)

// RefreshToken — сохранённый refresh-токен; в БД лежит только HMAC от значения.
type RefreshToken struct {
	TokenHash string
	UserID    uuid.UUID
	CreatedAt time.Time
	ExpiresAt time.Time
	Revoked   bool
}

// Page — нормализованная страница списка (Page >= 1, 1 <= Limit <= max).
type Page struct {
	Page  int
	Limit int
}

// Offset — смещение первой записи страницы.
func (p Page) Offset() int {
	if p.Page < 1 {
		return 0
	}

	return (p.Page - 1) * p.Limit
}

// PostFilter — фильтры GET /posts. nil в указателях — фильтр не задан.
type PostFilter struct {
	Page
	CategoryID *uuid.UUID
	TagID      *uuid.UUID
	Featured   *bool
	Published  *bool
	Search     string
}

// WorkFilter — фильтры GET /works.
type WorkFilter struct {
	Page
	Featured *bool
}

// Principal — аутентифицированный вызывающий.
type Principal struct {
	UserID uuid.UUID
	Role   models.Role
}

// IsAdmin — вызывающий с ролью ADMIN.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == models.RoleAdmin
}

// UploadTarget — куда грузить медиа: тип и владелец ключа.
type UploadTarget struct {
	Kind    models.MediaKind
	OwnerID uuid.UUID
}

// List — страница выдачи вместе с общим числом записей и применённой страницей.
type List[T any] struct {
	Items []T
	Total int
	Page  Page
}

// models — сущности API блога в том виде, в каком они ходят по сети.
// Общие для сервера и клиента; серверные служебные типы лежат в internal/models.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Role — роль пользователя.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// User — учётная запись. PasswordHash никогда не сериализуется.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	Role         Role      `json:"role"`
	Avatar       *string   `json:"avatar,omitempty"`
	Bio          *string   `json:"bio,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Author — публичная карточка автора поста/комментария (без e-mail).
type Author struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Avatar   *string   `json:"avatar,omitempty"`
}

// AuthorOf строит публичную карточку.
func AuthorOf(u *User) *Author {
	if u == nil {
		return nil
	}

	return &Author{ID: u.ID, Username: u.Username, Avatar: u.Avatar}
}

type RegisterInput struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshInput struct {
	RefreshToken string `json:"refreshToken"`
}

// TokenPair — выданные токены; ExpiresIn — время жизни access в секундах.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
	TokenType    string `json:"tokenType"`
}

// AuthResult — ответ регистрации и входа.
type AuthResult struct {
	User   User      `json:"user"`
	Tokens TokenPair `json:"tokens"`
}

// UpdateProfileInput — частичное обновление профиля; пустая строка очищает avatar/bio.
type UpdateProfileInput struct {
	Username *string `json:"username,omitempty"`
	Avatar   *string `json:"avatar,omitempty"`
	Bio      *string `json:"bio,omitempty"`
}

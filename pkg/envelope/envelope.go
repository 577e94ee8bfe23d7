// envelope описывает формат тел всех ответов API блога.
// Пакет общий для сервера (internal/http) и клиента (pkg/apiclient):
//   - успешный ответ: {"data": T, "message"?: string};
//   - список с пагинацией: {"data": [T], "meta": {...}};
//   - ошибка: {"success": false, "statusCode", "message", "code", "timestamp", "path"}.
package envelope

import (
	"time"
)

// TimestampLayout — формат timestamp в теле ошибки (ISO8601 с миллисекундами, UTC).
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Response — успешный ответ.
type Response[T any] struct {
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
}

// Meta — метаданные постраничной выдачи.
type Meta struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// Paginated — ответ со списком и метаданными.
type Paginated[T any] struct {
	Data []T `json:"data"`
	Meta Meta `json:"meta"`
}

// NewMeta собирает Meta. totalPages = ceil(total/limit).
// page и limit меньше 1 приводятся к 1, отрицательный total — к 0.
func NewMeta(total, page, limit int) Meta {
	if total < 0 {
		total = 0
	}

	if page < 1 {
		page = 1
	}

	if limit < 1 {
		limit = 1
	}

	return Meta{
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}
}

// NewPaginated оборачивает страницу данных. nil-срез сериализуется как [].
func NewPaginated[T any](items []T, total, page, limit int) Paginated[T] {
	if items == nil {
		items = []T{}
	}

	return Paginated[T]{Data: items, Meta: NewMeta(total, page, limit)}
}

// Error — тело ответа об ошибке.
// Details заполняется только для ошибок валидации (поле -> причина).
type Error struct {
	Success    bool              `json:"success"`
	StatusCode int               `json:"statusCode"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	Timestamp  string            `json:"timestamp"`
	Path       string            `json:"path"`
	Details    map[string]string `json:"details,omitempty"`
}

// NewError собирает тело ошибки; timestamp и path заполняются в момент формирования.
func NewError(status int, code, message, path string, now time.Time) Error {
	return Error{
		Success:    false,
		StatusCode: status,
		Message:    message,
		Code:       code,
		Timestamp:  now.UTC().Format(TimestampLayout),
		Path:       path,
	}
}

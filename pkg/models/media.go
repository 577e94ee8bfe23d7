package models

import "time"

// MediaKind — назначение загружаемого файла.
type MediaKind string

const (
	MediaCover  MediaKind = "cover"
	MediaAvatar MediaKind = "avatar"
)

// PresignInput — запрос на прямую загрузку в объектное хранилище.
type PresignInput struct {
	Kind          MediaKind `json:"kind"`
	ContentType   string    `json:"contentType"`
	ContentLength int64     `json:"contentLength"`
}

// PresignResult — presigned PUT: клиент обязан отправить Headers как есть.
type PresignResult struct {
	UploadURL string            `json:"uploadUrl"`
	Key       string            `json:"key"`
	ExpiresAt time.Time         `json:"expiresAt"`
	Headers   map[string]string `json:"headers"`
}

type ConfirmInput struct {
	Key string `json:"key"`
}

type ConfirmResult struct {
	URL string `json:"url"`
}

// Health — состояние сервиса для GET /health.
type Health struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

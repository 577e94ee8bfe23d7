// storage задаёт контракты хранилищ blog-api и общие ошибки,
// к которым реализации сводят ошибки драйверов.
package storage

//go:generate mockgen -destination=../../mocks/storage.go -package=mocks github.com/pribylovaa/go-blog/internal/storage Storage,CommentStorage,MediaStorage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	imodels "github.com/pribylovaa/go-blog/internal/models"
	"github.com/pribylovaa/go-blog/pkg/models"
)

var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (email, username, slug, хэш токена).
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidReference — ссылка на несуществующую запись (рубрика, метка, родитель).
	ErrInvalidReference = errors.New("invalid reference")
	// ErrValueTooLong — значение не помещается в колонку.
	ErrValueTooLong = errors.New("value too long")
)

// UserStorage — пользователи.
type UserStorage interface {
	SaveUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, user *models.User) error
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// UsersByIDs возвращает найденных пользователей; отсутствующие id пропускаются.
	UsersByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.User, error)
}

// RefreshTokenStorage — refresh-токены.
type RefreshTokenStorage interface {
	SaveRefreshToken(ctx context.Context, token *imodels.RefreshToken) error
	RefreshTokenByHash(ctx context.Context, hash string) (*imodels.RefreshToken, error)
	// RevokeRefreshToken отзывает активный токен:
	// (true, nil) — отозван сейчас; (false, nil) — уже был отозван; ErrNotFound — нет такого.
	RevokeRefreshToken(ctx context.Context, hash string) (bool, error)
	// DeleteExpiredTokens удаляет просроченные токены и возвращает их число.
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// PostStorage — посты. Метки поста сохраняются из Post.Tags (по ID).
type PostStorage interface {
	SavePost(ctx context.Context, post *models.Post) error
	UpdatePost(ctx context.Context, post *models.Post) error
	DeletePost(ctx context.Context, id uuid.UUID) error
	PostByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
	PostBySlug(ctx context.Context, slug string) (*models.Post, error)
	// ListPosts возвращает страницу постов (с авторами, рубриками и метками) и общее число.
	ListPosts(ctx context.Context, filter imodels.PostFilter) ([]models.Post, int, error)
	IncrementViews(ctx context.Context, id uuid.UUID) error
}

// CategoryStorage — рубрики; списки возвращаются с числом постов.
type CategoryStorage interface {
	SaveCategory(ctx context.Context, c *models.Category) error
	UpdateCategory(ctx context.Context, c *models.Category) error
	DeleteCategory(ctx context.Context, id uuid.UUID) error
	CategoryByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
	CategoryBySlug(ctx context.Context, slug string) (*models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
}

// TagStorage — метки.
type TagStorage interface {
	SaveTag(ctx context.Context, tag *models.Tag) error
	DeleteTag(ctx context.Context, id uuid.UUID) error
	TagByID(ctx context.Context, id uuid.UUID) (*models.Tag, error)
	TagBySlug(ctx context.Context, slug string) (*models.Tag, error)
	TagsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Tag, error)
	ListTags(ctx context.Context) ([]models.Tag, error)
}

// WorkStorage — работы портфолио.
type WorkStorage interface {
	SaveWork(ctx context.Context, w *models.Work) error
	UpdateWork(ctx context.Context, w *models.Work) error
	DeleteWork(ctx context.Context, id uuid.UUID) error
	WorkByID(ctx context.Context, id uuid.UUID) (*models.Work, error)
	WorkBySlug(ctx context.Context, slug string) (*models.Work, error)
	// ListWorks — по order, затем по created_at desc.
	ListWorks(ctx context.Context, filter imodels.WorkFilter) ([]models.Work, int, error)
}

// Storage — основное реляционное хранилище.
type Storage interface {
	UserStorage
	RefreshTokenStorage
	PostStorage
	CategoryStorage
	TagStorage
	WorkStorage
	Ping(ctx context.Context) error
	Close()
}

// CommentStorage — комментарии; реализуется и Postgres, и MongoDB.
// Author в возвращаемых комментариях не заполняется: это делает сервис.
type CommentStorage interface {
	SaveComment(ctx context.Context, c *models.Comment) error
	CommentByID(ctx context.Context, id uuid.UUID) (*models.Comment, error)
	// ListRootComments — одобренные корневые комментарии поста, новые первыми.
	ListRootComments(ctx context.Context, postID uuid.UUID, page imodels.Page) ([]models.Comment, int, error)
	// ListReplies — одобренные ответы на указанные комментарии, старые первыми.
	ListReplies(ctx context.Context, parentIDs []uuid.UUID) ([]models.Comment, error)
	// ListPending — неодобренные комментарии, старые первыми.
	ListPending(ctx context.Context, page imodels.Page) ([]models.Comment, int, error)
	ApproveComment(ctx context.Context, id uuid.UUID) error
	// DeleteComment удаляет комментарий вместе с ответами.
	DeleteComment(ctx context.Context, id uuid.UUID) error
	// DeletePostComments удаляет все комментарии поста.
	DeletePostComments(ctx context.Context, postID uuid.UUID) error
}

// MediaStorage — прямые загрузки в объектное хранилище.
type MediaStorage interface {
	// UploadURL выдаёт presigned PUT; тип и размер проверяются по конфигу.
	UploadURL(ctx context.Context, target imodels.UploadTarget, contentType string, contentLength int64) (*models.PresignResult, error)
	// ConfirmUpload проверяет загруженный объект и возвращает его публичный URL.
	ConfirmUpload(ctx context.Context, ownerID uuid.UUID, key string) (string, error)
}

// ErrInvalidUpload — объект не прошёл ограничения по типу, размеру или владельцу.
var ErrInvalidUpload = errors.New("invalid upload")

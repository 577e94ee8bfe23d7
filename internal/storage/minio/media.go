package minio

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	mclient "github.com/minio/minio-go/v7"

	imodels "github.com/pribylovaa/go-blog/internal/models"
	"github.com/pribylovaa/go-blog/internal/storage"
	"github.com/pribylovaa/go-blog/pkg/models"
)

var extByType = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// UploadURL выдаёт presigned PUT для ключа "<kind>s/<owner>/<uuid>.<ext>".
// Клиент обязан отправить заголовки из Headers: при подтверждении они сверяются.
func (s *MediaStorage) UploadURL(ctx context.Context, target imodels.UploadTarget, contentType string, contentLength int64) (*models.PresignResult, error) {
	const op = "storage.minio.UploadURL"

	if contentLength <= 0 || contentLength > s.cfg.MaxSizeBytes {
		return nil, fmt.Errorf("%s: size %d: %w", op, contentLength, storage.ErrInvalidUpload)
	}

	if !slices.Contains(s.cfg.AllowedContentTypes, contentType) {
		return nil, fmt.Errorf("%s: content type %q: %w", op, contentType, storage.ErrInvalidUpload)
	}

	key := path.Join(keyPrefix(target.Kind, target.OwnerID), uuid.NewString()+extByType[contentType])

	u, err := s.client.PresignedPutObject(ctx, s.cfg.Bucket, key, s.cfg.PresignTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.PresignResult{
		UploadURL: u.String(),
		Key:       key,
		ExpiresAt: s.now().UTC().Add(s.cfg.PresignTTL),
		Headers: map[string]string{
			"Content-Type":   contentType,
			"Content-Length": strconv.FormatInt(contentLength, 10),
		},
	}, nil
}

// ConfirmUpload проверяет, что объект лежит под префиксом владельца
// и укладывается в ограничения. Возвращает публичный URL
// (пусто, если S3_PUBLIC_BASE_URL не задан).
func (s *MediaStorage) ConfirmUpload(ctx context.Context, ownerID uuid.UUID, key string) (string, error) {
	const op = "storage.minio.ConfirmUpload"

	if !ownedBy(key, ownerID) {
		return "", fmt.Errorf("%s: foreign key: %w", op, storage.ErrInvalidUpload)
	}

	info, err := s.client.StatObject(ctx, s.cfg.Bucket, key, mclient.StatObjectOptions{})
	if err != nil {
		resp := mclient.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
			return "", fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return "", fmt.Errorf("%s: %w", op, err)
	}

	if info.Size <= 0 || info.Size > s.cfg.MaxSizeBytes {
		return "", fmt.Errorf("%s: size %d: %w", op, info.Size, storage.ErrInvalidUpload)
	}

	if ct := info.ContentType; ct != "" && !slices.Contains(s.cfg.AllowedContentTypes, ct) {
		return "", fmt.Errorf("%s: content type %q: %w", op, ct, storage.ErrInvalidUpload)
	}

	if s.cfg.PublicBaseURL == "" {
		return "", nil
	}

	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + key, nil
}

func keyPrefix(kind models.MediaKind, owner uuid.UUID) string {
	return string(kind) + "s/" + owner.String()
}

// ownedBy: ключ вида <kind>s/<owner>/<file> для любого известного kind.
func ownedBy(key string, owner uuid.UUID) bool {
	if strings.Contains(key, "..") {
		return false
	}

	for _, kind := range []models.MediaKind{models.MediaCover, models.MediaAvatar} {
		rest, ok := strings.CutPrefix(key, keyPrefix(kind, owner)+"/")
		if ok && rest != "" && !strings.Contains(rest, "/") {
			return true
		}
	}

	return false
}

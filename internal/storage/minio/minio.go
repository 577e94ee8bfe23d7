// minio — реализация storage.MediaStorage на MinIO/S3: presigned PUT
// для обложек и аватаров и подтверждение загруженного объекта.
package minio

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	mclient "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/pribylovaa/go-blog/internal/config"
	"github.com/pribylovaa/go-blog/internal/storage"
)

// MediaStorage — адаптер MinIO для прямых загрузок.
type MediaStorage struct {
	cfg    config.S3Config
	client *mclient.Client
	now    func() time.Time
}

var _ storage.MediaStorage = (*MediaStorage)(nil)

// New создаёт клиент и проверяет, что бакет существует.
// Схема endpoint (http/https) определяет Secure.
func New(ctx context.Context, cfg config.S3Config) (*MediaStorage, error) {
	const op = "storage.minio.New"

	endpoint := cfg.Endpoint
	secure := strings.HasPrefix(endpoint, "https://")

	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" {
		endpoint = u.Host
		secure = u.Scheme == "https"
	}

	client, err := mclient.New(endpoint, &mclient.Options{
		Creds:  credentials.NewStaticV4(cfg.RootUser, cfg.RootPassword, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !exists {
		return nil, fmt.Errorf("%s: bucket %q does not exist", op, cfg.Bucket)
	}

	return &MediaStorage{cfg: cfg, client: client, now: time.Now}, nil
}

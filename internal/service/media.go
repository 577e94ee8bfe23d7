package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	imodels "github.com/pribylovaa/go-blog/internal/models"
	"github.com/pribylovaa/go-blog/internal/pkg/log"
	"github.com/pribylovaa/go-blog/internal/storage"
	"github.com/pribylovaa/go-blog/pkg/models"
)

// PresignUpload выдаёт presigned PUT для обложки или аватара.
func (s *Service) PresignUpload(ctx context.Context, p *imodels.Principal, in models.PresignInput) (*models.PresignResult, error) {
	const op = "service.media.PresignUpload"

	if err := requireAdmin(p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.media == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrMediaDisabled)
	}

	switch in.Kind {
	case models.MediaCover, models.MediaAvatar:
	default:
		return nil, fmt.Errorf("%s: %w", op, Invalid("kind", "must be cover or avatar"))
	}

	if in.ContentType == "" {
		return nil, fmt.Errorf("%s: %w", op, Invalid("contentType", "is required"))
	}

	if in.ContentLength <= 0 {
		return nil, fmt.Errorf("%s: %w", op, Invalid("contentLength", "must be positive"))
	}

	res, err := s.media.UploadURL(ctx, imodels.UploadTarget{Kind: in.Kind, OwnerID: p.UserID}, in.ContentType, in.ContentLength)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidUpload) {
			return nil, fmt.Errorf("%s: %w", op, Invalid("contentType", "type is not allowed or size exceeds the limit"))
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("media_presigned",
		slog.String("key", res.Key),
		slog.String("kind", string(in.Kind)),
	)

	return res, nil
}

// ConfirmUpload проверяет, что объект загружен и принадлежит вызывающему.
func (s *Service) ConfirmUpload(ctx context.Context, p *imodels.Principal, in models.ConfirmInput) (*models.ConfirmResult, error) {
	const op = "service.media.ConfirmUpload"

	if err := requireAdmin(p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.media == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrMediaDisabled)
	}

	if in.Key == "" {
		return nil, fmt.Errorf("%s: %w", op, Invalid("key", "is required"))
	}

	url, err := s.media.ConfirmUpload(ctx, p.UserID, in.Key)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrInvalidUpload):
			return nil, fmt.Errorf("%s: %w", op, Invalid("key", "object is not an allowed upload of the caller"))
		case errors.Is(err, storage.ErrNotFound):
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.ConfirmResult{URL: url}, nil
}

package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	imodels "github.com/pribylovaa/go-blog/internal/models"
	"github.com/pribylovaa/go-blog/pkg/models"
)

func (s *Service) ListTags(ctx context.Context) ([]models.Tag, error) {
	const op = "service.tags.ListTags"

	tags, err := s.storage.ListTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return tags, nil
}

func (s *Service) GetTag(ctx context.Context, ref string) (*models.Tag, error) {
	const op = "service.tags.GetTag"

	var (
		t   *models.Tag
		err error
	)

	if id, perr := uuid.Parse(ref); perr == nil {
		t, err = s.storage.TagByID(ctx, id)
	} else {
		t, err = s.storage.TagBySlug(ctx, ref)
	}

	if err != nil {
		return nil, storageErr(op, err, "slug")
	}

	return t, nil
}

func (s *Service) CreateTag(ctx context.Context, p *imodels.Principal, in models.TagInput) (*models.Tag, error) {
	const op = "service.tags.CreateTag"

	if err := requireAdmin(p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	name, err := requireText("name", in.Name, maxTag)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	slug, err := resolveSlug("slug", in.Slug, name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	t := &models.Tag{ID: uuid.New(), Name: name, Slug: slug, CreatedAt: s.now()}

	if err := s.storage.SaveTag(ctx, t); err != nil {
		return nil, storageErr(op, err, "name")
	}

	return t, nil
}

// DeleteTag удаляет метку и её связи с постами.
func (s *Service) DeleteTag(ctx context.Context, p *imodels.Principal, id uuid.UUID) error {
	const op = "service.tags.DeleteTag"

	if err := requireAdmin(p); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.DeleteTag(ctx, id); err != nil {
		return storageErr(op, err, "id")
	}

	return nil
}

package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	imodels "github.com/pribylovaa/go-blog/internal/models"
	"github.com/pribylovaa/go-blog/pkg/models"
)

func (s *Service) ListCategories(ctx context.Context) ([]models.Category, error) {
	const op = "service.categories.ListCategories"

	cats, err := s.storage.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return cats, nil
}

// GetCategory ищет рубрику по slug или id.
func (s *Service) GetCategory(ctx context.Context, ref string) (*models.Category, error) {
	const op = "service.categories.GetCategory"

	var (
		c   *models.Category
		err error
	)

	if id, perr := uuid.Parse(ref); perr == nil {
		c, err = s.storage.CategoryByID(ctx, id)
	} else {
		c, err = s.storage.CategoryBySlug(ctx, ref)
	}

	if err != nil {
		return nil, storageErr(op, err, "slug")
	}

	return c, nil
}

func (s *Service) CreateCategory(ctx context.Context, p *imodels.Principal, in models.CategoryInput) (*models.Category, error) {
	const op = "service.categories.CreateCategory"

	if err := requireAdmin(p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	name, err := requireText("name", in.Name, maxCategory)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	slug, err := resolveSlug("slug", in.Slug, name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	desc, err := optionalText("description", in.Description, maxDescription)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	c := &models.Category{
		ID:          uuid.New(),
		Name:        name,
		Slug:        slug,
		Description: desc,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.storage.SaveCategory(ctx, c); err != nil {
		return nil, storageErr(op, err, "name")
	}

	return c, nil
}

func (s *Service) UpdateCategory(ctx context.Context, p *imodels.Principal, id uuid.UUID, in models.UpdateCategoryInput) (*models.Category, error) {
	const op = "service.categories.UpdateCategory"

	if err := requireAdmin(p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c, err := s.storage.CategoryByID(ctx, id)
	if err != nil {
		return nil, storageErr(op, err, "id")
	}

	if in.Name != nil {
		if c.Name, err = requireText("name", *in.Name, maxCategory); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if in.Slug != nil {
		if c.Slug, err = resolveSlug("slug", *in.Slug, c.Name); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if in.Description != nil {
		if c.Description, err = optionalText("description", in.Description, maxDescription); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	c.UpdatedAt = s.now()

	if err := s.storage.UpdateCategory(ctx, c); err != nil {
		return nil, storageErr(op, err, "name")
	}

	return c, nil
}

// DeleteCategory удаляет рубрику; посты остаются без рубрики.
func (s *Service) DeleteCategory(ctx context.Context, p *imodels.Principal, id uuid.UUID) error {
	const op = "service.categories.DeleteCategory"

	if err := requireAdmin(p); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.DeleteCategory(ctx, id); err != nil {
		return storageErr(op, err, "id")
	}

	return nil
}

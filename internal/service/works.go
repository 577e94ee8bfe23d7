package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	imodels "github.com/pribylovaa/go-blog/internal/models"
	"github.com/pribylovaa/go-blog/pkg/models"
)

const (
	maxTechStack = 30
	maxTechItem  = 50
)

// ListWorks — работы портфолио по полю order, затем новые первыми.
func (s *Service) ListWorks(ctx context.Context, f imodels.WorkFilter) (*imodels.List[models.Work], error) {
	const op = "service.works.ListWorks"

	f.Page = s.normalizePage(f.Page)

	works, total, err := s.storage.ListWorks(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &imodels.List[models.Work]{Items: works, Total: total, Page: f.Page}, nil
}

func (s *Service) GetWork(ctx context.Context, ref string) (*models.Work, error) {
	const op = "service.works.GetWork"

	var (
		w   *models.Work
		err error
	)

	if id, perr := uuid.Parse(ref); perr == nil {
		w, err = s.storage.WorkByID(ctx, id)
	} else {
		w, err = s.storage.WorkBySlug(ctx, ref)
	}

	if err != nil {
		return nil, storageErr(op, err, "slug")
	}

	return w, nil
}

func (s *Service) CreateWork(ctx context.Context, p *imodels.Principal, in models.WorkInput) (*models.Work, error) {
	const op = "service.works.CreateWork"

	if err := requireAdmin(p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	title, err := requireText("title", in.Title, maxTitle)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	slug, err := resolveSlug("slug", in.Slug, title)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	w := &models.Work{
		ID:        uuid.New(),
		Title:     title,
		Slug:      slug,
		TechStack: []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	patch := models.UpdateWorkInput{
		Description: in.Description,
		Content:     in.Content,
		CoverImage:  in.CoverImage,
		DemoURL:     in.DemoURL,
		SourceURL:   in.SourceURL,
		Featured:    in.Featured,
		Order:       in.Order,
	}
	if in.TechStack != nil {
		patch.TechStack = &in.TechStack
	}

	if err := applyWork(w, patch); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.SaveWork(ctx, w); err != nil {
		return nil, storageErr(op, err, "slug")
	}

	return w, nil
}

func (s *Service) UpdateWork(ctx context.Context, p *imodels.Principal, id uuid.UUID, in models.UpdateWorkInput) (*models.Work, error) {
	const op = "service.works.UpdateWork"

	if err := requireAdmin(p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	w, err := s.storage.WorkByID(ctx, id)
	if err != nil {
		return nil, storageErr(op, err, "id")
	}

	if in.Title != nil {
		if w.Title, err = requireText("title", *in.Title, maxTitle); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if in.Slug != nil {
		if w.Slug, err = resolveSlug("slug", *in.Slug, w.Title); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := applyWork(w, in); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	w.UpdatedAt = s.now()

	if err := s.storage.UpdateWork(ctx, w); err != nil {
		return nil, storageErr(op, err, "slug")
	}

	return w, nil
}

func (s *Service) DeleteWork(ctx context.Context, p *imodels.Principal, id uuid.UUID) error {
	const op = "service.works.DeleteWork"

	if err := requireAdmin(p); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.DeleteWork(ctx, id); err != nil {
		return storageErr(op, err, "id")
	}

	return nil
}

// applyWork переносит необязательные поля (кроме title и slug) в w.
func applyWork(w *models.Work, in models.UpdateWorkInput) error {
	var err error

	if in.Description != nil {
		if w.Description, err = optionalText("description", in.Description, maxDescription); err != nil {
			return err
		}
	}

	if in.Content != nil {
		if w.Content, err = optionalText("content", in.Content, 0); err != nil {
			return err
		}
	}

	if in.CoverImage != nil {
		if w.CoverImage, err = optionalURL("coverImage", in.CoverImage); err != nil {
			return err
		}
	}

	if in.DemoURL != nil {
		if w.DemoURL, err = optionalURL("demoUrl", in.DemoURL); err != nil {
			return err
		}
	}

	if in.SourceURL != nil {
		if w.SourceURL, err = optionalURL("sourceUrl", in.SourceURL); err != nil {
			return err
		}
	}

	if in.TechStack != nil {
		if w.TechStack, err = normalizeTechStack(*in.TechStack); err != nil {
			return err
		}
	}

	if in.Featured != nil {
		w.Featured = *in.Featured
	}

	if in.Order != nil {
		if *in.Order < 0 {
			return Invalid("order", "must not be negative")
		}

		w.Order = *in.Order
	}

	return nil
}

func normalizeTechStack(items []string) ([]string, error) {
	if len(items) > maxTechStack {
		return nil, Invalid("techStack", "has too many items")
	}

	out := make([]string, 0, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			return nil, Invalid("techStack", "items must not be empty")
		}

		if len(it) > maxTechItem {
			return nil, Invalid("techStack", "item is too long")
		}

		out = append(out, it)
	}

	return out, nil
}

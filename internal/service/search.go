package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	imodels "github.com/pribylovaa/go-blog/internal/models"
	"github.com/pribylovaa/go-blog/pkg/models"
)

// Search ищет опубликованные посты по заголовку, анонсу и тексту без учёта регистра.
func (s *Service) Search(ctx context.Context, q string, page imodels.Page) (*imodels.List[models.PostListItem], error) {
	const op = "service.search.Search"

	q = strings.TrimSpace(q)
	if q == "" {
		return nil, fmt.Errorf("%s: %w", op, Invalid("q", "is required"))
	}

	if utf8.RuneCountInString(q) > maxSearch {
		return nil, fmt.Errorf("%s: %w", op, Invalid("q", "must be at most 100 characters"))
	}

	// Анонимный вызывающий: ListPosts сам ограничит выдачу опубликованными.
	list, err := s.ListPosts(ctx, nil, imodels.PostFilter{Page: page, Search: q})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return list, nil
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	imodels "github.com/pribylovaa/go-blog/internal/models"
	"github.com/pribylovaa/go-blog/internal/pkg/log"
	"github.com/pribylovaa/go-blog/pkg/models"
)

// ListPosts возвращает страницу постов. Не-администратор видит только опубликованные,
// независимо от фильтра published.
func (s *Service) ListPosts(ctx context.Context, p *imodels.Principal, f imodels.PostFilter) (*imodels.List[models.PostListItem], error) {
	const op = "service.posts.ListPosts"

	f.Page = s.normalizePage(f.Page)

	if !p.IsAdmin() {
		published := true
		f.Published = &published
	}

	posts, total, err := s.storage.ListPosts(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	items := make([]models.PostListItem, 0, len(posts))
	for i := range posts {
		items = append(items, posts[i].ListItem())
	}

	log.From(ctx).Debug("list_posts_ok",
		slog.Int("total", total),
		slog.Int("page", f.Page.Page),
		slog.Int("limit", f.Limit),
	)

	return &imodels.List[models.PostListItem]{Items: items, Total: total, Page: f.Page}, nil
}

// GetPost ищет пост по slug или id, считает просмотр и рендерит Markdown.
// Черновик для не-администратора не существует.
func (s *Service) GetPost(ctx context.Context, p *imodels.Principal, ref string) (*models.Post, error) {
	const op = "service.posts.GetPost"

	post, err := s.postByRef(ctx, ref)
	if err != nil {
		return nil, storageErr(op, err, "slug")
	}

	if !post.Published && !p.IsAdmin() {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	if err := s.storage.IncrementViews(ctx, post.ID); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", op, ctxErr)
		}

		log.From(ctx).Warn("increment_views_failed",
			slog.String("post_id", post.ID.String()),
			slog.String("err", err.Error()),
		)
	} else {
		post.Views++
	}

	html, err := s.renderMarkdown(post.Content)
	if err != nil {
		log.From(ctx).Warn("render_markdown_failed",
			slog.String("post_id", post.ID.String()),
			slog.String("err", err.Error()),
		)
	}
	post.ContentHTML = html

	return post, nil
}

func (s *Service) postByRef(ctx context.Context, ref string) (*models.Post, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return s.storage.PostByID(ctx, id)
	}

	return s.storage.PostBySlug(ctx, ref)
}

// CreatePost создаёт пост от имени администратора.
func (s *Service) CreatePost(ctx context.Context, p *imodels.Principal, in models.CreatePostInput) (*models.Post, error) {
	const op = "service.posts.CreatePost"

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

	if in.Content == "" {
		return nil, fmt.Errorf("%s: %w", op, Invalid("content", "is required"))
	}

	summary, err := optionalText("summary", in.Summary, maxSummary)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cover, err := optionalURL("coverImage", in.CoverImage)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tags, err := s.resolveTags(ctx, in.TagIDs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	post := &models.Post{
		ID:         uuid.New(),
		Title:      title,
		Slug:       slug,
		Content:    in.Content,
		Summary:    summary,
		CoverImage: cover,
		Published:  in.Published != nil && *in.Published,
		Featured:   in.Featured != nil && *in.Featured,
		AuthorID:   p.UserID,
		CategoryID: in.CategoryID,
		Tags:       tags,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if post.Published {
		post.PublishedAt = &now
	}

	if err := s.storage.SavePost(ctx, post); err != nil {
		return nil, storageErr(op, err, "categoryId")
	}

	log.From(ctx).Info("post_created",
		slog.String("post_id", post.ID.String()),
		slog.String("slug", post.Slug),
	)

	return s.reloadPost(ctx, op, post)
}

// UpdatePost применяет частичное изменение. publishedAt ставится при первой публикации
// и дальше не меняется.
func (s *Service) UpdatePost(ctx context.Context, p *imodels.Principal, id uuid.UUID, in models.UpdatePostInput) (*models.Post, error) {
	const op = "service.posts.UpdatePost"

	if err := requireAdmin(p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	post, err := s.storage.PostByID(ctx, id)
	if err != nil {
		return nil, storageErr(op, err, "id")
	}

	if in.Title != nil {
		if post.Title, err = requireText("title", *in.Title, maxTitle); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if in.Slug != nil {
		if post.Slug, err = resolveSlug("slug", *in.Slug, post.Title); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if in.Content != nil {
		if *in.Content == "" {
			return nil, fmt.Errorf("%s: %w", op, Invalid("content", "must not be empty"))
		}

		post.Content = *in.Content
	}

	if in.Summary != nil {
		if post.Summary, err = optionalText("summary", in.Summary, maxSummary); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if in.CoverImage != nil {
		if post.CoverImage, err = optionalURL("coverImage", in.CoverImage); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if in.CategoryID != nil {
		post.CategoryID = in.CategoryID
	}

	if in.TagIDs != nil {
		if post.Tags, err = s.resolveTags(ctx, *in.TagIDs); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if in.Featured != nil {
		post.Featured = *in.Featured
	}

	now := s.now()

	if in.Published != nil {
		post.Published = *in.Published
		if post.Published && post.PublishedAt == nil {
			post.PublishedAt = &now
		}
	}

	post.UpdatedAt = now

	if err := s.storage.UpdatePost(ctx, post); err != nil {
		return nil, storageErr(op, err, "categoryId")
	}

	return s.reloadPost(ctx, op, post)
}

// DeletePost удаляет пост; комментарии во внешнем хранилище удаляются следом.
func (s *Service) DeletePost(ctx context.Context, p *imodels.Principal, id uuid.UUID) error {
	const op = "service.posts.DeletePost"

	if err := requireAdmin(p); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.DeletePost(ctx, id); err != nil {
		return storageErr(op, err, "id")
	}

	if err := s.comments.DeletePostComments(ctx, id); err != nil {
		log.From(ctx).Warn("delete_post_comments_failed",
			slog.String("post_id", id.String()),
			slog.String("err", err.Error()),
		)
	}

	log.From(ctx).Info("post_deleted", slog.String("post_id", id.String()))

	return nil
}

// reloadPost перечитывает пост, чтобы вернуть автора, рубрику и метки.
func (s *Service) reloadPost(ctx context.Context, op string, post *models.Post) (*models.Post, error) {
	fresh, err := s.storage.PostByID(ctx, post.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return fresh, nil
}

// resolveTags проверяет, что все метки существуют; дубликаты схлопываются.
func (s *Service) resolveTags(ctx context.Context, ids []uuid.UUID) ([]models.Tag, error) {
	if len(ids) == 0 {
		return []models.Tag{}, nil
	}

	uniq := slices.Clone(ids)
	slices.SortFunc(uniq, func(a, b uuid.UUID) int { return slices.Compare(a[:], b[:]) })
	uniq = slices.Compact(uniq)

	tags, err := s.storage.TagsByIDs(ctx, uniq)
	if err != nil {
		return nil, err
	}

	if len(tags) != len(uniq) {
		return nil, Invalid("tagIds", "references a missing tag")
	}

	return tags, nil
}

func requireAdmin(p *imodels.Principal) error {
	if p == nil {
		return ErrUnauthorized
	}

	if !p.IsAdmin() {
		return ErrForbidden
	}

	return nil
}

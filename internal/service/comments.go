package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	imodels "github.com/pribylovaa/go-blog/internal/models"
	"github.com/pribylovaa/go-blog/internal/pkg/log"
	"github.com/pribylovaa/go-blog/internal/storage"
	"github.com/pribylovaa/go-blog/pkg/models"
)

// ListComments — одобренные корневые комментарии поста (новые первыми)
// с одобренными ответами (старые первыми).
func (s *Service) ListComments(ctx context.Context, p *imodels.Principal, postRef string, page imodels.Page) (*imodels.List[models.Comment], error) {
	const op = "service.comments.ListComments"

	post, err := s.visiblePost(ctx, p, postRef)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	page = s.normalizePage(page)

	roots, total, err := s.comments.ListRootComments(ctx, post.ID, page)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if len(roots) > 0 {
		ids := make([]uuid.UUID, 0, len(roots))
		for _, c := range roots {
			ids = append(ids, c.ID)
		}

		replies, err := s.comments.ListReplies(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		byParent := make(map[uuid.UUID][]models.Comment, len(roots))
		for _, r := range replies {
			if r.ParentID != nil {
				byParent[*r.ParentID] = append(byParent[*r.ParentID], r)
			}
		}

		for i := range roots {
			roots[i].Replies = byParent[roots[i].ID]
		}
	}

	if err := s.fillAuthors(ctx, roots); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &imodels.List[models.Comment]{Items: roots, Total: total, Page: page}, nil
}

// CreateComment добавляет комментарий. Комментарий пользователя одобрен сразу,
// гостя (имя и e-mail обязательны) ждёт модерации. Отвечать можно только
// на корневые комментарии того же поста.
func (s *Service) CreateComment(ctx context.Context, p *imodels.Principal, postRef string, in models.CreateCommentInput) (*models.Comment, error) {
	const op = "service.comments.CreateComment"

	post, err := s.visiblePost(ctx, p, postRef)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	content, err := requireText("content", in.Content, maxComment)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	c := &models.Comment{
		ID:        uuid.New(),
		Content:   content,
		PostID:    post.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if p != nil {
		uid := p.UserID
		c.AuthorID = &uid
		c.Approved = true
	} else {
		if in.GuestName == nil {
			return nil, fmt.Errorf("%s: %w", op, Invalid("guestName", "is required for guests"))
		}

		name, err := requireText("guestName", *in.GuestName, maxGuestName)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		var rawEmail string
		if in.GuestEmail != nil {
			rawEmail = *in.GuestEmail
		}

		email, err := normalizeEmail("guestEmail", rawEmail)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		c.GuestName = &name
		c.GuestEmail = &email
	}

	if in.ParentID != nil {
		if err := s.checkParent(ctx, post.ID, *in.ParentID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		parent := *in.ParentID
		c.ParentID = &parent
	}

	if err := s.comments.SaveComment(ctx, c); err != nil {
		return nil, storageErr(op, err, "parentId")
	}

	log.From(ctx).Info("comment_created",
		slog.String("comment_id", c.ID.String()),
		slog.String("post_id", post.ID.String()),
		slog.Bool("approved", c.Approved),
	)

	one := []models.Comment{*c}
	if err := s.fillAuthors(ctx, one); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &one[0], nil
}

func (s *Service) checkParent(ctx context.Context, postID, parentID uuid.UUID) error {
	parent, err := s.comments.CommentByID(ctx, parentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Invalid("parentId", "references a missing comment")
		}

		return err
	}

	if parent.PostID != postID {
		return Invalid("parentId", "belongs to another post")
	}

	if parent.ParentID != nil {
		return Invalid("parentId", "replies can only target root comments")
	}

	return nil
}

// ListPendingComments — очередь модерации, старые первыми.
func (s *Service) ListPendingComments(ctx context.Context, p *imodels.Principal, page imodels.Page) (*imodels.List[models.Comment], error) {
	const op = "service.comments.ListPendingComments"

	if err := requireAdmin(p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	page = s.normalizePage(page)

	items, total, err := s.comments.ListPending(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.fillAuthors(ctx, items); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &imodels.List[models.Comment]{Items: items, Total: total, Page: page}, nil
}

func (s *Service) ApproveComment(ctx context.Context, p *imodels.Principal, id uuid.UUID) (*models.Comment, error) {
	const op = "service.comments.ApproveComment"

	if err := requireAdmin(p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.comments.ApproveComment(ctx, id); err != nil {
		return nil, storageErr(op, err, "id")
	}

	c, err := s.comments.CommentByID(ctx, id)
	if err != nil {
		return nil, storageErr(op, err, "id")
	}

	one := []models.Comment{*c}
	if err := s.fillAuthors(ctx, one); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &one[0], nil
}

// DeleteComment удаляет комментарий вместе с ответами.
func (s *Service) DeleteComment(ctx context.Context, p *imodels.Principal, id uuid.UUID) error {
	const op = "service.comments.DeleteComment"

	if err := requireAdmin(p); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.comments.DeleteComment(ctx, id); err != nil {
		return storageErr(op, err, "id")
	}

	return nil
}

// visiblePost — пост по slug или id; черновики видит только администратор.
func (s *Service) visiblePost(ctx context.Context, p *imodels.Principal, ref string) (*models.Post, error) {
	post, err := s.postByRef(ctx, ref)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	if !post.Published && !p.IsAdmin() {
		return nil, ErrNotFound
	}

	return post, nil
}

// fillAuthors заполняет Author у комментариев и их ответов одним запросом.
func (s *Service) fillAuthors(ctx context.Context, comments []models.Comment) error {
	seen := make(map[uuid.UUID]struct{})
	var ids []uuid.UUID

	collect := func(c *models.Comment) {
		if c.AuthorID == nil {
			return
		}

		if _, ok := seen[*c.AuthorID]; !ok {
			seen[*c.AuthorID] = struct{}{}
			ids = append(ids, *c.AuthorID)
		}
	}

	for i := range comments {
		collect(&comments[i])
		for j := range comments[i].Replies {
			collect(&comments[i].Replies[j])
		}
	}

	if len(ids) == 0 {
		return nil
	}

	users, err := s.storage.UsersByIDs(ctx, ids)
	if err != nil {
		return err
	}

	set := func(c *models.Comment) {
		if c.AuthorID != nil {
			c.Author = models.AuthorOf(users[*c.AuthorID])
		}
	}

	for i := range comments {
		set(&comments[i])
		for j := range comments[i].Replies {
			set(&comments[i].Replies[j])
		}
	}

	return nil
}

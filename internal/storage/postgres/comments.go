package postgres

import (
	"context"

	"github.com/google/uuid"

	imodels "github.com/pribylovaa/go-blog/internal/models"
	"github.com/pribylovaa/go-blog/pkg/models"
)

const commentColumns = `id, content, author_id, guest_name, guest_email, post_id, parent_id, approved, created_at, updated_at`

func scanComment(row scanner) (*models.Comment, error) {
	var c models.Comment
	err := row.Scan(
		&c.ID, &c.Content, &c.AuthorID, &c.GuestName, &c.GuestEmail,
		&c.PostID, &c.ParentID, &c.Approved, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &c, nil
}

func (s *Storage) SaveComment(ctx context.Context, c *models.Comment) error {
	const op = "storage.postgres.SaveComment"

	_, err := s.db.Exec(ctx, `
		INSERT INTO comments(`+commentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		c.ID, c.Content, c.AuthorID, c.GuestName, c.GuestEmail,
		c.PostID, c.ParentID, c.Approved, c.CreatedAt, c.UpdatedAt,
	)

	return wrap(op, err)
}

func (s *Storage) CommentByID(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	const op = "storage.postgres.CommentByID"

	c, err := scanComment(s.db.QueryRow(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id))
	if err != nil {
		return nil, wrap(op, err)
	}

	return c, nil
}

func (s *Storage) ListRootComments(ctx context.Context, postID uuid.UUID, page imodels.Page) ([]models.Comment, int, error) {
	const op = "storage.postgres.ListRootComments"

	const where = ` FROM comments WHERE post_id = $1 AND parent_id IS NULL AND approved`

	var total int
	if err := s.db.QueryRow(ctx, `SELECT count(*)`+where, postID).Scan(&total); err != nil {
		return nil, 0, wrap(op, err)
	}

	if total == 0 {
		return []models.Comment{}, 0, nil
	}

	out, err := s.queryComments(ctx,
		`SELECT `+commentColumns+where+` ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`,
		postID, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, wrap(op, err)
	}

	return out, total, nil
}

func (s *Storage) ListReplies(ctx context.Context, parentIDs []uuid.UUID) ([]models.Comment, error) {
	const op = "storage.postgres.ListReplies"

	if len(parentIDs) == 0 {
		return []models.Comment{}, nil
	}

	out, err := s.queryComments(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE parent_id = ANY($1) AND approved ORDER BY created_at ASC, id`,
		parentIDs)
	if err != nil {
		return nil, wrap(op, err)
	}

	return out, nil
}

func (s *Storage) ListPending(ctx context.Context, page imodels.Page) ([]models.Comment, int, error) {
	const op = "storage.postgres.ListPending"

	var total int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM comments WHERE NOT approved`).Scan(&total); err != nil {
		return nil, 0, wrap(op, err)
	}

	if total == 0 {
		return []models.Comment{}, 0, nil
	}

	out, err := s.queryComments(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE NOT approved ORDER BY created_at ASC, id LIMIT $1 OFFSET $2`,
		page.Limit, page.Offset())
	if err != nil {
		return nil, 0, wrap(op, err)
	}

	return out, total, nil
}

func (s *Storage) ApproveComment(ctx context.Context, id uuid.UUID) error {
	const op = "storage.postgres.ApproveComment"

	tag, err := s.db.Exec(ctx, `UPDATE comments SET approved = TRUE, updated_at = now() WHERE id = $1`, id)
	return mustAffect(op, tag, err)
}

// DeleteComment удаляет комментарий; ответы уходят каскадом.
func (s *Storage) DeleteComment(ctx context.Context, id uuid.UUID) error {
	const op = "storage.postgres.DeleteComment"

	tag, err := s.db.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	return mustAffect(op, tag, err)
}

func (s *Storage) DeletePostComments(ctx context.Context, postID uuid.UUID) error {
	const op = "storage.postgres.DeletePostComments"

	_, err := s.db.Exec(ctx, `DELETE FROM comments WHERE post_id = $1`, postID)
	return wrap(op, err)
}

func (s *Storage) queryComments(ctx context.Context, query string, args ...any) ([]models.Comment, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, *c)
	}

	return out, rows.Err()
}

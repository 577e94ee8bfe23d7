package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	imodels "github.com/pribylovaa/go-blog/internal/models"
	"github.com/pribylovaa/go-blog/pkg/models"
)

const workColumns = `id, title, slug, description, content, cover_image, demo_url, source_url,
	tech_stack, featured, sort_order, created_at, updated_at`

func scanWork(row scanner) (*models.Work, error) {
	var w models.Work
	err := row.Scan(
		&w.ID, &w.Title, &w.Slug, &w.Description, &w.Content, &w.CoverImage, &w.DemoURL, &w.SourceURL,
		&w.TechStack, &w.Featured, &w.Order, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if w.TechStack == nil {
		w.TechStack = []string{}
	}

	return &w, nil
}

func (s *Storage) SaveWork(ctx context.Context, w *models.Work) error {
	const op = "storage.postgres.SaveWork"

	_, err := s.db.Exec(ctx, `
		INSERT INTO works(`+workColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		w.ID, w.Title, w.Slug, w.Description, w.Content, w.CoverImage, w.DemoURL, w.SourceURL,
		w.TechStack, w.Featured, w.Order, w.CreatedAt, w.UpdatedAt,
	)

	return wrap(op, err)
}

func (s *Storage) UpdateWork(ctx context.Context, w *models.Work) error {
	const op = "storage.postgres.UpdateWork"

	tag, err := s.db.Exec(ctx, `
		UPDATE works
		SET title = $2, slug = $3, description = $4, content = $5, cover_image = $6,
		    demo_url = $7, source_url = $8, tech_stack = $9, featured = $10, sort_order = $11, updated_at = $12
		WHERE id = $1
	`,
		w.ID, w.Title, w.Slug, w.Description, w.Content, w.CoverImage,
		w.DemoURL, w.SourceURL, w.TechStack, w.Featured, w.Order, w.UpdatedAt,
	)

	return mustAffect(op, tag, err)
}

func (s *Storage) DeleteWork(ctx context.Context, id uuid.UUID) error {
	const op = "storage.postgres.DeleteWork"

	tag, err := s.db.Exec(ctx, `DELETE FROM works WHERE id = $1`, id)
	return mustAffect(op, tag, err)
}

func (s *Storage) WorkByID(ctx context.Context, id uuid.UUID) (*models.Work, error) {
	const op = "storage.postgres.WorkByID"

	w, err := scanWork(s.db.QueryRow(ctx, `SELECT `+workColumns+` FROM works WHERE id = $1`, id))
	if err != nil {
		return nil, wrap(op, err)
	}

	return w, nil
}

func (s *Storage) WorkBySlug(ctx context.Context, slug string) (*models.Work, error) {
	const op = "storage.postgres.WorkBySlug"

	w, err := scanWork(s.db.QueryRow(ctx, `SELECT `+workColumns+` FROM works WHERE slug = $1`, slug))
	if err != nil {
		return nil, wrap(op, err)
	}

	return w, nil
}

func (s *Storage) ListWorks(ctx context.Context, f imodels.WorkFilter) ([]models.Work, int, error) {
	const op = "storage.postgres.ListWorks"

	var (
		where string
		args  []any
	)

	if f.Featured != nil {
		where = ` WHERE featured = $1`
		args = append(args, *f.Featured)
	}

	var total int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM works`+where, args...).Scan(&total); err != nil {
		return nil, 0, wrap(op, err)
	}

	if total == 0 {
		return []models.Work{}, 0, nil
	}

	n := len(args)
	query := `SELECT ` + workColumns + ` FROM works` + where +
		fmt.Sprintf(` ORDER BY sort_order ASC, created_at DESC LIMIT $%d OFFSET $%d`, n+1, n+2)
	args = append(args, f.Limit, f.Offset())

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, wrap(op, err)
	}
	defer rows.Close()

	out := make([]models.Work, 0, f.Limit)
	for rows.Next() {
		w, err := scanWork(rows)
		if err != nil {
			return nil, 0, wrap(op, err)
		}

		out = append(out, *w)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, wrap(op, err)
	}

	return out, total, nil
}

package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-blog/pkg/models"
)

const tagSelect = `SELECT id, name, slug, created_at FROM tags`

func scanTag(row scanner) (*models.Tag, error) {
	var t models.Tag
	if err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt); err != nil {
		return nil, err
	}

	return &t, nil
}

func (s *Storage) SaveTag(ctx context.Context, t *models.Tag) error {
	const op = "storage.postgres.SaveTag"

	_, err := s.db.Exec(ctx, `INSERT INTO tags(id, name, slug, created_at) VALUES ($1, $2, $3, $4)`,
		t.ID, t.Name, t.Slug, t.CreatedAt)

	return wrap(op, err)
}

func (s *Storage) DeleteTag(ctx context.Context, id uuid.UUID) error {
	const op = "storage.postgres.DeleteTag"

	tag, err := s.db.Exec(ctx, `DELETE FROM tags WHERE id = $1`, id)
	return mustAffect(op, tag, err)
}

func (s *Storage) TagByID(ctx context.Context, id uuid.UUID) (*models.Tag, error) {
	const op = "storage.postgres.TagByID"

	t, err := scanTag(s.db.QueryRow(ctx, tagSelect+` WHERE id = $1`, id))
	if err != nil {
		return nil, wrap(op, err)
	}

	return t, nil
}

func (s *Storage) TagBySlug(ctx context.Context, slug string) (*models.Tag, error) {
	const op = "storage.postgres.TagBySlug"

	t, err := scanTag(s.db.QueryRow(ctx, tagSelect+` WHERE slug = $1`, slug))
	if err != nil {
		return nil, wrap(op, err)
	}

	return t, nil
}

// TagsByIDs возвращает найденные метки; вызывающий сверяет количество.
func (s *Storage) TagsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Tag, error) {
	const op = "storage.postgres.TagsByIDs"

	if len(ids) == 0 {
		return []models.Tag{}, nil
	}

	return s.queryTags(ctx, op, tagSelect+` WHERE id = ANY($1) ORDER BY name`, ids)
}

func (s *Storage) ListTags(ctx context.Context) ([]models.Tag, error) {
	return s.queryTags(ctx, "storage.postgres.ListTags", tagSelect+` ORDER BY name`)
}

func (s *Storage) queryTags(ctx context.Context, op, query string, args ...any) ([]models.Tag, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	out := []models.Tag{}
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, wrap(op, err)
		}

		out = append(out, *t)
	}

	return out, wrap(op, rows.Err())
}

package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-blog/pkg/models"
)

// categorySelect — рубрика с числом опубликованных постов.
const categorySelect = `
	SELECT c.id, c.name, c.slug, c.description, c.created_at, c.updated_at,
	       (SELECT count(*) FROM posts p WHERE p.category_id = c.id AND p.published) AS post_count
	FROM categories c
`

func scanCategory(row scanner) (*models.Category, error) {
	var c models.Category
	if err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.CreatedAt, &c.UpdatedAt, &c.PostCount); err != nil {
		return nil, err
	}

	return &c, nil
}

func (s *Storage) SaveCategory(ctx context.Context, c *models.Category) error {
	const op = "storage.postgres.SaveCategory"

	_, err := s.db.Exec(ctx, `
		INSERT INTO categories(id, name, slug, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID, c.Name, c.Slug, c.Description, c.CreatedAt, c.UpdatedAt)

	return wrap(op, err)
}

func (s *Storage) UpdateCategory(ctx context.Context, c *models.Category) error {
	const op = "storage.postgres.UpdateCategory"

	tag, err := s.db.Exec(ctx, `
		UPDATE categories
		SET name = $2, slug = $3, description = $4, updated_at = $5
		WHERE id = $1
	`, c.ID, c.Name, c.Slug, c.Description, c.UpdatedAt)

	return mustAffect(op, tag, err)
}

// DeleteCategory удаляет рубрику; у постов category_id обнуляется.
func (s *Storage) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	const op = "storage.postgres.DeleteCategory"

	tag, err := s.db.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	return mustAffect(op, tag, err)
}

func (s *Storage) CategoryByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	const op = "storage.postgres.CategoryByID"

	c, err := scanCategory(s.db.QueryRow(ctx, categorySelect+` WHERE c.id = $1`, id))
	if err != nil {
		return nil, wrap(op, err)
	}

	return c, nil
}

func (s *Storage) CategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	const op = "storage.postgres.CategoryBySlug"

	c, err := scanCategory(s.db.QueryRow(ctx, categorySelect+` WHERE c.slug = $1`, slug))
	if err != nil {
		return nil, wrap(op, err)
	}

	return c, nil
}

func (s *Storage) ListCategories(ctx context.Context) ([]models.Category, error) {
	const op = "storage.postgres.ListCategories"

	rows, err := s.db.Query(ctx, categorySelect+` ORDER BY c.name`)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	out := []models.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, wrap(op, err)
		}

		out = append(out, *c)
	}

	return out, wrap(op, rows.Err())
}

package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	imodels "github.com/pribylovaa/go-blog/internal/models"
	"github.com/pribylovaa/go-blog/internal/storage"
	"github.com/pribylovaa/go-blog/pkg/models"
)

const postSelect = `
	SELECT p.id, p.title, p.slug, p.content, p.summary, p.cover_image,
	       p.published, p.featured, p.views,
	       p.author_id, u.username, u.avatar,
	       p.category_id, c.name, c.slug,
	       p.created_at, p.updated_at, p.published_at
	FROM posts p
	JOIN users u ON u.id = p.author_id
	LEFT JOIN categories c ON c.id = p.category_id
`

func scanPost(row scanner) (*models.Post, error) {
	var (
		p       models.Post
		author  models.Author
		catName *string
		catSlug *string
	)

	err := row.Scan(
		&p.ID, &p.Title, &p.Slug, &p.Content, &p.Summary, &p.CoverImage,
		&p.Published, &p.Featured, &p.Views,
		&p.AuthorID, &author.Username, &author.Avatar,
		&p.CategoryID, &catName, &catSlug,
		&p.CreatedAt, &p.UpdatedAt, &p.PublishedAt,
	)
	if err != nil {
		return nil, err
	}

	author.ID = p.AuthorID
	p.Author = &author

	if p.CategoryID != nil && catName != nil && catSlug != nil {
		p.Category = &models.Category{ID: *p.CategoryID, Name: *catName, Slug: *catSlug}
	}

	p.Tags = []models.Tag{}
	return &p, nil
}

// SavePost создаёт пост и его связи с метками в одной транзакции.
func (s *Storage) SavePost(ctx context.Context, p *models.Post) error {
	const op = "storage.postgres.SavePost"

	query := `
		INSERT INTO posts(id, title, slug, content, summary, cover_image, published, featured,
		                  views, author_id, category_id, created_at, updated_at, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, query,
			p.ID, p.Title, p.Slug, p.Content, p.Summary, p.CoverImage, p.Published, p.Featured,
			p.Views, p.AuthorID, p.CategoryID, p.CreatedAt, p.UpdatedAt, p.PublishedAt,
		)
		if err != nil {
			return err
		}

		return insertPostTags(ctx, tx, p.ID, p.Tags)
	})

	return wrap(op, err)
}

// UpdatePost перезаписывает редактируемые поля и набор меток.
func (s *Storage) UpdatePost(ctx context.Context, p *models.Post) error {
	const op = "storage.postgres.UpdatePost"

	query := `
		UPDATE posts
		SET title = $2, slug = $3, content = $4, summary = $5, cover_image = $6,
		    published = $7, featured = $8, category_id = $9, updated_at = $10, published_at = $11
		WHERE id = $1
	`

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query,
			p.ID, p.Title, p.Slug, p.Content, p.Summary, p.CoverImage,
			p.Published, p.Featured, p.CategoryID, p.UpdatedAt, p.PublishedAt,
		)
		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			return storage.ErrNotFound
		}

		if _, err := tx.Exec(ctx, `DELETE FROM post_tags WHERE post_id = $1`, p.ID); err != nil {
			return err
		}

		return insertPostTags(ctx, tx, p.ID, p.Tags)
	})

	return wrap(op, err)
}

func insertPostTags(ctx context.Context, tx pgx.Tx, postID uuid.UUID, tags []models.Tag) error {
	if len(tags) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(tags))
	for _, t := range tags {
		ids = append(ids, t.ID)
	}

	_, err := tx.Exec(ctx,
		`INSERT INTO post_tags(post_id, tag_id) SELECT $1, unnest($2::uuid[]) ON CONFLICT DO NOTHING`,
		postID, ids,
	)

	return err
}

func (s *Storage) DeletePost(ctx context.Context, id uuid.UUID) error {
	const op = "storage.postgres.DeletePost"

	tag, err := s.db.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	return mustAffect(op, tag, err)
}

func (s *Storage) PostByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	return s.postWhere(ctx, "storage.postgres.PostByID", `p.id = $1`, id)
}

func (s *Storage) PostBySlug(ctx context.Context, slug string) (*models.Post, error) {
	return s.postWhere(ctx, "storage.postgres.PostBySlug", `p.slug = $1`, slug)
}

func (s *Storage) postWhere(ctx context.Context, op, cond string, arg any) (*models.Post, error) {
	p, err := scanPost(s.db.QueryRow(ctx, postSelect+` WHERE `+cond, arg))
	if err != nil {
		return nil, wrap(op, err)
	}

	if err := s.attachTags(ctx, []*models.Post{p}); err != nil {
		return nil, wrap(op, err)
	}

	return p, nil
}

// ListPosts — страница постов, новые первыми, и общее число по фильтру.
func (s *Storage) ListPosts(ctx context.Context, f imodels.PostFilter) ([]models.Post, int, error) {
	const op = "storage.postgres.ListPosts"

	where, args := postConditions(f)

	var total int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM posts p`+where, args...).Scan(&total); err != nil {
		return nil, 0, wrap(op, err)
	}

	if total == 0 {
		return []models.Post{}, 0, nil
	}

	n := len(args)
	query := postSelect + where + fmt.Sprintf(` ORDER BY p.created_at DESC, p.id LIMIT $%d OFFSET $%d`, n+1, n+2)
	args = append(args, f.Limit, f.Offset())

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, wrap(op, err)
	}
	defer rows.Close()

	posts := make([]*models.Post, 0, f.Limit)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, 0, wrap(op, err)
		}

		posts = append(posts, p)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, wrap(op, err)
	}

	if err := s.attachTags(ctx, posts); err != nil {
		return nil, 0, wrap(op, err)
	}

	out := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		out = append(out, *p)
	}

	return out, total, nil
}

// postConditions собирает WHERE по фильтру; плейсхолдеры нумеруются по порядку.
func postConditions(f imodels.PostFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Published != nil {
		add(`p.published = $%d`, *f.Published)
	}

	if f.Featured != nil {
		add(`p.featured = $%d`, *f.Featured)
	}

	if f.CategoryID != nil {
		add(`p.category_id = $%d`, *f.CategoryID)
	}

	if f.TagID != nil {
		add(`EXISTS (SELECT 1 FROM post_tags pt WHERE pt.post_id = p.id AND pt.tag_id = $%d)`, *f.TagID)
	}

	if q := strings.TrimSpace(f.Search); q != "" {
		add(`(p.title ILIKE $%[1]d OR p.summary ILIKE $%[1]d OR p.content ILIKE $%[1]d)`, likePattern(q))
	}

	if len(conds) == 0 {
		return "", nil
	}

	return " WHERE " + strings.Join(conds, " AND "), args
}

// attachTags подгружает метки одним запросом на все посты.
func (s *Storage) attachTags(ctx context.Context, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(posts))
	byID := make(map[uuid.UUID]*models.Post, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
		byID[p.ID] = p
	}

	rows, err := s.db.Query(ctx, `
		SELECT pt.post_id, t.id, t.name, t.slug, t.created_at
		FROM post_tags pt
		JOIN tags t ON t.id = pt.tag_id
		WHERE pt.post_id = ANY($1)
		ORDER BY t.name
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			postID uuid.UUID
			t      models.Tag
		)

		if err := rows.Scan(&postID, &t.ID, &t.Name, &t.Slug, &t.CreatedAt); err != nil {
			return err
		}

		if p, ok := byID[postID]; ok {
			p.Tags = append(p.Tags, t)
		}
	}

	return rows.Err()
}

// IncrementViews увеличивает счётчик просмотров.
func (s *Storage) IncrementViews(ctx context.Context, id uuid.UUID) error {
	const op = "storage.postgres.IncrementViews"

	tag, err := s.db.Exec(ctx, `UPDATE posts SET views = views + 1 WHERE id = $1`, id)
	return mustAffect(op, tag, err)
}

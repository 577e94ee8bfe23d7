package models

import (
	"time"

	"github.com/google/uuid"
)

// Post — статья блога.
type Post struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Content     string     `json:"content"`
	ContentHTML string     `json:"contentHtml,omitempty"`
	Summary     *string    `json:"summary,omitempty"`
	CoverImage  *string    `json:"coverImage,omitempty"`
	Published   bool       `json:"published"`
	Featured    bool       `json:"featured"`
	Views       int64      `json:"views"`
	Author      *Author    `json:"author,omitempty"`
	AuthorID    uuid.UUID  `json:"authorId"`
	Category    *Category  `json:"category,omitempty"`
	CategoryID  *uuid.UUID `json:"categoryId,omitempty"`
	Tags        []Tag      `json:"tags"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
}

// PostListItem — пост в списках (без тела).
type PostListItem struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Summary     *string    `json:"summary,omitempty"`
	CoverImage  *string    `json:"coverImage,omitempty"`
	Published   bool       `json:"published"`
	Featured    bool       `json:"featured"`
	Views       int64      `json:"views"`
	Author      *Author    `json:"author,omitempty"`
	Category    *Category  `json:"category,omitempty"`
	Tags        []Tag      `json:"tags"`
	CreatedAt   time.Time  `json:"createdAt"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
}

// ListItem сворачивает пост до элемента списка.
func (p *Post) ListItem() PostListItem {
	tags := p.Tags
	if tags == nil {
		tags = []Tag{}
	}

	return PostListItem{
		ID:          p.ID,
		Title:       p.Title,
		Slug:        p.Slug,
		Summary:     p.Summary,
		CoverImage:  p.CoverImage,
		Published:   p.Published,
		Featured:    p.Featured,
		Views:       p.Views,
		Author:      p.Author,
		Category:    p.Category,
		Tags:        tags,
		CreatedAt:   p.CreatedAt,
		PublishedAt: p.PublishedAt,
	}
}

// CreatePostInput — тело POST /posts.
type CreatePostInput struct {
	Title      string      `json:"title"`
	Slug       string      `json:"slug"`
	Content    string      `json:"content"`
	Summary    *string     `json:"summary,omitempty"`
	CoverImage *string     `json:"coverImage,omitempty"`
	CategoryID *uuid.UUID  `json:"categoryId,omitempty"`
	TagIDs     []uuid.UUID `json:"tagIds,omitempty"`
	Published  *bool       `json:"published,omitempty"`
	Featured   *bool       `json:"featured,omitempty"`
}

// UpdatePostInput — тело PATCH /posts/{id}: nil — поле не меняется,
// пустая строка в summary/coverImage очищает значение, TagIDs заменяет набор целиком.
type UpdatePostInput struct {
	Title      *string      `json:"title,omitempty"`
	Slug       *string      `json:"slug,omitempty"`
	Content    *string      `json:"content,omitempty"`
	Summary    *string      `json:"summary,omitempty"`
	CoverImage *string      `json:"coverImage,omitempty"`
	CategoryID *uuid.UUID   `json:"categoryId,omitempty"`
	TagIDs     *[]uuid.UUID `json:"tagIds,omitempty"`
	Published  *bool        `json:"published,omitempty"`
	Featured   *bool        `json:"featured,omitempty"`
}

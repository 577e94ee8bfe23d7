package models

import (
	"time"

	"github.com/google/uuid"
)

// Work — проект в портфолио.
type Work struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Description *string   `json:"description,omitempty"`
	Content     *string   `json:"content,omitempty"`
	CoverImage  *string   `json:"coverImage,omitempty"`
	DemoURL     *string   `json:"demoUrl,omitempty"`
	SourceURL   *string   `json:"sourceUrl,omitempty"`
	TechStack   []string  `json:"techStack"`
	Featured    bool      `json:"featured"`
	Order       int       `json:"order"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type WorkInput struct {
	Title       string   `json:"title"`
	Slug        string   `json:"slug,omitempty"`
	Description *string  `json:"description,omitempty"`
	Content     *string  `json:"content,omitempty"`
	CoverImage  *string  `json:"coverImage,omitempty"`
	DemoURL     *string  `json:"demoUrl,omitempty"`
	SourceURL   *string  `json:"sourceUrl,omitempty"`
	TechStack   []string `json:"techStack,omitempty"`
	Featured    *bool    `json:"featured,omitempty"`
	Order       *int     `json:"order,omitempty"`
}

type UpdateWorkInput struct {
	Title       *string   `json:"title,omitempty"`
	Slug        *string   `json:"slug,omitempty"`
	Description *string   `json:"description,omitempty"`
	Content     *string   `json:"content,omitempty"`
	CoverImage  *string   `json:"coverImage,omitempty"`
	DemoURL     *string   `json:"demoUrl,omitempty"`
	SourceURL   *string   `json:"sourceUrl,omitempty"`
	TechStack   *[]string `json:"techStack,omitempty"`
	Featured    *bool     `json:"featured,omitempty"`
	Order       *int      `json:"order,omitempty"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Comment — комментарий к посту. Автор либо зарегистрирован (AuthorID),
// либо гость (GuestName). E-mail гостя наружу не отдаётся.
type Comment struct {
	ID         uuid.UUID  `json:"id"`
	Content    string     `json:"content"`
	Author     *Author    `json:"author,omitempty"`
	AuthorID   *uuid.UUID `json:"authorId,omitempty"`
	GuestName  *string    `json:"guestName,omitempty"`
	GuestEmail *string    `json:"-"`
	PostID     uuid.UUID  `json:"postId"`
	ParentID   *uuid.UUID `json:"parentId,omitempty"`
	Replies    []Comment  `json:"replies,omitempty"`
	Approved   bool       `json:"approved"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// CreateCommentInput — тело POST /posts/{slug}/comments.
type CreateCommentInput struct {
	Content    string     `json:"content"`
	ParentID   *uuid.UUID `json:"parentId,omitempty"`
	GuestName  *string    `json:"guestName,omitempty"`
	GuestEmail *string    `json:"guestEmail,omitempty"`
}

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	imodels "github.com/pribylovaa/go-blog/internal/models"
	"github.com/pribylovaa/go-blog/internal/storage"
	"github.com/pribylovaa/go-blog/pkg/models"
)

func newDB(t *testing.T) (*Storage, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})

	return NewWithPool(mock), mock
}

func ptr[T any](v T) *T { return &v }

func TestWrap_MapsDriverErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   error
		want error
	}{
		{name: "no_rows", in: pgx.ErrNoRows, want: storage.ErrNotFound},
		{name: "unique", in: &pgconn.PgError{Code: "23505"}, want: storage.ErrAlreadyExists},
		{name: "foreign_key", in: &pgconn.PgError{Code: "23503"}, want: storage.ErrInvalidReference},
		{name: "too_long", in: &pgconn.PgError{Code: "22001"}, want: storage.ErrValueTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := wrap("op", tt.in)
			require.ErrorIs(t, err, tt.want)
			require.Contains(t, err.Error(), "op: ")
		})
	}

	require.NoError(t, wrap("op", nil))

	other := &pgconn.PgError{Code: "40001"}
	require.ErrorIs(t, wrap("op", other), other)
}

func TestLikePattern_EscapesWildcards(t *testing.T) {
	t.Parallel()

	require.Equal(t, `%go%`, likePattern("go"))
	require.Equal(t, `%100\%\_done\\%`, likePattern(`100%_done\`))
}

func TestSaveUser(t *testing.T) {
	t.Parallel()

	s, mock := newDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	u := &models.User{ID: uuid.New(), Email: "a@b.c", Username: "a", PasswordHash: "h", Role: models.RoleUser, CreatedAt: now, UpdatedAt: now}

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(u.ID, u.Email, u.Username, u.PasswordHash, u.Role, u.Avatar, u.Bio, u.CreatedAt, u.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, s.SaveUser(ctx, u))

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(u.ID, u.Email, u.Username, u.PasswordHash, u.Role, u.Avatar, u.Bio, u.CreatedAt, u.UpdatedAt).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	require.ErrorIs(t, s.SaveUser(ctx, u), storage.ErrAlreadyExists)
}

func TestUserByEmail(t *testing.T) {
	t.Parallel()

	s, mock := newDB(t)
	ctx := context.Background()
	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \$1`).
		WithArgs("a@b.c").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "username", "password_hash", "role", "avatar", "bio", "created_at", "updated_at"}).
			AddRow(id, "a@b.c", "alice", "hash", models.RoleAdmin, ptr("https://cdn/a.png"), (*string)(nil), now, now))

	u, err := s.UserByEmail(ctx, "a@b.c")
	require.NoError(t, err)
	require.Equal(t, id, u.ID)
	require.Equal(t, models.RoleAdmin, u.Role)
	require.Equal(t, "https://cdn/a.png", *u.Avatar)
	require.Nil(t, u.Bio)

	mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \$1`).
		WithArgs("none@b.c").
		WillReturnError(pgx.ErrNoRows)

	_, err = s.UserByEmail(ctx, "none@b.c")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUsersByIDs_EmptySkipsQuery(t *testing.T) {
	t.Parallel()

	s, _ := newDB(t)

	got, err := s.UsersByIDs(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestRevokeRefreshToken(t *testing.T) {
	t.Parallel()

	const upd = `UPDATE refresh_tokens\s+SET revoked = TRUE`
	const sel = `SELECT EXISTS\(SELECT 1 FROM refresh_tokens WHERE token_hash = \$1\)`

	t.Run("active", func(t *testing.T) {
		t.Parallel()
		s, mock := newDB(t)

		mock.ExpectQuery(upd).WithArgs("h").
			WillReturnRows(pgxmock.NewRows([]string{"user_id"}).AddRow(uuid.NewString()))

		ok, err := s.RevokeRefreshToken(context.Background(), "h")
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("already_revoked", func(t *testing.T) {
		t.Parallel()
		s, mock := newDB(t)

		mock.ExpectQuery(upd).WithArgs("h").WillReturnError(pgx.ErrNoRows)
		mock.ExpectQuery(sel).WithArgs("h").WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

		ok, err := s.RevokeRefreshToken(context.Background(), "h")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("unknown", func(t *testing.T) {
		t.Parallel()
		s, mock := newDB(t)

		mock.ExpectQuery(upd).WithArgs("h").WillReturnError(pgx.ErrNoRows)
		mock.ExpectQuery(sel).WithArgs("h").WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

		_, err := s.RevokeRefreshToken(context.Background(), "h")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestDeleteExpiredTokens(t *testing.T) {
	t.Parallel()

	s, mock := newDB(t)
	now := time.Now().UTC()

	mock.ExpectExec(`DELETE FROM refresh_tokens WHERE expires_at <= \$1`).
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := s.DeleteExpiredTokens(context.Background(), now)
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
}

var postCols = []string{
	"id", "title", "slug", "content", "summary", "cover_image",
	"published", "featured", "views",
	"author_id", "username", "avatar",
	"category_id", "name", "slug",
	"created_at", "updated_at", "published_at",
}

func TestListPosts_FiltersCountAndTags(t *testing.T) {
	t.Parallel()

	s, mock := newDB(t)
	ctx := context.Background()

	now := time.Now().UTC()
	p1, p2 := uuid.New(), uuid.New()
	author := uuid.New()
	cat := uuid.New()
	tagID := uuid.New()

	filter := imodels.PostFilter{Page: imodels.Page{Page: 2, Limit: 2}, Published: ptr(true), Search: "go_lang"}

	mock.ExpectQuery(`SELECT count\(\*\) FROM posts p WHERE p.published = \$1 AND \(p.title ILIKE \$2`).
		WithArgs(true, `%go\_lang%`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(5))

	mock.ExpectQuery(`(?s)FROM posts p\s+JOIN users u .+ WHERE p.published = \$1 .+ ORDER BY p.created_at DESC, p.id LIMIT \$3 OFFSET \$4`).
		WithArgs(true, `%go\_lang%`, 2, 2).
		WillReturnRows(pgxmock.NewRows(postCols).
			AddRow(p1, "One", "one", "# one", ptr("s1"), (*string)(nil), true, false, int64(7),
				author, "alice", (*string)(nil), &cat, ptr("Go"), ptr("go"), now, now, &now).
			AddRow(p2, "Two", "two", "# two", (*string)(nil), (*string)(nil), true, true, int64(0),
				author, "alice", (*string)(nil), (*uuid.UUID)(nil), (*string)(nil), (*string)(nil), now, now, &now))

	mock.ExpectQuery(`SELECT pt.post_id, t.id, t.name, t.slug, t.created_at\s+FROM post_tags pt`).
		WithArgs([]uuid.UUID{p1, p2}).
		WillReturnRows(pgxmock.NewRows([]string{"post_id", "id", "name", "slug", "created_at"}).
			AddRow(p1, tagID, "Backend", "backend", now))

	posts, total, err := s.ListPosts(ctx, filter)
	require.NoError(t, err)
	require.Equal(t, 5, total)
	require.Len(t, posts, 2)

	require.Equal(t, "alice", posts[0].Author.Username)
	require.Equal(t, author, posts[0].Author.ID)
	require.Equal(t, "Go", posts[0].Category.Name)
	require.Len(t, posts[0].Tags, 1)
	require.Equal(t, "backend", posts[0].Tags[0].Slug)

	require.Nil(t, posts[1].Category)
	require.NotNil(t, posts[1].Tags)
	require.Empty(t, posts[1].Tags)
}

func TestListPosts_EmptySkipsSelect(t *testing.T) {
	t.Parallel()

	s, mock := newDB(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM posts p$`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))

	posts, total, err := s.ListPosts(context.Background(), imodels.PostFilter{Page: imodels.Page{Page: 1, Limit: 10}})
	require.NoError(t, err)
	require.Zero(t, total)
	require.NotNil(t, posts)
	require.Empty(t, posts)
}

func TestSavePost_WritesTagsInTx(t *testing.T) {
	t.Parallel()

	s, mock := newDB(t)
	now := time.Now().UTC()
	tag := models.Tag{ID: uuid.New()}
	p := &models.Post{ID: uuid.New(), Title: "T", Slug: "t", Content: "c", AuthorID: uuid.New(), Tags: []models.Tag{tag}, CreatedAt: now, UpdatedAt: now}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO posts`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO post_tags`).WithArgs(p.ID, []uuid.UUID{tag.ID}).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, s.SavePost(context.Background(), p))
}

func TestSavePost_UnknownTagRollsBack(t *testing.T) {
	t.Parallel()

	s, mock := newDB(t)
	p := &models.Post{ID: uuid.New(), Tags: []models.Tag{{ID: uuid.New()}}}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO posts`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO post_tags`).WillReturnError(&pgconn.PgError{Code: "23503"})
	mock.ExpectRollback()

	require.ErrorIs(t, s.SavePost(context.Background(), p), storage.ErrInvalidReference)
}

func TestUpdatePost_NotFoundRollsBack(t *testing.T) {
	t.Parallel()

	s, mock := newDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE posts`).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := s.UpdatePost(context.Background(), &models.Post{ID: uuid.New()})
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestApproveAndDeleteComment_NotFound(t *testing.T) {
	t.Parallel()

	s, mock := newDB(t)
	id := uuid.New()

	mock.ExpectExec(`UPDATE comments SET approved = TRUE`).WithArgs(id).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, s.ApproveComment(context.Background(), id), storage.ErrNotFound)

	mock.ExpectExec(`DELETE FROM comments WHERE id = \$1`).WithArgs(id).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	require.ErrorIs(t, s.DeleteComment(context.Background(), id), storage.ErrNotFound)
}

func TestListReplies(t *testing.T) {
	t.Parallel()

	s, mock := newDB(t)
	now := time.Now().UTC()
	post, parent, reply, author := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	mock.ExpectQuery(`FROM comments WHERE parent_id = ANY\(\$1\) AND approved ORDER BY created_at ASC`).
		WithArgs([]uuid.UUID{parent}).
		WillReturnRows(pgxmock.NewRows([]string{"id", "content", "author_id", "guest_name", "guest_email", "post_id", "parent_id", "approved", "created_at", "updated_at"}).
			AddRow(reply, "hi", &author, (*string)(nil), (*string)(nil), post, &parent, true, now, now))

	got, err := s.ListReplies(context.Background(), []uuid.UUID{parent})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, parent, *got[0].ParentID)
	require.Equal(t, author, *got[0].AuthorID)
}

func TestPing(t *testing.T) {
	t.Parallel()

	s, mock := newDB(t)

	mock.ExpectPing()
	require.NoError(t, s.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("down"))
	require.Error(t, s.Ping(context.Background()))
}

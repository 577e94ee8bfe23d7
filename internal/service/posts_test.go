package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	imodels "github.com/pribylovaa/go-blog/internal/models"
	"github.com/pribylovaa/go-blog/internal/storage"
	"github.com/pribylovaa/go-blog/pkg/models"
)

func samplePost(published bool) *models.Post {
	return &models.Post{
		ID:        uuid.New(),
		Title:     "Hello",
		Slug:      "hello",
		Content:   "# Hi\n\nSome *text*.\n\n<script>alert(1)</script>\n",
		Published: published,
		Tags:      []models.Tag{},
		CreatedAt: testNow.Add(-time.Hour),
	}
}

func TestListPosts_VisibilityAndPaging(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		caller        *imodels.Principal
		in            imodels.PostFilter
		wantPublished *bool
		wantPage      imodels.Page
	}{
		{
			name:          "guest asking for drafts still gets published",
			caller:        nil,
			in:            imodels.PostFilter{Published: ptr(false)},
			wantPublished: ptr(true),
			wantPage:      imodels.Page{Page: 1, Limit: 10},
		},
		{
			name:          "user is forced to published",
			caller:        reader(),
			in:            imodels.PostFilter{Page: imodels.Page{Page: 3, Limit: 500}},
			wantPublished: ptr(true),
			wantPage:      imodels.Page{Page: 3, Limit: 100},
		},
		{
			name:          "admin sees everything",
			caller:        admin(),
			in:            imodels.PostFilter{Page: imodels.Page{Page: 2, Limit: 5}},
			wantPublished: nil,
			wantPage:      imodels.Page{Page: 2, Limit: 5},
		},
		{
			name:          "admin may filter drafts",
			caller:        admin(),
			in:            imodels.PostFilter{Published: ptr(false)},
			wantPublished: ptr(false),
			wantPage:      imodels.Page{Page: 1, Limit: 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, st, _, ctrl := newSvc(t)
			defer ctrl.Finish()

			post := samplePost(true)
			st.EXPECT().ListPosts(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, f imodels.PostFilter) ([]models.Post, int, error) {
					require.Equal(t, tt.wantPublished, f.Published)
					require.Equal(t, tt.wantPage, f.Page)
					return []models.Post{*post}, 21, nil
				})

			list, err := svc.ListPosts(context.Background(), tt.caller, tt.in)
			require.NoError(t, err)
			require.Equal(t, 21, list.Total)
			require.Equal(t, tt.wantPage, list.Page)
			require.Len(t, list.Items, 1)
			require.Equal(t, post.Slug, list.Items[0].Slug)
		})
	}
}

func TestGetPost_RendersMarkdownAndCountsView(t *testing.T) {
	t.Parallel()

	svc, st, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	post := samplePost(true)
	post.Views = 4

	st.EXPECT().PostBySlug(gomock.Any(), "hello").Return(post, nil)
	st.EXPECT().IncrementViews(gomock.Any(), post.ID).Return(nil)

	got, err := svc.GetPost(context.Background(), nil, "hello")
	require.NoError(t, err)
	require.EqualValues(t, 5, got.Views)
	require.Contains(t, got.ContentHTML, "<h1>Hi</h1>")
	require.Contains(t, got.ContentHTML, "<em>text</em>")
	require.NotContains(t, got.ContentHTML, "<script>")
}

func TestGetPost_ByIDAndViewFailureIgnored(t *testing.T) {
	t.Parallel()

	svc, st, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	post := samplePost(true)

	st.EXPECT().PostByID(gomock.Any(), post.ID).Return(post, nil)
	st.EXPECT().IncrementViews(gomock.Any(), post.ID).Return(errors.New("deadlock"))

	got, err := svc.GetPost(context.Background(), nil, post.ID.String())
	require.NoError(t, err)
	require.Zero(t, got.Views)
}

func TestGetPost_DraftHidden(t *testing.T) {
	t.Parallel()

	svc, st, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	draft := samplePost(false)

	st.EXPECT().PostBySlug(gomock.Any(), "hello").Return(draft, nil).Times(2)

	_, err := svc.GetPost(context.Background(), reader(), "hello")
	require.ErrorIs(t, err, ErrNotFound)

	st.EXPECT().IncrementViews(gomock.Any(), draft.ID).Return(nil)
	got, err := svc.GetPost(context.Background(), admin(), "hello")
	require.NoError(t, err)
	require.False(t, got.Published)
}

func TestGetPost_Missing(t *testing.T) {
	t.Parallel()

	svc, st, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().PostBySlug(gomock.Any(), "nope").Return(nil, storage.ErrNotFound)

	_, err := svc.GetPost(context.Background(), nil, "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreatePost_AccessControl(t *testing.T) {
	t.Parallel()

	svc, _, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	in := models.CreatePostInput{Title: "T", Content: "x"}

	_, err := svc.CreatePost(context.Background(), nil, in)
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.CreatePost(context.Background(), reader(), in)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestCreatePost_DerivesSlugAndPublishes(t *testing.T) {
	t.Parallel()

	svc, st, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	p := admin()
	tagA, tagB := uuid.New(), uuid.New()
	catID := uuid.New()

	st.EXPECT().TagsByIDs(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, ids []uuid.UUID) ([]models.Tag, error) {
			require.Len(t, ids, 2)
			return []models.Tag{{ID: tagA, Name: "a"}, {ID: tagB, Name: "b"}}, nil
		})

	var saved *models.Post
	st.EXPECT().SavePost(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, post *models.Post) error {
		saved = post
		return nil
	})
	st.EXPECT().PostByID(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, id uuid.UUID) (*models.Post, error) {
		require.Equal(t, saved.ID, id)
		return saved, nil
	})

	got, err := svc.CreatePost(context.Background(), p, models.CreatePostInput{
		Title:      "  Crème Brûlée: A Guide!  ",
		Content:    "body",
		Summary:    ptr("  short  "),
		CategoryID: &catID,
		TagIDs:     []uuid.UUID{tagA, tagB, tagA},
		Published:  ptr(true),
	})
	require.NoError(t, err)

	require.Equal(t, "Crème Brûlée: A Guide!", got.Title)
	require.Equal(t, "creme-brulee-a-guide", got.Slug)
	require.Equal(t, "short", *got.Summary)
	require.Equal(t, p.UserID, got.AuthorID)
	require.Equal(t, &catID, got.CategoryID)
	require.Len(t, got.Tags, 2)
	require.True(t, got.Published)
	require.False(t, got.Featured)
	require.NotNil(t, got.PublishedAt)
	require.Equal(t, testNow, *got.PublishedAt)
}

func TestCreatePost_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		in    models.CreatePostInput
		field string
	}{
		{"missing title", models.CreatePostInput{Content: "x"}, "title"},
		{"bad slug", models.CreatePostInput{Title: "T", Slug: "Not A Slug", Content: "x"}, "slug"},
		{"non-latin title needs slug", models.CreatePostInput{Title: "Привет", Content: "x"}, "slug"},
		{"missing content", models.CreatePostInput{Title: "T"}, "content"},
		{"bad cover", models.CreatePostInput{Title: "T", Content: "x", CoverImage: ptr("/relative.png")}, "coverImage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _, ctrl := newSvc(t)
			defer ctrl.Finish()

			_, err := svc.CreatePost(context.Background(), admin(), tt.in)
			requireField(t, err, tt.field)
		})
	}
}

func TestCreatePost_StorageRejections(t *testing.T) {
	t.Parallel()

	t.Run("unknown tag", func(t *testing.T) {
		svc, st, _, ctrl := newSvc(t)
		defer ctrl.Finish()

		st.EXPECT().TagsByIDs(gomock.Any(), gomock.Any()).Return([]models.Tag{}, nil)

		_, err := svc.CreatePost(context.Background(), admin(), models.CreatePostInput{
			Title: "T", Content: "x", TagIDs: []uuid.UUID{uuid.New()},
		})
		requireField(t, err, "tagIds")
	})

	t.Run("unknown category", func(t *testing.T) {
		svc, st, _, ctrl := newSvc(t)
		defer ctrl.Finish()

		st.EXPECT().SavePost(gomock.Any(), gomock.Any()).Return(storage.ErrInvalidReference)

		_, err := svc.CreatePost(context.Background(), admin(), models.CreatePostInput{
			Title: "T", Content: "x", CategoryID: ptr(uuid.New()),
		})
		requireField(t, err, "categoryId")
	})

	t.Run("duplicate slug", func(t *testing.T) {
		svc, st, _, ctrl := newSvc(t)
		defer ctrl.Finish()

		st.EXPECT().SavePost(gomock.Any(), gomock.Any()).Return(storage.ErrAlreadyExists)

		_, err := svc.CreatePost(context.Background(), admin(), models.CreatePostInput{Title: "T", Content: "x"})
		require.ErrorIs(t, err, ErrAlreadyExists)
	})
}

func TestUpdatePost_PublishedAtSetOnce(t *testing.T) {
	t.Parallel()

	firstPublish := testNow.Add(-48 * time.Hour)

	tests := []struct {
		name      string
		existing  *models.Post
		in        models.UpdatePostInput
		wantAt    *time.Time
		wantTitle string
	}{
		{
			name:      "first publish stamps now",
			existing:  samplePost(false),
			in:        models.UpdatePostInput{Published: ptr(true)},
			wantAt:    &testNow,
			wantTitle: "Hello",
		},
		{
			name: "republish keeps original",
			existing: func() *models.Post {
				p := samplePost(false)
				p.PublishedAt = &firstPublish
				return p
			}(),
			in:        models.UpdatePostInput{Published: ptr(true), Title: ptr("New")},
			wantAt:    &firstPublish,
			wantTitle: "New",
		},
		{
			name:      "unpublish keeps nil",
			existing:  samplePost(true),
			in:        models.UpdatePostInput{Published: ptr(false)},
			wantAt:    nil,
			wantTitle: "Hello",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, st, _, ctrl := newSvc(t)
			defer ctrl.Finish()

			st.EXPECT().PostByID(gomock.Any(), tt.existing.ID).Return(tt.existing, nil)
			st.EXPECT().UpdatePost(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, p *models.Post) error {
				require.Equal(t, tt.wantAt, p.PublishedAt)
				require.Equal(t, tt.wantTitle, p.Title)
				require.Equal(t, testNow, p.UpdatedAt)
				return nil
			})
			st.EXPECT().PostByID(gomock.Any(), tt.existing.ID).Return(tt.existing, nil)

			_, err := svc.UpdatePost(context.Background(), admin(), tt.existing.ID, tt.in)
			require.NoError(t, err)
		})
	}
}

func TestUpdatePost_ClearsOptionalFieldsAndReplacesTags(t *testing.T) {
	t.Parallel()

	svc, st, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	post := samplePost(true)
	post.Summary = ptr("old")
	post.Tags = []models.Tag{{ID: uuid.New()}}

	st.EXPECT().PostByID(gomock.Any(), post.ID).Return(post, nil).Times(2)
	st.EXPECT().UpdatePost(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, p *models.Post) error {
		require.Nil(t, p.Summary)
		require.Empty(t, p.Tags)
		return nil
	})

	_, err := svc.UpdatePost(context.Background(), admin(), post.ID, models.UpdatePostInput{
		Summary: ptr(""),
		TagIDs:  &[]uuid.UUID{},
	})
	require.NoError(t, err)
}

func TestUpdatePost_NotFound(t *testing.T) {
	t.Parallel()

	svc, st, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	id := uuid.New()
	st.EXPECT().PostByID(gomock.Any(), id).Return(nil, storage.ErrNotFound)

	_, err := svc.UpdatePost(context.Background(), admin(), id, models.UpdatePostInput{Title: ptr("x")})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeletePost(t *testing.T) {
	t.Parallel()

	t.Run("comments cleanup failure is not fatal", func(t *testing.T) {
		svc, st, cs, ctrl := newSvc(t)
		defer ctrl.Finish()

		id := uuid.New()
		st.EXPECT().DeletePost(gomock.Any(), id).Return(nil)
		cs.EXPECT().DeletePostComments(gomock.Any(), id).Return(errors.New("mongo down"))

		require.NoError(t, svc.DeletePost(context.Background(), admin(), id))
	})

	t.Run("missing", func(t *testing.T) {
		svc, st, _, ctrl := newSvc(t)
		defer ctrl.Finish()

		id := uuid.New()
		st.EXPECT().DeletePost(gomock.Any(), id).Return(storage.ErrNotFound)

		require.ErrorIs(t, svc.DeletePost(context.Background(), admin(), id), ErrNotFound)
	})

	t.Run("forbidden", func(t *testing.T) {
		svc, _, _, ctrl := newSvc(t)
		defer ctrl.Finish()

		require.ErrorIs(t, svc.DeletePost(context.Background(), reader(), uuid.New()), ErrForbidden)
	})
}

func TestSearch(t *testing.T) {
	t.Parallel()

	svc, st, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	_, err := svc.Search(context.Background(), "   ", imodels.Page{})
	requireField(t, err, "q")

	long := make([]rune, 101)
	for i := range long {
		long[i] = 'я'
	}
	_, err = svc.Search(context.Background(), string(long), imodels.Page{})
	requireField(t, err, "q")

	st.EXPECT().ListPosts(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, f imodels.PostFilter) ([]models.Post, int, error) {
			require.Equal(t, "go", f.Search)
			require.Equal(t, ptr(true), f.Published)
			return []models.Post{}, 0, nil
		})

	list, err := svc.Search(context.Background(), " go ", imodels.Page{Page: 1, Limit: 5})
	require.NoError(t, err)
	require.Empty(t, list.Items)
}

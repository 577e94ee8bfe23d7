package queries

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-blog/pkg/apiclient"
	"github.com/pribylovaa/go-blog/pkg/envelope"
	"github.com/pribylovaa/go-blog/pkg/localstore"
	"github.com/pribylovaa/go-blog/pkg/models"
	"github.com/pribylovaa/go-blog/pkg/querycache"
)

// fakeAPI — минимальный сервер постов в памяти с подсчётом обращений.
type fakeAPI struct {
	mu    sync.Mutex
	posts []models.Post
	hits  map[string]int
	fail  map[string]int // путь -> статус ошибки
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{hits: map[string]int{}, fail: map[string]int{}}
}

func (f *fakeAPI) hit(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[key]
}

func (f *fakeAPI) setFail(path string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[path] = status
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/api/v1")
	f.hits[r.Method+" "+path]++

	if st, ok := f.fail[path]; ok {
		w.WriteHeader(st)
		_ = json.NewEncoder(w).Encode(envelope.NewError(st, "X", "fail", path, time.Now()))
		return
	}

	switch {
	case r.Method == http.MethodGet && path == "/posts":
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		if limit <= 0 {
			limit = 10
		}
		items := []models.PostListItem{}
		for i := range f.posts {
			if q.Get("featured") == "true" && !f.posts[i].Featured {
				continue
			}
			items = append(items, f.posts[i].ListItem())
		}
		total := len(items)
		if len(items) > limit {
			items = items[:limit]
		}
		_ = json.NewEncoder(w).Encode(envelope.NewPaginated(items, total, 1, limit))

	case r.Method == http.MethodPost && path == "/posts":
		var in models.CreatePostInput
		_ = json.NewDecoder(r.Body).Decode(&in)
		p := models.Post{ID: uuid.New(), Title: in.Title, Slug: in.Slug, Content: in.Content, Tags: []models.Tag{}, CreatedAt: time.Now()}
		if in.Featured != nil {
			p.Featured = *in.Featured
		}
		f.posts = append(f.posts, p)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(envelope.Response[models.Post]{Data: p})

	case strings.HasPrefix(path, "/posts/"):
		ref := strings.TrimPrefix(path, "/posts/")
		for i := range f.posts {
			p := &f.posts[i]
			if p.Slug != ref && p.ID.String() != ref {
				continue
			}
			switch r.Method {
			case http.MethodGet:
				_ = json.NewEncoder(w).Encode(envelope.Response[models.Post]{Data: *p})
			case http.MethodPatch:
				var in models.UpdatePostInput
				_ = json.NewDecoder(r.Body).Decode(&in)
				if in.Title != nil {
					p.Title = *in.Title
				}
				if in.Slug != nil {
					p.Slug = *in.Slug
				}
				_ = json.NewEncoder(w).Encode(envelope.Response[models.Post]{Data: *p})
			case http.MethodDelete:
				f.posts = append(f.posts[:i], f.posts[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
			}
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(envelope.NewError(http.StatusNotFound, envelope.CodeNotFound, "Record not found", path, time.Now()))

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func setup(t *testing.T) (*Posts, *fakeAPI, *querycache.Cache) {
	t.Helper()

	api := newFakeAPI()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	cl, err := apiclient.New(srv.URL + "/api/v1")
	require.NoError(t, err)

	cfg := querycache.DefaultConfig()
	cfg.Backoff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	cache := querycache.New(querycache.WithConfig(cfg))

	return NewPosts(cl, cache, DefaultPostsConfig()), api, cache
}

func TestPosts_CreateInvalidatesListsAndForcesRefetch(t *testing.T) {
	t.Parallel()

	posts, api, cache := setup(t)
	ctx := context.Background()

	page, err := posts.List(ctx, PostFilters{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Empty(t, page.Data)

	// Повторное чтение свежего списка — без сети.
	_, err = posts.List(ctx, PostFilters{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, api.hit("GET /posts"))

	created, err := posts.Create(ctx, models.CreatePostInput{Title: "Hello", Slug: "hello", Content: "# Hi"})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID)

	listKey := PostKeys.List(PostFilters{Page: 1, Limit: 10}.key())
	require.Equal(t, querycache.StatusStale, cache.State(listKey).Status)

	page, err = posts.List(ctx, PostFilters{Page: 1, Limit: 10}, querycache.WithBlockOnStale())
	require.NoError(t, err)
	require.Equal(t, 2, api.hit("GET /posts"))
	require.Len(t, page.Data, 1)
	require.Equal(t, "hello", page.Data[0].Slug)
}

func TestPosts_FeaturedLivesUnderLists(t *testing.T) {
	t.Parallel()

	posts, _, cache := setup(t)
	ctx := context.Background()
	yes := true

	_, err := posts.Create(ctx, models.CreatePostInput{Title: "A", Slug: "a", Content: "x", Featured: &yes})
	require.NoError(t, err)
	_, err = posts.Create(ctx, models.CreatePostInput{Title: "B", Slug: "b", Content: "x"})
	require.NoError(t, err)

	page, err := posts.Featured(ctx, 5)
	require.NoError(t, err)
	require.LessOrEqual(t, len(page.Data), 5)
	for _, p := range page.Data {
		require.True(t, p.Featured)
	}

	key := PostKeys.List(map[string]string{"featured": "true", "published": "true", "limit": "5"})
	require.Equal(t, querycache.StatusFresh, cache.State(key).Status)

	_, err = posts.Create(ctx, models.CreatePostInput{Title: "C", Slug: "c", Content: "x"})
	require.NoError(t, err)
	require.Equal(t, querycache.StatusStale, cache.State(key).Status)
}

func TestPosts_UpdateInvalidatesDetailByIDAndSlug(t *testing.T) {
	t.Parallel()

	posts, api, cache := setup(t)
	ctx := context.Background()

	created, err := posts.Create(ctx, models.CreatePostInput{Title: "Old", Slug: "old", Content: "x"})
	require.NoError(t, err)

	_, err = posts.Detail(ctx, "old")
	require.NoError(t, err)
	_, err = posts.Detail(ctx, created.ID.String())
	require.NoError(t, err)

	title := "New"
	updated, err := posts.Update(ctx, created.ID.String(), models.UpdatePostInput{Title: &title})
	require.NoError(t, err)
	require.Equal(t, "New", updated.Title)

	require.Equal(t, querycache.StatusStale, cache.State(PostKeys.Detail("old")).Status)
	require.Equal(t, querycache.StatusStale, cache.State(PostKeys.Detail(created.ID.String())).Status)

	got, err := posts.Detail(ctx, "old", querycache.WithBlockOnStale())
	require.NoError(t, err)
	require.Equal(t, "New", got.Title)
	require.Equal(t, 2, api.hit("GET /posts/old"))
}

func TestPosts_DeleteInvalidates(t *testing.T) {
	t.Parallel()

	posts, _, cache := setup(t)
	ctx := context.Background()

	created, err := posts.Create(ctx, models.CreatePostInput{Title: "T", Slug: "t", Content: "x"})
	require.NoError(t, err)

	_, err = posts.List(ctx, PostFilters{})
	require.NoError(t, err)

	require.NoError(t, posts.Delete(ctx, created.ID.String()))
	require.Equal(t, querycache.StatusStale, cache.State(PostKeys.List(PostFilters{}.key())).Status)
}

func TestPosts_ClientErrorsNotRetriedServerErrorsAre(t *testing.T) {
	t.Parallel()

	posts, api, _ := setup(t)
	ctx := context.Background()

	_, err := posts.Detail(ctx, "missing")
	require.True(t, apiclient.HasCode(err, envelope.CodeNotFound))
	require.Equal(t, 1, api.hit("GET /posts/missing"))

	api.setFail("/posts/broken", http.StatusInternalServerError)
	_, err = posts.Detail(ctx, "broken")
	apiErr, ok := apiclient.AsError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	require.Equal(t, 4, api.hit("GET /posts/broken"), "первая попытка и три повтора")
}

func TestSession_LoginStoresTokenAndLogoutClears(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(envelope.Response[models.AuthResult]{Data: models.AuthResult{
			User:   models.User{ID: uuid.New(), Username: "u"},
			Tokens: models.TokenPair{AccessToken: "acc", RefreshToken: "ref", TokenType: "Bearer"},
		}})
	})
	mux.HandleFunc("/api/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer acc" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(envelope.NewError(401, envelope.CodeUnauthorized, "Unauthorized", r.URL.Path, time.Now()))
			return
		}
		_ = json.NewEncoder(w).Encode(envelope.Response[models.User]{Data: models.User{Username: "u"}})
	})
	mux.HandleFunc("/api/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	creds := localstore.NewCredentials(localstore.NewMemory())
	cl, err := apiclient.New(srv.URL+"/api/v1", apiclient.WithCredentials(creds))
	require.NoError(t, err)
	cache := querycache.New()
	s := NewSession(cl, cache, creds)
	ctx := context.Background()

	_, err = s.Me(ctx)
	require.True(t, apiclient.HasCode(err, envelope.CodeUnauthorized))

	_, err = s.Login(ctx, models.LoginInput{Email: "u@example.com", Password: "x"})
	require.NoError(t, err)

	me, err := s.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, "u", me.Username)

	require.NoError(t, s.Logout(ctx, "ref"))
	_, ok := creds.Token(ctx)
	require.False(t, ok)
	require.Equal(t, querycache.StatusAbsent, cache.State(UserKeys.Detail("me")).Status)
}

package http

// Сквозные тесты конвейера: роутер + мидлвары + сервис поверх моков хранилищ.
//
// Запуск:
//   go test ./internal/http/... -v -race -count=1

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-blog/internal/config"
	imodels "github.com/pribylovaa/go-blog/internal/models"
	"github.com/pribylovaa/go-blog/internal/ratelimit"
	"github.com/pribylovaa/go-blog/internal/service"
	"github.com/pribylovaa/go-blog/internal/storage"
	"github.com/pribylovaa/go-blog/mocks"
	"github.com/pribylovaa/go-blog/pkg/envelope"
	"github.com/pribylovaa/go-blog/pkg/models"
)

const basePath = "/api/v1"

func authCfg() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:       "router-access-secret-0123456789abcdef",
		RefreshSecret:   "router-refresh-secret-0123456789abcdef",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
		Issuer:          "go-blog",
		Audience:        []string{"go-blog-web"},
	}
}

type testEnv struct {
	handler http.Handler
	st      *mocks.MockStorage
	cs      *mocks.MockCommentStorage
}

func newEnv(t *testing.T, tune func(*Options)) *testEnv {
	t.Helper()

	ctrl := gomock.NewController(t)
	st := mocks.NewMockStorage(ctrl)
	cs := mocks.NewMockCommentStorage(ctrl)

	limits := config.LimitsConfig{Default: 10, Max: 100}
	svc := service.New(st, cs, authCfg(), limits)

	opts := Options{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Timeout:   time.Second,
		BasePath:  basePath,
		BodyLimit: 1 << 10,
		Limits:    limits,
	}
	if tune != nil {
		tune(&opts)
	}

	return &testEnv{handler: NewRouter(svc, opts), st: st, cs: cs}
}

func (e *testEnv) do(method, target, token, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, target, rd)
	req.RemoteAddr = "192.0.2.10:5555"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

// signToken подписывает access-токен тем же секретом, что и сервис.
func signToken(t *testing.T, role models.Role, expiresIn time.Duration) string {
	t.Helper()

	cfg := authCfg()
	now := time.Now()
	claims := struct {
		UserID string      `json:"uid"`
		Role   models.Role `json:"role"`
		jwt.RegisteredClaims
	}{
		UserID: uuid.NewString(),
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Hour)),
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings(cfg.Audience),
		},
	}

	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
	require.NoError(t, err)
	return s
}

func errBody(t *testing.T, rr *httptest.ResponseRecorder) envelope.Error {
	t.Helper()

	var body envelope.Error
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	require.False(t, body.Success)
	require.Equal(t, rr.Code, body.StatusCode)
	require.NotEmpty(t, body.Timestamp)

	return body
}

func TestRouter_UnknownRouteAndMethod(t *testing.T) {
	env := newEnv(t, nil)

	rr := env.do(http.MethodGet, basePath+"/nope", "", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, envelope.CodeNotFound, errBody(t, rr).Code)
	require.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	rr = env.do(http.MethodPut, basePath+"/posts", "", "")
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	require.Equal(t, envelope.CodeMethodNotAllowed, errBody(t, rr).Code)
}

func TestRouter_ListPosts_AnonymousSeesPublishedOnly(t *testing.T) {
	env := newEnv(t, nil)

	published := false
	env.st.EXPECT().ListPosts(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, f imodels.PostFilter) ([]models.Post, int, error) {
			require.NotNil(t, f.Published)
			published = *f.Published
			require.Equal(t, imodels.Page{Page: 2, Limit: 5}, f.Page)
			return []models.Post{{ID: uuid.New(), Title: "Hello", Slug: "hello", Published: true}}, 6, nil
		})

	rr := env.do(http.MethodGet, basePath+"/posts?page=2&limit=5&published=false", "", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.True(t, published)

	var body envelope.Paginated[models.PostListItem]
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	require.Equal(t, envelope.Meta{Total: 6, Page: 2, Limit: 5, TotalPages: 2}, body.Meta)
	require.NotContains(t, rr.Body.String(), `"content"`)
}

func TestRouter_CreatePostThenReadBack(t *testing.T) {
	env := newEnv(t, nil)
	admin := signToken(t, models.RoleAdmin, time.Minute)

	// Хранилище в памяти поверх мока: SavePost кладёт, PostByID/PostBySlug читают.
	byID := make(map[uuid.UUID]models.Post)
	env.st.EXPECT().SavePost(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p *models.Post) error {
			byID[p.ID] = *p
			return nil
		}).Times(2)
	env.st.EXPECT().PostByID(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, id uuid.UUID) (*models.Post, error) {
			p, ok := byID[id]
			if !ok {
				return nil, storage.ErrNotFound
			}
			return &p, nil
		}).AnyTimes()
	env.st.EXPECT().PostBySlug(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, slug string) (*models.Post, error) {
			for _, p := range byID {
				if p.Slug == slug {
					return &p, nil
				}
			}
			return nil, storage.ErrNotFound
		}).AnyTimes()
	env.st.EXPECT().IncrementViews(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	create := func(body string) models.Post {
		t.Helper()

		rr := env.do(http.MethodPost, basePath+"/posts", admin, body)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

		var res envelope.Response[models.Post]
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
		return res.Data
	}

	before := time.Now().UTC()
	first := create(`{"title":"Hello, World","slug":"hello-world","content":"# Hi\n\nBody","published":true}`)
	time.Sleep(time.Millisecond)
	second := create(`{"title":"Second Post","content":"text","published":true}`)

	require.NotEqual(t, uuid.Nil, first.ID)
	require.NotEqual(t, first.ID, second.ID)
	require.False(t, first.CreatedAt.Before(before))
	require.NotEqual(t, first.CreatedAt, second.CreatedAt)
	require.Equal(t, "second-post", second.Slug)

	for _, ref := range []string{"hello-world", first.ID.String()} {
		rr := env.do(http.MethodGet, basePath+"/posts/"+ref, "", "")
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var got envelope.Response[models.Post]
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		require.Equal(t, first.ID, got.Data.ID)
		require.Equal(t, "Hello, World", got.Data.Title)
		require.Equal(t, "hello-world", got.Data.Slug)
		require.Equal(t, "# Hi\n\nBody", got.Data.Content)
		require.True(t, got.Data.CreatedAt.Equal(first.CreatedAt))
		require.Contains(t, got.Data.ContentHTML, "<h1")
	}
}

func TestRouter_ListFeaturedPosts(t *testing.T) {
	env := newEnv(t, nil)

	const total = 12
	env.st.EXPECT().ListPosts(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, f imodels.PostFilter) ([]models.Post, int, error) {
			require.NotNil(t, f.Featured)
			require.True(t, *f.Featured)
			require.Equal(t, 5, f.Limit)
			require.Equal(t, 1, f.Page.Page)

			out := make([]models.Post, 0, f.Limit)
			for i := 0; i < f.Limit; i++ {
				out = append(out, models.Post{ID: uuid.New(), Title: "p", Slug: uuid.NewString(), Published: true, Featured: true})
			}
			return out, total, nil
		})

	rr := env.do(http.MethodGet, basePath+"/posts?featured=true&limit=5", "", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body envelope.Paginated[models.PostListItem]
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.LessOrEqual(t, len(body.Data), 5)
	require.NotEmpty(t, body.Data)
	for _, p := range body.Data {
		require.True(t, p.Featured)
	}
	require.Equal(t, total, body.Meta.Total)
	require.Equal(t, 5, body.Meta.Limit)
	require.Equal(t, (total+5-1)/5, body.Meta.TotalPages)
}

func TestRouter_QueryValidation(t *testing.T) {
	tests := []struct {
		name  string
		query string
		field string
	}{
		{name: "unknown param", query: "?sort=asc", field: "sort"},
		{name: "limit above max", query: "?limit=101", field: "limit"},
		{name: "page below one", query: "?page=0", field: "page"},
		{name: "page not a number", query: "?page=two", field: "page"},
		{name: "bad bool", query: "?featured=maybe", field: "featured"},
		{name: "bad uuid", query: "?categoryId=42", field: "categoryId"},
		{name: "repeated", query: "?page=1&page=2", field: "page"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(t, nil)

			rr := env.do(http.MethodGet, basePath+"/posts"+tt.query, "", "")
			require.Equal(t, http.StatusBadRequest, rr.Code)

			body := errBody(t, rr)
			require.Equal(t, envelope.CodeValidation, body.Code)
			require.Contains(t, body.Details, tt.field)
		})
	}
}

func TestRouter_AdminGuard(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		status int
		code   string
	}{
		{name: "anonymous", status: http.StatusUnauthorized, code: envelope.CodeUnauthorized},
		{name: "reader", token: signToken(t, models.RoleUser, time.Minute), status: http.StatusForbidden, code: envelope.CodeForbidden},
		{name: "expired", token: signToken(t, models.RoleAdmin, -time.Minute), status: http.StatusUnauthorized, code: envelope.CodeTokenExpired},
		{name: "garbage", token: "not-a-jwt", status: http.StatusUnauthorized, code: envelope.CodeUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(t, nil)

			rr := env.do(http.MethodPost, basePath+"/tags", tt.token, `{"name":"Go"}`)
			require.Equal(t, tt.status, rr.Code)
			require.Equal(t, tt.code, errBody(t, rr).Code)
		})
	}
}

func TestRouter_CreateTag(t *testing.T) {
	env := newEnv(t, nil)
	env.st.EXPECT().SaveTag(gomock.Any(), gomock.Any()).Return(nil)

	rr := env.do(http.MethodPost, basePath+"/tags", signToken(t, models.RoleAdmin, time.Minute), `{"name":"Go Lang"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var body envelope.Response[models.Tag]
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "go-lang", body.Data.Slug)
}

func TestRouter_StrictBody(t *testing.T) {
	admin := signToken(t, models.RoleAdmin, time.Minute)

	tests := []struct {
		name   string
		body   string
		status int
		field  string
	}{
		{name: "unknown field", body: `{"name":"Go","extra":1}`, status: http.StatusBadRequest, field: "extra"},
		{name: "trailing data", body: `{"name":"Go"} {"name":"Rust"}`, status: http.StatusBadRequest, field: "body"},
		{name: "malformed", body: `{"name":`, status: http.StatusBadRequest, field: "body"},
		{name: "wrong type", body: `{"name":42}`, status: http.StatusBadRequest, field: "name"},
		{name: "too large", body: `{"name":"` + strings.Repeat("x", 2048) + `"}`, status: http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(t, nil)

			rr := env.do(http.MethodPost, basePath+"/tags", admin, tt.body)
			require.Equal(t, tt.status, rr.Code, rr.Body.String())

			body := errBody(t, rr)
			if tt.field != "" {
				require.Equal(t, envelope.CodeValidation, body.Code)
				require.Contains(t, body.Details, tt.field)
			} else {
				require.Equal(t, envelope.CodePayloadTooLarge, body.Code)
			}
		})
	}
}

func TestRouter_BadPathID(t *testing.T) {
	env := newEnv(t, nil)

	rr := env.do(http.MethodDelete, basePath+"/tags/not-a-uuid", signToken(t, models.RoleAdmin, time.Minute), "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, errBody(t, rr).Details, "id")
}

func TestRouter_RateLimitRejectsBeforeHandler(t *testing.T) {
	mem, err := ratelimit.NewMemory([]ratelimit.Tier{{Name: "short", Limit: 2, Window: time.Minute}})
	require.NoError(t, err)

	env := newEnv(t, func(o *Options) { o.Limiter = mem })
	env.st.EXPECT().ListTags(gomock.Any()).Return([]models.Tag{}, nil).Times(2)

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, env.do(http.MethodGet, basePath+"/tags", "", "").Code)
	}

	rr := env.do(http.MethodGet, basePath+"/tags", "", "")
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	require.Equal(t, envelope.CodeTooManyRequests, errBody(t, rr).Code)
	require.NotEmpty(t, rr.Header().Get("Retry-After"))
	require.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestRouter_StorageDeadlineIsTimeout(t *testing.T) {
	env := newEnv(t, func(o *Options) { o.Timeout = 20 * time.Millisecond })
	env.st.EXPECT().ListCategories(gomock.Any()).
		DoAndReturn(func(ctx context.Context) ([]models.Category, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

	rr := env.do(http.MethodGet, basePath+"/categories", "", "")
	require.Equal(t, http.StatusGatewayTimeout, rr.Code)
	require.Equal(t, envelope.CodeTimeout, errBody(t, rr).Code)
}

func TestRouter_DraftHiddenFromReaders(t *testing.T) {
	env := newEnv(t, nil)
	env.st.EXPECT().PostBySlug(gomock.Any(), "draft").
		Return(&models.Post{ID: uuid.New(), Slug: "draft", Published: false}, nil)

	rr := env.do(http.MethodGet, basePath+"/posts/draft", signToken(t, models.RoleUser, time.Minute), "")
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, envelope.CodeNotFound, errBody(t, rr).Code)
}

func TestRouter_Health(t *testing.T) {
	env := newEnv(t, nil)
	env.st.EXPECT().Ping(gomock.Any()).Return(errors.New("connection refused"))

	rr := env.do(http.MethodGet, basePath+"/health", "", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var body envelope.Response[models.Health]
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, models.Health{Status: "degraded", Database: "down"}, body.Data)
}

func TestRouter_SecurityHeadersAndCORS(t *testing.T) {
	env := newEnv(t, func(o *Options) { o.CORSOrigins = []string{"https://blog.example.com"} })

	req := httptest.NewRequest(http.MethodOptions, basePath+"/posts", nil)
	req.Header.Set("Origin", "https://blog.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")

	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, "https://blog.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

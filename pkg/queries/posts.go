package queries

import (
	"context"
	"time"

	"github.com/pribylovaa/go-blog/pkg/apiclient"
	"github.com/pribylovaa/go-blog/pkg/envelope"
	"github.com/pribylovaa/go-blog/pkg/models"
	"github.com/pribylovaa/go-blog/pkg/querycache"
)

// PostsConfig — окна свежести запросов постов.
type PostsConfig struct {
	ListStale     time.Duration
	DetailStale   time.Duration
	FeaturedStale time.Duration
}

func DefaultPostsConfig() PostsConfig {
	return PostsConfig{
		ListStale:     5 * time.Minute,
		DetailStale:   10 * time.Minute,
		FeaturedStale: 5 * time.Minute,
	}
}

// Posts — запросы и мутации постов.
type Posts struct {
	api   *apiclient.Client
	cache *querycache.Cache
	cfg   PostsConfig
}

func NewPosts(api *apiclient.Client, cache *querycache.Cache, cfg PostsConfig) *Posts {
	return &Posts{api: api, cache: cache, cfg: cfg}
}

// List — страница постов по фильтрам.
func (p *Posts) List(ctx context.Context, f PostFilters, opts ...querycache.QueryOption) (envelope.Paginated[models.PostListItem], error) {
	opts = append([]querycache.QueryOption{querycache.WithStaleTime(p.cfg.ListStale)}, opts...)

	return querycache.Query(ctx, p.cache, PostKeys.List(f.key()),
		func(ctx context.Context) (envelope.Paginated[models.PostListItem], error) {
			return apiclient.GetPaginated[models.PostListItem](ctx, p.api, "/posts", f.params())
		}, opts...)
}

// Featured — избранные опубликованные посты (ключ лежит под списками).
func (p *Posts) Featured(ctx context.Context, limit int, opts ...querycache.QueryOption) (envelope.Paginated[models.PostListItem], error) {
	yes := true
	f := PostFilters{Featured: &yes, Published: &yes, Limit: limit}
	opts = append([]querycache.QueryOption{querycache.WithStaleTime(p.cfg.FeaturedStale)}, opts...)

	return querycache.Query(ctx, p.cache, PostKeys.List(f.key()),
		func(ctx context.Context) (envelope.Paginated[models.PostListItem], error) {
			return apiclient.GetPaginated[models.PostListItem](ctx, p.api, "/posts", f.params())
		}, opts...)
}

// Detail — пост по slug.
func (p *Posts) Detail(ctx context.Context, slug string, opts ...querycache.QueryOption) (models.Post, error) {
	opts = append([]querycache.QueryOption{querycache.WithStaleTime(p.cfg.DetailStale)}, opts...)

	return querycache.Query(ctx, p.cache, PostKeys.Detail(slug),
		func(ctx context.Context) (models.Post, error) {
			return apiclient.Decode[models.Post](p.api.Get(ctx, "/posts/"+slug, nil))
		}, opts...)
}

// Create создаёт пост и инвалидирует все списки.
func (p *Posts) Create(ctx context.Context, in models.CreatePostInput) (models.Post, error) {
	return querycache.Mutate(ctx, p.cache,
		func(ctx context.Context) (models.Post, error) {
			return apiclient.Decode[models.Post](p.api.Post(ctx, "/posts", in))
		},
		func(models.Post) []querycache.Key {
			return []querycache.Key{PostKeys.Lists()}
		})
}

// Update меняет пост и инвалидирует списки, а также деталь по id и по slug.
func (p *Posts) Update(ctx context.Context, id string, in models.UpdatePostInput) (models.Post, error) {
	return querycache.Mutate(ctx, p.cache,
		func(ctx context.Context) (models.Post, error) {
			return apiclient.Decode[models.Post](p.api.Patch(ctx, "/posts/"+id, in))
		},
		func(out models.Post) []querycache.Key {
			keys := []querycache.Key{PostKeys.Lists(), PostKeys.Detail(id)}
			if out.Slug != "" && out.Slug != id {
				keys = append(keys, PostKeys.Detail(out.Slug))
			}
			return keys
		})
}

// Delete удаляет пост и инвалидирует списки и деталь.
func (p *Posts) Delete(ctx context.Context, id string) error {
	_, err := querycache.Mutate(ctx, p.cache,
		func(ctx context.Context) (struct{}, error) {
			_, err := p.api.Delete(ctx, "/posts/"+id)
			return struct{}{}, err
		},
		func(struct{}) []querycache.Key {
			return []querycache.Key{PostKeys.Lists(), PostKeys.Detail(id)}
		})

	return err
}

package queries

import (
	"context"
	"time"

	"github.com/pribylovaa/go-blog/pkg/apiclient"
	"github.com/pribylovaa/go-blog/pkg/envelope"
	"github.com/pribylovaa/go-blog/pkg/models"
	"github.com/pribylovaa/go-blog/pkg/querycache"
)

// Resource — типовые запросы CRUD-ресурса с рубрикацией ключей как у постов.
type Resource[T any] struct {
	api      *apiclient.Client
	cache    *querycache.Cache
	keys     ResourceKeys
	endpoint string
	stale    time.Duration
}

func NewResource[T any](api *apiclient.Client, cache *querycache.Cache, keys ResourceKeys, endpoint string, stale time.Duration) *Resource[T] {
	return &Resource[T]{api: api, cache: cache, keys: keys, endpoint: endpoint, stale: stale}
}

// Categories, Tags и Works — готовые ресурсы с окнами свежести списков.
func Categories(api *apiclient.Client, cache *querycache.Cache) *Resource[models.Category] {
	return NewResource[models.Category](api, cache, CategoryKeys, "/categories", 10*time.Minute)
}

func Tags(api *apiclient.Client, cache *querycache.Cache) *Resource[models.Tag] {
	return NewResource[models.Tag](api, cache, TagKeys, "/tags", 10*time.Minute)
}

func Works(api *apiclient.Client, cache *querycache.Cache) *Resource[models.Work] {
	return NewResource[models.Work](api, cache, WorkKeys, "/works", 5*time.Minute)
}

// All — полный список (эндпойнты без пагинации: рубрики, метки).
func (r *Resource[T]) All(ctx context.Context) ([]T, error) {
	return querycache.Query(ctx, r.cache, r.keys.List(nil),
		func(ctx context.Context) ([]T, error) {
			return apiclient.Decode[[]T](r.api.Get(ctx, r.endpoint, nil))
		}, querycache.WithStaleTime(r.stale))
}

// Page — постраничный список с произвольными фильтрами.
func (r *Resource[T]) Page(ctx context.Context, filters map[string]string) (envelope.Paginated[T], error) {
	params := apiclient.Params{}
	for k, v := range filters {
		if v != "" {
			params[k] = v
		}
	}

	return querycache.Query(ctx, r.cache, r.keys.List(filters),
		func(ctx context.Context) (envelope.Paginated[T], error) {
			return apiclient.GetPaginated[T](ctx, r.api, r.endpoint, params)
		}, querycache.WithStaleTime(r.stale))
}

// Get — элемент по slug или id.
func (r *Resource[T]) Get(ctx context.Context, slugOrID string) (T, error) {
	return querycache.Query(ctx, r.cache, r.keys.Detail(slugOrID),
		func(ctx context.Context) (T, error) {
			return apiclient.Decode[T](r.api.Get(ctx, r.endpoint+"/"+slugOrID, nil))
		}, querycache.WithStaleTime(2*r.stale))
}

// Create создаёт элемент и инвалидирует списки.
func (r *Resource[T]) Create(ctx context.Context, body any) (T, error) {
	return querycache.Mutate(ctx, r.cache,
		func(ctx context.Context) (T, error) {
			return apiclient.Decode[T](r.api.Post(ctx, r.endpoint, body))
		},
		func(T) []querycache.Key { return []querycache.Key{r.keys.Lists()} })
}

// Update меняет элемент и инвалидирует списки и все детали ресурса
// (деталь может быть закэширована и по slug, и по id).
func (r *Resource[T]) Update(ctx context.Context, id string, body any) (T, error) {
	return querycache.Mutate(ctx, r.cache,
		func(ctx context.Context) (T, error) {
			return apiclient.Decode[T](r.api.Patch(ctx, r.endpoint+"/"+id, body))
		},
		func(T) []querycache.Key { return []querycache.Key{r.keys.Lists(), r.keys.Details()} })
}

// Delete удаляет элемент.
func (r *Resource[T]) Delete(ctx context.Context, id string) error {
	_, err := querycache.Mutate(ctx, r.cache,
		func(ctx context.Context) (struct{}, error) {
			_, err := r.api.Delete(ctx, r.endpoint+"/"+id)
			return struct{}{}, err
		},
		func(struct{}) []querycache.Key { return []querycache.Key{r.keys.Lists(), r.keys.Details()} })

	return err
}

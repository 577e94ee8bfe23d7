// queries — закэшированные запросы к API блога поверх apiclient и querycache.
//
// Ключи организованы иерархически, чтобы инвалидировать целые области:
//
//	["posts"]
//	["posts", "list"]
//	["posts", "list", "<канонические фильтры>"]
//	["posts", "detail"]
//	["posts", "detail", "<slug или id>"]
//
// Тот же порядок используется для рубрик, меток и работ.
package queries

import (
	"strconv"

	"github.com/pribylovaa/go-blog/pkg/apiclient"
	"github.com/pribylovaa/go-blog/pkg/querycache"
)

// ResourceKeys — фабрика ключей одного ресурса.
type ResourceKeys struct {
	name string
}

func NewResourceKeys(name string) ResourceKeys { return ResourceKeys{name: name} }

func (k ResourceKeys) All() querycache.Key     { return querycache.K(k.name) }
func (k ResourceKeys) Lists() querycache.Key   { return querycache.K(k.name, "list") }
func (k ResourceKeys) Details() querycache.Key { return querycache.K(k.name, "detail") }

func (k ResourceKeys) List(filters map[string]string) querycache.Key {
	return k.Lists().With(querycache.Filters(filters))
}

func (k ResourceKeys) Detail(id string) querycache.Key {
	return k.Details().With(id)
}

var (
	PostKeys     = NewResourceKeys("posts")
	CategoryKeys = NewResourceKeys("categories")
	TagKeys      = NewResourceKeys("tags")
	WorkKeys     = NewResourceKeys("works")
	UserKeys     = NewResourceKeys("users")
)

// PostFilters — фильтры списка постов.
type PostFilters struct {
	Page       int
	Limit      int
	CategoryID string
	TagID      string
	Featured   *bool
	Published  *bool
	Search     string
}

// key — канонический набор непустых фильтров.
func (f PostFilters) key() map[string]string {
	m := map[string]string{
		"categoryId": f.CategoryID,
		"tagId":      f.TagID,
		"search":     f.Search,
	}

	if f.Page > 0 {
		m["page"] = strconv.Itoa(f.Page)
	}

	if f.Limit > 0 {
		m["limit"] = strconv.Itoa(f.Limit)
	}

	if f.Featured != nil {
		m["featured"] = strconv.FormatBool(*f.Featured)
	}

	if f.Published != nil {
		m["published"] = strconv.FormatBool(*f.Published)
	}

	return m
}

func (f PostFilters) params() apiclient.Params {
	p := apiclient.Params{}
	for k, v := range f.key() {
		if v != "" {
			p[k] = v
		}
	}

	return p
}

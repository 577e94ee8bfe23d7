package handlers

import (
	"net/url"
	"slices"
	"strconv"

	"github.com/google/uuid"

	imodels "github.com/pribylovaa/go-blog/internal/models"
	"github.com/pribylovaa/go-blog/internal/service"
)

// query — параметры строки запроса с проверкой по списку допустимых.
// Первое нарушение запоминается, дальнейшие чтения его не перетирают.
type query struct {
	vals url.Values
	err  error
}

func parseQuery(vals url.Values, allowed ...string) *query {
	q := &query{vals: vals}

	keys := make([]string, 0, len(vals))
	for k := range vals {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		if !slices.Contains(allowed, k) {
			q.err = service.Invalid(k, "unknown query parameter")
			return q
		}

		if len(vals[k]) > 1 {
			q.err = service.Invalid(k, "must be given once")
			return q
		}
	}

	return q
}

func (q *query) fail(field, reason string) {
	if q.err == nil {
		q.err = service.Invalid(field, reason)
	}
}

func (q *query) String(key string) string {
	return q.vals.Get(key)
}

func (q *query) Int(key string, def int) int {
	raw, ok := q.lookup(key)
	if !ok {
		return def
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		q.fail(key, "must be an integer")
		return def
	}

	return n
}

func (q *query) Bool(key string) *bool {
	raw, ok := q.lookup(key)
	if !ok {
		return nil
	}

	b, err := strconv.ParseBool(raw)
	if err != nil {
		q.fail(key, "must be true or false")
		return nil
	}

	return &b
}

func (q *query) UUID(key string) *uuid.UUID {
	raw, ok := q.lookup(key)
	if !ok {
		return nil
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		q.fail(key, "must be a valid UUID")
		return nil
	}

	return &id
}

// Page — page >= 1 и 1 <= limit <= max; отсутствие — значения по умолчанию.
func (q *query) Page(def, maxLimit int) imodels.Page {
	p := imodels.Page{Page: q.Int("page", 1), Limit: q.Int("limit", def)}

	if p.Page < 1 {
		q.fail("page", "must be >= 1")
	}

	if p.Limit < 1 || p.Limit > maxLimit {
		q.fail("limit", "must be between 1 and "+strconv.Itoa(maxLimit))
	}

	return p
}

func (q *query) Err() error {
	return q.err
}

func (q *query) lookup(key string) (string, bool) {
	if q.err != nil {
		return "", false
	}

	if _, ok := q.vals[key]; !ok {
		return "", false
	}

	return q.vals.Get(key), true
}

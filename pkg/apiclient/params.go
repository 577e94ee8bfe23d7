package apiclient

import (
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"time"
)

// Params — query-параметры запроса.
// nil и nil-указатели пропускаются, срезы дают повтор ключа.
type Params map[string]any

func (p Params) encode(q url.Values) {
	for k, v := range p {
		for _, s := range paramStrings(v) {
			q.Add(k, s)
		}
	}
}

func paramStrings(v any) []string {
	if v == nil {
		return nil
	}

	switch x := v.(type) {
	case string:
		return []string{x}
	case bool:
		return []string{strconv.FormatBool(x)}
	case int:
		return []string{strconv.Itoa(x)}
	case int64:
		return []string{strconv.FormatInt(x, 10)}
	case time.Time:
		return []string{x.UTC().Format(time.RFC3339)}
	case fmt.Stringer:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				return nil
			}

			return paramStrings(rv.Elem().Interface())
		}

		return []string{x.String()}
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}

		return paramStrings(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		out := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out = append(out, paramStrings(rv.Index(i).Interface())...)
		}

		return out
	default:
		return []string{fmt.Sprint(v)}
	}
}

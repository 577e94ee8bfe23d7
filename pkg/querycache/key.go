package querycache

import (
	"encoding/json"
	"net/url"
	"sort"
	"strings"
)

// Key — упорядоченный кортеж, адресующий запись кэша:
// тип ресурса, область ("list"/"detail") и параметры.
type Key []string

// K собирает ключ из частей.
func K(parts ...string) Key {
	out := make(Key, len(parts))
	copy(out, parts)
	return out
}

// With возвращает новый ключ с дописанными частями; исходный не меняется.
func (k Key) With(parts ...string) Key {
	out := make(Key, 0, len(k)+len(parts))
	out = append(out, k...)
	return append(out, parts...)
}

// HasPrefix сообщает, что k вложен в prefix (поэлементно).
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}

	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}

	return true
}

// String — однозначное представление для map-ключей и логов.
func (k Key) String() string {
	b, _ := json.Marshal([]string(k))
	return string(b)
}

// Filters — канонизирует набор фильтров в одну часть ключа:
// пустые значения отбрасываются, ключи сортируются.
func Filters(f map[string]string) string {
	if len(f) == 0 {
		return ""
	}

	names := make([]string, 0, len(f))
	for k, v := range f {
		if strings.TrimSpace(v) == "" {
			continue
		}
		names = append(names, k)
	}
	sort.Strings(names)

	q := url.Values{}
	for _, k := range names {
		q.Set(k, f[k])
	}

	return q.Encode()
}

// ratelimit — многоярусное ограничение частоты запросов по ключу (IP клиента).
// Запрос проходит, только если его пропускают все ярусы.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/pribylovaa/go-blog/internal/config"
)

// Tier — не более Limit запросов за Window.
type Tier struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Decision — результат проверки. При отказе Tier — ярус, который не пропустил,
// RetryAfter — через сколько имеет смысл повторить.
type Decision struct {
	Allowed    bool
	Tier       string
	RetryAfter time.Duration
}

// Limiter — бэкенд ограничителя.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// TiersFromConfig переводит ярусы конфига в ярусы ограничителя.
func TiersFromConfig(in []config.TierConfig) []Tier {
	out := make([]Tier, 0, len(in))
	for _, t := range in {
		out = append(out, Tier{Name: t.Name, Limit: t.Limit, Window: t.Window})
	}

	return out
}

func validate(tiers []Tier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("ratelimit: no tiers")
	}

	for _, t := range tiers {
		if t.Limit <= 0 || t.Window <= 0 {
			return fmt.Errorf("ratelimit: tier %q: limit and window must be positive", t.Name)
		}
	}

	return nil
}

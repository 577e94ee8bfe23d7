package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/ksuid"
)

// DefaultRedisPrefix — префикс ключей журналов.
const DefaultRedisPrefix = "blog:rl:"

// Redis — скользящее окно на ярус, общее для всех реплик: журнал запросов
// в sorted set (score — время в мс), проверка и запись одним Lua-скриптом.
type Redis struct {
	rdb    redis.UniversalClient
	tiers  []Tier
	prefix string
	now    func() time.Time
}

var _ Limiter = (*Redis)(nil)

func NewRedis(rdb redis.UniversalClient, tiers []Tier, prefix string) (*Redis, error) {
	if err := validate(tiers); err != nil {
		return nil, err
	}

	if prefix == "" {
		prefix = DefaultRedisPrefix
	}

	return &Redis{rdb: rdb, tiers: tiers, prefix: prefix, now: time.Now}, nil
}

// slidingLog: KEYS — журналы ярусов; ARGV — now, member, затем limit и window (мс)
// каждого яруса. Возвращает {номер первого отказавшего яруса или 0, ожидание в мс}.
// ZADD выполняется только если пропускают все ярусы.
var slidingLog = redis.NewScript(`
local now = tonumber(ARGV[1])
local denied = 0
local retry = 0
for i, key in ipairs(KEYS) do
	local limit = tonumber(ARGV[2 * i + 1])
	local window = tonumber(ARGV[2 * i + 2])
	redis.call("ZREMRANGEBYSCORE", key, "-inf", now - window)
	if redis.call("ZCARD", key) >= limit then
		if denied == 0 then
			denied = i
		end
		local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
		local wait = tonumber(oldest[2]) + window - now
		if wait > retry then
			retry = wait
		end
	end
end
if denied == 0 then
	for i, key in ipairs(KEYS) do
		redis.call("ZADD", key, now, ARGV[2])
		redis.call("PEXPIRE", key, tonumber(ARGV[2 * i + 2]))
	end
end
return {denied, retry}
`)

// keyFor — журнал яруса; фигурные скобки держат ярусы одного ключа в одном слоте кластера.
func (r *Redis) keyFor(key string, t Tier) string {
	return r.prefix + "{" + key + "}:" + t.Name
}

func (r *Redis) Allow(ctx context.Context, key string) (Decision, error) {
	const op = "ratelimit.Redis.Allow"

	now := r.now().UnixMilli()

	keys := make([]string, 0, len(r.tiers))
	args := make([]any, 0, 2+2*len(r.tiers))
	args = append(args, now, strconv.FormatInt(now, 10)+"-"+ksuid.New().String())

	for _, t := range r.tiers {
		keys = append(keys, r.keyFor(key, t))
		args = append(args, t.Limit, t.Window.Milliseconds())
	}

	res, err := slidingLog.Run(ctx, r.rdb, keys, args...).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("%s: %w", op, err)
	}

	if len(res) != 2 {
		return Decision{}, fmt.Errorf("%s: unexpected script result %v", op, res)
	}

	if res[0] == 0 {
		return Decision{Allowed: true}, nil
	}

	idx := int(res[0]) - 1
	if idx < 0 || idx >= len(r.tiers) {
		return Decision{}, fmt.Errorf("%s: tier index %d out of range", op, res[0])
	}

	return Decision{
		Tier:       r.tiers[idx].Name,
		RetryAfter: time.Duration(res[1]) * time.Millisecond,
	}, nil
}

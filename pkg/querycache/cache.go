// querycache — кэш серверных ресурсов по ключам со сроками свежести,
// инвалидацией по префиксу и политикой повторов.
//
// Жизненный цикл записи:
//
//	absent → fetching → fresh → stale → fetching → fresh | evicted
//
// Основные гарантии:
//   - на один ключ одновременно выполняется не больше одного запроса:
//     конкурентные читатели присоединяются к уже идущему (singleflight);
//   - устаревшие данные отдаются сразу, а обновление идёт в фоне
//     (stale-while-revalidate), если не задан BlockOnStale;
//   - ошибки 4xx не повторяются, прочие — до Retry раз с экспоненциальной паузой;
//   - запись пишется только под своим ключом, поэтому результат брошенного
//     запроса не может попасть в чужую запись.
package querycache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/singleflight"
)

// ErrTypeMismatch — в записи лежит значение другого типа.
var ErrTypeMismatch = errors.New("querycache: cached value has unexpected type")

// Fetcher загружает значение для ключа.
type Fetcher func(ctx context.Context) (any, error)

// Config — политика запроса. Значения кэша по умолчанию
// переопределяются на уровне отдельного запроса через QueryOption.
type Config struct {
	// StaleTime — сколько значение считается свежим после загрузки.
	StaleTime time.Duration
	// GCTime — сколько неактивная запись живёт до удаления.
	GCTime time.Duration
	// Retry — число повторов после первой неудачи.
	Retry int
	// Backoff — фабрика политики пауз между повторами.
	Backoff func() backoff.BackOff
	// FetchTimeout — ограничение на один фоновый запрос (0 — без ограничения).
	FetchTimeout time.Duration
	// BlockOnStale — ждать обновления вместо отдачи устаревшего значения.
	BlockOnStale bool
}

// DefaultConfig: свежесть 1 минута, хранение 10 минут, 3 повтора.
func DefaultConfig() Config {
	return Config{
		StaleTime: time.Minute,
		GCTime:    10 * time.Minute,
		Retry:     3,
		Backoff:   DefaultBackoff,
	}
}

// QueryOption переопределяет Config для одного запроса.
type QueryOption func(*Config)

func WithStaleTime(d time.Duration) QueryOption { return func(c *Config) { c.StaleTime = d } }
func WithGCTime(d time.Duration) QueryOption    { return func(c *Config) { c.GCTime = d } }
func WithRetry(n int) QueryOption               { return func(c *Config) { c.Retry = n } }
func WithBlockOnStale() QueryOption             { return func(c *Config) { c.BlockOnStale = true } }

// Option настраивает Cache.
type Option func(*Cache)

// WithConfig задаёт политику по умолчанию.
func WithConfig(cfg Config) Option {
	return func(c *Cache) { c.cfg = cfg }
}

// WithClock подменяет источник времени (тесты).
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}

type entry struct {
	key         Key
	data        any
	hasData     bool
	err         error
	updatedAt   time.Time
	lastAccess  time.Time
	invalidated bool
	gen         uint64
	fetching    bool
	cfg         Config
	fetcher     Fetcher
	subs        map[uint64]func(Event)
}

// Cache — потокобезопасный кэш запросов.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	group   singleflight.Group
	cfg     Config
	now     func() time.Time
	log     *slog.Logger
	nextSub uint64
	bg      sync.WaitGroup
}

// New создаёт кэш с DefaultConfig, если не передан WithConfig.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		cfg:     DefaultConfig(),
		now:     time.Now,
		log:     slog.Default(),
	}

	for _, o := range opts {
		o(c)
	}

	return c
}

func (c *Cache) config(opts []QueryOption) Config {
	cfg := c.cfg
	for _, o := range opts {
		o(&cfg)
	}

	return cfg
}

// entryLocked возвращает запись по ключу, создавая пустую при отсутствии.
func (c *Cache) entryLocked(key Key) *entry {
	k := key.String()
	e, ok := c.entries[k]
	if !ok {
		e = &entry{key: K(key...), cfg: c.cfg, lastAccess: c.now()}
		c.entries[k] = e
	}

	return e
}

func (c *Cache) freshLocked(e *entry) bool {
	return e.hasData && !e.invalidated && c.now().Sub(e.updatedAt) < e.cfg.StaleTime
}

// Fetch возвращает значение по ключу:
//   - свежее — из кэша без запроса;
//   - устаревшее — из кэша с фоновым обновлением (или с ожиданием при BlockOnStale);
//   - отсутствующее — после загрузки, общей для всех конкурентных читателей.
//
// Отмена ctx отсоединяет вызывающего, но не прерывает общий запрос.
func (c *Cache) Fetch(ctx context.Context, key Key, fn Fetcher, opts ...QueryOption) (any, error) {
	cfg := c.config(opts)

	c.mu.Lock()
	e := c.entryLocked(key)
	e.lastAccess = c.now()
	e.cfg = cfg
	e.fetcher = fn

	if e.hasData {
		data := e.data
		if c.freshLocked(e) {
			c.mu.Unlock()
			return data, nil
		}

		if !cfg.BlockOnStale {
			c.mu.Unlock()
			c.refetchAsync(ctx, key, fn, cfg)
			return data, nil
		}
	}
	c.mu.Unlock()

	return c.fetchShared(ctx, key, fn, cfg)
}

// Refetch принудительно загружает значение и ждёт результата.
func (c *Cache) Refetch(ctx context.Context, key Key) (any, error) {
	c.mu.Lock()
	e, ok := c.entries[key.String()]
	if !ok || e.fetcher == nil {
		c.mu.Unlock()
		return nil, errors.New("querycache: no fetcher registered for key " + key.String())
	}

	e.invalidated = true
	e.gen++
	fn, cfg := e.fetcher, e.cfg
	c.mu.Unlock()

	return c.fetchShared(ctx, key, fn, cfg)
}

func (c *Cache) fetchShared(ctx context.Context, key Key, fn Fetcher, cfg Config) (any, error) {
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key.String(), func() (any, error) {
		return c.runFetch(detached, key, fn, cfg)
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) refetchAsync(ctx context.Context, key Key, fn Fetcher, cfg Config) {
	detached := context.WithoutCancel(ctx)

	c.bg.Add(1)
	go func() {
		defer c.bg.Done()

		if _, err := c.fetchShared(detached, key, fn, cfg); err != nil {
			c.log.Debug("query_refetch_failed",
				slog.String("key", key.String()),
				slog.String("err", err.Error()),
			)
		}
	}()
}

// runFetch выполняется строго в одном экземпляре на ключ.
func (c *Cache) runFetch(ctx context.Context, key Key, fn Fetcher, cfg Config) (any, error) {
	c.mu.Lock()
	e := c.entryLocked(key)

	// Читатель мог опоздать к только что завершившемуся запросу.
	if c.freshLocked(e) {
		data := e.data
		c.mu.Unlock()
		return data, nil
	}

	gen := e.gen
	e.fetching = true
	ev := c.eventLocked(e, EventFetching)
	c.mu.Unlock()
	c.notify(ev)

	fctx := ctx
	if cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, cfg.FetchTimeout)
		defer cancel()
	}

	val, err := runWithRetry(fctx, fn, cfg.Retry, cfg.Backoff)

	c.mu.Lock()
	cur, ok := c.entries[key.String()]
	if !ok || cur != e {
		// Запись удалили, пока шёл запрос: не воскрешаем её.
		c.mu.Unlock()
		return val, err
	}

	now := c.now()
	e.fetching = false
	e.lastAccess = now

	var typ EventType
	if err != nil {
		e.err = err
		typ = EventError
	} else {
		e.data = val
		e.hasData = true
		e.err = nil
		e.updatedAt = now
		// Инвалидация во время запроса: результат мог устареть ещё в полёте.
		e.invalidated = e.gen != gen
		typ = EventSuccess
	}

	ev = c.eventLocked(e, typ)
	c.mu.Unlock()
	c.notify(ev)

	return val, err
}

// Invalidate помечает устаревшими все записи, вложенные в prefix.
// Данные остаются доступными; активные (с подписчиками) записи
// перезапрашиваются в фоне. Возвращает число затронутых записей.
func (c *Cache) Invalidate(ctx context.Context, prefix Key) int {
	type refetch struct {
		key Key
		fn  Fetcher
		cfg Config
	}

	var (
		events []Event
		todo   []refetch
	)

	c.mu.Lock()
	for _, e := range c.entries {
		if !e.key.HasPrefix(prefix) {
			continue
		}

		e.invalidated = true
		e.gen++
		events = append(events, c.eventLocked(e, EventInvalidated))

		if len(e.subs) > 0 && e.fetcher != nil {
			todo = append(todo, refetch{key: e.key, fn: e.fetcher, cfg: e.cfg})
		}
	}
	c.mu.Unlock()

	for _, ev := range events {
		c.notify(ev)
	}

	for _, r := range todo {
		c.refetchAsync(ctx, r.key, r.fn, r.cfg)
	}

	return len(events)
}

// SetData кладёт значение как свежее (например, ответ мутации).
func (c *Cache) SetData(key Key, v any) {
	c.mu.Lock()
	e := c.entryLocked(key)
	now := c.now()
	e.data = v
	e.hasData = true
	e.err = nil
	e.updatedAt = now
	e.lastAccess = now
	e.invalidated = false
	ev := c.eventLocked(e, EventSuccess)
	c.mu.Unlock()

	c.notify(ev)
}

// Peek возвращает закэшированное значение без запроса.
func (c *Cache) Peek(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	if !ok || !e.hasData {
		return nil, false
	}

	return e.data, true
}

// State — снимок состояния записи.
func (c *Cache) State(key Key) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	if !ok {
		return State{Status: StatusAbsent}
	}

	return c.stateLocked(e)
}

// Remove удаляет записи, вложенные в prefix.
func (c *Cache) Remove(prefix Key) int {
	var events []Event

	c.mu.Lock()
	for k, e := range c.entries {
		if !e.key.HasPrefix(prefix) {
			continue
		}

		delete(c.entries, k)
		events = append(events, Event{Type: EventRemoved, Key: e.key, State: State{Status: StatusAbsent}, subs: e.subscribers()})
	}
	c.mu.Unlock()

	for _, ev := range events {
		c.notify(ev)
	}

	return len(events)
}

// GC удаляет неактивные записи: без подписчиков, без запроса в полёте
// и без обращений дольше их GCTime.
func (c *Cache) GC() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if len(e.subs) > 0 || e.fetching {
			continue
		}

		if now.Sub(e.lastAccess) >= e.cfg.GCTime {
			delete(c.entries, k)
			removed++
		}
	}

	return removed
}

// StartGC запускает периодическую чистку до отмены ctx.
func (c *Cache) StartGC(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}

	go func() {
		t := time.NewTicker(every)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if n := c.GC(); n > 0 {
					c.log.Debug("query_cache_gc", slog.Int("removed", n))
				}
			}
		}
	}()
}

// Len — число записей (включая пустые записи подписчиков).
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Wait ждёт завершения фоновых перезапросов.
func (c *Cache) Wait() {
	c.bg.Wait()
}

// Subscribe подписывает fn на изменения записи по ключу.
// Пока есть подписчики, запись не удаляется GC и перезапрашивается при инвалидации.
func (c *Cache) Subscribe(key Key, fn func(Event)) (unsubscribe func()) {
	c.mu.Lock()
	e := c.entryLocked(key)
	if e.subs == nil {
		e.subs = make(map[uint64]func(Event))
	}
	c.nextSub++
	id := c.nextSub
	e.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()

			delete(e.subs, id)
			e.lastAccess = c.now()
		})
	}
}

func (c *Cache) stateLocked(e *entry) State {
	st := State{
		Data:       e.data,
		HasData:    e.hasData,
		Err:        e.err,
		UpdatedAt:  e.updatedAt,
		IsFetching: e.fetching,
	}

	switch {
	case e.hasData && c.freshLocked(e):
		st.Status = StatusFresh
	case e.hasData:
		st.Status = StatusStale
	case e.fetching:
		st.Status = StatusFetching
	case e.err != nil:
		st.Status = StatusError
	default:
		st.Status = StatusAbsent
	}

	return st
}

func (c *Cache) eventLocked(e *entry, typ EventType) Event {
	return Event{Type: typ, Key: e.key, State: c.stateLocked(e), subs: e.subscribers()}
}

func (e *entry) subscribers() []func(Event) {
	if len(e.subs) == 0 {
		return nil
	}

	out := make([]func(Event), 0, len(e.subs))
	for _, fn := range e.subs {
		out = append(out, fn)
	}

	return out
}

// notify вызывается вне блокировки: подписчик может обращаться к кэшу.
func (c *Cache) notify(ev Event) {
	for _, fn := range ev.subs {
		fn(ev)
	}
}

package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Memory — ограничитель в памяти процесса. На каждый ключ и ярус хранится
// журнал отметок времени пропущенных запросов; запрос проходит, если в каждом
// ярусе за (now-Window, now] меньше Limit отметок.
type Memory struct {
	tiers []Tier
	now   func() time.Time

	mu   sync.Mutex
	logs map[string]*hitLog
}

type hitLog struct {
	// hits[i] — отметки яруса i по возрастанию.
	hits [][]time.Time
	seen time.Time
}

var _ Limiter = (*Memory)(nil)

func NewMemory(tiers []Tier) (*Memory, error) {
	if err := validate(tiers); err != nil {
		return nil, err
	}

	return &Memory{tiers: tiers, now: time.Now, logs: make(map[string]*hitLog)}, nil
}

// Allow записывает отметку во все ярусы сразу, только если пропускают все.
// Отказ квоту не расходует.
func (m *Memory) Allow(_ context.Context, key string) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	l := m.logFor(key, now)

	var d Decision
	for i, t := range m.tiers {
		l.hits[i] = prune(l.hits[i], now.Add(-t.Window))

		if len(l.hits[i]) < t.Limit {
			continue
		}

		if d.Tier == "" {
			d.Tier = t.Name
		}

		// Место освободится, когда из окна выйдет самая старая отметка.
		d.RetryAfter = max(d.RetryAfter, l.hits[i][0].Add(t.Window).Sub(now))
	}

	if d.Tier != "" {
		return d, nil
	}

	for i := range l.hits {
		l.hits[i] = append(l.hits[i], now)
	}

	return Decision{Allowed: true}, nil
}

// prune отбрасывает отметки не позже cutoff.
func prune(hits []time.Time, cutoff time.Time) []time.Time {
	n := 0
	for n < len(hits) && !hits[n].After(cutoff) {
		n++
	}

	if n == 0 {
		return hits
	}

	return append(hits[:0], hits[n:]...)
}

// logFor вызывается под m.mu.
func (m *Memory) logFor(key string, now time.Time) *hitLog {
	l, ok := m.logs[key]
	if !ok {
		l = &hitLog{hits: make([][]time.Time, len(m.tiers))}
		m.logs[key] = l
	}

	l.seen = now
	return l
}

// Sweep удаляет ключи, не встречавшиеся дольше idle, и возвращает их число.
// При idle не меньше самого длинного окна журналы таких ключей уже пусты.
func (m *Memory) Sweep(idle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-idle)
	removed := 0
	for k, l := range m.logs {
		if l.seen.Before(cutoff) {
			delete(m.logs, k)
			removed++
		}
	}

	return removed
}

// Len — число отслеживаемых ключей.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.logs)
}

// LongestWindow — самое длинное окно среди ярусов.
func (m *Memory) LongestWindow() time.Duration {
	var w time.Duration
	for _, t := range m.tiers {
		w = max(w, t.Window)
	}

	return w
}

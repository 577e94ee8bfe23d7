package querycache

import "time"

// Status — состояние записи.
type Status int

const (
	StatusAbsent Status = iota
	StatusFetching
	StatusFresh
	StatusStale
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusAbsent:
		return "absent"
	case StatusFetching:
		return "fetching"
	case StatusFresh:
		return "fresh"
	case StatusStale:
		return "stale"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// State — снимок записи для читателей и подписчиков.
type State struct {
	Status     Status
	Data       any
	HasData    bool
	Err        error
	UpdatedAt  time.Time
	IsFetching bool
}

// EventType — вид изменения записи.
type EventType int

const (
	EventFetching EventType = iota
	EventSuccess
	EventError
	EventInvalidated
	EventRemoved
)

// Event доставляется подписчикам ключа.
type Event struct {
	Type  EventType
	Key   Key
	State State

	subs []func(Event)
}

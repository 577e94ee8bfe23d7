// uistore — клиентские настройки интерфейса: флаги боковой панели,
// диалога поиска и мобильного меню.
//
// Между сессиями сохраняется только sidebarOpen: после каждой мутации
// сохраняемая часть явно пишется в localstore под ключом "ui-storage".
// Сбой хранилища не возвращается наружу: стор продолжает работать в памяти.
package uistore

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/pribylovaa/go-blog/pkg/localstore"
)

// StorageKey — имя записи в локальном хранилище.
const StorageKey = "ui-storage"

// State — текущие значения флагов.
type State struct {
	SidebarOpen    bool `json:"sidebarOpen"`
	SearchOpen     bool `json:"searchOpen"`
	MobileMenuOpen bool `json:"mobileMenuOpen"`
}

// DefaultState — значения при первом запуске.
func DefaultState() State {
	return State{SidebarOpen: true}
}

// persisted — формат сохранённой записи.
type persisted struct {
	State   persistedState `json:"state"`
	Version int            `json:"version"`
}

type persistedState struct {
	SidebarOpen bool `json:"sidebarOpen"`
}

// Store — потокобезопасный стор настроек.
type Store struct {
	mu       sync.Mutex
	state    State
	storage  localstore.Store
	log      *slog.Logger
	degraded bool
	nextSub  int
	subs     map[int]func(State)
}

// Option настраивает Store.
type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// New восстанавливает сохраняемую часть из storage (nil — только память);
// остальные флаги получают значения по умолчанию.
func New(storage localstore.Store, opts ...Option) *Store {
	s := &Store{
		state:   DefaultState(),
		storage: storage,
		log:     slog.Default(),
		subs:    make(map[int]func(State)),
	}

	for _, o := range opts {
		o(s)
	}

	s.restore()
	return s
}

func (s *Store) restore() {
	if s.storage == nil {
		return
	}

	raw, ok, err := s.storage.Get(StorageKey)
	if err != nil {
		s.degrade("ui_store_restore_failed", err)
		return
	}

	if !ok {
		return
	}

	var p persisted
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		s.log.Debug("ui_store_restore_corrupted", slog.String("err", err.Error()))
		return
	}

	s.state.SidebarOpen = p.State.SidebarOpen
}

// State — снимок текущих значений.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Store) ToggleSidebar() {
	s.update(func(st *State) { st.SidebarOpen = !st.SidebarOpen })
}

func (s *Store) SetSidebarOpen(open bool) {
	s.update(func(st *State) { st.SidebarOpen = open })
}

func (s *Store) OpenSearch() {
	s.update(func(st *State) { st.SearchOpen = true })
}

func (s *Store) CloseSearch() {
	s.update(func(st *State) { st.SearchOpen = false })
}

func (s *Store) ToggleMobileMenu() {
	s.update(func(st *State) { st.MobileMenuOpen = !st.MobileMenuOpen })
}

func (s *Store) CloseMobileMenu() {
	s.update(func(st *State) { st.MobileMenuOpen = false })
}

// Subscribe вызывает fn после каждой мутации с новым состоянием.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSub++
	id := s.nextSub
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) update(mutate func(*State)) {
	s.mu.Lock()
	mutate(&s.state)
	st := s.state
	s.save(st)

	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(st)
	}
}

// save пишет сохраняемую часть; вызывается под s.mu.
func (s *Store) save(st State) {
	if s.storage == nil {
		return
	}

	b, err := json.Marshal(persisted{State: persistedState{SidebarOpen: st.SidebarOpen}})
	if err != nil {
		return
	}

	if err := s.storage.Set(StorageKey, string(b)); err != nil {
		s.degrade("ui_store_persist_failed", err)
		return
	}

	s.degraded = false
}

// degrade фиксирует переход в режим «только память»; пишем в лог один раз.
func (s *Store) degrade(msg string, err error) {
	if s.degraded {
		return
	}

	s.degraded = true
	s.log.Debug(msg, slog.String("err", err.Error()))
}

// Persistent сообщает, удаётся ли сейчас сохранять настройки.
func (s *Store) Persistent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.storage != nil && !s.degraded
}

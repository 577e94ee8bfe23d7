// localstore — долговременное клиентское хранилище ключ/значение
// (аналог localStorage): строковые значения по строковым ключам.
//
// Реализации:
//   - File — JSON-файл на диске, запись через временный файл + rename;
//   - Memory — в памяти процесса (тесты, одноразовые сессии).
package localstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// ErrUnavailable — хранилище недоступно (нет прав, нет места и т.п.).
var ErrUnavailable = errors.New("local storage unavailable")

// Store — контракт хранилища.
type Store interface {
	// Get возвращает значение и признак его наличия.
	Get(key string) (string, bool, error)
	// Set сохраняет значение.
	Set(key, value string) error
	// Delete удаляет ключ; отсутствие ключа ошибкой не считается.
	Delete(key string) error
}

// File хранит все ключи в одном JSON-объекте.
type File struct {
	mu   sync.Mutex
	path string
}

// NewFile создаёт хранилище поверх файла path. Файл может не существовать.
func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Get(key string) (string, bool, error) {
	const op = "localstore.File.Get"

	f.mu.Lock()
	defer f.mu.Unlock()

	m, err := f.load()
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}

	v, ok := m[key]
	return v, ok, nil
}

func (f *File) Set(key, value string) error {
	const op = "localstore.File.Set"

	f.mu.Lock()
	defer f.mu.Unlock()

	m, err := f.load()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	m[key] = value
	if err := f.save(m); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (f *File) Delete(key string) error {
	const op = "localstore.File.Delete"

	f.mu.Lock()
	defer f.mu.Unlock()

	m, err := f.load()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, ok := m[key]; !ok {
		return nil
	}

	delete(m, key)
	if err := f.save(m); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (f *File) load() (map[string]string, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}

		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	m := map[string]string{}
	if len(b) == 0 {
		return m, nil
	}

	// Повреждённый файл не должен блокировать клиента: начинаем с пустого состояния.
	if err := json.Unmarshal(b, &m); err != nil {
		return map[string]string{}, nil
	}

	return m, nil
}

func (f *File) save(m map[string]string) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	tmp, err := os.CreateTemp(dir, ".localstore-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return nil
}

// Memory — потокобезопасное хранилище в памяти.
type Memory struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewMemory() *Memory {
	return &Memory{m: map[string]string{}}
}

func (s *Memory) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.m[key]
	return v, ok, nil
}

func (s *Memory) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.m[key] = value
	return nil
}

func (s *Memory) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.m, key)
	return nil
}

var (
	_ Store = (*File)(nil)
	_ Store = (*Memory)(nil)
)

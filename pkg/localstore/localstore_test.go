package localstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFile_SetGetDelete(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "store.json")
	s := NewFile(path)

	_, ok, err := s.Get("k")
	require.NoError(t, err)
	require.False(t, ok, "отсутствующий файл — пустое хранилище")

	require.NoError(t, s.Set("k", "v1"))
	require.NoError(t, s.Set("other", "x"))

	v, ok, err := s.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v1", v)

	// Новый экземпляр видит те же данные.
	v, ok, err = NewFile(path).Get("other")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "x", v)

	require.NoError(t, s.Delete("k"))
	require.NoError(t, s.Delete("missing"))

	_, ok, err = s.Get("k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFile_CorruptedFileStartsEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "store.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	s := NewFile(path)
	_, ok, err := s.Get("k")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set("k", "v"))
	v, ok, err := s.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", v)
}

func TestFile_UnreadablePathIsUnavailable(t *testing.T) {
	t.Parallel()

	// Путь указывает на каталог: чтение как файла падает.
	dir := t.TempDir()
	s := NewFile(dir)

	_, _, err := s.Get("k")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestCredentials_Token(t *testing.T) {
	t.Parallel()

	mem := NewMemory()
	c := NewCredentials(mem)

	_, ok := c.Token(context.Background())
	require.False(t, ok, "нет токена — не ошибка, просто анонимный запрос")

	require.NoError(t, c.SetToken("abc"))
	tok, ok := c.Token(context.Background())
	require.True(t, ok)
	require.Equal(t, "abc", tok)

	v, _, _ := mem.Get(AccessTokenKey)
	require.Equal(t, "abc", v)

	require.NoError(t, c.SetToken("   "))
	_, ok = c.Token(context.Background())
	require.False(t, ok, "пустой токен игнорируется")

	require.NoError(t, c.Clear())
	_, ok = c.Token(context.Background())
	require.False(t, ok)
}

func TestCredentials_StoreErrorMeansAnonymous(t *testing.T) {
	t.Parallel()

	c := NewCredentials(NewFile(t.TempDir()))
	_, ok := c.Token(context.Background())
	require.False(t, ok)
}

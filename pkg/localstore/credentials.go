package localstore

import (
	"context"
	"fmt"
	"strings"
)

// AccessTokenKey — фиксированное имя ключа с bearer-токеном.
const AccessTokenKey = "access_token"

// Credentials читает и пишет bearer-токен в Store.
// Удовлетворяет apiclient.CredentialStore.
type Credentials struct {
	store Store
}

func NewCredentials(s Store) *Credentials {
	return &Credentials{store: s}
}

// Token возвращает токен, если он есть. Ошибка хранилища трактуется как
// отсутствие токена: запрос уйдёт без авторизации.
func (c *Credentials) Token(_ context.Context) (string, bool) {
	v, ok, err := c.store.Get(AccessTokenKey)
	if err != nil || !ok {
		return "", false
	}

	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}

	return v, true
}

// SetToken сохраняет токен (например, после логина).
func (c *Credentials) SetToken(token string) error {
	const op = "localstore.Credentials.SetToken"

	if err := c.store.Set(AccessTokenKey, token); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Clear удаляет токен (logout).
func (c *Credentials) Clear() error {
	const op = "localstore.Credentials.Clear"

	if err := c.store.Delete(AccessTokenKey); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

package apiclient

import (
	"errors"
	"fmt"
)

// Error — типизированная ошибка вызова API.
// StatusCode == 0 означает, что ответ от сервера не получен.
type Error struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string]any
	Path       string
	RequestID  string
	// Err — исходная причина (сетевой сбой, отмена контекста).
	Err error
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("api: %s: %s", e.Code, e.Message)
	}

	return fmt.Sprintf("api: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus используется кэшем запросов для решения о повторе.
func (e *Error) HTTPStatus() int { return e.StatusCode }

// AsError достаёт *Error из цепочки ошибок.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}

	return nil, false
}

// HasCode сообщает, что err — *Error с указанным кодом.
func HasCode(err error, code string) bool {
	e, ok := AsError(err)
	return ok && e.Code == code
}

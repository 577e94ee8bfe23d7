package querycache

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// StatusCoder — ошибка, знающая HTTP-статус ответа (см. apiclient.Error).
type StatusCoder interface {
	HTTPStatus() int
}

// Retryable сообщает, имеет ли смысл повторять запрос.
// Ошибки клиента (4xx) и отмена контекста не повторяются.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		s := sc.HTTPStatus()
		if s >= 400 && s < 500 {
			return false
		}
	}

	return true
}

// DefaultBackoff — 1s, 2s, 4s ... с потолком 30s, без джиттера.
func DefaultBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.Multiplier = 2
	b.MaxInterval = 30 * time.Second
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	return b
}

// runWithRetry вызывает fn и повторяет до retries раз по политике newBackoff.
func runWithRetry(ctx context.Context, fn Fetcher, retries int, newBackoff func() backoff.BackOff) (any, error) {
	if retries <= 0 {
		return fn(ctx)
	}

	if newBackoff == nil {
		newBackoff = DefaultBackoff
	}

	var val any
	op := func() error {
		v, err := fn(ctx)
		if err != nil {
			if !Retryable(err) {
				return backoff.Permanent(err)
			}

			return err
		}

		val = v
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(newBackoff(), uint64(retries)), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}

	return val, nil
}

package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy явная политика ретраев для вызовов внешних сервисов:
// количество попыток и кривая бэкоффа задаются один раз на вызывающей стороне
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	Multiplier     float64
}

// DefaultPolicy 3 попытки с бэкоффом 200ms -> 400ms
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: 200 * time.Millisecond,
		Multiplier:     2,
	}
}

// Retryable классификатор: true = транзиентная ошибка, можно повторить.
// Ошибки валидации классификатор должен помечать как неповторяемые.
type Retryable func(error) bool

// Always считает любую ошибку транзиентной
func Always(err error) bool {
	return err != nil
}

// Do выполняет fn с ретраями по политике. Возвращает nil при первом успехе,
// последнюю ошибку после исчерпания попыток, ошибку контекста при отмене.
func (p Policy) Do(ctx context.Context, fn func(context.Context) error, retryable Retryable) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	backoff := p.InitialBackoff
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if !retryable(lastErr) {
			return lastErr
		}

		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = time.Duration(float64(backoff) * multiplier)
	}

	return fmt.Errorf("all %d attempts failed: %w", attempts, lastErr)
}

// Package startup — подключение к внешним зависимостям при старте процесса (Postgres, Redis),
// миграции и встроенный Postgres для режима -dev.
package startup

import (
	"context"
	"fmt"
	"time"

	"github.com/groupchat/internal/logger"
)

const (
	initialBackoff = 2 * time.Second
	maxBackoff     = 30 * time.Second
)

// retry вызывает attempt с экспоненциальной паузой, пока тот не вернёт nil,
// не истечёт maxWait или не отменится ctx.
func retry(ctx context.Context, what string, maxWait time.Duration, attempt func(context.Context) error) error {
	deadline := time.Now().Add(maxWait)
	backoff := initialBackoff
	for {
		err := attempt(ctx)
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%s: gave up after %v: %w", what, maxWait, err)
		}
		logger.Warnf("%s failed, retry in %v: %v", what, backoff, err)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", what, ctx.Err())
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

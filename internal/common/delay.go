package common

import (
	"context"
	"time"
)

// Sleep ждёт указанное время или отмену контекста.
// При отмене возвращает ошибку контекста, чтобы вызывающий код мог прервать работу.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SleepFunc — сигнатура ожидания, подменяемая в тестах.
type SleepFunc func(ctx context.Context, d time.Duration) error

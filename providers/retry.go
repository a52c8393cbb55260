package providers

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy führt eine Operation mit begrenzten Wiederholungen und linear
// wachsendem Backoff aus (attempt × BaseDelay). Beide Extractor-Implementierungen
// teilen sich dieselbe Policy, statt die Logik inline zu duplizieren.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Logger      *zap.Logger
}

// Execute ruft op auf und wiederholt bei transienten Fehlern bis zu MaxAttempts
// Versuche insgesamt. Der letzte Fehler wird an den Aufrufer durchgereicht,
// nicht verschluckt. Nicht-transiente Fehler werden sofort zurückgegeben.
func (p *RetryPolicy) Execute(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		delay := time.Duration(attempt) * p.BaseDelay
		p.Logger.Warn("Abruf fehlgeschlagen, wiederhole",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// PagePause wartet die feste Inter-Page-Verzögerung zwischen zwei Seitenabrufen
// ab.
func PagePause(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

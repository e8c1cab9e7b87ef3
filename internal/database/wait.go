package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Pinger is the part of *sql.DB the wait loop needs.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// ErrWaitTimeout is returned when the database never answered in time.
var ErrWaitTimeout = errors.New("database unavailable")

// Waiter polls a database until it answers. Sleep is injectable so tests
// can count attempts without real delays.
type Waiter struct {
	Interval time.Duration
	Timeout  time.Duration
	Logger   *slog.Logger
	Sleep    func(context.Context, time.Duration) error
	Now      func() time.Time
}

// WaitForDB pings db every interval until it succeeds, the timeout
// elapses or ctx is cancelled.
func WaitForDB(ctx context.Context, db Pinger, interval, timeout time.Duration, logger *slog.Logger) error {
	w := Waiter{Interval: interval, Timeout: timeout, Logger: logger}
	return w.Wait(ctx, db)
}

// Wait runs the polling loop and returns nil once a ping succeeds.
func (w Waiter) Wait(ctx context.Context, db Pinger) error {
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sleep := w.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	now := w.Now
	if now == nil {
		now = time.Now
	}
	interval := w.Interval
	if interval <= 0 {
		interval = time.Second
	}

	logger.Info("waiting for database")
	deadline := now().Add(w.Timeout)
	for attempt := 1; ; attempt++ {
		pctx, cancel := context.WithTimeout(ctx, interval)
		err := db.PingContext(pctx)
		cancel()
		if err == nil {
			logger.Info("database available", "attempts", attempt)
			return nil
		}
		logger.Warn("db unavailable, waiting", "attempt", attempt, "error", err)
		if w.Timeout > 0 && !now().Before(deadline) {
			return fmt.Errorf("%w after %d attempts: %v", ErrWaitTimeout, attempt, err)
		}
		if err := sleep(ctx, interval); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

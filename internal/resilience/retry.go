package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

// RetryConfig holds configuration for retries with exponential backoff.
type RetryConfig struct {
	Name        string
	MaxAttempts int           // total attempts, including the first
	BaseDelay   time.Duration // delay after the first failure
	MaxDelay    time.Duration
	Multiplier  float64
	JitterRange float64 // 0..1, fraction of the delay randomized

	// Retryable decides whether err is worth another attempt.
	// Default: everything except context errors and ErrCircuitOpen.
	Retryable func(err error) bool
}

// DefaultRetryConfig returns a conservative policy for calls to the
// marketplace API.
func DefaultRetryConfig(name string) RetryConfig {
	return RetryConfig{
		Name:        name,
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
		JitterRange: 0.1,
	}
}

// Retryer runs a function until it succeeds, fails with a non-retryable
// error, or exhausts MaxAttempts.
type Retryer struct {
	cfg    RetryConfig
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetryer creates a retryer, filling defaults.
func NewRetryer(cfg RetryConfig, logger *slog.Logger) *Retryer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.Multiplier <= 1.0 {
		cfg.Multiplier = 2.0
	}
	if cfg.JitterRange < 0 || cfg.JitterRange > 1.0 {
		cfg.JitterRange = 0.1
	}
	if cfg.Retryable == nil {
		cfg.Retryable = defaultRetryable
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retryer{
		cfg:    cfg,
		logger: logger.With(slog.String("retryer", cfg.Name)),
		sleep:  sleepCtx,
	}
}

func defaultRetryable(err error) bool {
	return !errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded) &&
		!errors.Is(err, ErrCircuitOpen)
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

// Execute runs fn with retries.
func (r *Retryer) Execute(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				r.logger.Info("operation succeeded after retry", slog.Int("attempt", attempt))
			}
			return nil
		}
		lastErr = err

		if !r.cfg.Retryable(err) {
			return err
		}
		if attempt == r.cfg.MaxAttempts {
			break
		}

		delay := r.delay(attempt)
		r.logger.Warn("attempt failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)
		if err := r.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return fmt.Errorf("max retry attempts (%d) exceeded: %w", r.cfg.MaxAttempts, lastErr)
}

// delay is BaseDelay × Multiplier^(attempt-1), capped at MaxDelay, ± jitter.
func (r *Retryer) delay(attempt int) time.Duration {
	d := float64(r.cfg.BaseDelay) * math.Pow(r.cfg.Multiplier, float64(attempt-1))
	if d > float64(r.cfg.MaxDelay) {
		d = float64(r.cfg.MaxDelay)
	}
	if r.cfg.JitterRange > 0 {
		d += (rand.Float64()*2 - 1) * r.cfg.JitterRange * d
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

package ratelimiter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter spaces publish attempts at least interval apart. A zero
// interval disables pacing.
type RateLimiter struct {
	limiter  *rate.Limiter
	interval time.Duration
	log      *slog.Logger
}

func New(interval time.Duration, log *slog.Logger) *RateLimiter {
	rl := &RateLimiter{
		interval: interval,
		log:      log,
	}

	if interval > 0 {
		rl.limiter = rate.NewLimiter(rate.Every(interval), burst)
	}

	return rl
}

func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl.limiter == nil {
		return nil
	}

	if rl.limiter.Tokens() < 1 {
		rl.log.DebugContext(ctx, "Pacing publish",
			"interval", rl.interval)
	}

	if err := rl.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for publish slot: %w", err)
	}

	return nil
}

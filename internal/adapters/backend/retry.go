package backend

import (
	"context"
	"math/rand"
	"time"
)

// RetryConfig configures retry behavior for backend requests
type RetryConfig struct {
	// MaxAttempts is the number of additional attempts after the first one
	MaxAttempts int           `json:"max_attempts"`
	BaseDelay   time.Duration `json:"base_delay"`
	MaxDelay    time.Duration `json:"max_delay"`
	MaxJitter   time.Duration `json:"max_jitter"`
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		MaxJitter:   time.Second,
	}
}

// withDefaults fills zero delays; MaxAttempts is kept as given
func (c RetryConfig) withDefaults() RetryConfig {
	d := DefaultRetryConfig()
	if c.MaxAttempts < 0 {
		c.MaxAttempts = 0
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = d.BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.MaxJitter < 0 {
		c.MaxJitter = 0
	}
	return c
}

// Delay returns the wait before retry number attempt (1-based):
// min(BaseDelay*2^(attempt-1) + jitter, MaxDelay).
func (c RetryConfig) Delay(attempt int, jitter func(max time.Duration) time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := c.BaseDelay
	for i := 1; i < attempt && delay < c.MaxDelay; i++ {
		delay *= 2
	}

	if c.MaxJitter > 0 && jitter != nil {
		delay += jitter(c.MaxJitter)
	}

	if delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	return delay
}

// randomJitter returns a uniform duration in [0, max]
func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max) + 1))
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
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

package exec

import (
	"math"
	"time"
)

// BackoffConfig configures retry delays for sandbox infrastructure errors.
type BackoffConfig struct {
	InitialDelay  time.Duration
	BackoffFactor float64
	MaxDelay      time.Duration
	MaxRetries    int
}

// defaultBackoff yields the 200ms, 1s schedule used before surfacing
// INTERNAL_ERROR.
func defaultBackoff() BackoffConfig {
	return BackoffConfig{
		InitialDelay:  200 * time.Millisecond,
		BackoffFactor: 5.0,
		MaxDelay:      time.Second,
		MaxRetries:    2,
	}
}

// DelayForAttempt returns the delay before retry attempt n (1-indexed):
// initial * factor^(n-1), capped at MaxDelay.
func DelayForAttempt(attempt int, cfg BackoffConfig) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if cfg.InitialDelay <= 0 {
		return 0
	}
	d := float64(cfg.InitialDelay) * math.Pow(cfg.BackoffFactor, float64(attempt-1))
	if cfg.MaxDelay > 0 {
		d = math.Min(d, float64(cfg.MaxDelay))
	}
	return time.Duration(d)
}

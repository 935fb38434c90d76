// Package timeouts provides the context deadlines used by handlers and jobs.
//
// Values start at Defaults and are replaced once at startup from
// configuration via Configure.
//
//   - Ping: health checks
//   - Short: single-document reads and writes
//   - Medium: list queries and membership mutations
//   - Long: cascade deletes and background sweeps
package timeouts

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Config holds timeout values. Zero values keep the current setting.
type Config struct {
	Ping   time.Duration
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

// Defaults are the deadlines in effect until Configure is called.
var Defaults = Config{
	Ping:   2 * time.Second,
	Short:  5 * time.Second,
	Medium: 10 * time.Second,
	Long:   30 * time.Second,
}

var current atomic.Pointer[Config]

func init() { Reset() }

func load() Config { return *current.Load() }

// Ping returns the timeout for connectivity checks.
func Ping() time.Duration { return load().Ping }

// Short returns the timeout for single-document operations.
func Short() time.Duration { return load().Short }

// Medium returns the timeout for lists and membership mutations, which may
// reload and retry several times.
func Medium() time.Duration { return load().Medium }

// Long returns the timeout for operations touching several collections.
func Long() time.Duration { return load().Long }

// Configure replaces the positive values in cfg.
func Configure(cfg Config) {
	next := load()
	pick := func(dst *time.Duration, v time.Duration) {
		if v > 0 {
			*dst = v
		}
	}
	pick(&next.Ping, cfg.Ping)
	pick(&next.Short, cfg.Short)
	pick(&next.Medium, cfg.Medium)
	pick(&next.Long, cfg.Long)
	current.Store(&next)
}

// Reset restores Defaults. Used by tests.
func Reset() {
	d := Defaults
	current.Store(&d)
}

// Current returns the active configuration.
func Current() Config { return load() }

// WithTimeout wraps context.WithTimeout. The returned cancel func logs a
// warning naming operation when the deadline was what ended the context.
//
//	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "delete project")
//	defer cancel()
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if log != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout))
		}
		cancel()
	}
}

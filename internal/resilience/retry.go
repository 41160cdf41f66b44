// Package resilience retries operations that fail on transient conditions,
// such as a database that is still starting or a SQLite file held by
// another writer.
package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// Backoff controls retry attempts with exponential backoff and jitter.
type Backoff struct {
	// Attempts is the total number of tries, the first included.
	Attempts int
	// Initial is the delay before the first retry.
	Initial time.Duration
	// Max caps a single delay.
	Max time.Duration
	// Jitter is the ± fraction applied to each delay.
	Jitter float64
}

// DefaultBackoff suits store startup: a handful of tries over a few seconds.
func DefaultBackoff() Backoff {
	return Backoff{Attempts: 3, Initial: 250 * time.Millisecond, Max: 5 * time.Second, Jitter: 0.2}
}

func (b Backoff) withDefaults() Backoff {
	d := DefaultBackoff()
	if b.Attempts <= 0 {
		b.Attempts = d.Attempts
	}
	if b.Initial <= 0 {
		b.Initial = d.Initial
	}
	if b.Max <= 0 {
		b.Max = d.Max
	}
	if b.Jitter < 0 {
		b.Jitter = 0
	}
	return b
}

// Delay is the wait before retry number attempt (0-based).
func (b Backoff) Delay(attempt int) time.Duration {
	b = b.withDefaults()
	d := float64(b.Initial) * math.Pow(2, float64(attempt))
	if d > float64(b.Max) {
		d = float64(b.Max)
	}
	if b.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * b.Jitter
	}
	return time.Duration(max(d, 0))
}

// Retry runs fn until it succeeds, fails with a non-transient error, the
// attempts run out or ctx is done. The last error is returned unchanged.
func Retry(ctx context.Context, b Backoff, op string, fn func(context.Context) error) error {
	b = b.withDefaults()
	var err error
	for attempt := 0; attempt < b.Attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil || !IsTransient(err) || attempt == b.Attempts-1 {
			return err
		}

		zap.L().Warn("resilience: retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		timer := time.NewTimer(b.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}

// RetryValue is Retry for operations that produce a value.
func RetryValue[T any](ctx context.Context, b Backoff, op string, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := Retry(ctx, b, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err == nil {
			out = v
		}
		return err
	})
	return out, err
}

// transientPatterns match driver messages that carry no typed error.
var transientPatterns = []string{
	"database is locked",
	"sqlite_busy",
	"the database system is starting up",
	"the database system is shutting down",
	"too many connections",
	"connection reset by peer",
	"connection refused",
	"broken pipe",
	"i/o timeout",
}

// IsTransient reports whether err is worth retrying: a failed connection
// attempt, a network timeout, a refused or reset connection, or a busy
// database file.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

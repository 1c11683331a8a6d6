// Package attempt throttles SMS verification-code sends using counters kept in
// the persisted key/value store, so the limit survives app restarts.
package attempt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/hana/fieldmate/internal/setting/entity"
)

// Persisted keys.
const (
	KeyCount       = "message_attempts"
	KeyLastAttempt = "last_message_attempt_time"
)

const (
	DefaultWindow      = time.Hour
	DefaultMaxAttempts = 3
)

// ErrTooManyAttempts is the rate-limited outcome surfaced to callers that
// want an error value rather than a Decision.
var ErrTooManyAttempts = errors.New("too many verification attempts, try again in an hour")

// Decision is the outcome of a gate check.
type Decision int

const (
	Allowed Decision = iota
	Blocked
)

func (d Decision) String() string {
	if d == Blocked {
		return "blocked"
	}
	return "allowed"
}

// Store is the slice of the settings service the limiter needs.
type Store interface {
	Int64(ctx context.Context, key string) (int64, error)
	SetInt64(ctx context.Context, category, key string, v int64) error
}

// Limiter gates verification-code sends.
type Limiter struct {
	store  Store
	clock  clockwork.Clock
	logger *zap.SugaredLogger

	Window      time.Duration
	MaxAttempts int64

	mu sync.Mutex
}

// NewLimiter builds a limiter with the default one hour window and three attempts.
func NewLimiter(store Store, clock clockwork.Clock, logger *zap.SugaredLogger) *Limiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Limiter{
		store:       store,
		clock:       clock,
		logger:      logger,
		Window:      DefaultWindow,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// Gate records a send attempt at the current time.
func (l *Limiter) Gate(ctx context.Context) (Decision, error) {
	return l.GateAt(ctx, l.clock.Now())
}

// GateAt records a send attempt at now and decides whether it may go out.
//
// The counter is bumped before the threshold check, so the attempt after
// MaxAttempts is the first one blocked. The window start is written when the
// window resets and again on the MaxAttempts-th allowed attempt, never on
// blocked ones.
func (l *Limiter) GateAt(ctx context.Context, now time.Time) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	nowMillis := now.UnixMilli()
	last, err := l.store.Int64(ctx, KeyLastAttempt)
	if err != nil {
		return Blocked, fmt.Errorf("read last attempt: %w", err)
	}
	if nowMillis-last > l.Window.Milliseconds() {
		if err := l.store.SetInt64(ctx, entity.CategoryAttempt, KeyCount, 0); err != nil {
			return Blocked, fmt.Errorf("reset attempts: %w", err)
		}
		if err := l.store.SetInt64(ctx, entity.CategoryAttempt, KeyLastAttempt, nowMillis); err != nil {
			return Blocked, fmt.Errorf("reset last attempt: %w", err)
		}
	}

	count, err := l.store.Int64(ctx, KeyCount)
	if err != nil {
		return Blocked, fmt.Errorf("read attempts: %w", err)
	}
	count++
	if err := l.store.SetInt64(ctx, entity.CategoryAttempt, KeyCount, count); err != nil {
		return Blocked, fmt.Errorf("write attempts: %w", err)
	}

	if count > l.MaxAttempts {
		l.logger.Debugw("verification send blocked", "attempts", count)
		return Blocked, nil
	}
	if count == l.MaxAttempts {
		if err := l.store.SetInt64(ctx, entity.CategoryAttempt, KeyLastAttempt, nowMillis); err != nil {
			return Blocked, fmt.Errorf("write last attempt: %w", err)
		}
	}
	l.logger.Debugw("verification send allowed", "attempts", count)
	return Allowed, nil
}

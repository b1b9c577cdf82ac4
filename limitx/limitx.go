// Package limitx implements fixed-window rate limiting keyed by a scope
// (connection, optionally suffixed with an instance) and an operation class.
package limitx

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/Abraxas-365/wagate/storex"
)

// OperationClass selects which quota a call consumes
type OperationClass string

const (
	ClassMedia    OperationClass = "media"
	ClassMessages OperationClass = "messages"
	ClassDefault  OperationClass = "default"
)

var mediaMarkers = []string{"image", "video", "audio", "document", "sticker", "media"}
var messageMarkers = []string{"send", "message"}

// ClassifyEndpoint maps an endpoint path to its operation class.
// Media markers win over message markers, so /message/sendMedia/x is media.
func ClassifyEndpoint(path string) OperationClass {
	p := strings.ToLower(path)
	for _, m := range mediaMarkers {
		if strings.Contains(p, m) {
			return ClassMedia
		}
	}
	for _, m := range messageMarkers {
		if strings.Contains(p, m) {
			return ClassMessages
		}
	}
	return ClassDefault
}

// Scope builds the scope string of a key
func Scope(connection, instance string) string {
	if instance == "" {
		return connection
	}
	return connection + ":" + instance
}

// Key identifies one bucket
type Key struct {
	Scope string
	Class OperationClass
}

func (k Key) String() string {
	return k.Scope + "|" + string(k.Class)
}

// Policy decides what a denied admission means for the caller
type Policy string

const (
	// PolicySkip makes limiting advisory; the call proceeds
	PolicySkip Policy = "skip"
	// PolicyThrow fails the call before any network I/O
	PolicyThrow Policy = "throw"
)

// ParsePolicy reads a policy name; anything but "skip" is throw
func ParsePolicy(s string) Policy {
	if strings.EqualFold(strings.TrimSpace(s), string(PolicySkip)) {
		return PolicySkip
	}
	return PolicyThrow
}

// Limit is the budget of one window. MaxAttempts <= 0 means unlimited.
type Limit struct {
	MaxAttempts int           `json:"max_attempts"`
	Decay       time.Duration `json:"decay"`
}

// Unlimited reports whether the limit disables counting
func (l Limit) Unlimited() bool {
	return l.MaxAttempts <= 0 || l.Decay <= 0
}

// Config holds the limits of one connection
type Config struct {
	Enabled bool
	Policy  Policy
	Default Limit
	Classes map[OperationClass]Limit
}

// For returns the limit of a class, falling back to the default limit
func (c Config) For(class OperationClass) Limit {
	if l, ok := c.Classes[class]; ok {
		return l
	}
	return c.Default
}

// Bucket is the stored state of one key
type Bucket struct {
	MaxAttempts int           `json:"max_attempts" bson:"max_attempts"`
	Decay       time.Duration `json:"decay" bson:"decay"`
	Consumed    int           `json:"consumed" bson:"consumed"`
	WindowStart time.Time     `json:"window_start" bson:"window_start"`
}

func (b Bucket) expired(now time.Time) bool {
	return now.Sub(b.WindowStart) >= b.Decay
}

func (b Bucket) retryAfter(now time.Time) time.Duration {
	d := b.Decay - now.Sub(b.WindowStart)
	if d < 0 {
		return 0
	}
	return d
}

// Decision is the outcome of an admission check
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds
func (d Decision) RetryAfterSeconds() int {
	return int(math.Ceil(d.RetryAfter.Seconds()))
}

// computeAttempts bounds retries of a bucket update that lost a race or hit
// an unreachable store
const computeAttempts = 3

// Limiter counts admissions in fixed windows. Bucket updates go through
// storex.Store.Compute, so the check-and-increment is one atomic step.
type Limiter struct {
	store storex.Store[Bucket]
	now   func() time.Time
}

// Option configures a Limiter
type Option func(*Limiter)

// WithClock replaces the time source
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a limiter over a bucket store
func New(store storex.Store[Bucket], opts ...Option) *Limiter {
	l := &Limiter{store: store, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Admit consumes one attempt from the bucket of key if the budget allows it
func (l *Limiter) Admit(ctx context.Context, key Key, limit Limit) (Decision, error) {
	if limit.Unlimited() {
		return Decision{Allowed: true, Remaining: -1}, nil
	}

	now := l.now()
	var decision Decision

	update := func(b Bucket, loaded bool) (Bucket, storex.ComputeOp) {
		b.Decay = limit.Decay
		if !loaded || b.expired(now) {
			b = Bucket{WindowStart: now}
		}
		b.MaxAttempts = limit.MaxAttempts
		b.Decay = limit.Decay

		if b.Consumed >= b.MaxAttempts {
			decision = Decision{Allowed: false, Remaining: 0, RetryAfter: b.retryAfter(now)}
			return b, storex.CancelOp
		}

		b.Consumed++
		decision = Decision{Allowed: true, Remaining: b.MaxAttempts - b.Consumed}
		return b, storex.UpdateOp
	}

	var err error
	for attempt := 1; attempt <= computeAttempts; attempt++ {
		if _, _, err = l.store.Compute(ctx, key.String(), update); err == nil || !storex.IsTransient(err) || ctx.Err() != nil {
			break
		}
	}
	if err != nil {
		return Decision{}, limitErrors.New(ErrStoreUnavailable).
			WithDetail("key", key.String()).
			WithCause(err)
	}
	return decision, nil
}

// Remaining reports the budget left in the current window without consuming it
func (l *Limiter) Remaining(ctx context.Context, key Key, limit Limit) (int, error) {
	if limit.Unlimited() {
		return -1, nil
	}

	b, ok, err := l.store.Get(ctx, key.String())
	if err != nil {
		return 0, limitErrors.New(ErrStoreUnavailable).
			WithDetail("key", key.String()).
			WithCause(err)
	}
	if !ok {
		return limit.MaxAttempts, nil
	}

	b.Decay = limit.Decay
	if b.expired(l.now()) {
		return limit.MaxAttempts, nil
	}
	if left := limit.MaxAttempts - b.Consumed; left > 0 {
		return left, nil
	}
	return 0, nil
}

// Reset drops the bucket of key
func (l *Limiter) Reset(ctx context.Context, key Key) error {
	if err := l.store.Delete(ctx, key.String()); err != nil {
		return limitErrors.New(ErrStoreUnavailable).
			WithDetail("key", key.String()).
			WithCause(err)
	}
	return nil
}

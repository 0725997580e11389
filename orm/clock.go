package orm

import (
	"context"
	"time"
)

// Clock provides the current time. Implementations can return fixed
// times for deterministic testing.
type Clock interface {
	Now() time.Time
}

type clockKey struct{}

// WithClock returns a child context carrying the given Clock.
// Repositories that stamp rows (confirmation dates, for instance) read the
// time through Now and will use this Clock instead of time.Now().
func WithClock(ctx context.Context, c Clock) context.Context {
	return context.WithValue(ctx, clockKey{}, c)
}

// Now returns the current time from the Clock in ctx, or time.Now()
// if no Clock is present.
func Now(ctx context.Context) time.Time {
	if c, ok := ctx.Value(clockKey{}).(Clock); ok {
		return c.Now()
	}
	return time.Now()
}

// FixedClock is a Clock that always returns the same instant.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }

package awsexpect

import (
	"context"
	log "log/slog"
	"time"
)

const (
	// DefaultTimeout is the maximum wait duration used when the caller does not
	// supply one.
	DefaultTimeout = 30 * time.Second
	// DefaultPollInterval is the inter-poll sleep used when the caller does not
	// supply one.
	DefaultPollInterval = 5 * time.Second
)

// Now returns the current time and can be "synthesized" if needed.
var Now = time.Now

// Poll invokes check at a fixed interval until it reports satisfied, fails, or the
// timeout elapses. The deadline is computed once, before the first check, and never
// extended. An error from check terminates the wait immediately and is returned
// unchanged; ErrWaitTimeout is returned once the deadline passes. The sleep before
// the deadline is clamped to the remaining budget so the loop always gets one more
// check at or near the deadline instead of overshooting by a full interval.
//
// Poll uses pollInterval as given. The public expectation surfaces clamp the
// caller-supplied interval with EffectiveInterval before calling here.
func Poll(ctx context.Context, check func(context.Context) (bool, error), timeout time.Duration, pollInterval time.Duration) error {
	deadline := Now().Add(timeout)
	for {
		satisfied, err := check(ctx)
		if err != nil {
			return err
		}
		if satisfied {
			return nil
		}
		remaining := deadline.Sub(Now())
		if remaining <= 0 {
			return ErrWaitTimeout
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		sleepTime := pollInterval
		if remaining < sleepTime {
			sleepTime = remaining
		}
		log.Debug("condition not yet satisfied", "remaining", remaining, "sleep", sleepTime)
		Sleep(ctx, sleepTime)
	}
}

// EffectiveInterval rounds pollInterval up to a whole second and clamps it to a
// minimum of one second, so a zero or sub-second interval cannot degenerate into a
// busy loop.
func EffectiveInterval(pollInterval time.Duration) time.Duration {
	d := pollInterval.Truncate(time.Second)
	if d < pollInterval {
		d += time.Second
	}
	if d < time.Second {
		d = time.Second
	}
	return d
}

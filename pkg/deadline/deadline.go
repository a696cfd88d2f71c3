// Package deadline computes and checks the absolute deadlines used by the
// server and client (Timers). All timeouts are expressed as a
// time.Time computed once at entry; there is no background timer and no
// goroutine — deadlines are only ever compared at a readiness boundary,
// matching the engine's single-threaded cooperative model.
package deadline

import "time"

// Set holds the deadlines relevant to one connection. Any field left at
// its zero value is treated as "no deadline".
type Set struct {
	Connect   time.Time
	Request   time.Time
	Idle      time.Time
	KeepAlive time.Time
}

// NewConnect returns a deadline armed for a connect attempt starting now.
func NewConnect(timeout time.Duration) time.Time {
	return arm(timeout)
}

// NewRequest returns a deadline armed for a request round-trip starting now.
func NewRequest(timeout time.Duration) time.Time {
	return arm(timeout)
}

// ArmIdle returns a deadline armed for the keep-alive idle wait starting now.
func ArmIdle(timeout time.Duration) time.Time {
	return arm(timeout)
}

func arm(timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}

// Expired reports whether d is armed and has passed.
func Expired(d time.Time) bool {
	return !d.IsZero() && time.Now().After(d)
}

// Armed reports whether d carries a real deadline.
func Armed(d time.Time) bool {
	return !d.IsZero()
}

// Remaining returns the duration until d, or 0 if already expired or unarmed.
func Remaining(d time.Time) time.Duration {
	if d.IsZero() {
		return 0
	}
	r := time.Until(d)
	if r < 0 {
		return 0
	}
	return r
}

// Earliest returns the earliest of the armed deadlines in ds, or the zero
// time if none are armed, e.g. to compute one select() timeout across
// several pending deadlines at once.
func Earliest(ds ...time.Time) time.Time {
	var best time.Time
	for _, d := range ds {
		if d.IsZero() {
			continue
		}
		if best.IsZero() || d.Before(best) {
			best = d
		}
	}
	return best
}

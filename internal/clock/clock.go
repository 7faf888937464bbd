// Package clock provides an injectable monotonic time source so that
// triage, scoring, and the planner remain pure functions of their inputs
// during tests.
package clock

import "time"

// Clock abstracts the current wall-clock time.
type Clock interface {
	Now() time.Time
}

// Real returns the system clock.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Fixed returns a Clock that always reports t, for deterministic tests.
func Fixed(t time.Time) Clock { return fixedClock{t: t} }

type fixedClock struct{ t time.Time }

func (f fixedClock) Now() time.Time { return f.t }

// Package clock abstracts wall-clock time so nudge cooldowns, wizard
// timeouts, and the flush/scheduler loops can be tested deterministically.
package clock

import "time"

// Clock returns the current time. Production code uses Real; tests inject
// a Fixed or Offset clock.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

// Real is the production Clock backed by time.Now.
var Real Clock = realClock{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// Fixed is a Clock that always returns the same instant, useful for
// asserting exact timestamps in tests.
type Fixed time.Time

func (f Fixed) Now() time.Time { return time.Time(f) }

// Offset wraps a base Clock and adds a fixed delta, useful for simulating
// "47 hours later" in cooldown tests without sleeping.
type Offset struct {
	Base  Clock
	Delta time.Duration
}

func (o Offset) Now() time.Time { return o.Base.Now().Add(o.Delta) }

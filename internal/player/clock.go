package player

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// countdown is the session clock. It fires once per second, counted from
// the previous tick being taken. A nil countdown never ticks.
type countdown struct {
	timer clockwork.Timer
}

func startCountdown(clock clockwork.Clock) *countdown {
	return &countdown{timer: clock.NewTimer(time.Second)}
}

func (c *countdown) C() <-chan time.Time {
	if c == nil {
		return nil
	}
	return c.timer.Chan()
}

// Next arms the countdown for the following second.
func (c *countdown) Next() {
	c.timer.Reset(time.Second)
}

func (c *countdown) Stop() {
	if c != nil {
		c.timer.Stop()
	}
}

// window is a pending feedback delay. A nil window never fires.
type window struct {
	timer clockwork.Timer
}

func openWindow(clock clockwork.Clock, d time.Duration) *window {
	return &window{timer: clock.NewTimer(d)}
}

func (w *window) C() <-chan time.Time {
	if w == nil {
		return nil
	}
	return w.timer.Chan()
}

func (w *window) Stop() {
	if w != nil {
		w.timer.Stop()
	}
}

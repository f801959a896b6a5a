package observe

import "time"

// debounce is the timer-reset pattern: every recorded activity restarts
// the window, so a burst of rapid mutations coalesces into one flush.
// Individual record timestamps are deliberately ignored.
type debounce struct {
	window time.Duration
	timer  *time.Timer
	ch     <-chan time.Time
}

func newDebounce(window time.Duration) *debounce {
	if window <= 0 {
		window = 250 * time.Millisecond
	}
	return &debounce{window: window}
}

func (d *debounce) restart() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.NewTimer(d.window)
	d.ch = d.timer.C
}

func (d *debounce) stop() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
		d.ch = nil
	}
}

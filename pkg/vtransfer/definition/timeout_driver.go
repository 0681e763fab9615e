package definition

import (
	"sync"
	"time"
)

// Timeout driver backed by the runtime timers. One timer per
// registered module, re armed on every reset.
type TimerDriver struct {
	mutex   sync.Mutex
	modules map[string]*moduleTimer
}

type moduleTimer struct {
	duration time.Duration
	timer    *time.Timer
	fire     chan time.Time
}

func NewTimerDriver() *TimerDriver {
	return &TimerDriver{modules: make(map[string]*moduleTimer)}
}

// TimerDriver implements the TimeoutDriver interface.
func (d *TimerDriver) Register(module string, duration time.Duration) <-chan time.Time {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if existing, ok := d.modules[module]; ok {
		return existing.fire
	}

	m := &moduleTimer{
		duration: duration,
		fire:     make(chan time.Time, 1),
	}
	d.modules[module] = m
	return m.fire
}

// TimerDriver implements the TimeoutDriver interface.
func (d *TimerDriver) Reset(module string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	m, ok := d.modules[module]
	if !ok {
		return
	}
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.duration, func() {
		select {
		case m.fire <- time.Now():
		default:
		}
	})
}

// TimerDriver implements the TimeoutDriver interface.
func (d *TimerDriver) Cancel(module string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	m, ok := d.modules[module]
	if !ok || m.timer == nil {
		return
	}
	m.timer.Stop()
	m.timer = nil
}

// ABOUTME: Soft watchdog with labeled feeds and a warning threshold
// ABOUTME: Expiry invokes a reset hook instead of returning to the caller
package watchdog

import (
	"log"
	"sync"
	"time"
)

// Watchdog trips when no Feed arrives within the timeout. The label of the
// last feed is logged on warning and expiry, which is usually enough to name
// the hung suspension point.
type Watchdog struct {
	mu       sync.Mutex
	timeout  time.Duration
	warnFrac float64
	onExpire func(lastLabel string)

	last      time.Time
	lastLabel string
	warned    bool

	stop chan struct{}
	now  func() time.Time
}

// New builds a watchdog. timeout is typically 2.5x the display refresh
// period; warnFrac (0..1) sets when a starvation warning is logged.
// onExpire is called once from the watchdog's own goroutine.
func New(timeout time.Duration, warnFrac float64, onExpire func(lastLabel string)) *Watchdog {
	return &Watchdog{
		timeout:  timeout,
		warnFrac: warnFrac,
		onExpire: onExpire,
		now:      time.Now,
	}
}

// Start begins monitoring. Feed must be called before each timeout elapses.
func (w *Watchdog) Start() {
	w.mu.Lock()
	w.last = w.now()
	w.stop = make(chan struct{})
	stop := w.stop
	w.mu.Unlock()

	go w.run(stop)
}

// Stop ends monitoring. Safe to call more than once.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stop != nil {
		close(w.stop)
		w.stop = nil
	}
}

// Feed marks the task alive. The label names the suspension point.
func (w *Watchdog) Feed(label string) {
	w.mu.Lock()
	w.last = w.now()
	w.lastLabel = label
	w.warned = false
	w.mu.Unlock()
}

func (w *Watchdog) run(stop chan struct{}) {
	tick := time.NewTicker(w.timeout / 20)
	defer tick.Stop()
	for {
		select {
		case <-stop:
			return
		case <-tick.C:
		}

		w.mu.Lock()
		idle := w.now().Sub(w.last)
		label := w.lastLabel
		warned := w.warned
		if idle >= time.Duration(float64(w.timeout)*w.warnFrac) && !warned {
			w.warned = true
			log.Printf("[WDT] %0.f%% of budget spent, last feed %q", w.warnFrac*100, label)
		}
		expired := idle >= w.timeout
		w.mu.Unlock()

		if expired {
			log.Printf("[WDT] expired, last feed %q", label)
			if w.onExpire != nil {
				w.onExpire(label)
			}
			return
		}
	}
}

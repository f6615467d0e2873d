package tutor

import (
	"sync"
	"time"
)

// InactivityWatchdog auto-terminates a stale session in two stages: after
// warnAfter of no activity it fires onWarn; after a further closeAfter with
// no reset it fires onClose. Armed only while a session is listening.
type InactivityWatchdog struct {
	mu         sync.Mutex
	warnAfter  time.Duration
	closeAfter time.Duration
	onWarn     func()
	onClose    func()

	armed      bool
	gen        uint64
	warnTimer  *time.Timer
	closeTimer *time.Timer
}

func NewInactivityWatchdog(warnAfter, closeAfter time.Duration, onWarn, onClose func()) *InactivityWatchdog {
	return &InactivityWatchdog{
		warnAfter:  warnAfter,
		closeAfter: closeAfter,
		onWarn:     onWarn,
		onClose:    onClose,
	}
}

// Arm starts the watchdog. A no-op if already armed.
func (w *InactivityWatchdog) Arm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.armed {
		return
	}
	w.armed = true
	w.scheduleLocked()
}

// Reset restarts the first-stage timer and cancels any pending close. Called
// on every inbound transcription and on warning dismissal.
func (w *InactivityWatchdog) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.armed {
		return
	}
	w.stopTimersLocked()
	w.scheduleLocked()
}

// Disarm clears both timers. Called whenever the session leaves listening.
func (w *InactivityWatchdog) Disarm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.armed = false
	w.stopTimersLocked()
	w.gen++
}

// Armed reports whether the watchdog is running.
func (w *InactivityWatchdog) Armed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.armed
}

// scheduleLocked stamps the timers with the current generation. Stopping a
// timer does not stop a callback that has already fired and is waiting on the
// mutex, so each callback re-checks the generation under the lock and bails
// when a Reset or Disarm intervened.
func (w *InactivityWatchdog) scheduleLocked() {
	w.gen++
	gen := w.gen
	w.warnTimer = time.AfterFunc(w.warnAfter, func() {
		w.mu.Lock()
		if !w.armed || w.gen != gen {
			w.mu.Unlock()
			return
		}
		w.closeTimer = time.AfterFunc(w.closeAfter, func() {
			w.mu.Lock()
			if !w.armed || w.gen != gen {
				w.mu.Unlock()
				return
			}
			w.armed = false
			w.gen++
			w.mu.Unlock()
			if w.onClose != nil {
				w.onClose()
			}
		})
		w.mu.Unlock()
		if w.onWarn != nil {
			w.onWarn()
		}
	})
}

func (w *InactivityWatchdog) stopTimersLocked() {
	if w.warnTimer != nil {
		w.warnTimer.Stop()
		w.warnTimer = nil
	}
	if w.closeTimer != nil {
		w.closeTimer.Stop()
		w.closeTimer = nil
	}
}

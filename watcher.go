package pioline

import (
	"reflect"
	"sync"
	"time"
)

// WatchFunc receives the line value read fresh after a qualifying interrupt.
type WatchFunc func(value int)

type watchState int

const (
	stateDisarmed watchState = iota
	stateArmed
	stateDebouncing
)

// notifier is the readiness-notification facility a watcher registers its
// descriptor with. The production implementation is the shared epoll loop,
// tests substitute their own.
type notifier interface {
	register(fd int, w *watcher, oneShot bool) error
	rearm(fd int, oneShot bool) error
	deregister(fd int) error
}

// watcher runs the debounce state machine of one line and fans qualifying
// interrupts out to its listeners. Listener mutation comes from caller
// goroutines while dispatch and re-arm come from the monitoring loop and the
// debounce timer, so all shared state sits behind mu.
type watcher struct {
	fd       int
	read     func() (int, error)
	debounce time.Duration
	acquire  func() (notifier, error)

	mu        sync.Mutex
	notify    notifier
	listeners []WatchFunc
	state     watchState
	timer     *time.Timer
}

func newWatcher(fd int, read func() (int, error), debounce time.Duration, acquire func() (notifier, error)) *watcher {
	return &watcher{fd: fd, read: read, debounce: debounce, acquire: acquire}
}

// oneShot tells whether the registration must deliver a single event per
// arming. Debouncing requires it: the re-arm after the settle window is what
// swallows the bounce burst.
func (w *watcher) oneShot() bool {
	return w.debounce > 0
}

// add appends a listener. The first one arms the watcher: the notifier is
// acquired lazily and the descriptor registered for priority readiness.
func (w *watcher) add(fn WatchFunc) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == stateDisarmed {
		if w.notify == nil {
			n, err := w.acquire()
			if err != nil {
				return err
			}
			w.notify = n
		}
		if err := w.notify.register(w.fd, w, w.oneShot()); err != nil {
			return err
		}
		w.state = stateArmed
	}
	w.listeners = append(w.listeners, fn)
	return nil
}

// remove drops every listener matching fn, or all of them when fn is nil.
// Going empty deregisters immediately, whatever the current state; a pending
// debounce timer then hits the empty guard and does nothing.
func (w *watcher) remove(fn WatchFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if fn == nil {
		w.listeners = nil
	} else {
		ptr := reflect.ValueOf(fn).Pointer()
		kept := w.listeners[:0]
		for _, registered := range w.listeners {
			if reflect.ValueOf(registered).Pointer() != ptr {
				kept = append(kept, registered)
			}
		}
		w.listeners = kept
	}

	if len(w.listeners) > 0 || w.state == stateDisarmed {
		return
	}
	w.notify.deregister(w.fd)
	w.state = stateDisarmed
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// ready handles one readiness event from the monitoring loop: fresh value
// read, dispatch to a snapshot of the listeners, then the debounce window.
// The snapshot keeps an in-flight dispatch unaffected by listeners mutating
// the registration from their callbacks.
func (w *watcher) ready() {
	w.mu.Lock()
	if w.state != stateArmed || len(w.listeners) == 0 {
		w.mu.Unlock()
		return
	}
	snapshot := append([]WatchFunc(nil), w.listeners...)
	if w.oneShot() {
		w.state = stateDebouncing
	}
	w.mu.Unlock()

	value, err := w.read()
	if err == nil {
		for _, fn := range snapshot {
			fn(value)
		}
	}

	// A failed read loses this dispatch only. The debounce window still has
	// to run out in a re-arm, otherwise the one-shot registration would
	// leave the line dead.
	if w.oneShot() {
		w.mu.Lock()
		if w.state == stateDebouncing {
			w.timer = time.AfterFunc(w.debounce, w.settle)
		}
		w.mu.Unlock()
	}
}

// settle ends a debounce window: one settling read to clear readiness state
// accumulated by the bounce burst, then a one-shot re-arm. A no-op when the
// last listener left while the timer was pending.
func (w *watcher) settle() {
	w.mu.Lock()
	if w.state != stateDebouncing || len(w.listeners) == 0 {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	w.read() // value discarded, errors tolerated

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != stateDebouncing || len(w.listeners) == 0 {
		return
	}
	w.timer = nil
	if err := w.notify.rearm(w.fd, true); err == nil {
		w.state = stateArmed
	}
}

package simulation

import (
	"sync"
	"time"
)

// Stopper is the part of *time.Timer the debouncer needs
type Stopper interface {
	Stop() bool
}

// AfterFunc schedules f to run after d and returns a handle that cancels it
type AfterFunc func(d time.Duration, f func()) Stopper

func realAfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

// Debouncer delays an action until calls stop arriving for a quiet period.
// Only the most recent pending call survives; it fires exactly once.
type Debouncer[T any] struct {
	quiet  time.Duration
	action func(T)
	after  AfterFunc

	mu      sync.Mutex
	timer   Stopper
	pending bool
	seq     uint64
}

// DebounceOption configures a Debouncer
type DebounceOption func(*debounceOpts)

type debounceOpts struct {
	after AfterFunc
}

// WithAfterFunc replaces the timer source (tests use a virtual clock)
func WithAfterFunc(fn AfterFunc) DebounceOption {
	return func(o *debounceOpts) {
		o.after = fn
	}
}

// NewDebouncer wraps action so it only runs once input settles for quiet
func NewDebouncer[T any](quiet time.Duration, action func(T), opts ...DebounceOption) *Debouncer[T] {
	o := debounceOpts{after: realAfterFunc}
	for _, opt := range opts {
		opt(&o)
	}
	return &Debouncer[T]{
		quiet:  quiet,
		action: action,
		after:  o.after,
	}
}

// Trigger cancels any pending call and reschedules action(arg) one quiet
// period from now.
func (d *Debouncer[T]) Trigger(arg T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.pending = true
	d.timer = d.after(d.quiet, func() {
		d.fire(seq, arg)
	})
}

func (d *Debouncer[T]) fire(seq uint64, arg T) {
	d.mu.Lock()
	// A timer that lost the race with Stop or a newer Trigger must not run.
	if seq != d.seq || !d.pending {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.timer = nil
	d.mu.Unlock()

	d.action(arg)
}

// Stop cancels the pending call, reporting whether one was pending
func (d *Debouncer[T]) Stop() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	wasPending := d.pending
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = false
	d.seq++
	return wasPending
}

// Pending reports whether a call is scheduled
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

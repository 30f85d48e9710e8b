package ui

import (
	"context"
	"sync"
	"time"
)

// Loop is the cooperative event loop every registry runs on.
// All the engine code is expected to run on the goroutine that drives the loop
// (Tick, Drain, Run or RunUntil). Goroutines that need to touch the UI tree
// should go through Do, which is the only goroutine-safe entry point along with
// the Completion type.
//
// Work is split in two queues, as in a browser: macrotasks (Defer, Do, After)
// run one per tick and the microtask queue (Microtask) is drained after each
// of them.
type Loop struct {
	mu    sync.Mutex
	macro []func()
	micro []func()
	wake  chan struct{}

	timers int
}

// NewLoop returns an idle loop.
func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Defer schedules fn for the next tick.
func (l *Loop) Defer(fn func()) {
	l.mu.Lock()
	l.macro = append(l.macro, fn)
	l.mu.Unlock()
	l.signal()
}

// Do sends a function to the goroutine in charge of the UI. It can be called
// from any goroutine.
func (l *Loop) Do(fn func()) {
	l.Defer(fn)
}

// Microtask schedules fn to run as soon as the current task completes.
func (l *Loop) Microtask(fn func()) {
	l.mu.Lock()
	l.micro = append(l.micro, fn)
	l.mu.Unlock()
	l.signal()
}

// After schedules fn on the loop once d has elapsed. The returned function
// cancels the timer if it has not fired yet.
func (l *Loop) After(d time.Duration, fn func()) (cancel func()) {
	l.mu.Lock()
	l.timers++
	l.mu.Unlock()

	done := func() {
		l.mu.Lock()
		l.timers--
		l.mu.Unlock()
	}
	section := l.NewCriticalSection()
	t := time.AfterFunc(d, func() {
		section(func() {
			done()
			fn()
		})
	})
	return func() {
		if t.Stop() {
			done()
		}
	}
}

// Pending returns the number of queued tasks and armed timers.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.macro) + len(l.micro) + l.timers
}

func (l *Loop) drainMicrotasks() bool {
	ran := false
	for {
		l.mu.Lock()
		if len(l.micro) == 0 {
			l.mu.Unlock()
			return ran
		}
		fn := l.micro[0]
		l.micro = l.micro[1:]
		l.mu.Unlock()
		fn()
		ran = true
	}
}

// Tick runs pending microtasks, then one macrotask and the microtasks it
// queued. It reports whether any work was done.
func (l *Loop) Tick() bool {
	ran := l.drainMicrotasks()

	l.mu.Lock()
	if len(l.macro) == 0 {
		l.mu.Unlock()
		return ran
	}
	fn := l.macro[0]
	l.macro = l.macro[1:]
	l.mu.Unlock()

	fn()
	l.drainMicrotasks()
	return true
}

// Drain runs every queued task, including the ones queued while draining.
// It does not wait for armed timers.
func (l *Loop) Drain() {
	for l.Tick() {
	}
}

// Run processes tasks until the context is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	return l.RunUntil(ctx, func() bool { return false })
}

// RunUntil processes tasks, waiting for new ones when idle, until cond
// returns true or the context is done.
func (l *Loop) RunUntil(ctx context.Context, cond func() bool) error {
	for {
		l.Drain()
		if cond() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// NewCriticalSection returns a function that runs its argument at most once,
// on the loop. A goroutine should only need one critical section: calling the
// returned function again is a noop.
func (l *Loop) NewCriticalSection() func(func()) {
	var once sync.Once
	return func(f func()) {
		once.Do(func() { l.Do(f) })
	}
}

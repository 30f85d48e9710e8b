package ui

import (
	"log"
	"sync"
)

// Completion is a single-use completion handle. Asynchronous hooks return one
// and signal it later with Proceed or Abort, possibly from another goroutine.
// Only the first signal counts.
type Completion struct {
	mu      sync.Mutex
	settled bool
	err     error

	loop *Loop
	cont []func(error)

	logger *log.Logger
}

// NewCompletion returns an unsettled Completion.
func NewCompletion() *Completion {
	return &Completion{}
}

// Proceed settles the completion successfully.
func (c *Completion) Proceed() {
	c.settle(nil)
}

// Abort settles the completion with an error. A nil error still aborts:
// it is replaced by a TransitionError without cause by the callers that care.
func (c *Completion) Abort(err error) {
	if err == nil {
		err = errAborted
	}
	c.settle(err)
}

// Done reports whether the completion has been settled.
func (c *Completion) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settled
}

// Err returns the error the completion settled with, if any.
func (c *Completion) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Completion) settle(err error) {
	c.mu.Lock()
	if c.settled {
		logger := c.logger
		c.mu.Unlock()
		if logger != nil {
			logger.Print("completion already settled: skipping")
		}
		return
	}
	c.settled = true
	c.err = err
	conts := c.cont
	c.cont = nil
	loop := c.loop
	c.mu.Unlock()

	for _, fn := range conts {
		fn := fn
		if loop == nil {
			fn(err)
			continue
		}
		loop.Do(func() { fn(err) })
	}
}

// then registers a continuation. If the completion is already settled, fn
// runs synchronously, otherwise it runs on loop once the completion settles.
func (c *Completion) then(loop *Loop, logger *log.Logger, fn func(error)) {
	c.mu.Lock()
	if c.settled {
		err := c.err
		c.mu.Unlock()
		fn(err)
		return
	}
	if c.loop == nil {
		c.loop = loop
	}
	if c.logger == nil {
		c.logger = logger
	}
	c.cont = append(c.cont, fn)
	c.mu.Unlock()
}

type abortError struct{}

func (abortError) Error() string { return "aborted" }

var errAborted error = abortError{}

// Settled returns a Completion that has already proceeded.
func Settled() *Completion {
	return &Completion{settled: true}
}

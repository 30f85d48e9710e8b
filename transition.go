package ui

import (
	"errors"
	"fmt"
	"sort"
)

// PreHook runs before a state is applied and may delay or veto it.
// Build one with SyncPreHook or AsyncPreHook: the registration decides how the
// hook completes, not its signature.
type PreHook struct {
	guard func(current, proposed string) bool
	async func(current, proposed string) *Completion
}

// SyncPreHook returns a hook that completes when fn returns. Returning false
// aborts the transition.
func SyncPreHook(fn func(current, proposed string) bool) PreHook {
	return PreHook{guard: fn}
}

// AsyncPreHook returns a hook that completes when the returned Completion
// proceeds. Aborting the completion aborts the transition. A nil Completion
// proceeds immediately.
func AsyncPreHook(fn func(current, proposed string) *Completion) PreHook {
	return PreHook{async: fn}
}

// Async reports whether the hook completes asynchronously.
func (p PreHook) Async() bool { return p.async != nil }

func (p PreHook) defined() bool { return p.guard != nil || p.async != nil }

// transition is one logical unit of work: it is applied at most once, however
// many times its pre-processing signals completion.
type transition struct {
	from    string
	to      string
	settled bool
	// announced is set once state.preprocess went out: the outcome is then
	// published whatever it is.
	announced bool
	result    *Completion
}

// request is a transition asked for while another one was being applied.
type request struct {
	to     string
	result *Completion
}

func (t *transition) finish(err error) {
	if t.settled {
		return
	}
	t.settled = true
	if err != nil {
		t.result.Abort(err)
		return
	}
	t.result.Proceed()
}

// State returns the current state.
func (r *ViewRegistry) State() string { return r.state }

// PreviousState returns the state the registry was in before the last
// transition.
func (r *ViewRegistry) PreviousState() string { return r.previousState }

// States returns the state names, in lexical order.
func (r *ViewRegistry) States() []string {
	return sortedKeys(r.states)
}

// HasState reports whether name is one of the registry states.
func (r *ViewRegistry) HasState(name string) bool {
	_, ok := r.states[name]
	return ok
}

// PreStates returns the names the pre-state hooks are registered for.
func (r *ViewRegistry) PreStates() []string {
	return sortedKeys(r.preStates)
}

// PostStates returns the names the post-state hooks are registered for.
func (r *ViewRegistry) PostStates() []string {
	return sortedKeys(r.postStates)
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetState moves the registry into state name.
//
// Setting the current state is a noop. Unknown states return ErrInvalidState
// and leave the registry untouched. When pre-state hooks are asynchronous,
// SetState returns as soon as the pipeline is suspended; use Transition to
// follow the outcome.
//
// A transition requested while another one is being applied (from a state
// handler, a post-state hook or a state.changed subscriber of the same
// registry) is queued and runs once the current one has published and run its
// post-state hooks.
func (r *ViewRegistry) SetState(name string) error {
	c, err := r.Transition(name)
	if err != nil {
		return err
	}
	if c.Done() {
		err := c.Err()
		if errors.Is(err, errAborted) {
			return nil // vetoed by a hook
		}
		return err
	}
	return nil
}

// Transition is SetState returning a Completion that settles once the
// transition is applied (Proceed) or aborted (Abort). A transition vetoed
// by a synchronous hook settles with a TransitionError wrapping no cause.
func (r *ViewRegistry) Transition(name string) (*Completion, error) {
	if r.destroyed {
		return nil, fmt.Errorf("%w: %s is destroyed", ErrConfiguration, r.namespace)
	}
	if _, ok := r.states[name]; !ok {
		return nil, fmt.Errorf("%w: %q is not a state of %s", ErrInvalidState, name, r.namespace)
	}
	if r.applying {
		c := NewCompletion()
		c.logger = r.Logger
		r.queue = append(r.queue, request{name, c})
		return c, nil
	}
	return r.transition(name)
}

func (r *ViewRegistry) transition(name string) (*Completion, error) {
	if name == r.state {
		return Settled(), nil
	}

	t := &transition{from: r.state, to: name, result: NewCompletion()}
	t.result.logger = r.Logger

	hooks := make([]PreHook, 0, 2)
	if h, ok := r.preStates[Wildcard]; ok {
		hooks = append(hooks, h)
	}
	if h, ok := r.preStates[name]; ok {
		hooks = append(hooks, h)
	}
	if len(hooks) == 0 {
		err := r.apply(t)
		return t.result, err
	}

	err := r.runPreHooks(t, hooks)
	return t.result, err
}

// runQueue runs the transitions requested while one was being applied, in
// request order.
func (r *ViewRegistry) runQueue() {
	for len(r.queue) > 0 && !r.applying {
		req := r.queue[0]
		r.queue = r.queue[1:]
		if r.destroyed {
			req.result.Abort(fmt.Errorf("%w: %s is destroyed", ErrConfiguration, r.namespace))
			continue
		}
		c, err := r.transition(req.to)
		if err != nil {
			req.result.Abort(err)
			continue
		}
		c.then(r.rt.Loop, r.Logger, func(err error) {
			if err != nil {
				req.result.Abort(err)
				return
			}
			req.result.Proceed()
		})
	}
}

// dropQueue aborts the pending requests with cause.
func (r *ViewRegistry) dropQueue(from string, cause error) {
	queue := r.queue
	r.queue = nil
	for _, req := range queue {
		req.result.Abort(TransitionError{from, req.to, cause})
	}
}

// runPreHooks runs hooks in order. It returns once every hook has completed
// and the transition is applied, or as soon as an asynchronous hook suspends
// the pipeline.
func (r *ViewRegistry) runPreHooks(t *transition, hooks []PreHook) error {
	for i, h := range hooks {
		if !h.Async() {
			if !h.guard(r.state, t.to) {
				r.abort(t, nil)
				return nil
			}
			continue
		}
		c := h.async(r.state, t.to)
		if c == nil {
			continue
		}
		if c.Done() {
			if err := c.Err(); err != nil {
				r.abort(t, err)
				return nil
			}
			continue
		}
		rest := hooks[i+1:]
		if !t.announced {
			t.announced = true
			r.scope.Publish("state.preprocess", StateChange{t.from, t.to})
		}
		c.then(r.rt.Loop, r.Logger, func(err error) {
			if t.settled {
				return
			}
			if err != nil {
				r.abort(t, err)
				return
			}
			if r.destroyed {
				r.abort(t, fmt.Errorf("%s was destroyed", r.namespace))
				return
			}
			if err := r.runPreHooks(t, rest); err != nil {
				r.Logger.Print(TransitionError{t.from, t.to, err})
				r.scope.Publish("state.aborted", TransitionError{t.from, t.to, err})
			}
		})
		return nil
	}
	return r.apply(t)
}

// abort settles a transition that will not be applied. A nil cause is a veto.
// A veto of a transition that never suspended publishes nothing.
func (r *ViewRegistry) abort(t *transition, cause error) {
	if t.settled {
		return
	}
	terr := TransitionError{t.from, t.to, cause}
	if cause != nil && !errors.Is(cause, errAborted) {
		r.Logger.Print(terr)
	}
	if cause != nil || t.announced {
		r.scope.Publish("state.aborted", terr)
	}
	if cause == nil {
		cause = errAborted
	}
	t.finish(TransitionError{t.from, t.to, cause})
}

// apply commits the transition: state bookkeeping, handler, notification and
// post-state hooks.
func (r *ViewRegistry) apply(t *transition) error {
	if t.settled {
		return nil
	}
	from := r.state
	if t.to == from {
		t.finish(nil)
		return nil
	}
	previous := r.previousState

	r.applying = true
	r.previousState = from
	r.state = t.to
	change := StateChange{Old: from, New: t.to}

	if h := r.states[t.to]; h != nil {
		if err := h(change); err != nil {
			r.state = from
			r.previousState = previous
			r.applying = false
			err = fmt.Errorf("state handler %q of %s: %w", t.to, r.namespace, err)
			r.dropQueue(from, err)
			t.finish(err)
			return err
		}
	}
	t.settled = true
	r.scope.Publish("state.changed", change)

	if h, ok := r.postStates[Wildcard]; ok {
		h()
	}
	if h, ok := r.postStates[t.to]; ok {
		h()
	}
	r.scope.Publish("state.postprocess", change)
	r.applying = false
	t.result.Proceed()
	r.runQueue()
	return nil
}

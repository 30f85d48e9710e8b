// Package ui binds named state machines, view registries, to the elements of an HTML document.
package ui

import (
	"errors"
	"fmt"
	"log"
	"os"
)

var (
	// ErrConfiguration is returned when a constructor receives a missing or invalid configuration.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrInvalidState is returned when a registry is asked to enter a state it does not define.
	ErrInvalidState = errors.New("invalid state")
	// ErrMissingDependency is returned when an operation needs a collaborator that is absent.
	ErrMissingDependency = errors.New("missing dependency")
	// ErrInvalidArgument is returned for malformed arguments (empty selectors, nil filters...).
	ErrInvalidArgument = errors.New("invalid argument")
)

// TransitionError describes a state transition that was aborted after its
// asynchronous pre-processing started.
type TransitionError struct {
	From string
	To   string
	Err  error
}

func (t TransitionError) Error() string {
	if t.Err == nil {
		return fmt.Sprintf("transition %s -> %s aborted", t.From, t.To)
	}
	return fmt.Sprintf("transition %s -> %s aborted: %v", t.From, t.To, t.Err)
}

func (t TransitionError) Unwrap() error { return t.Err }

// DebugMode enables the output of DEBUG.
var DebugMode = false

var debugLogger = log.New(os.Stderr, "DEBUG ", log.Lshortfile)

// DEBUG prints its arguments when DebugMode is on.
func DEBUG(args ...any) {
	if !DebugMode {
		return
	}
	debugLogger.Output(2, fmt.Sprintln(args...))
}

package ui

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoop_MicrotasksRunBeforeNextMacrotask(t *testing.T) {
	l := NewLoop()
	var trace []string
	l.Defer(func() {
		trace = append(trace, "macro1")
		l.Microtask(func() { trace = append(trace, "micro1") })
		l.Defer(func() { trace = append(trace, "macro3") })
	})
	l.Defer(func() { trace = append(trace, "macro2") })

	require.Equal(t, 2, l.Pending())
	l.Drain()
	require.Equal(t, []string{"macro1", "micro1", "macro2", "macro3"}, trace)
	require.Equal(t, 0, l.Pending())
}

func TestLoop_AfterAndRunUntil(t *testing.T) {
	l := NewLoop()
	fired := false
	late := l.After(20*time.Millisecond, func() { fired = true })
	require.Equal(t, 1, l.Pending())

	l.Drain()
	require.False(t, fired, "Drain does not wait for timers")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, l.RunUntil(ctx, func() bool { return fired }))
	require.Equal(t, 0, l.Pending())

	late()
	require.Equal(t, 0, l.Pending(), "cancelling a fired timer is a noop")

	stop := l.After(time.Hour, func() { t.Fatal("cancelled timer fired") })
	stop()
	stop()
	require.Equal(t, 0, l.Pending())
}

func TestLoop_RunStopsWithContext(t *testing.T) {
	l := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	l.Defer(cancel)
	require.ErrorIs(t, l.Run(ctx), context.Canceled)
}

func TestLoop_CriticalSection(t *testing.T) {
	l := NewLoop()
	count := 0
	cs := l.NewCriticalSection()
	done := make(chan struct{})
	go func() {
		cs(func() { count++ })
		cs(func() { count++ })
		close(done)
	}()
	<-done
	l.Drain()
	require.Equal(t, 1, count)
}

func TestCompletion_SingleUse(t *testing.T) {
	l := NewLoop()
	c := NewCompletion()
	var got []error
	c.then(l, nil, func(err error) { got = append(got, err) })

	cause := errors.New("nope")
	c.Abort(cause)
	c.Proceed()
	require.True(t, c.Done())
	require.ErrorIs(t, c.Err(), cause)
	require.Empty(t, got, "continuations run on the loop")

	l.Drain()
	require.Equal(t, []error{cause}, got)

	c.then(l, nil, func(err error) { got = append(got, err) })
	require.Len(t, got, 2, "late continuations run synchronously")

	require.True(t, Settled().Done())
	require.NoError(t, Settled().Err())
}

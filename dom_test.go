package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

const nestedMarkup = `<html><body><div id="outer"><div id="inner"><button id="btn">go</button></div></div></body></html>`

func TestDocument_QueryAndRender(t *testing.T) {
	doc, err := ParseHTML(`<ul><li class="a">1</li><li class="a b">2</li><li>3</li></ul>`)
	require.NoError(t, err)

	nodes, err := doc.QueryAll("li.a")
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	_, err = doc.QueryAll("li[")
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = doc.QueryAll("  ")
	require.ErrorIs(t, err, ErrInvalidArgument)

	var buf bytes.Buffer
	require.NoError(t, doc.Render(&buf))
	require.Contains(t, buf.String(), `<li class="a b">2</li>`)
}

func TestDocument_DispatchPhases(t *testing.T) {
	doc, err := ParseHTML(nestedMarkup)
	require.NoError(t, err)
	outer := mustQuery(t, doc, "#outer")
	inner := mustQuery(t, doc, "#inner")
	btn := mustQuery(t, doc, "#btn")

	var trace []string
	add := func(name string, capture bool) *EventHandler {
		h := NewEventHandler(func(evt Event) bool {
			trace = append(trace, name)
			return false
		})
		if capture {
			h.ForCapture()
		}
		return h
	}
	doc.AddEventListener(outer, "click", add("outer-capture", true))
	doc.AddEventListener(outer, "click", add("outer-bubble", false))
	doc.AddEventListener(inner, "click", add("inner-bubble", false))
	doc.AddEventListener(btn, "click", add("target", false))

	doc.Trigger(btn, "click")
	require.Equal(t, []string{"outer-capture", "target", "inner-bubble", "outer-bubble"}, trace)

	trace = nil
	doc.Dispatch(btn, "click", false)
	require.Equal(t, []string{"outer-capture", "target"}, trace)
}

func TestDocument_StopPropagation(t *testing.T) {
	doc, err := ParseHTML(nestedMarkup)
	require.NoError(t, err)
	outer := mustQuery(t, doc, "#outer")
	inner := mustQuery(t, doc, "#inner")
	btn := mustQuery(t, doc, "#btn")

	var outerCalled bool
	doc.AddEventListener(outer, "click", NewEventHandler(func(evt Event) bool {
		outerCalled = true
		return false
	}))
	doc.AddEventListener(inner, "click", NewEventHandler(func(evt Event) bool {
		evt.StopPropagation()
		return false
	}))

	evt := doc.Trigger(btn, "click")
	require.True(t, evt.Stopped())
	require.False(t, outerCalled)
}

func TestDocument_ListenerRemoval(t *testing.T) {
	doc, err := ParseHTML(nestedMarkup)
	require.NoError(t, err)
	btn := mustQuery(t, doc, "#btn")

	calls := 0
	remove := doc.AddEventListener(btn, "click", NewEventHandler(func(evt Event) bool {
		calls++
		return false
	}))
	once := NewEventHandler(func(evt Event) bool {
		calls++
		return false
	}).TriggerOnce()
	doc.AddEventListener(btn, "click", once)
	require.Equal(t, 2, doc.ListenerCount(btn, "click"))

	doc.Trigger(btn, "click")
	require.Equal(t, 2, calls)
	require.Equal(t, 1, doc.ListenerCount(btn, "click"))

	remove()
	doc.Trigger(btn, "click")
	require.Equal(t, 2, calls)
	require.Equal(t, 0, doc.TotalListenerCount("click"))
}

func TestDocument_MutationObserverBatches(t *testing.T) {
	doc, err := ParseHTML(`<ul id="list"><li id="a"></li><li id="b"></li></ul>`)
	require.NoError(t, err)
	loop := NewLoop()
	doc.SetLoop(loop)
	list := mustQuery(t, doc, "#list")
	a := mustQuery(t, doc, "#a")
	b := mustQuery(t, doc, "#b")

	var batches [][]MutationRecord
	obs := doc.Observe(list, func(records []MutationRecord) {
		batches = append(batches, records)
	})

	doc.Remove(a)
	doc.Remove(b)
	require.Empty(t, batches, "records are delivered asynchronously")

	loop.Drain()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 2)
	require.True(t, batches[0][0].RemovedNode(a))
	require.True(t, batches[0][1].RemovedNode(b))
	require.False(t, doc.Contains(a))

	obs.Disconnect()
	doc.AppendChild(list, a)
	loop.Drain()
	require.Len(t, batches, 1)
	require.True(t, doc.Contains(a))
}

func TestClassList(t *testing.T) {
	doc, err := ParseHTML(`<p id="p" class="a b"></p>`)
	require.NoError(t, err)
	p := mustQuery(t, doc, "#p")

	AddClass(p, "c", "a")
	require.Equal(t, []string{"a", "b", "c"}, Classes(p))
	RemoveClass(p, "b")
	require.Equal(t, []string{"a", "c"}, Classes(p))
	require.False(t, ToggleClass(p, "a"))
	require.True(t, ToggleClass(p, "a"))
	require.True(t, ReplaceClass(p, "c", "d"))
	require.Equal(t, []string{"d", "a"}, Classes(p))
	require.False(t, ReplaceClass(p, "zz", "d"))
}

package ui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func TestViewComponent_Isolation(t *testing.T) {
	rt := newTestRuntime(t, `<ul id="list"><li>a</li><li>b</li></ul>`)
	items := mustQueryAll(t, rt.Document, "li")

	first, err := NewViewComponent(rt, items[0], &Config{States: stateSet("active")})
	require.NoError(t, err)
	second, err := NewViewComponent(rt, items[1], &Config{Namespace: "todo", States: stateSet("active")})
	require.NoError(t, err)

	require.NotEqual(t, first.Namespace(), second.Namespace())
	require.True(t, strings.HasPrefix(first.Namespace(), "component."))
	require.Equal(t, "todo."+second.ID(), second.Namespace())

	id, ok := Attribute(items[0], ComponentAttribute)
	require.True(t, ok)
	require.Equal(t, first.ID(), id)
	require.Equal(t, []*html.Node{items[0]}, first.Elements())

	rec := record(rt.Channel, second.Scope().Topic("state.changed"))
	require.NoError(t, first.SetState("active"))
	require.Empty(t, rec.messages)
	require.Equal(t, DefaultState, second.State())

	_, err = NewViewComponent(rt, items[0], nil)
	require.ErrorIs(t, err, ErrConfiguration)

	require.NoError(t, first.Destroy())
	require.Len(t, mustQueryAll(t, rt.Document, "li"), 1)

	rt.Document.AppendChild(mustQuery(t, rt.Document, "#list"), items[0])
	again, err := NewViewComponent(rt, items[0], nil)
	require.NoError(t, err, "a released element can be bound again")
	require.Equal(t, first.ID(), again.ID())
}

func TestViewComponent_Errors(t *testing.T) {
	rt := newTestRuntime(t, `<p>text</p>`)
	p := mustQuery(t, rt.Document, "p")

	_, err := NewViewComponent(nil, p, nil)
	require.ErrorIs(t, err, ErrMissingDependency)
	_, err = NewViewComponent(rt, p.FirstChild, nil)
	require.ErrorIs(t, err, ErrConfiguration)
	_, err = NewViewComponent(rt, nil, nil)
	require.ErrorIs(t, err, ErrConfiguration)

	detached := rt.Document.CreateElement("div")
	_, err = NewViewComponent(rt, detached, nil)
	require.ErrorIs(t, err, ErrConfiguration)
	_, tagged := Attribute(detached, ComponentAttribute)
	require.False(t, tagged, "a failed component leaves no identifier behind")

	_, err = NewViewComponent(rt, p, &Config{States: stateSet(Wildcard)})
	require.ErrorIs(t, err, ErrConfiguration)
	_, tagged = Attribute(p, ComponentAttribute)
	require.False(t, tagged)
	require.Equal(t, 0, rt.Views.Len())
}

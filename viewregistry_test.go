package ui

import (
	"bytes"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestViewRegistry_PropertyEmission(t *testing.T) {
	rt := newTestRuntime(t, `<div id="app"></div>`)
	r := newRegistry(t, rt, Config{
		Selector:   "#app",
		Namespace:  "app",
		Properties: NewSchema().AddNumber("count", false, nil, nil),
	})
	rec := record(rt.Channel, "app.property.changed", "app.property.count.changed")

	require.NoError(t, r.SetProperty("count", Number(1)))
	require.Equal(t, []string{"app.property.changed", "app.property.count.changed"}, rec.topics())
	require.Equal(t, PropertyChange{"count", nil, Number(1)}, rec.messages[0].Value())
	require.Equal(t, ValueChange{nil, Number(1)}, rec.messages[1].Value())

	require.NoError(t, r.SetProperty("count", Number(1)))
	require.Len(t, rec.messages, 2, "updates to an equal value are silent")

	require.NoError(t, r.SetProperty("count", Number(2)))
	require.Len(t, rec.messages, 4)
	require.Equal(t, ValueChange{Number(1), Number(2)}, rec.messages[3].Value())

	deleted, err := r.Properties().Delete("count")
	require.NoError(t, err)
	require.True(t, deleted)
	require.Len(t, rec.messages, 6)
	require.Equal(t, ValueChange{Number(2), nil}, rec.messages[5].Value())

	require.NoError(t, r.SetProperty("count", Number(2)))
	require.Len(t, rec.messages, 8, "creation always emits")

	v, ok := r.Property("count")
	require.True(t, ok)
	require.Equal(t, Number(2), v)
	require.ErrorIs(t, r.SetProperty("count", String("two")), ErrInvalidArgument)

	bare := newRegistry(t, rt, Config{Selector: "#app", Namespace: "bare"})
	require.Nil(t, bare.Properties())
	require.ErrorIs(t, bare.SetProperty("x", Bool(true)), ErrMissingDependency)
}

func TestViewRegistry_References(t *testing.T) {
	rt := newTestRuntime(t, `<div id="app"><h1>t</h1><p class="test"></p></div><p class="test"></p>`)
	r := newRegistry(t, rt, Config{
		Selector: "#app",
		References: map[string]any{
			"title": "h1",
			"a": map[string]any{
				"d": map[string]any{"g": ".test"},
			},
		},
	})

	require.Equal(t, []string{"aDG", "title"}, r.References())
	ref, ok := r.Ref("aDG")
	require.True(t, ok)
	require.Equal(t, "#app .test", ref.Selector())
	require.Equal(t, 1, ref.Len())
	shared, ok := rt.References.Get("aDG")
	require.True(t, ok)
	require.Same(t, ref, shared)

	require.NoError(t, r.Destroy())
	_, ok = rt.References.Get("aDG")
	require.False(t, ok)
	_, ok = rt.References.Get("title")
	require.False(t, ok)

	_, err := NewViewRegistry(rt, &Config{Selector: "p", References: map[string]any{"x": 42}})
	require.ErrorIs(t, err, ErrConfiguration)
	_, err = NewViewRegistry(rt, &Config{Selector: "p", References: map[string]any{"x": " "}})
	require.ErrorIs(t, err, ErrConfiguration)
	require.Equal(t, 0, rt.Views.Len())
}

func TestViewRegistry_Initialization(t *testing.T) {
	rt := newTestRuntime(t, `<div id="app"></div>`)
	ran := false
	r := newRegistry(t, rt, Config{
		Selector:     "#app",
		Namespace:    "app",
		States:       stateSet("open"),
		InitialState: "open",
		Init: SyncInit(func(r *ViewRegistry) error {
			ran = true
			return nil
		}),
	})
	require.True(t, ran)
	require.False(t, r.Initialized())
	require.Equal(t, DefaultState, r.State())

	rec := record(rt.Channel, "app.initialized", "app.state.changed")
	rt.Loop.Drain()
	require.True(t, r.Initialized())
	require.Equal(t, "open", r.State())
	require.Equal(t, []string{"app.initialized", "app.state.changed"}, rec.topics())

	_, err := NewViewRegistry(rt, &Config{
		Selector: "#app",
		Init:     SyncInit(func(*ViewRegistry) error { return errors.New("no data") }),
	})
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestViewRegistry_AsyncInitialization(t *testing.T) {
	rt := newTestRuntime(t, `<div id="app"></div><div id="other"></div>`)
	var ok, failed *Completion
	r := newRegistry(t, rt, Config{
		Selector: "#app",
		Init: AsyncInit(func(*ViewRegistry) *Completion {
			ok = NewCompletion()
			return ok
		}),
	})
	broken := newRegistry(t, rt, Config{
		Selector: "#other",
		Init: AsyncInit(func(*ViewRegistry) *Completion {
			failed = NewCompletion()
			return failed
		}),
	})

	rt.Loop.Drain()
	require.False(t, r.Initialized())

	ok.Proceed()
	failed.Abort(errors.New("offline"))
	rt.Loop.Drain()
	require.True(t, r.Initialized())
	require.False(t, broken.Initialized())
}

func TestViewRegistry_HideShow(t *testing.T) {
	rt := newTestRuntime(t, `<p class="msg"></p><p class="msg"></p>`)
	r := newRegistry(t, rt, Config{Selector: ".msg"})
	require.Len(t, r.Elements(), 2)

	r.Hide()
	require.True(t, r.Hidden())
	for _, n := range r.Elements() {
		_, hidden := Attribute(n, "hidden")
		require.True(t, hidden)
	}
	r.Show()
	require.False(t, r.Hidden())
}

func TestViewRegistry_ScopedEvents(t *testing.T) {
	rt := newTestRuntime(t, `<div id="a"></div><div id="b"></div>`)
	a := newRegistry(t, rt, Config{Selector: "#a", Namespace: "shared", States: stateSet("open")})
	b := newRegistry(t, rt, Config{Selector: "#b", Namespace: "other", States: stateSet("open")})

	var got []string
	b.Subscribe("state.changed", NewHandler(func(m Message) bool {
		got = append(got, m.Topic)
		return false
	}))
	require.NoError(t, a.SetState("open"))
	require.Empty(t, got)
	require.NoError(t, b.SetState("open"))
	require.Equal(t, []string{"other.state.changed"}, got)

	a.Publish("custom", 1)
	a.SubscribeOnce("custom", NewHandler(func(m Message) bool {
		got = append(got, m.Topic)
		return false
	}))
	a.Publish("custom", 2)
	a.Publish("custom", 3)
	require.Equal(t, []string{"other.state.changed", "shared.custom"}, got)
}

func TestViewRegistry_FollowsComplexCompressionSwitch(t *testing.T) {
	rt := newTestRuntime(t, `<div id="app"><p class="msg"></p></div>`)
	r := newRegistry(t, rt, Config{Selector: ".msg"})
	require.False(t, r.Reference().ComplexCompressionEnabled())

	rt.References.EnableComplexEventCompression()
	require.True(t, r.Reference().ComplexCompressionEnabled())

	late := newRegistry(t, rt, Config{Selector: "#app", Namespace: "late"})
	require.True(t, late.Reference().ComplexCompressionEnabled())

	rt.References.DisableComplexEventCompression()
	require.False(t, r.Reference().ComplexCompressionEnabled())
	require.False(t, late.Reference().ComplexCompressionEnabled())

	require.NoError(t, r.Destroy())
	rt.References.EnableComplexEventCompression()
	require.False(t, r.Reference().ComplexCompressionEnabled(), "a destroyed registry is no longer tracked")
}

func TestViewRegistry_NamespaceCollisionIsLogged(t *testing.T) {
	var logs bytes.Buffer
	rt := newTestRuntime(t, `<div class="card"></div><div class="card"></div>`, WithLogger(log.New(&logs, "", 0)))

	newRegistry(t, rt, Config{Selector: ".card"})
	require.Empty(t, logs.String())
	first := newRegistry(t, rt, Config{Selector: ".card", Namespace: "cards"})
	require.Empty(t, logs.String())
	second := newRegistry(t, rt, Config{Selector: ".card"})
	require.Contains(t, logs.String(), `namespace ".card"`)
	require.Contains(t, logs.String(), "their topics are shared")
	require.NotEqual(t, first.ID(), second.ID())
}

func TestRuntime_DefaultLifecycle(t *testing.T) {
	doc, err := ParseHTML(`<div id="app"></div>`)
	require.NoError(t, err)
	rt := Init(doc, WithLogger(log.New(io.Discard, "", 0)))
	defer Teardown()
	require.Same(t, rt, Default())

	r := newRegistry(t, rt, Config{Selector: "#app"})
	require.Equal(t, []string{r.ID()}, rt.Views.IDs())

	Teardown()
	require.Nil(t, Default())
	require.True(t, r.Destroyed())
	require.Equal(t, 0, rt.Views.Len())
}

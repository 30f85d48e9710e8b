package scenario

import (
	"bytes"
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ui "github.com/atdiar/viewregistry"
)

const statusScenario = `
name: status
markup: |
  <div id="app"><span class="status"></span><button id="go">go</button></div>
registries:
  - name: app
    selector: "#app"
    namespace: app
    states: [online, offline]
    guards:
      online: {delay: 30ms}
    properties:
      user: {type: String}
  - name: status
    selector: ".status"
    namespace: status
    parent: app
    states: [connected, disconnected]
    reactions: {online: connected, offline: disconnected}
references:
  - name: go
    selector: "#go"
    forward: {click: app.go}
steps:
  - registry: app
    state: online
  - registry: status
    expect: default
  - wait: 300ms
  - registry: status
    expect: connected
  - registry: app
    property: user
    value: ada
  - trigger: "#go"
  - registry: app
    state: offline
  - registry: status
    expect: disconnected
`

func quiet() *log.Logger { return log.New(io.Discard, "", 0) }

func TestParse(t *testing.T) {
	s, err := Parse([]byte(statusScenario))
	require.NoError(t, err)
	require.Equal(t, "status", s.Name)
	require.Len(t, s.Registries, 2)
	require.Equal(t, 30*time.Millisecond, s.Registries[0].Guards["online"].Delay)
	require.Equal(t, "String", s.Registries[0].Properties["user"].Type)

	kinds := make([]string, 0, len(s.Steps))
	for _, step := range s.Steps {
		kinds = append(kinds, step.Kind())
	}
	require.Equal(t, []string{
		StepState, StepExpect, StepWait, StepExpect,
		StepProperty, StepTrigger, StepState, StepExpect,
	}, kinds)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("registries: ["))
	require.ErrorIs(t, err, ui.ErrConfiguration)

	_, err = Parse([]byte(`
markup: "<div></div>"
document: page.html
registries:
  - name: child
    selector: ".child"
    parent: app
  - name: dup
    selector: "#a"
  - name: dup
    selector: ""
references:
  - name: ""
    selector: "#x"
steps:
  - registry: nowhere
    state: open
  - state: open
    expect: open
`))
	require.ErrorIs(t, err, ui.ErrConfiguration)
	msg := err.Error()
	for _, want := range []string{
		"exactly one of document and markup",
		`parent "app" must be declared before it`,
		`registry "dup" is declared twice`,
		"registry #2: selector is required",
		"reference #0: name and selector are required",
		`step #1: unknown registry "nowhere"`,
		"step #2: exactly one action must be set",
	} {
		require.Contains(t, msg, want)
	}
	require.Equal(t, 6, strings.Count(msg, "; "))
}

func TestRun(t *testing.T) {
	s, err := Parse([]byte(statusScenario))
	require.NoError(t, err)

	var trace bytes.Buffer
	res, err := Run(context.Background(), s, Options{Trace: &trace, Logger: quiet()})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"app": "offline", "status": "disconnected"}, res.States)
	require.Positive(t, res.Messages)
	require.Contains(t, res.Document, `<button id="go">go</button>`)

	lines := strings.Split(strings.TrimSpace(trace.String()), "\n")
	require.Len(t, lines, res.Messages)
	require.Contains(t, lines, "app.state.preprocess default -> online")
	require.Contains(t, lines, "app.state.changed default -> online")
	require.Contains(t, lines, "app.status.state.changed default -> connected")
	require.Contains(t, lines, "app.go click@button#go")
	require.Contains(t, lines, "app.state.changed online -> offline")
	require.Contains(t, trace.String(), "app.property.user.changed ")
	require.Contains(t, trace.String(), "-> ada")
}

func TestRun_Prefix(t *testing.T) {
	s, err := Parse([]byte(statusScenario))
	require.NoError(t, err)

	var trace bytes.Buffer
	res, err := Run(context.Background(), s, Options{Trace: &trace, Prefix: "app.status.", Logger: quiet()})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(trace.String()), "\n")
	require.Less(t, len(lines), res.Messages)
	for _, l := range lines {
		require.True(t, strings.HasPrefix(l, "app.status."), l)
	}
}

func TestRun_Guards(t *testing.T) {
	s, err := Parse([]byte(`
markup: '<div id="door"></div>'
registries:
  - selector: "#door"
    namespace: door
    states: [open, closed]
    guards:
      open: {deny: true}
      closed: {delay: 1h}
steps:
  - registry: door
    state: open
  - registry: door
    expect: default
  - registry: door
    state: closed
  - wait: 20ms
  - registry: door
    expect: default
`))
	require.NoError(t, err)

	var trace bytes.Buffer
	res, err := Run(context.Background(), s, Options{Trace: &trace, Logger: quiet()})
	require.NoError(t, err)
	require.Equal(t, "default", res.States["door"])
	require.NotContains(t, trace.String(), "-> open")
	require.Contains(t, trace.String(), "door.state.preprocess default -> closed\n")
	require.NotContains(t, trace.String(), "door.state.aborted")
}

func TestRun_MonitorsAndDelete(t *testing.T) {
	s, err := Parse([]byte(`
markup: '<div id="feed"><p class="card">a</p></div>'
viewport: {top: 0, height: 100}
registries:
  - name: card
    selector: ".card"
    namespace: card
    monitor: true
    scroll: true
    rect: {top: 300, height: 50}
    properties:
      title: {type: String, default: untitled}
steps:
  - scroll: 280
  - scroll: 0
  - registry: card
    delete: title
  - remove: ".card"
`))
	require.NoError(t, err)

	var trace bytes.Buffer
	res, err := Run(context.Background(), s, Options{Trace: &trace, Prefix: "card.", Logger: quiet()})
	require.NoError(t, err)
	require.NotContains(t, res.Document, "card")

	out := trace.String()
	require.Contains(t, out, "card.monitoring.enabled element\n")
	require.Contains(t, out, "card.monitoring.enabled scroll\n")
	require.Contains(t, out, "card.enterViewport p.card\n")
	require.Contains(t, out, "card.exitViewport p.card\n")
	require.Contains(t, out, "card.element.removed p.card\n")
	require.Contains(t, out, "card.monitoring.disabled element\n")
	require.Less(t, strings.Index(out, "enterViewport"), strings.Index(out, "exitViewport"))
}

func TestRun_StepFailures(t *testing.T) {
	cases := map[string]struct {
		steps string
		err   error
	}{
		"expectation": {
			steps: "  - registry: box\n    expect: full\n",
			err:   ErrExpectation,
		},
		"unknown state": {
			steps: "  - registry: box\n    state: bogus\n",
			err:   ui.ErrInvalidState,
		},
		"unmatched trigger": {
			steps: "  - trigger: '#nothing'\n",
			err:   ui.ErrInvalidArgument,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			s, err := Parse([]byte(`
markup: '<div id="box"></div>'
registries:
  - selector: "#box"
    namespace: box
    states: [full]
steps:
` + tc.steps))
			require.NoError(t, err)
			_, err = Run(context.Background(), s, Options{Logger: quiet()})
			require.ErrorIs(t, err, tc.err)
			require.Contains(t, err.Error(), "step #1")
		})
	}
}

func TestRun_SetupFailure(t *testing.T) {
	s, err := Parse([]byte(`
markup: '<div id="box"></div>'
registries:
  - selector: "#missing"
    namespace: box
`))
	require.NoError(t, err)
	_, err = Run(context.Background(), s, Options{Logger: quiet()})
	require.Error(t, err)
	require.Contains(t, err.Error(), "registry box")
}

func TestRun_Cancelled(t *testing.T) {
	s, err := Parse([]byte(statusScenario))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Run(ctx, s, Options{Logger: quiet()})
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoad_DocumentFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page.html"),
		[]byte(`<html><body><nav id="menu"></nav></body></html>`), 0o644))
	path := filepath.Join(dir, "menu.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
document: page.html
registries:
  - selector: "#menu"
    namespace: menu
    states: [open]
    initial_state: open
`), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "page.html"), s.DocumentPath())

	res, err := Run(context.Background(), s, Options{Logger: quiet()})
	require.NoError(t, err)
	require.Equal(t, "open", res.States["menu"])

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestFormatMessage(t *testing.T) {
	doc, err := ui.ParseHTML(`<ul><li id="one" class="item first">1</li></ul>`)
	require.NoError(t, err)
	li, err := doc.Query("#one")
	require.NoError(t, err)

	require.Equal(t, "ready", FormatMessage(ui.Message{Topic: "ready"}))
	require.Equal(t, "x.state.changed a -> b",
		FormatMessage(ui.Message{Topic: "x.state.changed", Payload: []any{ui.StateChange{Old: "a", New: "b"}}}))
	require.Equal(t, "x.el li#one.item.first",
		FormatMessage(ui.Message{Topic: "x.el", Payload: []any{li}}))
	require.Equal(t, "x.text #text",
		FormatMessage(ui.Message{Topic: "x.text", Payload: []any{li.FirstChild}}))
	require.Equal(t, "x.init x 3",
		FormatMessage(ui.Message{Topic: "x.init", Payload: []any{"x", 3}}))
	obj := ui.NewObject().
		Set("tags", ui.NewList(ui.String("a"), ui.Number(2))).
		Set("name", ui.String("ada")).
		Set("admin", ui.Bool(true))
	require.Equal(t, "x.property.changed user: <none> -> {admin: true, name: ada, tags: [a, 2]}",
		FormatMessage(ui.Message{Topic: "x.property.changed", Payload: []any{ui.PropertyChange{Property: "user", New: obj}}}))
	require.Equal(t, "x.aborted transition a -> b aborted",
		FormatMessage(ui.Message{Topic: "x.aborted", Payload: []any{ui.TransitionError{From: "a", To: "b"}}}))
}

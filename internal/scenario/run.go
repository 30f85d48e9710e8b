package scenario

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"

	"golang.org/x/net/html"

	ui "github.com/atdiar/viewregistry"
)

// Options tune a replay.
type Options struct {
	// Trace receives one line per channel message. Nil disables tracing.
	Trace io.Writer
	// Prefix restricts the trace to the topics starting with it.
	Prefix string
	// ComplexCompression forces complex event compression on.
	ComplexCompression bool

	Logger *log.Logger
}

// Result summarizes a replay.
type Result struct {
	Messages int               // messages published on the channel
	States   map[string]string // final state per registry name
	Document string            // final document markup
}

type session struct {
	s          *Scenario
	rt         *ui.Runtime
	registries map[string]*ui.ViewRegistry
}

// Run replays s on a fresh runtime. It stops at the first failing step.
func Run(ctx context.Context, s *Scenario, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "zvr: ", 0)
	}

	doc, err := s.document()
	if err != nil {
		return nil, err
	}
	options := []func(*ui.Runtime) *ui.Runtime{ui.WithLogger(logger)}
	if s.ComplexCompression || opts.ComplexCompression {
		options = append(options, ui.WithComplexEventCompression())
	}
	rt := ui.NewRuntime(doc, options...)
	if s.Viewport != nil {
		doc.SetViewport(*s.Viewport)
	}

	res := &Result{States: make(map[string]string)}
	rt.Channel.Tap(func(m ui.Message) {
		res.Messages++
		if opts.Trace == nil || !strings.HasPrefix(m.Topic, opts.Prefix) {
			return
		}
		fmt.Fprintln(opts.Trace, FormatMessage(m))
	})

	ss := &session{s: s, rt: rt, registries: make(map[string]*ui.ViewRegistry)}
	if err := ss.setup(); err != nil {
		return nil, err
	}
	rt.Loop.Drain()

	for i, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := ss.exec(ctx, step); err != nil {
			return nil, fmt.Errorf("step #%d (%s): %w", i+1, step.Kind(), err)
		}
		rt.Loop.Drain()
	}

	for name, r := range ss.registries {
		res.States[name] = r.State()
	}
	var b strings.Builder
	if err := doc.Render(&b); err != nil {
		return nil, err
	}
	res.Document = b.String()
	return res, nil
}

func (s *Scenario) document() (*ui.Document, error) {
	if s.Markup != "" {
		return ui.ParseHTML(s.Markup)
	}
	f, err := os.Open(s.DocumentPath())
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ui.ParseDocument(f)
}

func (ss *session) setup() error {
	for _, ref := range ss.s.References {
		r, err := ss.rt.References.Create(ref.Name, ref.Selector)
		if err != nil {
			return fmt.Errorf("reference %s: %w", ref.Name, err)
		}
		r.ForwardMap(ref.Forward, false)
	}

	for _, decl := range ss.s.Registries {
		r, err := ui.NewViewRegistry(ss.rt, ss.config(decl))
		if err != nil {
			return fmt.Errorf("registry %s: %w", decl.key(), err)
		}
		if decl.Rect != nil {
			for _, n := range r.Elements() {
				ss.rt.Document.SetRect(n, *decl.Rect)
			}
		}
		if decl.Scroll {
			r.EnableScrollMonitor()
		}
		ss.registries[decl.key()] = r
	}
	return nil
}

func (ss *session) config(decl Registry) *ui.Config {
	cfg := &ui.Config{
		Selector:     decl.Selector,
		Namespace:    decl.Namespace,
		Properties:   decl.Properties,
		States:       make(map[string]ui.StateHandler, len(decl.States)),
		PreStates:    make(map[string]ui.PreHook, len(decl.Guards)),
		InitialState: decl.InitialState,
		Reactions:    decl.Reactions,
		References:   decl.References,
		Monitor:      decl.Monitor,
	}
	for _, name := range decl.States {
		cfg.States[name] = nil
	}
	if decl.Parent != "" {
		cfg.Parent = ss.registries[decl.Parent]
	}
	for state, g := range decl.Guards {
		cfg.PreStates[state] = ss.guard(g)
	}

	peers := make([]string, 0, len(decl.Reflexes))
	for peer := range decl.Reflexes {
		peers = append(peers, peer)
	}
	sort.Strings(peers)
	for _, peer := range peers {
		cfg.Reflexes = append(cfg.Reflexes, ui.ReflexConfig{
			Peer:      ss.registries[peer],
			Reactions: decl.Reflexes[peer],
		})
	}
	return cfg
}

func (ss *session) guard(g Guard) ui.PreHook {
	if g.Deny {
		return ui.SyncPreHook(func(current, proposed string) bool { return false })
	}
	if g.Delay <= 0 {
		return ui.SyncPreHook(func(current, proposed string) bool { return true })
	}
	return ui.AsyncPreHook(func(current, proposed string) *ui.Completion {
		c := ui.NewCompletion()
		ss.rt.Loop.After(g.Delay, c.Proceed)
		return c
	})
}

// ErrExpectation is returned when an expect step does not hold.
var ErrExpectation = errors.New("expectation failed")

func (ss *session) exec(ctx context.Context, step Step) error {
	doc := ss.rt.Document
	r := ss.registries[step.Registry]

	switch step.Kind() {
	case StepState:
		return r.SetState(step.State)

	case StepProperty:
		v, err := ui.ValueOf(step.Value)
		if err != nil {
			return err
		}
		return r.SetProperty(step.Property, v)

	case StepDelete:
		if r.Properties() == nil {
			return fmt.Errorf("%w: %s has no property model", ui.ErrMissingDependency, step.Registry)
		}
		_, err := r.Properties().Delete(step.Delete)
		return err

	case StepTrigger:
		event := step.Event
		if event == "" {
			event = "click"
		}
		return ss.each(step.Trigger, func(n *html.Node) { doc.Trigger(n, event) })

	case StepRemove:
		return ss.each(step.Remove, doc.Remove)

	case StepScroll:
		doc.ScrollTo(*step.Scroll)
		return nil

	case StepWait:
		wctx, cancel := context.WithTimeout(ctx, step.Wait)
		defer cancel()
		err := ss.rt.Loop.Run(wctx)
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil
		}
		return err

	case StepExpect:
		if got := r.State(); got != step.Expect {
			return fmt.Errorf("%w: %s is in state %q, want %q", ErrExpectation, step.Registry, got, step.Expect)
		}
		return nil
	}
	return fmt.Errorf("%w: malformed step", ui.ErrConfiguration)
}

func (ss *session) each(selector string, fn func(*html.Node)) error {
	nodes, err := ss.rt.Document.QueryAll(selector)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		return fmt.Errorf("%w: %q matches nothing", ui.ErrInvalidArgument, selector)
	}
	for _, n := range nodes {
		fn(n)
	}
	return nil
}

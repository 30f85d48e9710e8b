package ui

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/net/html"
)

// DefaultState is the state every registry starts in.
const DefaultState = "default"

// Wildcard registers a pre or post state hook for every state.
const Wildcard = "*"

// StateChange is the payload of state.changed notifications and the argument
// of state handlers.
type StateChange struct {
	Old string
	New string
}

// PropertyChange is the payload of property.changed notifications.
type PropertyChange struct {
	Property string
	Old      Value
	New      Value
}

// ValueChange is the payload of property.<field>.changed notifications.
type ValueChange struct {
	Old Value
	New Value
}

// StateHandler is run when its state is entered. A returned error cancels the
// transition and is returned to the caller of SetState.
type StateHandler func(StateChange) error

// PostHook runs once a transition and its notification are done. The new
// state is already current.
type PostHook func()

// Initializer is the optional initialization step of a registry. Build it with
// SyncInit or AsyncInit.
type Initializer struct {
	sync  func(*ViewRegistry) error
	async func(*ViewRegistry) *Completion
}

// SyncInit returns an initializer that completes when fn returns.
func SyncInit(fn func(*ViewRegistry) error) Initializer {
	return Initializer{sync: fn}
}

// AsyncInit returns an initializer that completes when the returned
// Completion proceeds.
func AsyncInit(fn func(*ViewRegistry) *Completion) Initializer {
	return Initializer{async: fn}
}

func (i Initializer) defined() bool { return i.sync != nil || i.async != nil }

// ReflexConfig declares a reflex at construction time.
type ReflexConfig struct {
	Peer      *ViewRegistry
	Reactions map[string]string // peer state -> own state
}

// Config is the configuration of a ViewRegistry.
type Config struct {
	Selector  string
	Namespace string
	Parent    *ViewRegistry

	Properties Schema

	States     map[string]StateHandler
	PreStates  map[string]PreHook
	PostStates map[string]PostHook

	InitialState string
	Reactions    map[string]string // parent state -> own state
	Reflexes     []ReflexConfig

	Init Initializer

	// References are named selectors, scoped to the registry selector.
	// Values are either strings or nested map[string]any trees whose paths
	// are flattened into camel-case names.
	References map[string]any

	// Monitor enables the element removal monitor on construction.
	Monitor bool
}

type subscription struct {
	channel *Channel
	topic   string
	handler *Handler
}

// ViewRegistry binds a region of the document to a namespace of the event
// channel and a finite set of named states.
//
// Assigning a state (SetState) runs the pre-state hooks, the state handler,
// publishes state.changed under the registry scope, then runs the post-state
// hooks. A registry with a parent follows the parent state through its
// reactions; reflexes do the same for arbitrary peers.
type ViewRegistry struct {
	id string
	rt *Runtime

	selector  string
	namespace string
	scope     Scope
	parentID  string

	ref        *ElementReference
	references map[string]*ElementReference

	properties *Properties

	states     map[string]StateHandler
	preStates  map[string]PreHook
	postStates map[string]PostHook

	reactions map[string]string
	reflexes  []*reflex

	state         string
	previousState string
	initialState  string

	applying bool
	queue    []request

	subscriptions []subscription

	elementMonitor *MutationObserver
	scrollMonitor  func()
	inViewport     bool

	initialized bool
	destroyed   bool

	Logger *log.Logger
}

// NewViewRegistry builds a registry from cfg.
func NewViewRegistry(rt *Runtime, cfg *Config) (*ViewRegistry, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: a configuration object is required", ErrConfiguration)
	}
	return newViewRegistry(rt, *cfg, uuid.NewString(), cfg.Selector, cfg.Namespace)
}

func newViewRegistry(rt *Runtime, cfg Config, id string, selector string, namespace string) (*ViewRegistry, error) {
	if rt == nil || rt.Document == nil || rt.Channel == nil || rt.Loop == nil {
		return nil, fmt.Errorf("%w: a view registry needs a runtime with a document, a loop and an event channel", ErrMissingDependency)
	}

	r := &ViewRegistry{
		id:         id,
		rt:         rt,
		states:     make(map[string]StateHandler),
		preStates:  make(map[string]PreHook),
		postStates: make(map[string]PostHook),
		reactions:  make(map[string]string),
		references: make(map[string]*ElementReference),
		state:      DefaultState,
		Logger:     rt.Logger,
	}
	if r.Logger == nil {
		r.Logger = log.Default()
	}

	var parent *ViewRegistry
	var errs *multierror.Error

	if strings.TrimSpace(selector) == "" {
		errs = multierror.Append(errs, fmt.Errorf("selector must be a non-empty string"))
	}
	if cfg.Parent != nil {
		p, ok := rt.Views.Get(cfg.Parent.id)
		if !ok || p != cfg.Parent {
			errs = multierror.Append(errs, fmt.Errorf("parent registry %s is not live in this runtime", cfg.Parent.namespace))
		} else if len(p.Elements()) == 0 {
			errs = multierror.Append(errs, fmt.Errorf("parent selector %q does not resolve", p.selector))
		} else {
			parent = p
		}
	}

	for name, h := range cfg.States {
		if name == "" || name == Wildcard {
			errs = multierror.Append(errs, fmt.Errorf("%q is not a valid state name", name))
			continue
		}
		if h == nil {
			h = noopState
		}
		r.states[name] = h
	}
	if _, ok := r.states[DefaultState]; !ok {
		r.states[DefaultState] = noopState
	}

	for name, h := range cfg.PreStates {
		if !h.defined() {
			errs = multierror.Append(errs, fmt.Errorf("pre-state hook %q has no function", name))
			continue
		}
		if _, ok := r.states[name]; !ok && name != Wildcard {
			r.Logger.Printf("pre-state hook %q does not match any state of %s", name, selector)
		}
		r.preStates[name] = h
	}
	for name, h := range cfg.PostStates {
		if h == nil {
			continue
		}
		if _, ok := r.states[name]; !ok && name != Wildcard {
			r.Logger.Printf("post-state hook %q does not match any state of %s", name, selector)
		}
		r.postStates[name] = h
	}

	for parentState, own := range cfg.Reactions {
		if _, ok := r.states[own]; !ok {
			errs = multierror.Append(errs, fmt.Errorf("reaction %s -> %s: %w", parentState, own, ErrInvalidState))
			continue
		}
		r.reactions[parentState] = own
	}
	if len(r.reactions) > 0 && cfg.Parent == nil {
		r.Logger.Printf("reactions declared on %s without a parent are inert", selector)
	}

	for _, rc := range cfg.Reflexes {
		if rc.Peer == nil {
			errs = multierror.Append(errs, fmt.Errorf("reflex without a peer registry"))
		}
	}

	if cfg.InitialState != "" {
		if _, ok := r.states[cfg.InitialState]; ok {
			r.initialState = cfg.InitialState
		} else {
			r.Logger.Printf("initial state %q of %s is not a known state: ignored", cfg.InitialState, selector)
		}
	}

	if errs.ErrorOrNil() != nil {
		errs.ErrorFormat = listErrors
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, errs)
	}

	r.selector = selector
	if parent != nil {
		r.selector = parent.selector + " " + selector
		r.parentID = parent.id
	}
	ref, err := NewElementReference(rt.Document, rt.Channel, r.selector)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	ref.name = id
	ref.Logger = r.Logger
	if len(ref.Elements()) == 0 {
		return nil, fmt.Errorf("%w: selector %q does not resolve", ErrConfiguration, r.selector)
	}
	r.ref = ref
	if rt.References != nil {
		rt.References.attach(ref)
	}

	if namespace == "" {
		namespace = selector
	}
	if parent != nil {
		namespace = parent.scope.Prefix + namespace
	}
	r.namespace = namespace
	r.scope = rt.Channel.Scope(namespace + ".")

	if cfg.Properties != nil {
		props, err := NewProperties(cfg.Properties)
		if err != nil {
			r.release()
			return nil, err
		}
		r.properties = props
	}

	if err := r.registerReferences(cfg.References); err != nil {
		r.release()
		return nil, err
	}

	rt.Views.add(r)

	if r.properties != nil {
		r.bridgeProperties()
	}
	if parent != nil {
		r.attachParent(parent)
	}
	for _, rc := range cfg.Reflexes {
		peerStates := make([]string, 0, len(rc.Reactions))
		for ps := range rc.Reactions {
			peerStates = append(peerStates, ps)
		}
		sort.Strings(peerStates)
		for _, ps := range peerStates {
			if err := r.CreateReflex(rc.Peer, ps, rc.Reactions[ps]); err != nil {
				r.release()
				return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
			}
		}
	}
	if cfg.Monitor {
		r.EnableElementMonitor()
	}

	if !cfg.Init.defined() {
		r.rt.Loop.Defer(r.ready)
		return r, nil
	}
	if cfg.Init.sync != nil {
		if err := cfg.Init.sync(r); err != nil {
			r.release()
			return nil, fmt.Errorf("%w: initialization of %s failed: %v", ErrConfiguration, r.namespace, err)
		}
		r.rt.Loop.Defer(r.ready)
		return r, nil
	}
	c := cfg.Init.async(r)
	if c == nil {
		r.rt.Loop.Defer(r.ready)
		return r, nil
	}
	c.then(r.rt.Loop, r.Logger, func(err error) {
		if err != nil {
			r.Logger.Printf("initialization of %s failed: %v", r.namespace, err)
			return
		}
		r.rt.Loop.Defer(r.ready)
	})
	return r, nil
}

func noopState(StateChange) error { return nil }

func listErrors(errs []error) string {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// ready publishes initialized and enters the initial state.
func (r *ViewRegistry) ready() {
	if r.destroyed {
		return
	}
	r.initialized = true
	r.scope.Publish("initialized", r.namespace)
	if r.initialState != "" {
		if err := r.SetState(r.initialState); err != nil {
			r.Logger.Print(err)
		}
	}
}

// flattenReferences turns nested reference trees into camel-case names.
func flattenReferences(prefix string, tree map[string]any, out map[string]string) error {
	for key, v := range tree {
		if key == "" {
			return fmt.Errorf("empty reference name under %q", prefix)
		}
		name := key
		if prefix != "" {
			name = prefix + capitalize(key)
		}
		switch t := v.(type) {
		case string:
			if strings.TrimSpace(t) == "" {
				return fmt.Errorf("reference %s has an empty selector", name)
			}
			out[name] = t
		case map[string]any:
			if err := flattenReferences(name, t, out); err != nil {
				return err
			}
		case map[string]string:
			for k, s := range t {
				if err := flattenReferences(name, map[string]any{k: s}, out); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("reference %s must be a selector or a nested tree, got %T", name, v)
		}
	}
	return nil
}

func capitalize(s string) string {
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func (r *ViewRegistry) registerReferences(tree map[string]any) error {
	if len(tree) == 0 {
		return nil
	}
	if r.rt.References == nil {
		return fmt.Errorf("%w: references need a reference registry", ErrMissingDependency)
	}
	flat := make(map[string]string)
	if err := flattenReferences("", tree, flat); err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	names := make([]string, 0, len(flat))
	for name := range flat {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ref, err := r.rt.References.Create(name, r.selector+" "+flat[name])
		if err != nil {
			return fmt.Errorf("%w: reference %s: %v", ErrConfiguration, name, err)
		}
		r.references[name] = ref
	}
	return nil
}

func (r *ViewRegistry) track(ch *Channel, topic string, h *Handler) {
	r.subscriptions = append(r.subscriptions, subscription{ch, topic, h})
}

func (r *ViewRegistry) bridgeProperties() {
	ch := r.properties.Channel()
	forward := func(kind string) *Handler {
		return NewHandler(func(m Message) bool {
			fe, ok := m.Value().(FieldEvent)
			if !ok {
				return false
			}
			if kind == FieldUpdate && Equal(fe.Old, fe.New) {
				return false
			}
			r.scope.Publish("property.changed", PropertyChange{fe.Field, fe.Old, fe.New})
			r.scope.Publish("property."+fe.Field+".changed", ValueChange{fe.Old, fe.New})
			return false
		})
	}
	for _, kind := range []string{FieldCreate, FieldUpdate, FieldDelete} {
		r.track(ch, kind, ch.Subscribe(kind, forward(kind)))
	}
}

// ID returns the registry identifier, unique within a runtime.
func (r *ViewRegistry) ID() string { return r.id }

// Selector returns the effective selector, including the parent scoping.
func (r *ViewRegistry) Selector() string { return r.selector }

func (r *ViewRegistry) Namespace() string { return r.namespace }

// Scope returns the channel view every notification of the registry goes
// through.
func (r *ViewRegistry) Scope() Scope { return r.scope }

func (r *ViewRegistry) Runtime() *Runtime { return r.rt }

// Parent returns the parent registry, if it is still live.
func (r *ViewRegistry) Parent() (*ViewRegistry, bool) {
	if r.parentID == "" {
		return nil, false
	}
	return r.rt.Views.Get(r.parentID)
}

// Elements returns the elements the registry is bound to.
func (r *ViewRegistry) Elements() []*html.Node {
	if r.ref == nil {
		return nil
	}
	return r.ref.Elements()
}

// Element returns the first bound element.
func (r *ViewRegistry) Element() *html.Node {
	if r.ref == nil {
		return nil
	}
	return r.ref.Element()
}

// Reference returns the reference of the bound elements.
func (r *ViewRegistry) Reference() *ElementReference { return r.ref }

// Ref returns one of the references declared in the configuration.
func (r *ViewRegistry) Ref(name string) (*ElementReference, bool) {
	ref, ok := r.references[name]
	return ref, ok
}

// References returns the names of the declared references.
func (r *ViewRegistry) References() []string {
	names := make([]string, 0, len(r.references))
	for name := range r.references {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Properties returns the property model, nil when no schema was configured.
func (r *ViewRegistry) Properties() *Properties { return r.properties }

// SetProperty sets a field of the property model.
func (r *ViewRegistry) SetProperty(field string, v Value) error {
	if r.properties == nil {
		return fmt.Errorf("%w: %s has no property model", ErrMissingDependency, r.namespace)
	}
	return r.properties.Set(field, v)
}

// Property returns a field of the property model.
func (r *ViewRegistry) Property(field string) (Value, bool) {
	if r.properties == nil {
		return nil, false
	}
	return r.properties.Get(field)
}

func (r *ViewRegistry) Subscribe(topic string, h *Handler) *Handler {
	return r.scope.Subscribe(topic, h)
}

func (r *ViewRegistry) SubscribeOnce(topic string, h *Handler) *Handler {
	return r.scope.SubscribeOnce(topic, h)
}

func (r *ViewRegistry) Unsubscribe(topic string, h *Handler) {
	r.scope.Unsubscribe(topic, h)
}

func (r *ViewRegistry) Publish(topic string, payload ...any) {
	r.scope.Publish(topic, payload...)
}

// OnState registers a handler triggered each time the registry enters state.
func (r *ViewRegistry) OnState(state string, h *Handler) *Handler {
	var nh *Handler
	nh = NewHandler(func(m Message) bool {
		c, ok := m.Value().(StateChange)
		if !ok || c.New != state {
			return false
		}
		if h.Once {
			r.scope.Unsubscribe("state.changed", nh)
		}
		return h.Handle(m)
	})
	return r.scope.Subscribe("state.changed", nh)
}

// Initialized reports whether the initialized notification was published.
func (r *ViewRegistry) Initialized() bool { return r.initialized }

// Destroyed reports whether Destroy was called.
func (r *ViewRegistry) Destroyed() bool { return r.destroyed }

// Hide sets the hidden attribute on the bound elements.
func (r *ViewRegistry) Hide() {
	r.ref.SetAttribute("hidden", "")
}

// Show removes the hidden attribute from the bound elements.
func (r *ViewRegistry) Show() {
	r.ref.RemoveAttribute("hidden")
}

// Hidden reports whether the first bound element is hidden.
func (r *ViewRegistry) Hidden() bool {
	e := r.Element()
	if e == nil {
		return false
	}
	_, ok := Attribute(e, "hidden")
	return ok
}

// release drops every subscription and monitor held by the registry and
// unregisters it. The DOM is left untouched.
func (r *ViewRegistry) release() {
	r.DisableElementMonitor()
	r.DisableScrollMonitor()
	r.ClearReflexes()
	for _, s := range r.subscriptions {
		s.channel.Unsubscribe(s.topic, s.handler)
	}
	r.subscriptions = nil
	if r.ref != nil {
		r.ref.OffAll("")
	}
	if r.rt.References != nil {
		if r.ref != nil {
			r.rt.References.detach(r.ref)
		}
		for name, ref := range r.references {
			if current, ok := r.rt.References.Get(name); ok && current == ref {
				r.rt.References.Remove(name)
			}
		}
	}
	r.rt.Views.remove(r)
}

// Destroy unsubscribes the registry from its parent, peers and property model,
// then removes the bound elements from the document.
// Registries holding reflexes on this one keep them: it is up to them to
// call RemoveReflex or ClearReflexes.
func (r *ViewRegistry) Destroy() error {
	if r.destroyed {
		return nil
	}
	elements := r.Elements()
	r.release()
	for _, e := range elements {
		r.rt.Document.Remove(e)
	}
	r.destroyed = true
	return nil
}

package ui

import (
	"fmt"
	"log"
	"strings"

	"golang.org/x/net/html"
)

// FilterFunc selects elements of a reference. It receives the element, its
// index and the whole set being filtered.
type FilterFunc func(n *html.Node, index int, all []*html.Node) bool

// NativeEventUnlisteners holds the functions removing the native listeners
// registered for a binding.
type NativeEventUnlisteners struct {
	List []func()
}

func (n *NativeEventUnlisteners) Add(f func()) {
	n.List = append(n.List, f)
}

func (n *NativeEventUnlisteners) Apply() {
	for _, f := range n.List {
		f()
	}
	n.List = nil
}

type binding struct {
	handler     *EventHandler
	dispatcher  *EventHandler
	structure   CollapsedStructure
	unlisteners NativeEventUnlisteners
}

// ElementReference is a live handle to the elements matched by a selector.
// The element set is never cached: it is queried again, and filtered, on
// every access.
//
// Listeners registered through On are compressed: when the elements share
// parents, or (with complex compression) a reasonably close common ancestor,
// a single native listener is attached there and events are mapped back to
// the referenced element they come from.
type ElementReference struct {
	name     string
	selector string

	doc     *Document
	channel *Channel

	compression        bool
	complexCompression bool
	filters            []FilterFunc

	bindings map[string][]*binding

	Logger *log.Logger
}

// NewElementReference returns a reference for selector on doc. channel may be
// nil, in which case Forward is unavailable.
func NewElementReference(doc *Document, channel *Channel, selector string) (*ElementReference, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: a reference needs a document", ErrMissingDependency)
	}
	r := &ElementReference{
		doc:         doc,
		channel:     channel,
		compression: true,
		bindings:    make(map[string][]*binding),
		Logger:      log.Default(),
	}
	if err := r.SetSelector(selector); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *ElementReference) Name() string     { return r.name }
func (r *ElementReference) Selector() string { return r.selector }

// SetSelector changes the selector. Existing bindings are left where they are.
func (r *ElementReference) SetSelector(selector string) error {
	if strings.TrimSpace(selector) == "" {
		return fmt.Errorf("%w: a reference selector must be a non-empty string", ErrInvalidArgument)
	}
	if err := r.doc.ValidSelector(selector); err != nil {
		return err
	}
	r.selector = selector
	return nil
}

// Elements returns the elements currently matched by the selector, filtered.
func (r *ElementReference) Elements() []*html.Node {
	elements, err := r.doc.QueryAll(r.selector)
	if err != nil {
		r.Logger.Print(err)
		return nil
	}
	for _, f := range r.filters {
		kept := make([]*html.Node, 0, len(elements))
		for i, e := range elements {
			if f(e, i, elements) {
				kept = append(kept, e)
			}
		}
		elements = kept
	}
	return elements
}

// Element returns the first element of the reference, or nil.
func (r *ElementReference) Element() *html.Node {
	elements := r.Elements()
	if len(elements) == 0 {
		return nil
	}
	return elements[0]
}

func (r *ElementReference) Len() int {
	return len(r.Elements())
}

// ApplyFilter appends a filter to the reference.
func (r *ElementReference) ApplyFilter(f FilterFunc) error {
	if f == nil {
		return fmt.Errorf("%w: filter must be a function", ErrInvalidArgument)
	}
	r.filters = append(r.filters, f)
	return nil
}

func (r *ElementReference) ClearFilters() {
	r.filters = nil
}

func (r *ElementReference) EnableCompression()  { r.compression = true }
func (r *ElementReference) DisableCompression() { r.compression = false }
func (r *ElementReference) CompressionEnabled() bool {
	return r.compression
}

func (r *ElementReference) EnableComplexCompression()  { r.complexCompression = true }
func (r *ElementReference) DisableComplexCompression() { r.complexCompression = false }
func (r *ElementReference) ComplexCompressionEnabled() bool {
	return r.complexCompression
}

func (r *ElementReference) findBinding(event string, h *EventHandler) (int, *binding) {
	for i, b := range r.bindings[event] {
		if b.handler == h {
			return i, b
		}
	}
	return -1, nil
}

// resolve maps an event target to the referenced element it belongs to:
// the target itself if it is referenced, otherwise its nearest referenced
// ancestor below boundary (inclusive).
func resolve(members map[*html.Node]struct{}, target, boundary *html.Node) *html.Node {
	if _, ok := members[target]; ok {
		return target
	}
	if target == boundary {
		return nil
	}
	for p := target.Parent; p != nil; p = p.Parent {
		if _, ok := members[p]; ok {
			return p
		}
		if p == boundary {
			break
		}
	}
	return nil
}

func (r *ElementReference) members() map[*html.Node]struct{} {
	elements := r.Elements()
	m := make(map[*html.Node]struct{}, len(elements))
	for _, e := range elements {
		m[e] = struct{}{}
	}
	return m
}

// On attaches h to event on every referenced element. If h is already bound
// to event, it is rebound against the current element set.
func (r *ElementReference) On(event string, h *EventHandler) *EventHandler {
	if h == nil {
		return nil
	}
	if _, b := r.findBinding(event, h); b != nil {
		r.Off(event, h)
	}
	elements := r.Elements()
	if len(elements) == 0 {
		return h
	}

	b := &binding{handler: h, structure: r.collapsedDomStructure(elements)}
	delegated := b.structure.Delegated()
	var last Event

	b.dispatcher = NewEventHandler(func(evt Event) bool {
		if delegated && evt == last {
			return false // already seen on a lower attachment point
		}
		el := resolve(r.members(), evt.Target(), evt.CurrentTarget())
		if el == nil {
			return false
		}
		if !delegated && el != evt.CurrentTarget() {
			return false // belongs to a nested referenced element with its own listener
		}
		last = evt
		evt.SetReference(el)
		if h.Once {
			r.Off(event, h)
		}
		return h.Handle(evt)
	})
	b.dispatcher.Capture = h.Capture

	for _, n := range b.structure.Nodes {
		b.unlisteners.Add(r.doc.AddEventListener(n, event, b.dispatcher))
	}
	r.bindings[event] = append(r.bindings[event], b)
	DEBUG("reference", r.selector, "bound", event, "with strategy", b.structure.Strategy, len(b.structure.Nodes))
	return h
}

// OnMap binds several events at once.
func (r *ElementReference) OnMap(m map[string]*EventHandler) {
	for event, h := range m {
		r.On(event, h)
	}
}

// Once binds h so that it runs at most once, for whichever element fires first.
func (r *ElementReference) Once(event string, h *EventHandler) *EventHandler {
	if h == nil {
		return nil
	}
	return r.On(event, h.TriggerOnce())
}

// Off detaches h from event.
func (r *ElementReference) Off(event string, h *EventHandler) {
	i, b := r.findBinding(event, h)
	if b == nil {
		return
	}
	b.unlisteners.Apply()
	list := r.bindings[event]
	r.bindings[event] = append(list[:i:i], list[i+1:]...)
	if len(r.bindings[event]) == 0 {
		delete(r.bindings, event)
	}
}

// OffAll detaches every handler bound to event. An empty event detaches
// everything.
func (r *ElementReference) OffAll(event string) {
	for ev, list := range r.bindings {
		if event != "" && ev != event {
			continue
		}
		for _, b := range list {
			b.unlisteners.Apply()
		}
		delete(r.bindings, ev)
	}
}

// Bound returns the number of handlers bound to event.
func (r *ElementReference) Bound(event string) int {
	return len(r.bindings[event])
}

// Forward publishes topic on the channel, with the event as payload, each time
// event fires on a referenced element.
func (r *ElementReference) Forward(event string, topic string, preventDefault bool) *EventHandler {
	if r.channel == nil {
		r.Logger.Print(fmt.Errorf("%w: cannot forward %s to %s without an event channel", ErrMissingDependency, event, topic))
		return nil
	}
	return r.On(event, NewEventHandler(func(evt Event) bool {
		if preventDefault {
			evt.PreventDefault()
		}
		r.channel.Publish(topic, evt)
		return false
	}))
}

// ForwardMap forwards several events, keyed by event name, to their topic.
func (r *ElementReference) ForwardMap(m map[string]string, preventDefault bool) map[string]*EventHandler {
	res := make(map[string]*EventHandler, len(m))
	for event, topic := range m {
		if h := r.Forward(event, topic, preventDefault); h != nil {
			res[event] = h
		}
	}
	return res
}

func (r *ElementReference) SetAttribute(key, value string) {
	for _, n := range r.Elements() {
		SetAttribute(n, key, value)
	}
}

func (r *ElementReference) RemoveAttribute(key string) {
	for _, n := range r.Elements() {
		RemoveAttribute(n, key)
	}
}

// EachClassList returns the class list operations over every element.
func (r *ElementReference) EachClassList() ClassList {
	return ClassList{r}
}

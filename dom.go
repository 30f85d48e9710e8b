package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Rect is the layout box of a node, in document coordinates.
type Rect struct {
	Top    float64
	Left   float64
	Width  float64
	Height float64
}

// Intersects reports whether the vertical extents of two rects overlap.
func (r Rect) Intersects(o Rect) bool {
	return r.Top < o.Top+o.Height && o.Top < r.Top+r.Height
}

// Document is the DOM substrate registries and references operate on.
// It wraps an html node tree and adds what the tree lacks: per-node native
// event listeners with capture and bubbling dispatch, child-list mutation
// observers, and a minimal layout (node rects and a scrollable viewport).
type Document struct {
	root *html.Node

	listeners map[*html.Node]EventListeners
	observers map[*html.Node][]*MutationObserver
	selectors map[string]cascadia.Selector

	rects    map[*html.Node]Rect
	viewport Rect

	loop *Loop
}

// NewDocument wraps an existing node tree. root should be a document node.
func NewDocument(root *html.Node) *Document {
	return &Document{
		root:      root,
		listeners: make(map[*html.Node]EventListeners),
		observers: make(map[*html.Node][]*MutationObserver),
		selectors: make(map[string]cascadia.Selector),
		rects:     make(map[*html.Node]Rect),
	}
}

// ParseDocument parses html markup into a Document.
func ParseDocument(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return NewDocument(root), nil
}

// ParseHTML is ParseDocument for a string.
func ParseHTML(markup string) (*Document, error) {
	return ParseDocument(strings.NewReader(markup))
}

// SetLoop makes mutation records be delivered asynchronously on l.
func (d *Document) SetLoop(l *Loop) *Document {
	d.loop = l
	return d
}

func (d *Document) Root() *html.Node { return d.root }

// DocumentElement returns the <html> element.
func (d *Document) DocumentElement() *html.Node {
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

// Body returns the <body> element, if any.
func (d *Document) Body() *html.Node {
	n, _ := d.Query("body")
	return n
}

// Render writes the document markup to w.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

func (d *Document) compile(selector string) (cascadia.Selector, error) {
	if s, ok := d.selectors[selector]; ok {
		return s, nil
	}
	if strings.TrimSpace(selector) == "" {
		return nil, fmt.Errorf("%w: empty selector", ErrInvalidArgument)
	}
	s, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("%w: selector %q: %v", ErrInvalidArgument, selector, err)
	}
	d.selectors[selector] = s
	return s, nil
}

// ValidSelector reports an error if selector cannot be compiled.
func (d *Document) ValidSelector(selector string) error {
	_, err := d.compile(selector)
	return err
}

// QueryAll returns every element matching selector, in document order.
func (d *Document) QueryAll(selector string) ([]*html.Node, error) {
	s, err := d.compile(selector)
	if err != nil {
		return nil, err
	}
	return s.MatchAll(d.root), nil
}

// Query returns the first element matching selector, or nil.
func (d *Document) Query(selector string) (*html.Node, error) {
	s, err := d.compile(selector)
	if err != nil {
		return nil, err
	}
	return s.MatchFirst(d.root), nil
}

// Contains reports whether n is attached to the document.
func (d *Document) Contains(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == d.root {
			return true
		}
	}
	return false
}

// CreateElement returns a detached element node.
func (d *Document) CreateElement(tag string) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
}

// AddEventListener registers a native listener on n. The returned function
// removes it.
func (d *Document) AddEventListener(n *html.Node, typ string, h *EventHandler) (remove func()) {
	l, ok := d.listeners[n]
	if !ok {
		l = NewEventListenerStore()
		d.listeners[n] = l
	}
	l.AddEventHandler(typ, h)
	return func() { d.RemoveEventListener(n, typ, h) }
}

func (d *Document) RemoveEventListener(n *html.Node, typ string, h *EventHandler) {
	l, ok := d.listeners[n]
	if !ok {
		return
	}
	l.RemoveEventHandler(typ, h)
	if len(l.list) == 0 {
		delete(d.listeners, n)
	}
}

// ListenerCount returns the number of native listeners for typ on n.
func (d *Document) ListenerCount(n *html.Node, typ string) int {
	l, ok := d.listeners[n]
	if !ok {
		return 0
	}
	return l.Count(typ)
}

// TotalListenerCount returns the number of native listeners for typ in the
// whole document.
func (d *Document) TotalListenerCount(typ string) int {
	total := 0
	for _, l := range d.listeners {
		total += l.Count(typ)
	}
	return total
}

// Dispatch fires a new event of type typ at target.
func (d *Document) Dispatch(target *html.Node, typ string, bubbles bool) Event {
	return d.DispatchEvent(NewEvent(typ, bubbles, target, nil))
}

// Trigger fires a bubbling event at target.
func (d *Document) Trigger(target *html.Node, typ string) Event {
	return d.Dispatch(target, typ, true)
}

// DispatchEvent runs the capture, target and bubbling phases of evt along the
// ancestor path of its target.
func (d *Document) DispatchEvent(evt Event) Event {
	target := evt.Target()
	if target == nil {
		return evt
	}
	path := make([]*html.Node, 0, 8)
	for p := target.Parent; p != nil; p = p.Parent {
		path = append(path, p)
	}

	visit := func(n *html.Node) bool {
		l, ok := d.listeners[n]
		if !ok {
			return false
		}
		evt.SetCurrentTarget(n)
		return l.Handle(evt)
	}

	evt.SetPhase(PhaseCapture)
	for i := len(path) - 1; i >= 0; i-- {
		if visit(path[i]) {
			return evt
		}
	}

	evt.SetPhase(PhaseTarget)
	if visit(target) {
		return evt
	}

	if !evt.Bubbles() {
		return evt
	}
	evt.SetPhase(PhaseBubble)
	for _, n := range path {
		if visit(n) {
			return evt
		}
	}
	return evt
}

// AppendChild attaches child as the last child of parent.
func (d *Document) AppendChild(parent, child *html.Node) {
	if child.Parent != nil {
		d.Remove(child)
	}
	parent.AppendChild(child)
	d.record(MutationRecord{Target: parent, Added: []*html.Node{child}})
}

// AppendHTML parses markup in the context of parent and appends the
// resulting nodes to it.
func (d *Document) AppendHTML(parent *html.Node, markup string) ([]*html.Node, error) {
	nodes, err := html.ParseFragment(strings.NewReader(markup), parent)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		parent.AppendChild(n)
	}
	if len(nodes) > 0 {
		d.record(MutationRecord{Target: parent, Added: nodes})
	}
	return nodes, nil
}

// InsertBefore inserts child before ref, which must be a child of parent.
func (d *Document) InsertBefore(parent, child, ref *html.Node) {
	if child.Parent != nil {
		d.Remove(child)
	}
	parent.InsertBefore(child, ref)
	d.record(MutationRecord{Target: parent, Added: []*html.Node{child}})
}

// RemoveChild detaches child from parent. It is a noop if child is not a
// child of parent.
func (d *Document) RemoveChild(parent, child *html.Node) {
	if child.Parent != parent {
		return
	}
	parent.RemoveChild(child)
	d.record(MutationRecord{Target: parent, Removed: []*html.Node{child}})
}

// Remove detaches n from its parent.
func (d *Document) Remove(n *html.Node) {
	if n == nil || n.Parent == nil {
		return
	}
	d.RemoveChild(n.Parent, n)
}

// SetRect sets the layout box of n.
func (d *Document) SetRect(n *html.Node, r Rect) {
	d.rects[n] = r
}

// Rect returns the layout box of n. Nodes without one have an empty box.
func (d *Document) Rect(n *html.Node) Rect {
	return d.rects[n]
}

func (d *Document) SetViewport(r Rect) {
	d.viewport = r
}

func (d *Document) Viewport() Rect {
	return d.viewport
}

// InViewport reports whether the layout box of n intersects the viewport.
func (d *Document) InViewport(n *html.Node) bool {
	r, ok := d.rects[n]
	if !ok {
		return false
	}
	return r.Intersects(d.viewport)
}

// ScrollTo moves the viewport and fires a scroll event on the document node.
func (d *Document) ScrollTo(top float64) {
	d.viewport.Top = top
	d.Dispatch(d.root, "scroll", false)
}

// Attribute returns the value of the key attribute of n.
func Attribute(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttribute sets the key attribute of n.
func SetAttribute(n *html.Node, key, value string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: value})
}

// RemoveAttribute removes the key attribute of n.
func RemoveAttribute(n *html.Node, key string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

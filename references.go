package ui

import (
	"log"
	"sort"

	"golang.org/x/net/html"
)

// References is the named registry of element references of a runtime.
// Creating a reference under an existing name replaces the previous entry.
type References struct {
	doc     *Document
	channel *Channel
	refs    map[string]*ElementReference

	// attached are the unnamed references owned by view registries. They
	// follow the complex compression switch like the named ones.
	attached map[*ElementReference]struct{}
	complex  bool

	Logger *log.Logger
}

func NewReferences(doc *Document, channel *Channel) *References {
	return &References{
		doc:      doc,
		channel:  channel,
		refs:     make(map[string]*ElementReference),
		attached: make(map[*ElementReference]struct{}),
		Logger:   log.Default(),
	}
}

func (r *References) attach(ref *ElementReference) {
	ref.complexCompression = r.complex
	r.attached[ref] = struct{}{}
}

func (r *References) detach(ref *ElementReference) {
	delete(r.attached, ref)
}

// Create registers a new reference for selector under name.
func (r *References) Create(name string, selector string) (*ElementReference, error) {
	ref, err := NewElementReference(r.doc, r.channel, selector)
	if err != nil {
		return nil, err
	}
	ref.name = name
	ref.Logger = r.Logger
	ref.complexCompression = r.complex
	if old, ok := r.refs[name]; ok {
		r.Logger.Printf("reference %q is being overwritten (%s -> %s)", name, old.selector, selector)
	}
	r.refs[name] = ref
	return ref, nil
}

// Remove unregisters the reference. The DOM is left untouched.
func (r *References) Remove(name string) bool {
	_, ok := r.refs[name]
	delete(r.refs, name)
	return ok
}

func (r *References) Get(name string) (*ElementReference, bool) {
	ref, ok := r.refs[name]
	return ref, ok
}

// Find returns the first registered reference, by name order, whose selector
// is selector.
func (r *References) Find(selector string) (*ElementReference, bool) {
	for _, name := range r.Names() {
		if ref := r.refs[name]; ref.selector == selector {
			return ref, true
		}
	}
	return nil, false
}

// Query returns the elements matching selector without registering anything.
func (r *References) Query(selector string) ([]*html.Node, error) {
	return r.doc.QueryAll(selector)
}

// Names returns the registered names in lexical order.
func (r *References) Names() []string {
	names := make([]string, 0, len(r.refs))
	for k := range r.refs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// EnableComplexEventCompression turns complex compression on for every
// registered reference, the ones bound to view registries, and the ones
// created afterwards. Existing bindings keep their strategy until rebound.
func (r *References) EnableComplexEventCompression() {
	r.complex = true
	for _, ref := range r.refs {
		ref.EnableComplexCompression()
	}
	for ref := range r.attached {
		ref.EnableComplexCompression()
	}
}

func (r *References) DisableComplexEventCompression() {
	r.complex = false
	for _, ref := range r.refs {
		ref.DisableComplexCompression()
	}
	for ref := range r.attached {
		ref.DisableComplexCompression()
	}
}

func (r *References) ComplexEventCompression() bool {
	return r.complex
}

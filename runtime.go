package ui

import (
	"log"
	"os"
	"sort"
	"sync"
)

// Runtime groups the process-wide collaborators registries share: the
// document, the loop everything runs on, the event channel, the reference
// registry and the registry of live views.
//
// A program usually has a single runtime (see Init and Default). Tests create
// their own with NewRuntime to stay isolated.
type Runtime struct {
	Document   *Document
	Loop       *Loop
	Channel    *Channel
	References *References
	Views      *Views

	Logger *log.Logger
}

// NewRuntime wires a runtime around doc.
func NewRuntime(doc *Document, options ...func(*Runtime) *Runtime) *Runtime {
	rt := &Runtime{
		Document: doc,
		Loop:     NewLoop(),
		Channel:  NewChannel(),
		Views:    newViews(),
		Logger:   log.New(os.Stderr, "viewregistry: ", log.LstdFlags),
	}
	for _, option := range options {
		rt = option(rt)
	}
	if rt.Document != nil {
		rt.Document.SetLoop(rt.Loop)
	}
	rt.Channel.Logger = rt.Logger
	if rt.References == nil {
		rt.References = NewReferences(rt.Document, rt.Channel)
	}
	rt.References.Logger = rt.Logger
	return rt
}

// WithLogger sets the runtime logger.
func WithLogger(l *log.Logger) func(*Runtime) *Runtime {
	return func(rt *Runtime) *Runtime {
		rt.Logger = l
		return rt
	}
}

// WithComplexEventCompression enables complex compression for every reference.
func WithComplexEventCompression() func(*Runtime) *Runtime {
	return func(rt *Runtime) *Runtime {
		if rt.References == nil {
			rt.References = NewReferences(rt.Document, rt.Channel)
		}
		rt.References.EnableComplexEventCompression()
		return rt
	}
}

// Views is the registry of live view registries, by ID. Registries refer to
// their parent and peers through it rather than by pointer.
type Views struct {
	byID map[string]*ViewRegistry
}

func newViews() *Views {
	return &Views{make(map[string]*ViewRegistry)}
}

func (v *Views) Get(id string) (*ViewRegistry, bool) {
	r, ok := v.byID[id]
	return r, ok
}

// add registers r. Registries sharing a namespace share their topics, so
// subscribers of one (reactions, reflexes) also hear the other: it is logged.
func (v *Views) add(r *ViewRegistry) {
	for _, id := range v.IDs() {
		if other := v.byID[id]; other.namespace == r.namespace {
			r.Logger.Printf("namespace %q of %s is already used by registry %s: their topics are shared", r.namespace, r.selector, other.id)
			break
		}
	}
	v.byID[r.id] = r
}

func (v *Views) remove(r *ViewRegistry) {
	delete(v.byID, r.id)
}

func (v *Views) Len() int { return len(v.byID) }

// IDs returns the registered IDs in lexical order.
func (v *Views) IDs() []string {
	ids := make([]string, 0, len(v.byID))
	for id := range v.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

var (
	defaultMu      sync.Mutex
	defaultRuntime *Runtime
)

// Init installs the process-wide runtime for doc and returns it.
func Init(doc *Document, options ...func(*Runtime) *Runtime) *Runtime {
	rt := NewRuntime(doc, options...)
	defaultMu.Lock()
	defaultRuntime = rt
	defaultMu.Unlock()
	return rt
}

// Default returns the process-wide runtime, nil before Init.
func Default() *Runtime {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultRuntime
}

// Teardown destroys every live view of the process-wide runtime and drops it.
func Teardown() {
	defaultMu.Lock()
	rt := defaultRuntime
	defaultRuntime = nil
	defaultMu.Unlock()
	if rt == nil {
		return
	}
	for _, id := range rt.Views.IDs() {
		if v, ok := rt.Views.Get(id); ok {
			if err := v.Destroy(); err != nil {
				rt.Logger.Print(err)
			}
		}
	}
}

package ui

import (
	"golang.org/x/net/html"
)

// Event phases.
const (
	PhaseNone = iota
	PhaseCapture
	PhaseTarget
	PhaseBubble
)

type Event interface {
	Type() string
	Target() *html.Node
	CurrentTarget() *html.Node
	// Reference is the referenced element an event was mapped to by an
	// ElementReference listener. It is nil for raw document listeners.
	Reference() *html.Node

	PreventDefault()
	StopPropagation()          // the phase is still 1,2,or 3 but Stopped returns true
	StopImmediatePropagation() // sets the Phase to 0 and Stopped to true
	SetPhase(int)
	SetCurrentTarget(*html.Node)
	SetReference(*html.Node)

	Phase() int
	Bubbles() bool
	DefaultPrevented() bool
	Stopped() bool

	Native() any // returns the native event object
}

type eventObject struct {
	typ           string
	target        *html.Node
	currentTarget *html.Node
	reference     *html.Node

	defaultPrevented bool
	bubbles          bool
	stopped          bool
	phase            int

	nativeObject any
}

type defaultPreventer interface {
	PreventDefault()
}

func (e *eventObject) Type() string              { return e.typ }
func (e *eventObject) Target() *html.Node        { return e.target }
func (e *eventObject) CurrentTarget() *html.Node { return e.currentTarget }
func (e *eventObject) Reference() *html.Node     { return e.reference }
func (e *eventObject) PreventDefault() {
	if v, ok := e.nativeObject.(defaultPreventer); ok {
		v.PreventDefault()
	}
	e.defaultPrevented = true
}
func (e *eventObject) StopPropagation() { e.stopped = true }
func (e *eventObject) StopImmediatePropagation() {
	e.stopped = true
	e.phase = PhaseNone
}
func (e *eventObject) SetPhase(i int)                 { e.phase = i }
func (e *eventObject) SetCurrentTarget(t *html.Node)  { e.currentTarget = t }
func (e *eventObject) SetReference(r *html.Node)      { e.reference = r }
func (e *eventObject) Phase() int                     { return e.phase }
func (e *eventObject) Bubbles() bool                  { return e.bubbles }
func (e *eventObject) DefaultPrevented() bool         { return e.defaultPrevented }
func (e *eventObject) Stopped() bool                  { return e.stopped }
func (e *eventObject) Native() any                    { return e.nativeObject }

func NewEvent(typ string, bubbles bool, target *html.Node, nativeEvent any) Event {
	return &eventObject{typ: typ, target: target, currentTarget: target, bubbles: bubbles, nativeObject: nativeEvent}
}

// EventListeners holds the listeners registered on a single node, per event type.
type EventListeners struct {
	list map[string]*eventHandlers
}

func NewEventListenerStore() EventListeners {
	return EventListeners{make(map[string]*eventHandlers, 0)}
}

func (e EventListeners) AddEventHandler(typ string, handler *EventHandler) {
	eh, ok := e.list[typ]
	if !ok {
		e.list[typ] = newEventHandlers().Add(handler)
		return
	}
	eh.Add(handler)
}

func (e EventListeners) RemoveEventHandler(typ string, handler *EventHandler) {
	eh, ok := e.list[typ]
	if !ok {
		return
	}
	eh.Remove(handler)
	if len(eh.List) == 0 {
		delete(e.list, typ)
	}
}

func (e EventListeners) Count(typ string) int {
	eh, ok := e.list[typ]
	if !ok {
		return 0
	}
	return len(eh.List)
}

// Handle runs the handlers matching the event phase. It returns true when
// propagation should stop at the current node.
func (e EventListeners) Handle(evt Event) bool {
	evh, ok := e.list[evt.Type()]
	if !ok {
		return false
	}
	snapshot := make([]*EventHandler, len(evh.List))
	copy(snapshot, evh.List)

	for _, h := range snapshot {
		switch evt.Phase() {
		case PhaseNone:
			return true
		case PhaseCapture:
			if !h.Capture {
				continue
			}
		case PhaseBubble:
			if h.Capture {
				continue
			}
		}
		if h.Once {
			e.RemoveEventHandler(evt.Type(), h)
		}
		if h.Handle(evt) {
			return true
		}
		if evt.Stopped() && evt.Phase() == PhaseNone {
			return true
		}
	}
	return evt.Stopped()
}

type eventHandlers struct {
	List []*EventHandler
}

func newEventHandlers() *eventHandlers {
	return &eventHandlers{make([]*EventHandler, 0)}
}

func (e *eventHandlers) Add(h *EventHandler) *eventHandlers {
	e.List = append(e.List, h)
	return e
}

func (e *eventHandlers) Remove(h *EventHandler) *eventHandlers {
	index := -1
	for k, v := range e.List {
		if v != h {
			continue
		}
		index = k
		break
	}
	if index >= 0 {
		e.List = append(e.List[:index:index], e.List[index+1:]...)
	}
	return e
}

type EventHandler struct {
	Fn      func(Event) bool
	Capture bool // propagation mode: if false bubbles up, otherwise captured by the top most element and propagate down .

	Once bool
}

func (e *EventHandler) Handle(evt Event) bool {
	return e.Fn(evt)
}

func NewEventHandler(fn func(Event) bool) *EventHandler {
	return &EventHandler{fn, false, false}
}

func (e *EventHandler) ForCapture() *EventHandler {
	e.Capture = true
	return e
}

func (e *EventHandler) TriggerOnce() *EventHandler {
	e.Once = true
	return e
}

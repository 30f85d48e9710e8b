package ui

import (
	"golang.org/x/net/html"
)

// MutationRecord describes a change in the child list of Target.
type MutationRecord struct {
	Target  *html.Node
	Added   []*html.Node
	Removed []*html.Node
}

// MutationObserver receives the child-list mutations of a node.
// Records are batched: when the document runs on a Loop, every record queued
// during a task is delivered in a single call, in a microtask.
type MutationObserver struct {
	doc     *Document
	target  *html.Node
	fn      func([]MutationRecord)
	pending []MutationRecord
	queued  bool
	active  bool
}

// Observe starts watching the child list of n.
func (d *Document) Observe(n *html.Node, fn func([]MutationRecord)) *MutationObserver {
	o := &MutationObserver{doc: d, target: n, fn: fn, active: true}
	d.observers[n] = append(d.observers[n], o)
	return o
}

// Target returns the observed node.
func (o *MutationObserver) Target() *html.Node { return o.target }

// Active reports whether the observer has not been disconnected.
func (o *MutationObserver) Active() bool { return o.active }

// Disconnect stops the observer. Pending records are dropped.
func (o *MutationObserver) Disconnect() {
	if !o.active {
		return
	}
	o.active = false
	o.pending = nil
	list := o.doc.observers[o.target]
	for i, v := range list {
		if v == o {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(o.doc.observers, o.target)
		return
	}
	o.doc.observers[o.target] = list
}

func (o *MutationObserver) flush() {
	o.queued = false
	if !o.active || len(o.pending) == 0 {
		return
	}
	records := o.pending
	o.pending = nil
	o.fn(records)
}

func (d *Document) record(r MutationRecord) {
	list, ok := d.observers[r.Target]
	if !ok {
		return
	}
	for _, o := range list {
		o.pending = append(o.pending, r)
		if d.loop == nil {
			o.flush()
			continue
		}
		if o.queued {
			continue
		}
		o.queued = true
		d.loop.Microtask(o.flush)
	}
}

// RemovedNode reports whether n is among the removed nodes of the record.
func (r MutationRecord) RemovedNode(n *html.Node) bool {
	for _, v := range r.Removed {
		if v == n {
			return true
		}
	}
	return false
}

package ui

// EnableElementMonitor watches the parent of the bound element. When the
// element is removed from it, element.removed is published and the monitor
// turns itself off.
func (r *ViewRegistry) EnableElementMonitor() {
	if r.elementMonitor != nil || r.destroyed {
		return
	}
	el := r.Element()
	if el == nil || el.Parent == nil {
		r.Logger.Printf("element monitor of %s: nothing to watch", r.namespace)
		return
	}
	r.elementMonitor = r.rt.Document.Observe(el.Parent, func(records []MutationRecord) {
		for _, rec := range records {
			if !rec.RemovedNode(el) {
				continue
			}
			r.scope.Publish("element.removed", el)
			r.DisableElementMonitor()
			return
		}
	})
	r.scope.Publish("monitoring.enabled", "element")
}

func (r *ViewRegistry) DisableElementMonitor() {
	if r.elementMonitor == nil {
		return
	}
	r.elementMonitor.Disconnect()
	r.elementMonitor = nil
	r.scope.Publish("monitoring.disabled", "element")
}

// ElementMonitored reports whether the element monitor is on.
func (r *ViewRegistry) ElementMonitored() bool {
	return r.elementMonitor != nil
}

// EnableScrollMonitor publishes enterViewport and exitViewport when the bound
// element starts or stops intersecting the document viewport.
func (r *ViewRegistry) EnableScrollMonitor() {
	if r.scrollMonitor != nil || r.destroyed {
		return
	}
	doc := r.rt.Document
	r.inViewport = r.visible()
	h := NewEventHandler(func(evt Event) bool {
		visible := r.visible()
		if visible == r.inViewport {
			return false
		}
		r.inViewport = visible
		el := r.Element()
		if visible {
			r.scope.Publish("enterViewport", el)
		} else {
			r.scope.Publish("exitViewport", el)
		}
		return false
	})
	r.scrollMonitor = doc.AddEventListener(doc.Root(), "scroll", h)
	r.scope.Publish("monitoring.enabled", "scroll")
}

func (r *ViewRegistry) DisableScrollMonitor() {
	if r.scrollMonitor == nil {
		return
	}
	r.scrollMonitor()
	r.scrollMonitor = nil
	r.scope.Publish("monitoring.disabled", "scroll")
}

// ScrollMonitored reports whether the scroll monitor is on.
func (r *ViewRegistry) ScrollMonitored() bool {
	return r.scrollMonitor != nil
}

// InViewport reports the last visibility computed by the scroll monitor.
func (r *ViewRegistry) InViewport() bool {
	return r.inViewport
}

func (r *ViewRegistry) visible() bool {
	el := r.Element()
	if el == nil {
		return false
	}
	return r.rt.Document.InViewport(el)
}

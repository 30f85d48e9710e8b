package ui

import (
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/net/html"
)

// ComponentAttribute is the attribute carrying the identifier of a component
// on its element.
const ComponentAttribute = "data-view-component"

// NewViewComponent builds a registry bound to a given element rather than to
// a selector. The element is tagged with a generated identifier which serves
// as selector and as the last namespace segment, so that sibling components
// never share topics.
//
// cfg.Selector is ignored. cfg.Namespace, when set, is used as a prefix.
func NewViewComponent(rt *Runtime, n *html.Node, cfg *Config) (*ViewRegistry, error) {
	if rt == nil || rt.Views == nil {
		return nil, fmt.Errorf("%w: a view component needs a runtime", ErrMissingDependency)
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if n == nil || n.Type != html.ElementNode {
		return nil, fmt.Errorf("%w: a view component needs an element", ErrConfiguration)
	}
	id, ok := Attribute(n, ComponentAttribute)
	tagged := !ok || id == ""
	if tagged {
		id = uuid.NewString()
		SetAttribute(n, ComponentAttribute, id)
	} else if _, live := rt.Views.Get(id); live {
		return nil, fmt.Errorf("%w: element already bound to component %s", ErrConfiguration, id)
	}

	namespace := "component." + id
	if cfg.Namespace != "" {
		namespace = cfg.Namespace + "." + id
	}
	selector := fmt.Sprintf("[%s=%q]", ComponentAttribute, id)
	r, err := newViewRegistry(rt, *cfg, id, selector, namespace)
	if err != nil {
		if tagged {
			RemoveAttribute(n, ComponentAttribute)
		}
		return nil, err
	}
	return r, nil
}

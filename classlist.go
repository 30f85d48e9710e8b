package ui

import (
	"strings"

	"golang.org/x/net/html"
)

// Classes returns the class list of n.
func Classes(n *html.Node) []string {
	v, ok := Attribute(n, "class")
	if !ok {
		return nil
	}
	return strings.Fields(v)
}

func setClasses(n *html.Node, classes []string) {
	if len(classes) == 0 {
		RemoveAttribute(n, "class")
		return
	}
	SetAttribute(n, "class", strings.Join(classes, " "))
}

func HasClass(n *html.Node, class string) bool {
	for _, c := range Classes(n) {
		if c == class {
			return true
		}
	}
	return false
}

func AddClass(n *html.Node, classes ...string) {
	list := Classes(n)
	for _, c := range classes {
		if c == "" || HasClass(n, c) {
			continue
		}
		list = append(list, c)
		setClasses(n, list)
	}
}

func RemoveClass(n *html.Node, classes ...string) {
	list := Classes(n)
	out := list[:0]
	for _, c := range list {
		keep := true
		for _, r := range classes {
			if c == r {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, c)
		}
	}
	setClasses(n, out)
}

// ToggleClass removes class if present, adds it otherwise. It returns whether
// the class is present afterwards.
func ToggleClass(n *html.Node, class string) bool {
	if HasClass(n, class) {
		RemoveClass(n, class)
		return false
	}
	AddClass(n, class)
	return true
}

// ReplaceClass replaces old by new in place. It reports whether old was found.
func ReplaceClass(n *html.Node, old, new string) bool {
	list := Classes(n)
	found := false
	out := make([]string, 0, len(list))
	for _, c := range list {
		if c == old {
			found = true
			if !HasClass(n, new) {
				out = append(out, new)
			}
			continue
		}
		out = append(out, c)
	}
	if found {
		setClasses(n, out)
	}
	return found
}

// ClassList applies class list operations to every element of a reference.
type ClassList struct {
	ref *ElementReference
}

func (c ClassList) Add(classes ...string) {
	for _, n := range c.ref.Elements() {
		AddClass(n, classes...)
	}
}

func (c ClassList) Remove(classes ...string) {
	for _, n := range c.ref.Elements() {
		RemoveClass(n, classes...)
	}
}

func (c ClassList) Toggle(class string) {
	for _, n := range c.ref.Elements() {
		ToggleClass(n, class)
	}
}

func (c ClassList) Replace(old, new string) {
	for _, n := range c.ref.Elements() {
		ReplaceClass(n, old, new)
	}
}

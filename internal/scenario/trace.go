package scenario

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	ui "github.com/atdiar/viewregistry"
)

// FormatMessage renders a channel message as a single trace line.
func FormatMessage(m ui.Message) string {
	if len(m.Payload) == 0 {
		return m.Topic
	}
	parts := make([]string, 0, len(m.Payload))
	for _, p := range m.Payload {
		parts = append(parts, formatValue(p))
	}
	return m.Topic + " " + strings.Join(parts, " ")
}

func formatValue(v any) string {
	switch t := v.(type) {
	case ui.StateChange:
		return t.Old + " -> " + t.New
	case ui.PropertyChange:
		return t.Property + ": " + formatUIValue(t.Old) + " -> " + formatUIValue(t.New)
	case ui.ValueChange:
		return formatUIValue(t.Old) + " -> " + formatUIValue(t.New)
	case ui.TransitionError:
		return t.Error()
	case ui.Event:
		return fmt.Sprintf("%s@%s", t.Type(), describeNode(t.Reference()))
	case *html.Node:
		return describeNode(t)
	case ui.Value:
		return formatUIValue(t)
	}
	return fmt.Sprint(v)
}

func formatUIValue(v ui.Value) string {
	switch t := v.(type) {
	case nil:
		return "<none>"
	case ui.String:
		return string(t)
	case ui.Object:
		parts := make([]string, 0, len(t))
		for _, k := range t.Keys() {
			parts = append(parts, k+": "+formatUIValue(t[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case ui.List:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, formatUIValue(item))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return fmt.Sprintf("%v", v.RawValue())
}

// describeNode renders an element as tag#id.class1.class2.
func describeNode(n *html.Node) string {
	if n == nil {
		return "<nil>"
	}
	if n.Type != html.ElementNode {
		return "#" + nodeType(n)
	}
	var b strings.Builder
	b.WriteString(n.Data)
	if id, ok := ui.Attribute(n, "id"); ok && id != "" {
		b.WriteString("#" + id)
	}
	for _, c := range ui.Classes(n) {
		b.WriteString("." + c)
	}
	return b.String()
}

func nodeType(n *html.Node) string {
	switch n.Type {
	case html.TextNode:
		return "text"
	case html.DocumentNode:
		return "document"
	case html.CommentNode:
		return "comment"
	}
	return "node"
}

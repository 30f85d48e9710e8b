package ui

import (
	"io"
	"log"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func newTestRuntime(t require.TestingT, markup string, options ...func(*Runtime) *Runtime) *Runtime {
	doc, err := ParseHTML(markup)
	require.NoError(t, err)
	options = append([]func(*Runtime) *Runtime{WithLogger(log.New(io.Discard, "", 0))}, options...)
	return NewRuntime(doc, options...)
}

func mustQuery(t require.TestingT, doc *Document, selector string) *html.Node {
	n, err := doc.Query(selector)
	require.NoError(t, err)
	require.NotNil(t, n, "no match for %s", selector)
	return n
}

func mustQueryAll(t require.TestingT, doc *Document, selector string) []*html.Node {
	nodes, err := doc.QueryAll(selector)
	require.NoError(t, err)
	return nodes
}

// recorder collects the messages published on a set of topics.
type recorder struct {
	messages []Message
}

func record(ch *Channel, topics ...string) *recorder {
	rec := &recorder{}
	for _, topic := range topics {
		ch.Subscribe(topic, NewHandler(func(m Message) bool {
			rec.messages = append(rec.messages, m)
			return false
		}))
	}
	return rec
}

func (r *recorder) topics() []string {
	res := make([]string, 0, len(r.messages))
	for _, m := range r.messages {
		res = append(res, m.Topic)
	}
	return res
}

func (r *recorder) count(topic string) int {
	n := 0
	for _, m := range r.messages {
		if m.Topic == topic {
			n++
		}
	}
	return n
}

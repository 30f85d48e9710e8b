package ui

import (
	"log"
	"strings"
)

// Message is what subscribers of a Channel topic receive.
type Message struct {
	Topic   string
	Payload []any
}

// Value returns the first payload item, or nil.
func (m Message) Value() any {
	if len(m.Payload) == 0 {
		return nil
	}
	return m.Payload[0]
}

// Handler is a wrapper type around a callback function run when a message is
// published on a topic. Handlers are compared by pointer identity, which is
// what Unsubscribe relies on.
// If Fn returns true, the handlers registered after it are not called.
type Handler struct {
	Fn   func(Message) bool
	Once bool
}

// NewHandler returns a Handler for fn.
func NewHandler(fn func(Message) bool) *Handler {
	return &Handler{Fn: fn}
}

// RunOnce makes the handler unsubscribe itself after its first call.
func (h *Handler) RunOnce() *Handler {
	h.Once = true
	return h
}

// Handle calls the handler function.
func (h *Handler) Handle(m Message) bool {
	return h.Fn(m)
}

type handlers struct {
	list []*Handler
}

func newHandlers() *handlers {
	return &handlers{make([]*Handler, 0)}
}

func (hs *handlers) Add(h *Handler) *handlers {
	hs.list = append(hs.list, h)
	return hs
}

func (hs *handlers) Remove(h *Handler) *handlers {
	index := -1
	for k, v := range hs.list {
		if v != h {
			continue
		}
		index = k
		break
	}
	if index >= 0 {
		hs.list = append(hs.list[:index:index], hs.list[index+1:]...)
	}
	return hs
}

func (hs *handlers) Contains(h *Handler) bool {
	for _, v := range hs.list {
		if v == h {
			return true
		}
	}
	return false
}

// Channel is a topic based publish/subscribe bus. Topics are flat,
// dot-delimited strings; scoping is plain prefix concatenation.
// A Channel is not safe for concurrent use: it belongs to the loop goroutine.
type Channel struct {
	topics map[string]*handlers
	taps   []func(Message)

	Logger *log.Logger
}

// NewChannel returns an empty Channel.
func NewChannel() *Channel {
	return &Channel{topics: make(map[string]*handlers)}
}

// Subscribe registers h for topic and returns it.
func (c *Channel) Subscribe(topic string, h *Handler) *Handler {
	hs, ok := c.topics[topic]
	if !ok {
		hs = newHandlers()
		c.topics[topic] = hs
	}
	hs.Add(h)
	return h
}

// SubscribeOnce registers h for the next message published on topic only.
func (c *Channel) SubscribeOnce(topic string, h *Handler) *Handler {
	return c.Subscribe(topic, h.RunOnce())
}

// Unsubscribe removes h from topic.
func (c *Channel) Unsubscribe(topic string, h *Handler) {
	hs, ok := c.topics[topic]
	if !ok {
		return
	}
	hs.Remove(h)
	if len(hs.list) == 0 {
		delete(c.topics, topic)
	}
}

// Subscribers returns the number of handlers registered for topic.
func (c *Channel) Subscribers(topic string) int {
	hs, ok := c.topics[topic]
	if !ok {
		return 0
	}
	return len(hs.list)
}

// Publish calls every handler of topic, in subscription order, with the
// payload. Handlers subscribed while the message is being dispatched are not
// called for it.
func (c *Channel) Publish(topic string, payload ...any) {
	m := Message{Topic: topic, Payload: payload}
	for _, tap := range c.taps {
		tap(m)
	}
	hs, ok := c.topics[topic]
	if !ok {
		return
	}
	snapshot := make([]*Handler, len(hs.list))
	copy(snapshot, hs.list)
	for _, h := range snapshot {
		if !hs.Contains(h) {
			continue // unsubscribed by a previous handler
		}
		if h.Once {
			c.Unsubscribe(topic, h)
		}
		if h.Handle(m) {
			return
		}
	}
}

// Tap registers fn to observe every published message, before any handler.
func (c *Channel) Tap(fn func(Message)) {
	c.taps = append(c.taps, fn)
}

// Pool is a group of handlers registered under a common prefix.
type Pool struct {
	channel  *Channel
	prefix   string
	handlers map[string]*Handler
}

// RegisterPool subscribes every handler of pool under prefix+topic.
func (c *Channel) RegisterPool(prefix string, pool map[string]*Handler) *Pool {
	p := &Pool{c, prefix, make(map[string]*Handler, len(pool))}
	for topic, h := range pool {
		p.handlers[topic] = c.Subscribe(prefix+topic, h)
	}
	return p
}

// Unregister removes every handler of the pool.
func (p *Pool) Unregister() {
	for topic, h := range p.handlers {
		p.channel.Unsubscribe(p.prefix+topic, h)
	}
	p.handlers = map[string]*Handler{}
}

// Threshold calls h once, with the n-th message published on topic.
// The returned handler can be used to cancel the threshold.
func (c *Channel) Threshold(topic string, n int, h *Handler) *Handler {
	count := 0
	var counter *Handler
	counter = NewHandler(func(m Message) bool {
		count++
		if count < n {
			return false
		}
		c.Unsubscribe(topic, counter)
		return h.Handle(m)
	})
	return c.Subscribe(topic, counter)
}

// Funnel calls h once every topic has been published at least once.
// The message passed to h has the funnel topics joined by a comma as topic and
// the last message received on each topic as payload, in the order the topics
// were given.
func (c *Channel) Funnel(topics []string, h *Handler) {
	if len(topics) == 0 {
		return
	}
	received := make(map[string]Message, len(topics))
	subs := make(map[string]*Handler, len(topics))
	for _, topic := range topics {
		topic := topic
		if _, ok := subs[topic]; ok {
			continue
		}
		subs[topic] = c.Subscribe(topic, NewHandler(func(m Message) bool {
			received[topic] = m
			if len(received) < len(subs) {
				return false
			}
			for t, s := range subs {
				c.Unsubscribe(t, s)
			}
			payload := make([]any, 0, len(topics))
			for _, t := range topics {
				payload = append(payload, received[t])
			}
			h.Handle(Message{Topic: strings.Join(topics, ","), Payload: payload})
			return false
		}))
	}
}

// Scope returns a view of the channel where every topic is prefixed.
func (c *Channel) Scope(prefix string) Scope {
	return Scope{c, prefix}
}

// Scope is a prefixed view over a Channel.
type Scope struct {
	Channel *Channel
	Prefix  string
}

func (s Scope) Topic(topic string) string { return s.Prefix + topic }

func (s Scope) Subscribe(topic string, h *Handler) *Handler {
	return s.Channel.Subscribe(s.Prefix+topic, h)
}

func (s Scope) SubscribeOnce(topic string, h *Handler) *Handler {
	return s.Channel.SubscribeOnce(s.Prefix+topic, h)
}

func (s Scope) Unsubscribe(topic string, h *Handler) {
	s.Channel.Unsubscribe(s.Prefix+topic, h)
}

func (s Scope) Publish(topic string, payload ...any) {
	s.Channel.Publish(s.Prefix+topic, payload...)
}

func (s Scope) RegisterPool(pool map[string]*Handler) *Pool {
	return s.Channel.RegisterPool(s.Prefix, pool)
}

package ui

import (
	"fmt"
)

// attachParent relays the parent notifications into the registry scope and
// maps parent states through the reactions.
func (r *ViewRegistry) attachParent(p *ViewRegistry) {
	relay := func(local string) *Handler {
		return NewHandler(func(m Message) bool {
			r.scope.Publish(local, m.Payload...)
			return false
		})
	}
	ch := r.rt.Channel
	r.track(ch, p.scope.Topic("state.changed"), p.scope.Subscribe("state.changed", relay("parent.state.changed")))
	r.track(ch, p.scope.Topic("property.changed"), p.scope.Subscribe("property.changed", relay("parent.property.changed")))

	react := NewHandler(func(m Message) bool {
		c, ok := m.Value().(StateChange)
		if !ok {
			return false
		}
		own, ok := r.reactions[c.New]
		if !ok {
			return false
		}
		if err := r.SetState(own); err != nil {
			r.Logger.Printf("reaction of %s to parent state %s: %v", r.namespace, c.New, err)
		}
		return false
	})
	r.track(ch, r.scope.Topic("parent.state.changed"), r.scope.Subscribe("parent.state.changed", react))
}

// CreateReaction makes the registry enter ownState whenever its parent enters
// parentState.
func (r *ViewRegistry) CreateReaction(parentState, ownState string) error {
	if _, ok := r.states[ownState]; !ok {
		return fmt.Errorf("%w: %q is not a state of %s", ErrInvalidState, ownState, r.namespace)
	}
	if r.parentID == "" {
		r.Logger.Printf("reaction %s -> %s on %s is inert: no parent", parentState, ownState, r.namespace)
	}
	if old, ok := r.reactions[parentState]; ok && old != ownState {
		r.Logger.Printf("reaction to %s on %s overwritten (%s -> %s)", parentState, r.namespace, old, ownState)
	}
	r.reactions[parentState] = ownState
	return nil
}

// RemoveReaction removes the reaction to parentState.
func (r *ViewRegistry) RemoveReaction(parentState string) bool {
	_, ok := r.reactions[parentState]
	delete(r.reactions, parentState)
	return ok
}

func (r *ViewRegistry) ClearReactions() {
	r.reactions = make(map[string]string)
}

// Reactions returns a copy of the reactions map.
func (r *ViewRegistry) Reactions() map[string]string {
	return copyReactions(r.reactions)
}

func copyReactions(m map[string]string) map[string]string {
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// reflex is a reaction to the state of an arbitrary peer registry.
type reflex struct {
	peerID    string
	topic     string
	reactions map[string]string
	handler   *Handler
}

// Reflex describes one reflex of a registry.
type Reflex struct {
	PeerID    string
	Reactions map[string]string
}

// Reflexes returns the reflexes of the registry, in creation order.
func (r *ViewRegistry) Reflexes() []Reflex {
	res := make([]Reflex, 0, len(r.reflexes))
	for _, rf := range r.reflexes {
		res = append(res, Reflex{rf.peerID, copyReactions(rf.reactions)})
	}
	return res
}

// RegistryReflexIndex returns the position of the reflex on peer, or -1.
func (r *ViewRegistry) RegistryReflexIndex(peer *ViewRegistry) int {
	if peer == nil {
		return -1
	}
	for i, rf := range r.reflexes {
		if rf.peerID == peer.id {
			return i
		}
	}
	return -1
}

// ManagesReflex reports whether the registry has a reflex on peer.
func (r *ViewRegistry) ManagesReflex(peer *ViewRegistry) bool {
	return r.RegistryReflexIndex(peer) >= 0
}

// RegistryReflex returns a copy of the reactions the registry has to peer.
func (r *ViewRegistry) RegistryReflex(peer *ViewRegistry) (map[string]string, bool) {
	i := r.RegistryReflexIndex(peer)
	if i < 0 {
		return nil, false
	}
	return copyReactions(r.reflexes[i].reactions), true
}

// CreateReflex makes the registry enter ownState whenever peer enters
// peerState.
func (r *ViewRegistry) CreateReflex(peer *ViewRegistry, peerState, ownState string) error {
	if peer == nil {
		return fmt.Errorf("%w: reflex without a peer registry", ErrInvalidArgument)
	}
	if peer == r {
		return fmt.Errorf("%w: %s cannot hold a reflex on itself", ErrInvalidArgument, r.namespace)
	}
	if live, ok := r.rt.Views.Get(peer.id); !ok || live != peer {
		return fmt.Errorf("%w: peer %s is not live in this runtime", ErrInvalidArgument, peer.namespace)
	}
	if _, ok := r.states[ownState]; !ok {
		return fmt.Errorf("%w: %q is not a state of %s", ErrInvalidState, ownState, r.namespace)
	}
	if _, ok := peer.states[peerState]; !ok {
		return fmt.Errorf("%w: %q is not a state of peer %s", ErrInvalidState, peerState, peer.namespace)
	}

	if i := r.RegistryReflexIndex(peer); i >= 0 {
		rf := r.reflexes[i]
		if old, ok := rf.reactions[peerState]; ok && old != ownState {
			r.Logger.Printf("reflex of %s to %s:%s overwritten (%s -> %s)", r.namespace, peer.namespace, peerState, old, ownState)
		}
		rf.reactions[peerState] = ownState
		return nil
	}

	rf := &reflex{
		peerID:    peer.id,
		topic:     peer.scope.Topic("state.changed"),
		reactions: map[string]string{peerState: ownState},
	}
	rf.handler = NewHandler(func(m Message) bool {
		c, ok := m.Value().(StateChange)
		if !ok {
			return false
		}
		own, ok := rf.reactions[c.New]
		if !ok {
			return false
		}
		if err := r.SetState(own); err != nil {
			r.Logger.Printf("reflex of %s to peer state %s: %v", r.namespace, c.New, err)
		}
		return false
	})
	r.rt.Channel.Subscribe(rf.topic, rf.handler)
	r.reflexes = append(r.reflexes, rf)
	return nil
}

// RemoveReflex removes the reaction to peerState of peer. The subscription to
// the peer is dropped along with its last reaction.
func (r *ViewRegistry) RemoveReflex(peer *ViewRegistry, peerState string) bool {
	i := r.RegistryReflexIndex(peer)
	if i < 0 {
		return false
	}
	rf := r.reflexes[i]
	if _, ok := rf.reactions[peerState]; !ok {
		return false
	}
	delete(rf.reactions, peerState)
	if len(rf.reactions) == 0 {
		r.dropReflex(i)
	}
	return true
}

// RemoveRegistryReflex removes every reaction to peer.
func (r *ViewRegistry) RemoveRegistryReflex(peer *ViewRegistry) bool {
	i := r.RegistryReflexIndex(peer)
	if i < 0 {
		return false
	}
	r.dropReflex(i)
	return true
}

func (r *ViewRegistry) dropReflex(i int) {
	rf := r.reflexes[i]
	r.rt.Channel.Unsubscribe(rf.topic, rf.handler)
	r.reflexes = append(r.reflexes[:i:i], r.reflexes[i+1:]...)
}

// ClearReflexes removes every reflex and its subscription.
func (r *ViewRegistry) ClearReflexes() {
	for _, rf := range r.reflexes {
		r.rt.Channel.Unsubscribe(rf.topic, rf.handler)
	}
	r.reflexes = nil
}

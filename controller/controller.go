// Package controller applies decoded messages to a host-supplied reactor and
// originates new events on the local agent's behalf. It is the thin
// "terminus" layer the network node hands locally-delivered RPCs to: the
// node decides routing, the controller decides what the host gets told.
// Shaped the same way eventsocket.Handler is one interface with no
// inheritance, invoked synchronously by its caller.
package controller

import (
	"github.com/m-lab/overlay/agent"
	"github.com/m-lab/overlay/event"
	"github.com/m-lab/overlay/metrics"
)

// Reactor is the host-supplied sink for messages that terminate at this
// node, whether originated locally (via the Emit* calls) or delivered here
// by BROADCAST or terminating INFO routing. It is the one external
// collaborator the core treats opaquely.
type Reactor[L comparable] interface {
	React(msg event.Message[L]) error
}

// noopReactor discards every message. It lets a Controller exist before a
// real Reactor is attached, the same role eventsocket.NullServer plays for
// hosts that haven't wired up real event delivery yet.
type noopReactor[L comparable] struct{}

func (noopReactor[L]) React(event.Message[L]) error { return nil }

// Controller owns the reactor and is the sole place Message values are
// constructed from their constituent Agent/Event payloads.
type Controller[L comparable] struct {
	reactor Reactor[L]
}

// New builds a Controller with no reactor attached; it discards every
// message until SetReactor is called.
func New[L comparable]() *Controller[L] {
	return &Controller[L]{reactor: noopReactor[L]{}}
}

// SetReactor replaces the attached reactor.
func (c *Controller[L]) SetReactor(r Reactor[L]) {
	if r == nil {
		r = noopReactor[L]{}
	}
	c.reactor = r
}

// Deliver hands a fully-formed Message to the reactor. It is called by the
// network node exactly once per locally-terminating BROADCAST or INFO RPC.
func (c *Controller[L]) Deliver(msg event.Message[L]) error {
	metrics.EventsDispatched.WithLabelValues(msg.Event.Kind().String()).Inc()
	return c.reactor.React(msg)
}

func (c *Controller[L]) emit(from agent.Agent[L], ev event.Event[L]) error {
	metrics.EventsEmitted.WithLabelValues(ev.Kind().String()).Inc()
	return c.reactor.React(event.New(from, ev))
}

// EmitArtifact originates an Artifact-observed event from from.
func (c *Controller[L]) EmitArtifact(from agent.Agent[L], a agent.Artifact[L]) error {
	return c.emit(from, event.NewArtifact(a))
}

// EmitArtifactGone originates an artifact-no-longer-present event from from.
func (c *Controller[L]) EmitArtifactGone(from agent.Agent[L], a agent.Artifact[L]) error {
	return c.emit(from, event.NewArtifactGone(a))
}

// EmitAvoidLocation originates a location-to-avoid event from from.
func (c *Controller[L]) EmitAvoidLocation(from agent.Agent[L], loc L) error {
	return c.emit(from, event.NewAvoidLocation(loc))
}

// EmitConverge originates a location-to-converge-on event from from.
func (c *Controller[L]) EmitConverge(from agent.Agent[L], loc L) error {
	return c.emit(from, event.NewConverge(loc))
}

// EmitMaliciousAgent originates a malicious-agent report from from, naming
// other as the reported agent.
func (c *Controller[L]) EmitMaliciousAgent(from agent.Agent[L], other agent.Agent[L]) error {
	return c.emit(from, event.NewMaliciousAgent(other))
}

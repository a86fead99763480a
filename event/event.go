// Package event defines the five-variant Event union and the Message
// envelope that carries an Event plus its originating agent. The union is
// modeled the way the teacher models its own tagged wire variants in
// bgp-adjacent code in the retrieval pack: a single discriminant plus one
// field per payload shape, rather than a Go interface with type assertions,
// so that Event values stay comparable and easy to round-trip through the
// codec.
package event

import "github.com/m-lab/overlay/agent"

// Kind discriminates the five Event variants.
type Kind uint8

// The five event kinds, in their wire tag order (see codec).
const (
	KindArtifact Kind = iota + 1
	KindArtifactGone
	KindAvoidLocation
	KindConverge
	KindMaliciousAgent
)

// String renders a Kind for logging.
func (k Kind) String() string {
	switch k {
	case KindArtifact:
		return "Artifact"
	case KindArtifactGone:
		return "ArtifactGone"
	case KindAvoidLocation:
		return "AvoidLocation"
	case KindConverge:
		return "Converge"
	case KindMaliciousAgent:
		return "MaliciousAgent"
	default:
		return "Unknown"
	}
}

// Event is the tagged union of the five semantic notifications an agent can
// disseminate. Only the field(s) matching Kind are meaningful; the others
// are zero values.
type Event[L comparable] struct {
	kind     Kind
	artifact agent.Artifact[L]
	loc      L
	other    agent.Agent[L]
}

// NewArtifact builds an Artifact-observed event.
func NewArtifact[L comparable](a agent.Artifact[L]) Event[L] {
	return Event[L]{kind: KindArtifact, artifact: a}
}

// NewArtifactGone builds an artifact-no-longer-present event.
func NewArtifactGone[L comparable](a agent.Artifact[L]) Event[L] {
	return Event[L]{kind: KindArtifactGone, artifact: a}
}

// NewAvoidLocation builds a location-to-avoid event.
func NewAvoidLocation[L comparable](loc L) Event[L] {
	return Event[L]{kind: KindAvoidLocation, loc: loc}
}

// NewConverge builds a location-to-converge-on event.
func NewConverge[L comparable](loc L) Event[L] {
	return Event[L]{kind: KindConverge, loc: loc}
}

// NewMaliciousAgent builds a malicious-agent report.
func NewMaliciousAgent[L comparable](reported agent.Agent[L]) Event[L] {
	return Event[L]{kind: KindMaliciousAgent, other: reported}
}

// Kind reports which of the five variants e holds.
func (e Event[L]) Kind() Kind { return e.kind }

// Artifact returns the payload for KindArtifact and KindArtifactGone. The
// zero Artifact is returned for any other Kind.
func (e Event[L]) Artifact() agent.Artifact[L] { return e.artifact }

// Location returns the payload for KindAvoidLocation and KindConverge. The
// zero value of L is returned for any other Kind.
func (e Event[L]) Location() L { return e.loc }

// MaliciousAgent returns the payload for KindMaliciousAgent. The zero Agent
// is returned for any other Kind.
func (e Event[L]) MaliciousAgent() agent.Agent[L] { return e.other }

// Equal reports whether e and other hold the same kind and payload.
func (e Event[L]) Equal(other Event[L]) bool {
	if e.kind != other.kind {
		return false
	}
	switch e.kind {
	case KindArtifact, KindArtifactGone:
		return e.artifact.Equal(other.artifact)
	case KindAvoidLocation, KindConverge:
		return e.loc == other.loc
	case KindMaliciousAgent:
		return e.other.Equal(other.other)
	default:
		return false
	}
}

// Message pairs an Event with the Agent that originated it. from_agent
// identifies the originator, never the relaying hop.
type Message[L comparable] struct {
	FromAgent agent.Agent[L]
	Event     Event[L]
}

// New builds a Message.
func New[L comparable](from agent.Agent[L], ev Event[L]) Message[L] {
	return Message[L]{FromAgent: from, Event: ev}
}

// Equal reports whether m and other agree on originator and event.
func (m Message[L]) Equal(other Message[L]) bool {
	return m.FromAgent.Equal(other.FromAgent) && m.Event.Equal(other.Event)
}

// Package agent defines the Agent and Artifact records: the identity-bearing
// values that flow through RPCs and the neighbor table. Mutability follows
// the same rule the teacher applies to its own small value records (e.g.
// cache.Cache's ParsedMessage): identity is fixed at construction, location
// is the one mutable field, and equality is a plain field-by-field compare.
package agent

import (
	"github.com/m-lab/overlay/byteid"
	"github.com/m-lab/overlay/wireaddr"
)

// Agent is a network participant: a fixed id, a bound (immutable) address,
// and a mutable location.
type Agent[L comparable] struct {
	id       byteid.ID
	location L
	address  wireaddr.Address
}

// New constructs an Agent with the given id. id generation is the host's
// injected randomness (see byteid.Random); New does not generate the id
// itself so that callers can supply a deterministic one in tests.
func New[L comparable](id byteid.ID, loc L, addr wireaddr.Address) Agent[L] {
	return Agent[L]{id: id, location: loc, address: addr}
}

// ID returns the agent's identity. It never changes after construction.
func (a Agent[L]) ID() byteid.ID { return a.id }

// Location returns the agent's current location.
func (a Agent[L]) Location() L { return a.location }

// UpdateLocation replaces the agent's location in place.
func (a *Agent[L]) UpdateLocation(loc L) { a.location = loc }

// Address returns the agent's bound address. It never changes after
// construction.
func (a Agent[L]) Address() wireaddr.Address { return a.address }

// Equal reports whether a and other agree on id, location, and address.
func (a Agent[L]) Equal(other Agent[L]) bool {
	return a.id == other.id && a.location == other.location && a.address == other.address
}

// Artifact is a location-tagged resource observed by some agent. Like Agent,
// its id is fixed at construction and its location is the one mutable field.
type Artifact[L comparable] struct {
	id       byteid.ID
	location L
}

// NewArtifact constructs an Artifact with the given id and location.
func NewArtifact[L comparable](id byteid.ID, loc L) Artifact[L] {
	return Artifact[L]{id: id, location: loc}
}

// ID returns the artifact's identity.
func (a Artifact[L]) ID() byteid.ID { return a.id }

// Location returns the artifact's current location.
func (a Artifact[L]) Location() L { return a.location }

// UpdateLocation replaces the artifact's location in place.
func (a *Artifact[L]) UpdateLocation(loc L) { a.location = loc }

// Equal reports whether a and other agree on id and location.
func (a Artifact[L]) Equal(other Artifact[L]) bool {
	return a.id == other.id && a.location == other.location
}

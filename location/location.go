// Package location declares the capability set the overlay core requires of
// a host-supplied location type L: a pure distance function and a codec pair.
// Per the design notes, L itself carries no methods — distance is a free
// function over two values of the same type, and serialization is a provided
// encoder/decoder, not a method receiver. Both are supplied once, at node
// construction, and never change for the lifetime of a node.
package location

// Metric computes the non-negative distance between two locations of type L.
// It must be a pure function: same inputs, same output, no side effects.
type Metric[L any] func(a, b L) int

// Codec serializes and deserializes values of the host's location type as
// part of the RPC wire format. Decode must return the number of bytes it
// consumed via the returned rest slice, so callers composing a larger decode
// (an Agent, an Artifact) can keep unpacking the remainder of the buffer.
type Codec[L any] interface {
	Encode(v L) ([]byte, error)
	Decode(b []byte) (v L, rest []byte, err error)
}

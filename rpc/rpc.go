// Package rpc defines the five-variant RPC union that drives membership and
// routing: HRTBT, HRTBTACK, JOIN, INFO, BROADCAST. It follows the same
// single-discriminant, one-field-per-payload shape as package event.
package rpc

import (
	"github.com/m-lab/overlay/agent"
	"github.com/m-lab/overlay/event"
)

// Kind discriminates the five RPC variants. Values match the wire tag order
// from the codec (H=1, HA=2, J=3, I=4, B=5).
type Kind uint8

const (
	KindHeartbeat Kind = iota + 1
	KindHeartbeatAck
	KindJoin
	KindInfo
	KindBroadcast
)

// String renders a Kind for logging and metric labels.
func (k Kind) String() string {
	switch k {
	case KindHeartbeat:
		return "hrtbt"
	case KindHeartbeatAck:
		return "hrtbtack"
	case KindJoin:
		return "join"
	case KindInfo:
		return "info"
	case KindBroadcast:
		return "broadcast"
	default:
		return "unknown"
	}
}

// RPC is the tagged union of the five wire messages.
type RPC[L comparable] struct {
	kind      Kind
	agent     agent.Agent[L]
	neighbors []agent.Agent[L]
	loc       L
	msg       event.Message[L]
}

// NewHeartbeat builds an HRTBT RPC announcing sender.
func NewHeartbeat[L comparable](sender agent.Agent[L]) RPC[L] {
	return RPC[L]{kind: KindHeartbeat, agent: sender}
}

// NewHeartbeatAck builds an HRTBTACK RPC carrying the replying node's
// neighbor set (including itself, per the dispatch rules).
func NewHeartbeatAck[L comparable](neighbors []agent.Agent[L]) RPC[L] {
	return RPC[L]{kind: KindHeartbeatAck, neighbors: neighbors}
}

// NewJoin builds a JOIN RPC for joiner.
func NewJoin[L comparable](joiner agent.Agent[L]) RPC[L] {
	return RPC[L]{kind: KindJoin, agent: joiner}
}

// NewInfo builds an INFO RPC routing msg toward targetLoc.
func NewInfo[L comparable](targetLoc L, msg event.Message[L]) RPC[L] {
	return RPC[L]{kind: KindInfo, loc: targetLoc, msg: msg}
}

// NewBroadcast builds a BROADCAST RPC carrying msg.
func NewBroadcast[L comparable](msg event.Message[L]) RPC[L] {
	return RPC[L]{kind: KindBroadcast, msg: msg}
}

// Kind reports which of the five variants r holds.
func (r RPC[L]) Kind() Kind { return r.kind }

// Agent returns the payload for KindHeartbeat and KindJoin.
func (r RPC[L]) Agent() agent.Agent[L] { return r.agent }

// Neighbors returns the payload for KindHeartbeatAck.
func (r RPC[L]) Neighbors() []agent.Agent[L] { return r.neighbors }

// TargetLocation returns the routing target for KindInfo.
func (r RPC[L]) TargetLocation() L { return r.loc }

// Message returns the payload for KindInfo and KindBroadcast.
func (r RPC[L]) Message() event.Message[L] { return r.msg }

// Equal reports whether r and other hold the same kind and payload.
func (r RPC[L]) Equal(other RPC[L]) bool {
	if r.kind != other.kind {
		return false
	}
	switch r.kind {
	case KindHeartbeat, KindJoin:
		return r.agent.Equal(other.agent)
	case KindHeartbeatAck:
		if len(r.neighbors) != len(other.neighbors) {
			return false
		}
		for i := range r.neighbors {
			if !r.neighbors[i].Equal(other.neighbors[i]) {
				return false
			}
		}
		return true
	case KindInfo:
		return r.loc == other.loc && r.msg.Equal(other.msg)
	case KindBroadcast:
		return r.msg.Equal(other.msg)
	default:
		return false
	}
}

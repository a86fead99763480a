// Package node implements the network node: the neighbor table, the RPC
// dispatch state machine (HRTBT/HRTBTACK/JOIN/INFO/BROADCAST), and the
// heartbeat scheduler. It is the one stateful component of the core; every
// other package is either an immutable value type or a pure function.
package node

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/m-lab/go/logx"

	"github.com/m-lab/overlay/agent"
	"github.com/m-lab/overlay/byteid"
	"github.com/m-lab/overlay/codec"
	"github.com/m-lab/overlay/controller"
	"github.com/m-lab/overlay/event"
	"github.com/m-lab/overlay/location"
	"github.com/m-lab/overlay/metrics"
	"github.com/m-lab/overlay/rpc"
	"github.com/m-lab/overlay/socket"
	"github.com/m-lab/overlay/wireaddr"
)

// DefaultMaxNeighbors is MAX_NEIGHBORS from the reference implementation.
const DefaultMaxNeighbors = 3

// tableFullLog rate-limits the "table full, dropping HRTBT" warning so a
// noisy or hostile peer that heartbeats repeatedly can't flood stderr. It
// mirrors the teacher's logx.NewLogEvery idiom in snapshot.go.
var tableFullLog = logx.NewLogEvery(nil, time.Second)

// Node is a single overlay participant: its own Agent, a bound socket, and
// a bounded neighbor table. A Node is not safe for concurrent use; it is
// driven by a single caller-owned loop, per the core's single-threaded,
// cooperative scheduling model.
type Node[L comparable] struct {
	self       agent.Agent[L]
	sock       *socket.Socket[L]
	table      *neighborTable[L]
	controller *controller.Controller[L]
}

// Bind opens a UDP socket at addr, assigns the local node a fresh random
// identity, and constructs an empty neighbor table bounded at maxNeighbors.
// The node's controller starts with no reactor attached; call SetReactor
// before driving DispatchOnce if delivered messages matter to the caller.
func Bind[L comparable](ctx context.Context, addr wireaddr.Address, loc L, metric location.Metric[L], locCodec location.Codec[L], maxNeighbors int) (*Node[L], error) {
	sock, err := socket.Bind(ctx, addr, locCodec)
	if err != nil {
		return nil, err
	}
	local, err := sock.LocalAddress()
	if err != nil {
		sock.Close()
		return nil, err
	}
	id, err := byteid.Random()
	if err != nil {
		sock.Close()
		return nil, err
	}
	n := &Node[L]{
		self:       agent.New(id, loc, local),
		sock:       sock,
		controller: controller.New[L](),
	}
	n.table = newNeighborTable(metric, n.selfAgent, maxNeighbors)
	return n, nil
}

// selfAgent returns the node's current Agent. It is passed to the neighbor
// table as a closure rather than a snapshot so that UpdateLocation is
// reflected immediately in closest_to/self_is_closer_than comparisons.
func (n *Node[L]) selfAgent() agent.Agent[L] { return n.self }

// Self returns the node's own Agent.
func (n *Node[L]) Self() agent.Agent[L] { return n.self }

// Address reports the address the node's socket is bound to.
func (n *Node[L]) Address() wireaddr.Address { return n.self.Address() }

// UpdateLocation replaces the node's own location.
func (n *Node[L]) UpdateLocation(loc L) { n.self.UpdateLocation(loc) }

// NeighborCount reports how many neighbors the node currently holds.
func (n *Node[L]) NeighborCount() int { return n.table.len() }

// Neighbors returns a copy of the current neighbor table, safe to retain.
func (n *Node[L]) Neighbors() []agent.Agent[L] { return n.table.snapshot() }

// SetReactor attaches r as the controller's reactor.
func (n *Node[L]) SetReactor(r controller.Reactor[L]) { n.controller.SetReactor(r) }

// Close releases the node's socket.
func (n *Node[L]) Close() error { return n.sock.Close() }

// SetReadDeadline bounds the next DispatchOnce call; see socket.Socket's
// SetReadDeadline for the blocking/non-blocking tradeoff it controls.
func (n *Node[L]) SetReadDeadline(t time.Time) error { return n.sock.SetReadDeadline(t) }

// Join sends a JOIN RPC announcing the local agent to remote, the bootstrap
// entry point into an existing overlay.
func (n *Node[L]) Join(remote wireaddr.Address) error {
	return n.send(rpc.NewJoin(n.self), remote, rpc.KindJoin)
}

// Heartbeat snapshots the neighbor addresses and sends HRTBT(self) to each.
// Snapshotting before iterating prevents the table mutating mid-fan-out if
// a handler running on this same node were ever reentered, and matches the
// reference's "snapshot before send" rationale.
func (n *Node[L]) Heartbeat() error {
	var firstErr error
	for _, nb := range n.table.snapshot() {
		if err := n.send(rpc.NewHeartbeat(n.self), nb.Address(), rpc.KindHeartbeat); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SendBroadcast originates a BROADCAST RPC carrying msg to dest.
func (n *Node[L]) SendBroadcast(msg event.Message[L], dest wireaddr.Address) error {
	return n.send(rpc.NewBroadcast(msg), dest, rpc.KindBroadcast)
}

// SendInfo originates an INFO RPC routing msg toward targetLoc, sent first
// to dest (typically a known neighbor; greedy routing takes over from
// there).
func (n *Node[L]) SendInfo(targetLoc L, msg event.Message[L], dest wireaddr.Address) error {
	return n.send(rpc.NewInfo(targetLoc, msg), dest, rpc.KindInfo)
}

func (n *Node[L]) send(r rpc.RPC[L], dest wireaddr.Address, kind rpc.Kind) error {
	if err := n.sock.Send(r, dest); err != nil {
		metrics.RPCsSent.WithLabelValues(kind.String(), outcomeFor(err)).Inc()
		return err
	}
	metrics.RPCsSent.WithLabelValues(kind.String(), "ok").Inc()
	return nil
}

func outcomeFor(err error) string {
	if errors.Is(err, codec.ErrOversizePacket) {
		return "encode_error"
	}
	return "transport_error"
}

// DispatchOnce blocks for exactly one inbound RPC, dispatches it according
// to the core's routing/membership state machine, and returns. A decode
// failure is reported to the caller (the datagram is already consumed); a
// reactor error from a locally-delivered message propagates unchanged.
func (n *Node[L]) DispatchOnce() error {
	r, from, err := n.sock.Receive()
	if err != nil {
		if errors.Is(err, codec.ErrDecodingFailure) {
			metrics.RPCsReceived.WithLabelValues("unknown", "decode_error").Inc()
		}
		return err
	}
	err = n.dispatch(r, from)
	metrics.NeighborTableOccupancy.Set(float64(n.table.len()))
	return err
}

func (n *Node[L]) dispatch(r rpc.RPC[L], from wireaddr.Address) error {
	switch r.Kind() {
	case rpc.KindHeartbeat:
		return n.handleHeartbeat(r.Agent())
	case rpc.KindHeartbeatAck:
		return n.handleHeartbeatAck(r.Neighbors())
	case rpc.KindJoin:
		return n.handleJoin(r.Agent())
	case rpc.KindInfo:
		return n.handleInfo(r.TargetLocation(), r.Message())
	case rpc.KindBroadcast:
		return n.handleBroadcast(r.Message())
	default:
		metrics.RPCsReceived.WithLabelValues("unknown", "decode_error").Inc()
		return fmt.Errorf("node: unknown RPC kind %v from %v", r.Kind(), from)
	}
}

// handleHeartbeat implements the sole bounded-capacity policy in the core:
// a full table drops the sender silently, with no ACK and no insertion, so
// overfull nodes are invisible to newcomers probing via heartbeat.
func (n *Node[L]) handleHeartbeat(sender agent.Agent[L]) error {
	if n.table.full() {
		metrics.RPCsReceived.WithLabelValues(rpc.KindHeartbeat.String(), "dropped").Inc()
		tableFullLog.Printf("node: table full (%d), dropping HRTBT from %v", n.table.len(), sender.Address())
		return nil
	}
	ack := rpc.NewHeartbeatAck(append(n.table.snapshot(), n.self))
	err := n.send(ack, sender.Address(), rpc.KindHeartbeatAck)
	n.table.insert(sender)
	metrics.RPCsReceived.WithLabelValues(rpc.KindHeartbeat.String(), "ok").Inc()
	return err
}

// handleHeartbeatAck assimilates a gossiped neighbor list. This is the only
// path by which a node learns of agents it has not directly contacted.
func (n *Node[L]) handleHeartbeatAck(list []agent.Agent[L]) error {
	n.table.mergeGossip(list)
	metrics.RPCsReceived.WithLabelValues(rpc.KindHeartbeatAck.String(), "ok").Inc()
	return nil
}

// handleJoin implements greedy routing toward joiner.Location(): accept
// locally if this node is the strict closest known candidate and has room,
// otherwise forward to the closest known neighbor.
func (n *Node[L]) handleJoin(joiner agent.Agent[L]) error {
	closest, ok := n.table.closestTo(joiner.Location())
	if !ok {
		n.table.insert(joiner)
		metrics.RPCsReceived.WithLabelValues(rpc.KindJoin.String(), "accepted").Inc()
		return nil
	}
	if n.table.selfIsCloserThan(closest, joiner.Location()) && !n.table.full() {
		n.table.insert(joiner)
		metrics.RPCsReceived.WithLabelValues(rpc.KindJoin.String(), "accepted").Inc()
		return nil
	}
	metrics.RPCsReceived.WithLabelValues(rpc.KindJoin.String(), "forwarded").Inc()
	return n.send(rpc.NewJoin(joiner), closest.Address(), rpc.KindJoin)
}

// handleInfo implements greedy routing toward targetLoc: deliver locally if
// this node is the best known terminus, otherwise forward to the closest
// known neighbor.
func (n *Node[L]) handleInfo(targetLoc L, msg event.Message[L]) error {
	closest, ok := n.table.closestTo(targetLoc)
	if !ok || n.table.selfIsCloserThan(closest, targetLoc) {
		metrics.RPCsReceived.WithLabelValues(rpc.KindInfo.String(), "delivered").Inc()
		return n.controller.Deliver(msg)
	}
	metrics.RPCsReceived.WithLabelValues(rpc.KindInfo.String(), "forwarded").Inc()
	return n.send(rpc.NewInfo(targetLoc, msg), closest.Address(), rpc.KindInfo)
}

// handleBroadcast delivers msg upward. The core never re-broadcasts; fan-out
// is the controller/host's responsibility.
func (n *Node[L]) handleBroadcast(msg event.Message[L]) error {
	metrics.RPCsReceived.WithLabelValues(rpc.KindBroadcast.String(), "delivered").Inc()
	return n.controller.Deliver(msg)
}

// Controller exposes the node's controller so the host can originate events
// (EmitArtifact, EmitConverge, ...) tagged with the local agent.
func (n *Node[L]) Controller() *controller.Controller[L] { return n.controller }

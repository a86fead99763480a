// Package codec implements the wire framing and serialization for RPCs: a
// fixed, tag-prefixed, little-endian layout with no padding, bounded by
// MaxPacketSize. It is the counterpart of the teacher's binary-struct
// parsing in inetdiag/structs.go and netlink/netlink.go, but built on
// encoding/binary rather than unsafe.Pointer casts, since the overlay's
// layout is self-defined rather than dictated by a kernel ABI.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/m-lab/overlay/agent"
	"github.com/m-lab/overlay/byteid"
	"github.com/m-lab/overlay/event"
	"github.com/m-lab/overlay/location"
	"github.com/m-lab/overlay/rpc"
	"github.com/m-lab/overlay/wireaddr"
)

// MaxPacketSize is the largest encoded RPC the wire format allows. It exists
// so that one encoded RPC always fits in one UDP datagram.
const MaxPacketSize = 1024

// Package errors. OversizePacket is shared between Encode and the socket
// layer's Send, since both reject the same condition (an encoded RPC that
// would not fit in one datagram); DecodingFailure and EncodingFailure cover
// everything else.
var (
	ErrOversizePacket  = errors.New("codec: encoded RPC exceeds MaxPacketSize")
	ErrEncodingFailure = errors.New("codec: failed to encode value")
	ErrDecodingFailure = errors.New("codec: failed to decode value")
)

// RPC variant tags, in wire order.
const (
	tagHeartbeat    byte = 1
	tagHeartbeatAck byte = 2
	tagJoin         byte = 3
	tagInfo         byte = 4
	tagBroadcast    byte = 5
)

// Event variant tags, in wire order.
const (
	tagArtifact       byte = 1
	tagArtifactGone   byte = 2
	tagAvoidLocation  byte = 3
	tagConverge       byte = 4
	tagMaliciousAgent byte = 5
)

func encodeByteID(id byteid.ID) []byte {
	out := make([]byte, byteid.Len)
	copy(out, id[:])
	return out
}

func decodeByteID(b []byte) (byteid.ID, []byte, error) {
	if len(b) < byteid.Len {
		return byteid.ID{}, nil, fmt.Errorf("%w: truncated id", ErrDecodingFailure)
	}
	var id byteid.ID
	copy(id[:], b[:byteid.Len])
	return id, b[byteid.Len:], nil
}

// encodeAddress writes the one-byte family tag, four IP octets, and
// big-endian port described in the wire protocol.
func encodeAddress(a wireaddr.Address) []byte {
	out := make([]byte, 7)
	out[0] = wireaddr.FamilyIPv4
	copy(out[1:5], a.IP[:])
	binary.BigEndian.PutUint16(out[5:7], a.Port)
	return out
}

func decodeAddress(b []byte) (wireaddr.Address, []byte, error) {
	if len(b) < 7 {
		return wireaddr.Address{}, nil, fmt.Errorf("%w: truncated address", ErrDecodingFailure)
	}
	switch b[0] {
	case wireaddr.FamilyIPv6:
		return wireaddr.Address{}, nil, fmt.Errorf("%w: %v", ErrDecodingFailure, wireaddr.ErrUnsupportedAddressForm)
	case wireaddr.FamilyIPv4:
		var a wireaddr.Address
		copy(a.IP[:], b[1:5])
		a.Port = binary.BigEndian.Uint16(b[5:7])
		return a, b[7:], nil
	default:
		return wireaddr.Address{}, nil, fmt.Errorf("%w: unknown address family %d", ErrDecodingFailure, b[0])
	}
}

// EncodeAgent writes an Agent's id, location (via loc), and address.
func EncodeAgent[L comparable](loc location.Codec[L], a agent.Agent[L]) ([]byte, error) {
	locBytes, err := loc.Encode(a.Location())
	if err != nil {
		return nil, fmt.Errorf("%w: location: %v", ErrEncodingFailure, err)
	}
	out := make([]byte, 0, byteid.Len+len(locBytes)+7)
	out = append(out, encodeByteID(a.ID())...)
	out = append(out, locBytes...)
	out = append(out, encodeAddress(a.Address())...)
	return out, nil
}

// DecodeAgent reads an Agent and returns the unconsumed remainder of b.
func DecodeAgent[L comparable](loc location.Codec[L], b []byte) (agent.Agent[L], []byte, error) {
	id, rest, err := decodeByteID(b)
	if err != nil {
		return agent.Agent[L]{}, nil, err
	}
	locVal, rest, err := loc.Decode(rest)
	if err != nil {
		return agent.Agent[L]{}, nil, fmt.Errorf("%w: location: %v", ErrDecodingFailure, err)
	}
	addr, rest, err := decodeAddress(rest)
	if err != nil {
		return agent.Agent[L]{}, nil, err
	}
	return agent.New(id, locVal, addr), rest, nil
}

// EncodeArtifact writes an Artifact's id and location.
func EncodeArtifact[L comparable](loc location.Codec[L], a agent.Artifact[L]) ([]byte, error) {
	locBytes, err := loc.Encode(a.Location())
	if err != nil {
		return nil, fmt.Errorf("%w: location: %v", ErrEncodingFailure, err)
	}
	out := make([]byte, 0, byteid.Len+len(locBytes))
	out = append(out, encodeByteID(a.ID())...)
	out = append(out, locBytes...)
	return out, nil
}

// DecodeArtifact reads an Artifact and returns the unconsumed remainder of b.
func DecodeArtifact[L comparable](loc location.Codec[L], b []byte) (agent.Artifact[L], []byte, error) {
	id, rest, err := decodeByteID(b)
	if err != nil {
		return agent.Artifact[L]{}, nil, err
	}
	locVal, rest, err := loc.Decode(rest)
	if err != nil {
		return agent.Artifact[L]{}, nil, fmt.Errorf("%w: location: %v", ErrDecodingFailure, err)
	}
	return agent.NewArtifact(id, locVal), rest, nil
}

// EncodeEvent writes an Event's tag and payload.
func EncodeEvent[L comparable](loc location.Codec[L], e event.Event[L]) ([]byte, error) {
	switch e.Kind() {
	case event.KindArtifact, event.KindArtifactGone:
		tag := byte(tagArtifact)
		if e.Kind() == event.KindArtifactGone {
			tag = tagArtifactGone
		}
		body, err := EncodeArtifact(loc, e.Artifact())
		if err != nil {
			return nil, err
		}
		return append([]byte{tag}, body...), nil
	case event.KindAvoidLocation, event.KindConverge:
		tag := byte(tagAvoidLocation)
		if e.Kind() == event.KindConverge {
			tag = tagConverge
		}
		body, err := loc.Encode(e.Location())
		if err != nil {
			return nil, fmt.Errorf("%w: location: %v", ErrEncodingFailure, err)
		}
		return append([]byte{tag}, body...), nil
	case event.KindMaliciousAgent:
		body, err := EncodeAgent(loc, e.MaliciousAgent())
		if err != nil {
			return nil, err
		}
		return append([]byte{tagMaliciousAgent}, body...), nil
	default:
		return nil, fmt.Errorf("%w: unknown event kind %v", ErrEncodingFailure, e.Kind())
	}
}

// DecodeEvent reads an Event and returns the unconsumed remainder of b.
func DecodeEvent[L comparable](loc location.Codec[L], b []byte) (event.Event[L], []byte, error) {
	if len(b) < 1 {
		return event.Event[L]{}, nil, fmt.Errorf("%w: empty event", ErrDecodingFailure)
	}
	tag, rest := b[0], b[1:]
	switch tag {
	case tagArtifact, tagArtifactGone:
		art, rest, err := DecodeArtifact(loc, rest)
		if err != nil {
			return event.Event[L]{}, nil, err
		}
		if tag == tagArtifactGone {
			return event.NewArtifactGone(art), rest, nil
		}
		return event.NewArtifact(art), rest, nil
	case tagAvoidLocation, tagConverge:
		locVal, rest, err := loc.Decode(rest)
		if err != nil {
			return event.Event[L]{}, nil, fmt.Errorf("%w: location: %v", ErrDecodingFailure, err)
		}
		if tag == tagConverge {
			return event.NewConverge(locVal), rest, nil
		}
		return event.NewAvoidLocation(locVal), rest, nil
	case tagMaliciousAgent:
		a, rest, err := DecodeAgent(loc, rest)
		if err != nil {
			return event.Event[L]{}, nil, err
		}
		return event.NewMaliciousAgent(a), rest, nil
	default:
		return event.Event[L]{}, nil, fmt.Errorf("%w: unknown event tag %d", ErrDecodingFailure, tag)
	}
}

// EncodeMessage writes a Message's originating agent and event.
func EncodeMessage[L comparable](loc location.Codec[L], m event.Message[L]) ([]byte, error) {
	agentBytes, err := EncodeAgent(loc, m.FromAgent)
	if err != nil {
		return nil, err
	}
	eventBytes, err := EncodeEvent(loc, m.Event)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(agentBytes)+len(eventBytes))
	out = append(out, agentBytes...)
	out = append(out, eventBytes...)
	return out, nil
}

// DecodeMessage reads a Message and returns the unconsumed remainder of b.
func DecodeMessage[L comparable](loc location.Codec[L], b []byte) (event.Message[L], []byte, error) {
	from, rest, err := DecodeAgent(loc, b)
	if err != nil {
		return event.Message[L]{}, nil, err
	}
	ev, rest, err := DecodeEvent(loc, rest)
	if err != nil {
		return event.Message[L]{}, nil, err
	}
	return event.New(from, ev), rest, nil
}

// Encode serializes an RPC into its wire form. It fails with
// ErrOversizePacket if the result would not fit in one MaxPacketSize
// datagram, preserving the single-datagram invariant the socket layer
// depends on.
func Encode[L comparable](loc location.Codec[L], r rpc.RPC[L]) ([]byte, error) {
	body, err := encodeRPCBody(loc, r)
	if err != nil {
		return nil, err
	}
	if len(body) > MaxPacketSize {
		return nil, ErrOversizePacket
	}
	return body, nil
}

func encodeRPCBody[L comparable](loc location.Codec[L], r rpc.RPC[L]) ([]byte, error) {
	switch r.Kind() {
	case rpc.KindHeartbeat:
		body, err := EncodeAgent(loc, r.Agent())
		if err != nil {
			return nil, err
		}
		return append([]byte{tagHeartbeat}, body...), nil
	case rpc.KindJoin:
		body, err := EncodeAgent(loc, r.Agent())
		if err != nil {
			return nil, err
		}
		return append([]byte{tagJoin}, body...), nil
	case rpc.KindHeartbeatAck:
		neighbors := r.Neighbors()
		if len(neighbors) > 0xFFFF {
			return nil, fmt.Errorf("%w: %d neighbors exceeds uint16 length prefix", ErrEncodingFailure, len(neighbors))
		}
		out := make([]byte, 3, 3+len(neighbors)*32)
		out[0] = tagHeartbeatAck
		binary.LittleEndian.PutUint16(out[1:3], uint16(len(neighbors)))
		for _, n := range neighbors {
			body, err := EncodeAgent(loc, n)
			if err != nil {
				return nil, err
			}
			out = append(out, body...)
		}
		return out, nil
	case rpc.KindInfo:
		locBytes, err := loc.Encode(r.TargetLocation())
		if err != nil {
			return nil, fmt.Errorf("%w: location: %v", ErrEncodingFailure, err)
		}
		msgBytes, err := EncodeMessage(loc, r.Message())
		if err != nil {
			return nil, err
		}
		out := make([]byte, 0, 1+len(locBytes)+len(msgBytes))
		out = append(out, tagInfo)
		out = append(out, locBytes...)
		out = append(out, msgBytes...)
		return out, nil
	case rpc.KindBroadcast:
		msgBytes, err := EncodeMessage(loc, r.Message())
		if err != nil {
			return nil, err
		}
		return append([]byte{tagBroadcast}, msgBytes...), nil
	default:
		return nil, fmt.Errorf("%w: unknown rpc kind %v", ErrEncodingFailure, r.Kind())
	}
}

// Decode deserializes an RPC from its wire form. It fails with
// ErrDecodingFailure on truncation, an unknown variant tag, or an
// IPv6-tagged address.
func Decode[L comparable](loc location.Codec[L], b []byte) (rpc.RPC[L], error) {
	if len(b) < 1 {
		return rpc.RPC[L]{}, fmt.Errorf("%w: empty packet", ErrDecodingFailure)
	}
	tag, rest := b[0], b[1:]
	switch tag {
	case tagHeartbeat:
		a, _, err := DecodeAgent(loc, rest)
		if err != nil {
			return rpc.RPC[L]{}, err
		}
		return rpc.NewHeartbeat(a), nil
	case tagJoin:
		a, _, err := DecodeAgent(loc, rest)
		if err != nil {
			return rpc.RPC[L]{}, err
		}
		return rpc.NewJoin(a), nil
	case tagHeartbeatAck:
		if len(rest) < 2 {
			return rpc.RPC[L]{}, fmt.Errorf("%w: truncated hrtbtack length", ErrDecodingFailure)
		}
		n := binary.LittleEndian.Uint16(rest[:2])
		rest = rest[2:]
		neighbors := make([]agent.Agent[L], 0, n)
		for i := uint16(0); i < n; i++ {
			a, next, err := DecodeAgent(loc, rest)
			if err != nil {
				return rpc.RPC[L]{}, err
			}
			neighbors = append(neighbors, a)
			rest = next
		}
		return rpc.NewHeartbeatAck(neighbors), nil
	case tagInfo:
		locVal, rest, err := loc.Decode(rest)
		if err != nil {
			return rpc.RPC[L]{}, fmt.Errorf("%w: location: %v", ErrDecodingFailure, err)
		}
		msg, _, err := DecodeMessage(loc, rest)
		if err != nil {
			return rpc.RPC[L]{}, err
		}
		return rpc.NewInfo(locVal, msg), nil
	case tagBroadcast:
		msg, _, err := DecodeMessage(loc, rest)
		if err != nil {
			return rpc.RPC[L]{}, err
		}
		return rpc.NewBroadcast(msg), nil
	default:
		return rpc.RPC[L]{}, fmt.Errorf("%w: unknown rpc tag %d", ErrDecodingFailure, tag)
	}
}

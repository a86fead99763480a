// Package diagnostics offers offline inspection tooling for a running node:
// CSV dumps of the neighbor table and recently dispatched events, the same
// "write what we saw to a flat file for later analysis" role cmd/csvtool and
// parse.RawInetDiagMsg play for tcp-info's own snapshots, built on the same
// github.com/gocarina/gocsv marshaling. The spec's distillation is silent on
// offline inspection; this package supplements it the way the teacher
// supplements its own core with a whole cmd/csvtool.
package diagnostics

import (
	"encoding/hex"
	"io"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/m-lab/go/anonymize"

	"github.com/m-lab/overlay/agent"
	"github.com/m-lab/overlay/event"
	"github.com/m-lab/overlay/location"
)

// NeighborRow is one CSV row describing a single neighbor table entry. The
// csv struct tags set lowercase column names explicitly, rather than relying
// on gocsv's default of using the field name, so the columns stay stable
// under renames.
type NeighborRow struct {
	ID       string `csv:"id"`
	Location string `csv:"location"`
	IP       string `csv:"ip"`
	Port     uint16 `csv:"port"`
}

// DumpNeighbors writes the current neighbor table to w as CSV, encoding each
// neighbor's location through codec and rendering it (and the id) as hex.
// If anon is non-nil, each neighbor's IP is redacted before being written,
// mirroring inetdiag.RawInetDiagMsg.Anonymize.
func DumpNeighbors[L comparable](w io.Writer, table []agent.Agent[L], codec location.Codec[L], anon anonymize.IPAnonymizer) error {
	rows := make([]*NeighborRow, 0, len(table))
	for _, a := range table {
		locBytes, err := codec.Encode(a.Location())
		if err != nil {
			return err
		}
		ip := a.Address().UDPAddr().IP
		if anon != nil {
			anon.IP(ip)
		}
		rows = append(rows, &NeighborRow{
			ID:       a.ID().String(),
			Location: hex.EncodeToString(locBytes),
			IP:       ip.String(),
			Port:     a.Address().Port,
		})
	}
	return gocsv.Marshal(rows, w)
}

// LoggedEvent is one entry in a node's bounded event history: a dispatched
// Message plus the time it was handed to the reactor.
type LoggedEvent[L comparable] struct {
	At      time.Time
	Message event.Message[L]
}

// eventRow is the CSV projection of a LoggedEvent, location-erased to a hex
// string the same way NeighborRow handles Agent.Location.
type eventRow struct {
	At        string `csv:"at"`
	Kind      string `csv:"kind"`
	FromAgent string `csv:"from_agent"`
	FromIP    string `csv:"from_ip"`
	Payload   string `csv:"payload"`
}

// EventLog is a fixed-capacity ring buffer of the most recently dispatched
// messages, for postmortem analysis after something goes wrong. It is not
// part of the core: the core delivers each message to the reactor exactly
// once and forgets it, the way the spec's dispatch model requires; keeping
// a history is purely a diagnostics-side concern.
type EventLog[L comparable] struct {
	cap  int
	next int
	full bool
	buf  []LoggedEvent[L]
}

// NewEventLog constructs an EventLog holding at most capacity entries.
func NewEventLog[L comparable](capacity int) *EventLog[L] {
	return &EventLog[L]{cap: capacity, buf: make([]LoggedEvent[L], capacity)}
}

// Record appends msg to the log, evicting the oldest entry once the log is
// at capacity.
func (l *EventLog[L]) Record(at time.Time, msg event.Message[L]) {
	if l.cap == 0 {
		return
	}
	l.buf[l.next] = LoggedEvent[L]{At: at, Message: msg}
	l.next = (l.next + 1) % l.cap
	if l.next == 0 {
		l.full = true
	}
}

// Snapshot returns the logged events in insertion order.
func (l *EventLog[L]) Snapshot() []LoggedEvent[L] {
	if !l.full {
		out := make([]LoggedEvent[L], l.next)
		copy(out, l.buf[:l.next])
		return out
	}
	out := make([]LoggedEvent[L], l.cap)
	copy(out, l.buf[l.next:])
	copy(out[l.cap-l.next:], l.buf[:l.next])
	return out
}

// DumpEvents writes log's current contents to w as CSV. Payload content
// depends on the event kind: the location codec's hex encoding for
// AvoidLocation/Converge, the artifact id for Artifact/ArtifactGone, and the
// reported agent id for MaliciousAgent. If anon is non-nil, each originating
// agent's IP is redacted before being written.
func DumpEvents[L comparable](w io.Writer, log *EventLog[L], codec location.Codec[L], anon anonymize.IPAnonymizer) error {
	entries := log.Snapshot()
	rows := make([]*eventRow, 0, len(entries))
	for _, le := range entries {
		payload, err := renderPayload(le.Message.Event, codec)
		if err != nil {
			return err
		}
		ip := le.Message.FromAgent.Address().UDPAddr().IP
		if anon != nil {
			anon.IP(ip)
		}
		rows = append(rows, &eventRow{
			At:        le.At.Format(time.RFC3339Nano),
			Kind:      le.Message.Event.Kind().String(),
			FromAgent: le.Message.FromAgent.ID().String(),
			FromIP:    ip.String(),
			Payload:   payload,
		})
	}
	return gocsv.Marshal(rows, w)
}

func renderPayload[L comparable](e event.Event[L], codec location.Codec[L]) (string, error) {
	switch e.Kind() {
	case event.KindArtifact, event.KindArtifactGone:
		return e.Artifact().ID().String(), nil
	case event.KindAvoidLocation, event.KindConverge:
		b, err := codec.Encode(e.Location())
		if err != nil {
			return "", err
		}
		return hex.EncodeToString(b), nil
	case event.KindMaliciousAgent:
		return e.MaliciousAgent().ID().String(), nil
	default:
		return "", nil
	}
}

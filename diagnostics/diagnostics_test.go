package diagnostics

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/m-lab/overlay/agent"
	"github.com/m-lab/overlay/byteid"
	"github.com/m-lab/overlay/event"
	"github.com/m-lab/overlay/wireaddr"
)

type intCodec struct{}

func (intCodec) Encode(v int) ([]byte, error) { return []byte{byte(v)}, nil }
func (intCodec) Decode(b []byte) (int, []byte, error) {
	return int(b[0]), b[1:], nil
}

func testAgent(fill byte, loc int, port uint16) agent.Agent[int] {
	var id byteid.ID
	for i := range id {
		id[i] = fill
	}
	return agent.New(id, loc, wireaddr.Address{IP: [4]byte{10, 0, 0, fill}, Port: port})
}

func TestDumpNeighborsWritesOneRowPerEntry(t *testing.T) {
	table := []agent.Agent[int]{testAgent(1, 9, 1000), testAgent(2, 4, 1001)}
	var buf bytes.Buffer
	if err := DumpNeighbors[int](&buf, table, intCodec{}, nil); err != nil {
		t.Fatalf("DumpNeighbors: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 { // header + 2 rows
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[1], "10.0.0.1") || !strings.Contains(lines[2], "10.0.0.2") {
		t.Errorf("rows missing expected IPs: %v", lines)
	}
}

func TestEventLogWrapsAtCapacity(t *testing.T) {
	log := NewEventLog[int](2)
	from := testAgent(1, 1, 1000)
	log.Record(time.Unix(1, 0), event.New(from, event.NewConverge(1)))
	log.Record(time.Unix(2, 0), event.New(from, event.NewConverge(2)))
	log.Record(time.Unix(3, 0), event.New(from, event.NewConverge(3)))

	got := log.Snapshot()
	if len(got) != 2 {
		t.Fatalf("Snapshot() has %d entries, want 2", len(got))
	}
	if got[0].Message.Event.Location() != 2 || got[1].Message.Event.Location() != 3 {
		t.Errorf("Snapshot() = %+v, want locations [2, 3] (oldest evicted)", got)
	}
}

func TestDumpEventsRendersRecordedKinds(t *testing.T) {
	from := testAgent(3, 5, 2000)
	log := NewEventLog[int](10)
	log.Record(time.Unix(10, 0), event.New(from, event.NewConverge(7)))
	log.Record(time.Unix(11, 0), event.New(from, event.NewArtifact(agent.NewArtifact(byteid.ID{0xAA}, 8))))

	var buf bytes.Buffer
	if err := DumpEvents[int](&buf, log, intCodec{}, nil); err != nil {
		t.Fatalf("DumpEvents: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Converge") || !strings.Contains(out, "Artifact") {
		t.Errorf("DumpEvents output missing expected kinds:\n%s", out)
	}
}

package event

import (
	"testing"

	"github.com/m-lab/overlay/agent"
	"github.com/m-lab/overlay/byteid"
	"github.com/m-lab/overlay/wireaddr"
)

func testID(fill byte) byteid.ID {
	var id byteid.ID
	for i := range id {
		id[i] = fill
	}
	return id
}

func testAgent(fill byte, loc int) agent.Agent[int] {
	return agent.New(testID(fill), loc, wireaddr.Address{IP: [4]byte{10, 0, 0, fill}, Port: 1000})
}

func TestKindString(t *testing.T) {
	tests := []struct {
		k    Kind
		want string
	}{
		{KindArtifact, "Artifact"},
		{KindArtifactGone, "ArtifactGone"},
		{KindAvoidLocation, "AvoidLocation"},
		{KindConverge, "Converge"},
		{KindMaliciousAgent, "MaliciousAgent"},
		{Kind(0), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.k.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.k, got, tt.want)
		}
	}
}

func TestArtifactEventsCarryPayload(t *testing.T) {
	art := agent.NewArtifact(testID(1), 10)

	e := NewArtifact(art)
	if e.Kind() != KindArtifact {
		t.Errorf("Kind() = %v, want KindArtifact", e.Kind())
	}
	if !e.Artifact().Equal(art) {
		t.Errorf("Artifact() = %v, want %v", e.Artifact(), art)
	}

	gone := NewArtifactGone(art)
	if gone.Kind() != KindArtifactGone {
		t.Errorf("Kind() = %v, want KindArtifactGone", gone.Kind())
	}
}

func TestLocationEventsCarryPayload(t *testing.T) {
	avoid := NewAvoidLocation(7)
	if avoid.Kind() != KindAvoidLocation || avoid.Location() != 7 {
		t.Errorf("NewAvoidLocation(7) = kind %v loc %v, want KindAvoidLocation 7", avoid.Kind(), avoid.Location())
	}

	converge := NewConverge(99)
	if converge.Kind() != KindConverge || converge.Location() != 99 {
		t.Errorf("NewConverge(99) = kind %v loc %v, want KindConverge 99", converge.Kind(), converge.Location())
	}
}

func TestMaliciousAgentEventCarriesPayload(t *testing.T) {
	reported := testAgent(5, 1)
	e := NewMaliciousAgent(reported)
	if e.Kind() != KindMaliciousAgent {
		t.Errorf("Kind() = %v, want KindMaliciousAgent", e.Kind())
	}
	if !e.MaliciousAgent().Equal(reported) {
		t.Errorf("MaliciousAgent() = %v, want %v", e.MaliciousAgent(), reported)
	}
}

func TestEventEqualDiscriminatesByKindAndPayload(t *testing.T) {
	art := agent.NewArtifact(testID(2), 3)
	a := NewArtifact(art)
	b := NewArtifact(art)
	if !a.Equal(b) {
		t.Error("Equal() = false for identical Artifact events")
	}

	goneSameArtifact := NewArtifactGone(art)
	if a.Equal(goneSameArtifact) {
		t.Error("Equal() = true for Artifact vs ArtifactGone with same payload")
	}

	otherArt := agent.NewArtifact(testID(3), 3)
	c := NewArtifact(otherArt)
	if a.Equal(c) {
		t.Error("Equal() = true for differing artifact ids")
	}
}

func TestMessageEqual(t *testing.T) {
	from := testAgent(1, 1)
	ev := NewConverge(5)
	m1 := New(from, ev)
	m2 := New(from, ev)
	if !m1.Equal(m2) {
		t.Error("Equal() = false for identical messages")
	}

	otherFrom := testAgent(2, 1)
	m3 := New(otherFrom, ev)
	if m1.Equal(m3) {
		t.Error("Equal() = true for differing originators")
	}
}

package controller

import (
	"errors"
	"testing"

	"github.com/m-lab/overlay/agent"
	"github.com/m-lab/overlay/byteid"
	"github.com/m-lab/overlay/event"
	"github.com/m-lab/overlay/wireaddr"
)

func testAgent(fill byte, loc int) agent.Agent[int] {
	var id byteid.ID
	for i := range id {
		id[i] = fill
	}
	return agent.New(id, loc, wireaddr.Address{IP: [4]byte{10, 0, 0, fill}, Port: 1000})
}

type recordingReactor struct {
	received []event.Message[int]
	err      error
}

func (r *recordingReactor) React(msg event.Message[int]) error {
	r.received = append(r.received, msg)
	return r.err
}

func TestDeliverWithNoReactorIsNoop(t *testing.T) {
	c := New[int]()
	msg := event.New(testAgent(1, 1), event.NewConverge(5))
	if err := c.Deliver(msg); err != nil {
		t.Errorf("Deliver() with no reactor = %v, want nil", err)
	}
}

func TestDeliverForwardsToReactor(t *testing.T) {
	c := New[int]()
	r := &recordingReactor{}
	c.SetReactor(r)

	msg := event.New(testAgent(1, 1), event.NewConverge(5))
	if err := c.Deliver(msg); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if len(r.received) != 1 || !r.received[0].Equal(msg) {
		t.Errorf("reactor received %+v, want [%+v]", r.received, msg)
	}
}

func TestDeliverPropagatesReactorError(t *testing.T) {
	c := New[int]()
	wantErr := errors.New("boom")
	c.SetReactor(&recordingReactor{err: wantErr})

	msg := event.New(testAgent(1, 1), event.NewConverge(5))
	if err := c.Deliver(msg); !errors.Is(err, wantErr) {
		t.Errorf("Deliver() error = %v, want %v", err, wantErr)
	}
}

func TestEmitBuildsMessageFromLocalAgent(t *testing.T) {
	c := New[int]()
	r := &recordingReactor{}
	c.SetReactor(r)

	self := testAgent(2, 7)
	art := agent.NewArtifact(byteid.ID{1, 2, 3}, 9)
	if err := c.EmitArtifact(self, art); err != nil {
		t.Fatalf("EmitArtifact: %v", err)
	}

	if len(r.received) != 1 {
		t.Fatalf("reactor received %d messages, want 1", len(r.received))
	}
	got := r.received[0]
	if !got.FromAgent.Equal(self) {
		t.Errorf("FromAgent = %v, want %v", got.FromAgent, self)
	}
	if got.Event.Kind() != event.KindArtifact || !got.Event.Artifact().Equal(art) {
		t.Errorf("Event = %+v, want Artifact(%v)", got.Event, art)
	}
}

func TestSetReactorNilRestoresNoop(t *testing.T) {
	c := New[int]()
	c.SetReactor(&recordingReactor{})
	c.SetReactor(nil)

	msg := event.New(testAgent(1, 1), event.NewConverge(5))
	if err := c.Deliver(msg); err != nil {
		t.Errorf("Deliver() after SetReactor(nil) = %v, want nil", err)
	}
}

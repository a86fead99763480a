package rpc

import (
	"testing"

	"github.com/m-lab/overlay/agent"
	"github.com/m-lab/overlay/byteid"
	"github.com/m-lab/overlay/event"
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
		{KindHeartbeat, "hrtbt"},
		{KindHeartbeatAck, "hrtbtack"},
		{KindJoin, "join"},
		{KindInfo, "info"},
		{KindBroadcast, "broadcast"},
		{Kind(0), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.k.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.k, got, tt.want)
		}
	}
}

func TestHeartbeatAndJoinCarryAgent(t *testing.T) {
	a := testAgent(1, 5)

	hb := NewHeartbeat(a)
	if hb.Kind() != KindHeartbeat || !hb.Agent().Equal(a) {
		t.Errorf("NewHeartbeat: kind=%v agent=%v, want KindHeartbeat %v", hb.Kind(), hb.Agent(), a)
	}

	join := NewJoin(a)
	if join.Kind() != KindJoin || !join.Agent().Equal(a) {
		t.Errorf("NewJoin: kind=%v agent=%v, want KindJoin %v", join.Kind(), join.Agent(), a)
	}
}

func TestHeartbeatAckCarriesNeighbors(t *testing.T) {
	neighbors := []agent.Agent[int]{testAgent(1, 1), testAgent(2, 2)}
	ack := NewHeartbeatAck(neighbors)
	if ack.Kind() != KindHeartbeatAck {
		t.Errorf("Kind() = %v, want KindHeartbeatAck", ack.Kind())
	}
	if len(ack.Neighbors()) != 2 {
		t.Fatalf("Neighbors() has %d entries, want 2", len(ack.Neighbors()))
	}
}

func TestInfoAndBroadcastCarryMessage(t *testing.T) {
	msg := event.New(testAgent(3, 1), event.NewConverge(10))

	info := NewInfo(7, msg)
	if info.Kind() != KindInfo || info.TargetLocation() != 7 || !info.Message().Equal(msg) {
		t.Errorf("NewInfo mismatch: kind=%v target=%v msg=%v", info.Kind(), info.TargetLocation(), info.Message())
	}

	bc := NewBroadcast(msg)
	if bc.Kind() != KindBroadcast || !bc.Message().Equal(msg) {
		t.Errorf("NewBroadcast mismatch: kind=%v msg=%v", bc.Kind(), bc.Message())
	}
}

func TestEqualDiscriminatesVariants(t *testing.T) {
	a := testAgent(1, 1)
	hb1 := NewHeartbeat(a)
	hb2 := NewHeartbeat(a)
	if !hb1.Equal(hb2) {
		t.Error("Equal() = false for identical heartbeats")
	}

	join := NewJoin(a)
	if hb1.Equal(join) {
		t.Error("Equal() = true for differing kinds with same agent payload")
	}

	ack1 := NewHeartbeatAck([]agent.Agent[int]{a})
	ack2 := NewHeartbeatAck([]agent.Agent[int]{a})
	if !ack1.Equal(ack2) {
		t.Error("Equal() = false for identical heartbeat acks")
	}
	ack3 := NewHeartbeatAck[int](nil)
	if ack1.Equal(ack3) {
		t.Error("Equal() = true for heartbeat acks with differing neighbor counts")
	}
}

package metrics_test

import (
	"testing"

	dto "github.com/prometheus/client_model/go"

	"github.com/m-lab/overlay/metrics"
)

func TestCountersIncrement(t *testing.T) {
	metrics.RPCsReceived.Reset()
	metrics.RPCsReceived.WithLabelValues("hrtbt", "ok").Inc()
	metrics.RPCsReceived.WithLabelValues("hrtbt", "ok").Inc()

	m := &dto.Metric{}
	if err := metrics.RPCsReceived.WithLabelValues("hrtbt", "ok").Write(m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := m.Counter.GetValue(); got != 2 {
		t.Errorf("RPCsReceived{hrtbt,ok} = %v, want 2", got)
	}
}

func TestOccupancyGaugeSettable(t *testing.T) {
	metrics.NeighborTableOccupancy.Set(3)
	m := &dto.Metric{}
	if err := metrics.NeighborTableOccupancy.Write(m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := m.Gauge.GetValue(); got != 3 {
		t.Errorf("NeighborTableOccupancy = %v, want 3", got)
	}
}

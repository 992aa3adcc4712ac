package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.CommandsTotal.WithLabelValues("valve", "sent").Inc()
	m.SetConnected(true)

	if got := testutil.ToFloat64(m.CommandsTotal.WithLabelValues("valve", "sent")); got != 1 {
		t.Errorf("commands = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.MQTTConnected); got != 1 {
		t.Errorf("connected = %v, want 1", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(families) == 0 {
		t.Fatal("expected registered families")
	}
}

func TestNewWithoutRegistry(t *testing.T) {
	m := New(nil)
	m.ReadingsTotal.Inc()
	m.SetConnected(false)
	if got := testutil.ToFloat64(m.ReadingsTotal); got != 1 {
		t.Errorf("readings = %v, want 1", got)
	}
}

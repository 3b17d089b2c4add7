package telemetry

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func gaugeValue(t *testing.T, g interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestMetrics_NewIsIndependentPerInstance(t *testing.T) {
	a := New()
	b := New()

	a.RecordSent("value")
	if got := gaugeValue(t, a.Connected); got != 0 {
		t.Fatalf("a.Connected = %v, want 0", got)
	}
	a.SetConnected(true)
	b.SetConnected(false)

	if got := gaugeValue(t, a.Connected); got != 1 {
		t.Fatalf("a.Connected after SetConnected(true) = %v, want 1", got)
	}
	if got := gaugeValue(t, b.Connected); got != 0 {
		t.Fatalf("b.Connected should be unaffected by a: got %v, want 0", got)
	}
}

func TestMetrics_QueueDepthGauges(t *testing.T) {
	m := New()
	m.SetWriterQueueDepth(3)
	m.SetDispatchQueueDepth(7)

	if got := gaugeValue(t, m.WriterQueue); got != 3 {
		t.Fatalf("WriterQueue = %v, want 3", got)
	}
	if got := gaugeValue(t, m.DispatchQueue); got != 7 {
		t.Fatalf("DispatchQueue = %v, want 7", got)
	}
}

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mikey/mail-shield/internal/core"
)

func TestRecorder_Counts(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.ObserveScan(core.ScanResult{Outcome: core.OutcomeCompleted, Timing: 120 * time.Millisecond})
	r.ObserveScan(core.ScanResult{Outcome: core.OutcomeTimedOut, Timing: 15 * time.Second})
	r.ObserveTransition(core.Appeared)
	r.ObserveTransition(core.NoChange)
	r.AlertResult(core.NoMail, AlertSuppressed)
	r.UIUpdated()
	r.UIUpdated()

	if got := testutil.ToFloat64(r.scans.WithLabelValues("completed")); got != 1 {
		t.Errorf("completed scans = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.scans.WithLabelValues("timed_out")); got != 1 {
		t.Errorf("timed out scans = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(r.transitions); got != 1 {
		t.Errorf("transition series = %d, want 1 (no_change is not recorded)", got)
	}
	if got := testutil.ToFloat64(r.alerts.WithLabelValues("no_mail", AlertSuppressed)); got != 1 {
		t.Errorf("suppressed alerts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.uiUpdates); got != 2 {
		t.Errorf("ui updates = %v, want 2", got)
	}
}

func TestRecorder_NilIsSafe(t *testing.T) {
	var r *Recorder
	r.ObserveScan(core.ScanResult{})
	r.ObserveTransition(core.Changed)
	r.AlertResult("safe", AlertPublished)
	r.UIUpdated()
}

// Package metrics exposes pipeline counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mikey/mail-shield/internal/core"
)

// Alert results recorded by AlertResult
const (
	AlertPublished  = "published"
	AlertSuppressed = "suppressed"
	AlertFailed     = "failed"
	AlertSkipped    = "skipped"
)

// Recorder records pipeline events. A nil *Recorder discards everything.
type Recorder struct {
	scans        *prometheus.CounterVec
	scanDuration prometheus.Histogram
	transitions  *prometheus.CounterVec
	alerts       *prometheus.CounterVec
	uiUpdates    prometheus.Counter
}

// New creates a recorder and registers its collectors with reg
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mail_shield_scans_total",
			Help: "Scan attempts by terminal outcome",
		}, []string{"outcome"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mail_shield_scan_duration_seconds",
			Help:    "Wall-clock duration of scan attempts",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mail_shield_transitions_total",
			Help: "Presence transitions observed",
		}, []string{"transition"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mail_shield_alerts_total",
			Help: "IoT alerts by label and result",
		}, []string{"label", "result"}),
		uiUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mail_shield_ui_updates_total",
			Help: "Messages delivered to display surfaces",
		}),
	}
	reg.MustRegister(r.scans, r.scanDuration, r.transitions, r.alerts, r.uiUpdates)
	return r
}

// ObserveScan records a finished scan attempt
func (r *Recorder) ObserveScan(res core.ScanResult) {
	if r == nil {
		return
	}
	r.scans.WithLabelValues(res.Outcome.String()).Inc()
	r.scanDuration.Observe(res.Timing.Seconds())
}

// ObserveTransition records a presence transition other than NoChange
func (r *Recorder) ObserveTransition(t core.Transition) {
	if r == nil || t == core.NoChange {
		return
	}
	r.transitions.WithLabelValues(t.String()).Inc()
}

// AlertResult records what happened to an IoT alert
func (r *Recorder) AlertResult(label core.AlertLabel, result string) {
	if r == nil {
		return
	}
	r.alerts.WithLabelValues(string(label), result).Inc()
}

// UIUpdated records a display update
func (r *Recorder) UIUpdated() {
	if r == nil {
		return
	}
	r.uiUpdates.Inc()
}

// Package metrics exposes the Prometheus gauges and counters that
// track synchronization health, grounded on the teacher pack's
// fenilsonani-email-server/internal/metrics package.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReconnectAttempts counts every time a Session redials after a
	// transport failure, labeled by outcome.
	ReconnectAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mailsyncd_imap_reconnect_attempts_total",
		Help: "Total IMAP reconnect attempts by outcome",
	}, []string{"outcome"})

	// FacadeErrors counts Façade operation failures by kind (mirrors
	// mailsyncerr.Kind.String()).
	FacadeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mailsyncd_facade_errors_total",
		Help: "Total Façade operation errors by kind",
	}, []string{"op", "kind"})

	// UpdateMailboxDuration tracks how long a full UpdateMailbox call
	// takes, covering both the windowed reconciliation and flag sync.
	UpdateMailboxDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mailsyncd_update_mailbox_duration_seconds",
		Help:    "Time taken by UpdateMailbox, including flag sync",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	// SessionPoolSize reports the current number of live IMAP sessions.
	SessionPoolSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mailsyncd_session_pool_size",
		Help: "Number of live IMAP sessions held by the pool",
	})

	// MailboxWindowsScanned counts reconciliation windows walked by the
	// sync engine, labeled by whether the window ended the scan early.
	MailboxWindowsScanned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mailsyncd_mailbox_windows_scanned_total",
		Help: "Total mailbox reconciliation windows scanned",
	}, []string{"terminated_early"})
)

// RecordReconnect records the outcome of a Session.Reconnect call.
func RecordReconnect(ok bool) {
	if ok {
		ReconnectAttempts.WithLabelValues("success").Inc()
		return
	}
	ReconnectAttempts.WithLabelValues("failure").Inc()
}

// RecordFacadeError records a classified Façade failure.
func RecordFacadeError(op, kind string) {
	FacadeErrors.WithLabelValues(op, kind).Inc()
}

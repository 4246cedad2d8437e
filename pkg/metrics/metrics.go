// Package metrics provides optional Prometheus instrumentation for the
// transfer engine. A nil *Metrics is valid and every method on it is a
// no-op, so callers that run without a metrics endpoint pay nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's counters.
type Metrics struct {
	uploadedBytes   prometheus.Counter
	downloadedBytes prometheus.Counter
	chunkRetries    *prometheus.CounterVec
	transfers       *prometheus.CounterVec
}

// New registers the engine counters on reg and returns the handle the
// engine updates.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		uploadedBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "tgcloud_uploaded_bytes_total",
			Help: "Bytes successfully uploaded to the blob tier.",
		}),
		downloadedBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "tgcloud_downloaded_bytes_total",
			Help: "Bytes successfully downloaded from the blob tier.",
		}),
		chunkRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tgcloud_chunk_retries_total",
			Help: "Transient chunk operation failures that were retried.",
		}, []string{"op"}),
		transfers: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tgcloud_transfers_total",
			Help: "Completed transfer operations by outcome.",
		}, []string{"op", "outcome"}),
	}
}

// AddUploadedBytes records successfully uploaded chunk bytes.
func (m *Metrics) AddUploadedBytes(n int64) {
	if m == nil {
		return
	}
	m.uploadedBytes.Add(float64(n))
}

// AddDownloadedBytes records successfully downloaded chunk bytes.
func (m *Metrics) AddDownloadedBytes(n int64) {
	if m == nil {
		return
	}
	m.downloadedBytes.Add(float64(n))
}

// IncRetry records one retried attempt for the given operation
// ("upload", "download", "delete").
func (m *Metrics) IncRetry(op string) {
	if m == nil {
		return
	}
	m.chunkRetries.WithLabelValues(op).Inc()
}

// ObserveTransfer records a finished top-level operation.
func (m *Metrics) ObserveTransfer(op string, err error) {
	if m == nil {
		return
	}
	outcome := "completed"
	if err != nil {
		outcome = "failed"
	}
	m.transfers.WithLabelValues(op, outcome).Inc()
}

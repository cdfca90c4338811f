// Package monitoring exposes Prometheus metrics for the scan pipeline.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application. Register once at
// startup; the scan service tolerates a nil *Metrics so tests can skip it.
type Metrics struct {
	ScansTotal       *prometheus.CounterVec
	OCRAttemptsTotal *prometheus.CounterVec
	ScanDuration     prometheus.Histogram
	CacheLookups     *prometheus.CounterVec
	ERPPushesTotal   *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		ScansTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ocr_scans_total",
			Help: "The total number of scans processed",
		}, []string{"status", "engine"}), // status: success, failure, cached
		OCRAttemptsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ocr_engine_attempts_total",
			Help: "Recognition attempts per engine",
		}, []string{"provider", "outcome"}), // outcome: success, failure
		ScanDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ocr_scan_duration_seconds",
			Help:    "Wall time of the full scan pipeline",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ocr_cache_lookups_total",
			Help: "Scan cache lookups",
		}, []string{"result"}), // result: hit, miss
		ERPPushesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ocr_erp_pushes_total",
			Help: "Records pushed to Odoo",
		}, []string{"instance", "status"}),
	}
}

func (m *Metrics) IncScan(status, engine string) {
	m.ScansTotal.WithLabelValues(status, engine).Inc()
}

// ObserveAttempt satisfies the recognition chain's attempt observer.
func (m *Metrics) ObserveAttempt(provider string, success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.OCRAttemptsTotal.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) ObserveScanDuration(d time.Duration) {
	m.ScanDuration.Observe(d.Seconds())
}

func (m *Metrics) IncCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) IncERPPush(instance string, success bool) {
	status := "failure"
	if success {
		status = "success"
	}
	m.ERPPushesTotal.WithLabelValues(instance, status).Inc()
}

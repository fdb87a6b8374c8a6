package dirblockcheck

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects scan and verification counters in a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry     *prometheus.Registry
	filesHashed  prometheus.Counter
	bytesHashed  prometheus.Counter
	scanDuration prometheus.Gauge
	scanFailures prometheus.Counter
	diffFiles    *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		filesHashed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dirblockcheck",
			Name:      "files_hashed_total",
			Help:      "Files hashed by directory scans.",
		}),
		bytesHashed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dirblockcheck",
			Name:      "bytes_hashed_total",
			Help:      "Bytes read while hashing files.",
		}),
		scanDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dirblockcheck",
			Name:      "last_scan_duration_seconds",
			Help:      "Wall time of the most recent directory scan.",
		}),
		scanFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dirblockcheck",
			Name:      "scan_failures_total",
			Help:      "Directory scans that failed.",
		}),
		diffFiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dirblockcheck",
			Name:      "diff_files_total",
			Help:      "Files classified by snapshot comparisons.",
		}, []string{"status"}),
	}
	m.registry.MustRegister(m.filesHashed, m.bytesHashed, m.scanDuration, m.scanFailures, m.diffFiles)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) observeFile(size uint64) {
	if m == nil {
		return
	}
	m.filesHashed.Inc()
	m.bytesHashed.Add(float64(size))
}

func (m *Metrics) observeScan(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.scanDuration.Set(d.Seconds())
	if err != nil {
		m.scanFailures.Inc()
	}
}

// ObserveDiff counts the files of a report by status
func (m *Metrics) ObserveDiff(r *DiffReport) {
	if m == nil || r == nil {
		return
	}
	m.diffFiles.WithLabelValues("missing").Add(float64(len(r.Missing)))
	m.diffFiles.WithLabelValues("added").Add(float64(len(r.Added)))
	m.diffFiles.WithLabelValues("unchanged").Add(float64(len(r.Unchanged)))
	m.diffFiles.WithLabelValues("changed").Add(float64(len(r.Changed)))
}

// WriteTextfile writes all metrics in the node_exporter textfile format
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

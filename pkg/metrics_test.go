package dirblockcheck

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_ObserveDiff(t *testing.T) {
	m := NewMetrics()
	m.ObserveDiff(sampleReport())

	tests := []struct {
		status string
		want   float64
	}{
		{"missing", 2},
		{"added", 1},
		{"unchanged", 2},
		{"changed", 1},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(m.diffFiles.WithLabelValues(tt.status)); got != tt.want {
			t.Errorf("diff_files_total{status=%q} = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestMetrics_ObserveScan(t *testing.T) {
	m := NewMetrics()
	m.observeScan(1500*time.Millisecond, nil)
	m.observeScan(time.Second, errors.New("boom"))

	if got := testutil.ToFloat64(m.scanDuration); got != 1 {
		t.Errorf("last_scan_duration_seconds = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.scanFailures); got != 1 {
		t.Errorf("scan_failures_total = %v, want 1", got)
	}
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.observeFile(42)

	path := filepath.Join(t.TempDir(), "dbc.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read textfile: %v", err)
	}
	for _, want := range []string{"dirblockcheck_files_hashed_total 1", "dirblockcheck_bytes_hashed_total 42"} {
		if !strings.Contains(string(content), want) {
			t.Errorf("textfile missing %q:\n%s", want, content)
		}
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.observeFile(1)
	m.observeScan(time.Second, nil)
	m.ObserveDiff(sampleReport())
	if m.Registry() != nil {
		t.Error("nil Metrics should have no registry")
	}
	if err := m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")); err != nil {
		t.Errorf("WriteTextfile on nil Metrics = %v", err)
	}
}

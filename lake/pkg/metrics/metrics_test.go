package metrics_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrodata/prodlake/lake/pkg/metrics"
)

func TestLake_Metrics_ObserveStage(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	m.ObserveStage("extract", 1500*time.Millisecond, nil)
	m.ObserveStage("extract", 2*time.Second, errors.New("boom"))

	assert.InDelta(t, 2.0, testutil.ToFloat64(m.StageDuration.WithLabelValues("extract")), 1e-9)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageRuns.WithLabelValues("extract", metrics.StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageRuns.WithLabelValues("extract", metrics.StatusError)))
}

func TestLake_Metrics_InstancesAreIsolated(t *testing.T) {
	t.Parallel()

	a, b := metrics.New(), metrics.New()
	a.SetRows("load", "oil_production", 12)

	assert.Equal(t, 12.0, testutil.ToFloat64(a.Rows.WithLabelValues("load", "oil_production")))
	assert.Equal(t, 0, testutil.CollectAndCount(b.Rows))
}

func TestLake_Metrics_WriteTextfile(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	m.SetRows("extract", "wellspublic", 3)
	m.LastSuccess.Set(1700000000)

	path := filepath.Join(t.TempDir(), "prodlake.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `prodlake_rows{dataset="wellspublic",stage="extract"} 3`)
	assert.Contains(t, string(data), "prodlake_last_success_timestamp_seconds 1.7e+09")
}

func TestLake_Metrics_WriteTextfile_BadDir(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	err := m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "prodlake.prom"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write metrics textfile")
}

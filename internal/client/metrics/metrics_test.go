package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Started()
	m.Started()
	m.Succeeded()
	m.Failed("transfer")
	m.Step("small", 1500, 20*time.Millisecond)
	m.Step("small", 500, 10*time.Millisecond)
	m.Queue(3)
	m.StoreError()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.UploadsStarted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UploadsSucceeded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UploadsFailed.WithLabelValues("transfer")))
	assert.Equal(t, 2000.0, testutil.ToFloat64(m.BytesUploaded.WithLabelValues("small")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.QueueDepth))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreErrors))

	n, err := testutil.GatherAndCount(reg, "assetsync_step_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMetrics_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Started()
		m.Succeeded()
		m.Failed("x")
		m.Step("large", 1, time.Second)
		m.Queue(1)
		m.StoreError()
	})
}

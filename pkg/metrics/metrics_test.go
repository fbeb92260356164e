package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheus_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg)

	p.JobSubmitted()
	p.JobSubmitted()
	p.JobFinished("FAILURE", "Timeout", 3*time.Second)
	p.JobsReaped("timeout", 2)
	p.QueueDepth(5)
	p.Publish("success")
	p.AssignmentUpdate("DateOutOfRange")
	p.HTTPRequest("GET", "/api/v1/jobs/:id", 200, 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.jobsSubmitted))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.jobsFinished.WithLabelValues("FAILURE", "Timeout")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.jobsReaped.WithLabelValues("timeout")))
	assert.Equal(t, 5.0, testutil.ToFloat64(p.queueDepth))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.publishTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.updateTotal.WithLabelValues("DateOutOfRange")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.httpRequests.WithLabelValues("GET", "/api/v1/jobs/:id", "200")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestPrometheus_DoubleRegisterPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewPrometheus(reg)
	assert.Panics(t, func() { NewPrometheus(reg) })
}

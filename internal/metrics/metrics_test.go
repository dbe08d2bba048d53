package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncrementCounter(t *testing.T) {
	r := NewRegistry()

	r.IncrementCounter("test_counter", nil, "a test counter")
	r.IncrementCounter("test_counter", nil, "a test counter")

	snapshot := r.GetAll()
	require.Contains(t, snapshot.Counters, "test_counter")
	assert.Equal(t, float64(2), snapshot.Counters["test_counter"].Value)
	assert.Equal(t, Counter, snapshot.Counters["test_counter"].Type)
}

func TestAddToCounter(t *testing.T) {
	r := NewRegistry()

	r.AddToCounter("deleted_total", 25, nil, "")
	r.AddToCounter("deleted_total", 10, nil, "")

	snapshot := r.GetAll()
	assert.Equal(t, float64(35), snapshot.Counters["deleted_total"].Value)
}

func TestCounterLabels(t *testing.T) {
	r := NewRegistry()

	r.IncrementCounter("requests", map[string]string{"method": "GET", "path": "/health"}, "")
	r.IncrementCounter("requests", map[string]string{"path": "/health", "method": "GET"}, "")
	r.IncrementCounter("requests", map[string]string{"method": "POST", "path": "/v1/payloads"}, "")

	snapshot := r.GetAll()
	// Label order must not matter.
	assert.Equal(t, float64(2), snapshot.Counters["requests,method=GET,path=/health"].Value)
	assert.Equal(t, float64(1), snapshot.Counters["requests,method=POST,path=/v1/payloads"].Value)
}

func TestSetGauge(t *testing.T) {
	r := NewRegistry()

	r.SetGauge("pending_rows", 4, nil, "")
	r.SetGauge("pending_rows", 2, nil, "")

	snapshot := r.GetAll()
	assert.Equal(t, float64(2), snapshot.Gauges["pending_rows"].Value)
}

func TestRecordTimer(t *testing.T) {
	r := NewRegistry()

	r.RecordTimer("op_duration", 10*time.Millisecond, nil, "")
	r.RecordTimer("op_duration", 30*time.Millisecond, nil, "")

	snapshot := r.GetAll()
	timer := snapshot.Timers["op_duration"]
	require.NotNil(t, timer)
	assert.Equal(t, int64(2), timer.Count)
	assert.Equal(t, float64(10), timer.Min)
	assert.Equal(t, float64(30), timer.Max)
	assert.Equal(t, float64(20), timer.Average)
}

func TestSnapshotIsACopy(t *testing.T) {
	r := NewRegistry()
	r.IncrementCounter("test_counter", nil, "")

	snapshot := r.GetAll()
	snapshot.Counters["test_counter"].Value = 999

	assert.Equal(t, float64(1), r.GetAll().Counters["test_counter"].Value)
}

func TestGlobalRegistryHelpers(t *testing.T) {
	IncrementCounter("global_test_counter", nil, "")
	snapshot := GetAllMetrics()
	assert.Contains(t, snapshot.Counters, "global_test_counter")
	assert.GreaterOrEqual(t, snapshot.UptimeSeconds, float64(0))
}

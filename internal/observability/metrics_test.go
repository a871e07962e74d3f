package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/work-orders/:id/accept", "POST", 200, 15*time.Millisecond)
	m.RecordRequest("/work-orders/:id/accept", "POST", 200, 5*time.Millisecond)
	m.RecordError("/work-orders/:id/accept", "POST", "ALREADY_CLAIMED")
	m.RecordOperation("work_order.accept", "OK")
	m.RecordOperation("work_order.accept", "ALREADY_CLAIMED")

	snap := m.Snapshot()
	byName := map[string][]Counter{}
	for _, c := range snap {
		byName[c.Name] = append(byName[c.Name], c)
	}

	require.Len(t, byName["http_requests_total"], 1)
	require.EqualValues(t, 2, byName["http_requests_total"][0].Value)
	require.Equal(t, "200", byName["http_requests_total"][0].Labels["status"])
	require.EqualValues(t, 20, byName["http_request_duration_ms_total"][0].Value)
	require.Len(t, byName["http_errors_total"], 1)
	require.Equal(t, "ALREADY_CLAIMED", byName["http_errors_total"][0].Labels["code"])
	require.Len(t, byName["dispatch_operations_total"], 2)
	require.Equal(t, "ALREADY_CLAIMED", byName["dispatch_operations_total"][0].Labels["outcome"])
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	m.RecordError("/", "GET", "X")
	m.RecordOperation("op", "OK")
	require.Nil(t, m.Snapshot())
}

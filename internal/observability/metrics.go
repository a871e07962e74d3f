package observability

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
	latencyTotal map[string]time.Duration
	operations   map[string]int64
}

// Counter is one exported metric sample.
type Counter struct {
	Name   string            `json:"name"`
	Labels map[string]string `json:"labels"`
	Value  int64             `json:"value"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		latencyTotal: make(map[string]time.Duration),
		operations:   make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := joinKey(path, method, strconv.Itoa(status))
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.latencyTotal[key] += duration
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := joinKey(path, method, code)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordOperation counts engine operations by name and outcome code
// ("OK" on success).
func (m *Metrics) RecordOperation(operation, outcome string) {
	if m == nil {
		return
	}
	key := joinKey(operation, outcome)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operations[key]++
}

// Snapshot returns every counter sorted by name and labels.
func (m *Metrics) Snapshot() []Counter {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Counter
	for key, v := range m.requestCount {
		parts := splitKey(key, 3)
		out = append(out, Counter{
			Name:   "http_requests_total",
			Labels: map[string]string{"path": parts[0], "method": parts[1], "status": parts[2]},
			Value:  v,
		})
		out = append(out, Counter{
			Name:   "http_request_duration_ms_total",
			Labels: map[string]string{"path": parts[0], "method": parts[1], "status": parts[2]},
			Value:  m.latencyTotal[key].Milliseconds(),
		})
	}
	for key, v := range m.errorCount {
		parts := splitKey(key, 3)
		out = append(out, Counter{
			Name:   "http_errors_total",
			Labels: map[string]string{"path": parts[0], "method": parts[1], "code": parts[2]},
			Value:  v,
		})
	}
	for key, v := range m.operations {
		parts := splitKey(key, 2)
		out = append(out, Counter{
			Name:   "dispatch_operations_total",
			Labels: map[string]string{"operation": parts[0], "outcome": parts[1]},
			Value:  v,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return labelKey(out[i].Labels) < labelKey(out[j].Labels)
	})
	return out
}

func joinKey(parts ...string) string {
	return strings.Join(parts, "|")
}

func splitKey(key string, n int) []string {
	parts := strings.SplitN(key, "|", n)
	for len(parts) < n {
		parts = append(parts, "")
	}
	return parts
}

func labelKey(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
		b.WriteByte(',')
	}
	return b.String()
}

package obs

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Label is a key/value pair attached to measurements.
type Label struct {
	Key   string
	Value string
}

// Meter is a very small interface for emitting counters/histograms.
// Implementations may no-op or bridge to a metrics system.
type Meter interface {
	Counter(name string, value float64, labels ...Label)
	Histogram(name string, value float64, labels ...Label)
}

// NopMeter is a Meter that discards all measurements.
type NopMeter struct{}

func (NopMeter) Counter(name string, value float64, labels ...Label)   {}
func (NopMeter) Histogram(name string, value float64, labels ...Label) {}

// MapMeter accumulates measurements in memory, keyed by metric name
// plus sorted labels. Counters sum; histograms keep count and sum.
// Useful in tests and small tools that want to inspect what the
// protocol components emitted.
type MapMeter struct {
	mu     sync.Mutex
	counts map[string]float64
	hists  map[string]HistValue
}

// HistValue is the accumulated state of one histogram series.
type HistValue struct {
	Count int
	Sum   float64
}

func NewMapMeter() *MapMeter {
	return &MapMeter{
		counts: make(map[string]float64),
		hists:  make(map[string]HistValue),
	}
}

func (m *MapMeter) Counter(name string, value float64, labels ...Label) {
	k := seriesKey(name, labels)
	m.mu.Lock()
	m.counts[k] += value
	m.mu.Unlock()
}

func (m *MapMeter) Histogram(name string, value float64, labels ...Label) {
	k := seriesKey(name, labels)
	m.mu.Lock()
	h := m.hists[k]
	h.Count++
	h.Sum += value
	m.hists[k] = h
	m.mu.Unlock()
}

// Count returns the accumulated counter value for a series.
func (m *MapMeter) Count(name string, labels ...Label) float64 {
	k := seriesKey(name, labels)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[k]
}

// Hist returns the accumulated histogram state for a series.
func (m *MapMeter) Hist(name string, labels ...Label) HistValue {
	k := seriesKey(name, labels)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hists[k]
}

// Snapshot returns all counter series, sorted by key.
func (m *MapMeter) Snapshot() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.counts))
	for k, v := range m.counts {
		out = append(out, fmt.Sprintf("%s = %g", k, v))
	}
	sort.Strings(out)
	return out
}

func seriesKey(name string, labels []Label) string {
	if len(labels) == 0 {
		return name
	}
	ls := make([]string, len(labels))
	for i, l := range labels {
		ls[i] = l.Key + "=" + l.Value
	}
	sort.Strings(ls)
	return name + "{" + strings.Join(ls, ",") + "}"
}

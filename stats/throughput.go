// Package stats aggregates trace events emitted by the traffic
// models into throughput reports and distribution histograms. It
// observes the simulation and never feeds back into it.
package stats

import (
	"fmt"
	"io"
	"sort"
	"time"
)

// Throughput accumulates received (or sent) bytes per identifier and
// reports them as kbit/s, both averaged over the whole run and per
// fixed-width interval.
type Throughput struct {
	now      func() time.Duration
	interval time.Duration
	flows    map[string]*flow
}

type flow struct {
	total   int64
	buckets []int64
}

// NewThroughput builds a collector reading virtual time from now,
// typically Scheduler.Now, with one-second intervals.
func NewThroughput(now func() time.Duration) *Throughput {
	return &Throughput{
		now:      now,
		interval: time.Second,
		flows:    make(map[string]*flow),
	}
}

// SetInterval changes the bucket width. Call before recording.
func (t *Throughput) SetInterval(d time.Duration) {
	if d > 0 {
		t.interval = d
	}
}

// RecordPacket attributes bytes to identifier at the current virtual
// time. Wire it to OnPacketReceived/OnPacketSent observers.
func (t *Throughput) RecordPacket(identifier string, bytes int) {
	f := t.flows[identifier]
	if f == nil {
		f = &flow{}
		t.flows[identifier] = f
	}
	f.total += int64(bytes)
	idx := int(t.now() / t.interval)
	for len(f.buckets) <= idx {
		f.buckets = append(f.buckets, 0)
	}
	f.buckets[idx] += int64(bytes)
}

// Entry is one identifier's whole-run summary.
type Entry struct {
	Identifier string
	Bytes      int64
	Kbps       float64 // average over the observation window
}

// Report summarizes every identifier, sorted by identifier, averaged
// over the elapsed virtual time.
func (t *Throughput) Report() []Entry {
	elapsed := t.now().Seconds()
	out := make([]Entry, 0, len(t.flows))
	for id, f := range t.flows {
		e := Entry{Identifier: id, Bytes: f.total}
		if elapsed > 0 {
			e.Kbps = bytesToKbit(f.total) / elapsed
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out
}

// Series returns the per-interval rate in kbit/s for one identifier.
func (t *Throughput) Series(identifier string) []float64 {
	f := t.flows[identifier]
	if f == nil {
		return nil
	}
	per := t.interval.Seconds()
	out := make([]float64, len(f.buckets))
	for i, b := range f.buckets {
		out[i] = bytesToKbit(b) / per
	}
	return out
}

// WriteReport emits the whole-run summary as a plain-text table.
func (t *Throughput) WriteReport(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%-28s %12s %12s\n", "identifier", "bytes", "kbit/s"); err != nil {
		return err
	}
	for _, e := range t.Report() {
		if _, err := fmt.Fprintf(w, "%-28s %12d %12.2f\n", e.Identifier, e.Bytes, e.Kbps); err != nil {
			return err
		}
	}
	return nil
}

// WriteSeries emits the per-interval rates of one identifier, one
// line per interval.
func (t *Throughput) WriteSeries(w io.Writer, identifier string) error {
	per := t.interval.Seconds()
	for i, kbps := range t.Series(identifier) {
		if _, err := fmt.Fprintf(w, "%.1f %.2f\n", float64(i)*per, kbps); err != nil {
			return err
		}
	}
	return nil
}

func bytesToKbit(b int64) float64 {
	return float64(b) * 8 / 1000
}

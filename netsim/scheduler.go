package netsim

import (
	"container/heap"
	"time"
)

// Scheduler is a single-threaded discrete-event scheduler running in
// virtual time. Callbacks execute one at a time, in timestamp order,
// with ties broken by scheduling order. Nothing runs until Step,
// RunUntil or Drain is called, so callers may freely wire up callbacks
// between scheduling and execution.
type Scheduler struct {
	now time.Duration
	pq  eventQueue
	seq uint64
}

func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Now returns the current virtual time, measured from zero.
func (s *Scheduler) Now() time.Duration {
	return s.now
}

// Schedule registers fn to run after delay d of virtual time. A
// negative delay is treated as zero. The returned Event may be used
// to cancel the callback before it fires.
func (s *Scheduler) Schedule(d time.Duration, fn func()) *Event {
	if d < 0 {
		d = 0
	}
	s.seq++
	ev := &Event{at: s.now + d, seq: s.seq, fn: fn}
	heap.Push(&s.pq, ev)
	return ev
}

// Pending reports the number of events still queued, including
// canceled ones that have not been reaped yet.
func (s *Scheduler) Pending() int {
	return len(s.pq)
}

// Step executes the next non-canceled event, advancing virtual time
// to its timestamp. It returns false when the queue is empty.
func (s *Scheduler) Step() bool {
	for len(s.pq) > 0 {
		ev := heap.Pop(&s.pq).(*Event)
		if ev.canceled {
			continue
		}
		s.now = ev.at
		ev.fn()
		return true
	}
	return false
}

// RunUntil executes every event scheduled at or before t, then
// advances virtual time to t. Events scheduled by the callbacks
// themselves are executed too if they fall within the horizon.
func (s *Scheduler) RunUntil(t time.Duration) {
	for len(s.pq) > 0 {
		next := s.pq[0]
		if next.canceled {
			heap.Pop(&s.pq)
			continue
		}
		if next.at > t {
			break
		}
		heap.Pop(&s.pq)
		s.now = next.at
		next.fn()
	}
	if t > s.now {
		s.now = t
	}
}

// Drain executes events until the queue is empty. Only suitable for
// workloads that terminate; the traffic model reschedules itself
// forever, so simulations should use RunUntil.
func (s *Scheduler) Drain() {
	for s.Step() {
	}
}

// Event is a handle to a scheduled callback.
type Event struct {
	at       time.Duration
	seq      uint64
	fn       func()
	canceled bool
}

// Cancel prevents the event from firing. Canceling an event that
// already fired, or canceling twice, is a no-op.
func (e *Event) Cancel() {
	if e != nil {
		e.canceled = true
	}
}

// eventQueue is a min-heap ordered by (time, sequence).
type eventQueue []*Event

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].at != q[j].at {
		return q[i].at < q[j].at
	}
	return q[i].seq < q[j].seq
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x interface{}) { *q = append(*q, x.(*Event)) }

func (q *eventQueue) Pop() interface{} {
	old := *q
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return ev
}

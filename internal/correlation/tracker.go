// Package correlation implements the CorrelationTracker: per-messageId
// bookkeeping for requests this peer initiated, multipart assembly, and
// timeout/close completion. It is guarded by a mutex disjoint from the
// session's send lock (spec.md §5: "the correlation table is guarded by a
// dedicated mutex disjoint from the send lock").
package correlation

import (
	"sync"
	"time"

	"github.com/energistics/etp/wire"
)

// Completion is delivered to a waiting caller (or an async callback) once a
// correlation finishes, successfully or not.
type Completion struct {
	Parts []wire.DecodedFrame
	Err   error
}

// ErrSessionClosed completes every outstanding entry when the session closes
// (spec.md §4.4).
type ErrSessionClosed struct{}

func (ErrSessionClosed) Error() string { return "correlation: session closed" }

// ErrTimeout completes an entry whose deadline elapsed before a FinalPart
// arrived. The peer may still reply later; that reply is then an orphan
// (spec.md §5).
type ErrTimeout struct{}

func (ErrTimeout) Error() string { return "correlation: timed out" }

// entry is one outstanding request this peer is waiting on a reply to.
type entry struct {
	handlerContractID string
	buffer            []wire.DecodedFrame
	done              chan Completion
	deadline          time.Time
	hasDeadline       bool
	completed         bool
}

// Tracker maps in-flight messageIds to their pending completion.
type Tracker struct {
	mu      sync.Mutex
	entries map[int64]*entry

	inflightGauge func(delta int)
	timeoutCount  func()
	orphanCount   func()
}

// Option configures optional metrics hooks so callers can wire Prometheus
// gauges/counters without the tracker importing a metrics library itself.
type Option func(*Tracker)

// WithInflightGauge registers a callback invoked with +1/-1 as entries are
// added/removed, for an "in-flight correlations" gauge.
func WithInflightGauge(fn func(delta int)) Option {
	return func(t *Tracker) { t.inflightGauge = fn }
}

// WithTimeoutCounter registers a callback invoked once per expired entry.
func WithTimeoutCounter(fn func()) Option {
	return func(t *Tracker) { t.timeoutCount = fn }
}

// WithOrphanCounter registers a callback invoked once per orphaned reply
// (a correlationId with no matching entry).
func WithOrphanCounter(fn func()) Option {
	return func(t *Tracker) { t.orphanCount = fn }
}

// New constructs an empty Tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{entries: make(map[int64]*entry)}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Begin registers a new outstanding request under messageID, returning a
// channel the caller can receive its Completion from. Callers that do not
// want to await a reply synchronously may ignore the channel; Deliver, Fail,
// CloseAll and ExpireOverdue still deliver to it (buffered, size 1) so the
// send never blocks.
func (t *Tracker) Begin(messageID int64, contractID string, deadline time.Time, hasDeadline bool) <-chan Completion {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := &entry{
		handlerContractID: contractID,
		done:              make(chan Completion, 1),
		deadline:          deadline,
		hasDeadline:       hasDeadline,
	}
	t.entries[messageID] = e
	if t.inflightGauge != nil {
		t.inflightGauge(1)
	}
	return e.done
}

// Deliver handles one inbound message whose header.CorrelationID is
// non-zero: it appends to the buffer on MultiPart, and completes + removes
// the entry on FinalPart. It reports (found=false) for an orphan reply — the
// caller logs at debug and drops (spec.md §4.4, §7 "Correlation").
func (t *Tracker) Deliver(correlationID int64, frame wire.DecodedFrame) (found bool) {
	t.mu.Lock()
	e, ok := t.entries[correlationID]
	if !ok {
		t.mu.Unlock()
		if t.orphanCount != nil {
			t.orphanCount()
		}
		return false
	}

	e.buffer = append(e.buffer, frame)
	final := frame.Header.MessageFlags.Has(wire.FlagFinalPart)
	var parts []wire.DecodedFrame
	if final {
		parts = e.buffer
		delete(t.entries, correlationID)
	}
	t.mu.Unlock()

	if final {
		t.finish(e, Completion{Parts: parts})
		if t.inflightGauge != nil {
			t.inflightGauge(-1)
		}
	}
	return true
}

// Fail completes correlationID's entry with an error (e.g. the peer replied
// with a ProtocolException) and removes it. Returns false if there was no
// such entry (orphan).
func (t *Tracker) Fail(correlationID int64, err error) bool {
	t.mu.Lock()
	e, ok := t.entries[correlationID]
	if ok {
		delete(t.entries, correlationID)
	}
	t.mu.Unlock()

	if !ok {
		if t.orphanCount != nil {
			t.orphanCount()
		}
		return false
	}
	t.finish(e, Completion{Err: err})
	if t.inflightGauge != nil {
		t.inflightGauge(-1)
	}
	return true
}

// CloseAll completes every outstanding entry with ErrSessionClosed and
// empties the table in O(n) (spec.md: "On session close: complete all
// outstanding with SessionClosed").
func (t *Tracker) CloseAll() {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[int64]*entry)
	t.mu.Unlock()

	for _, e := range entries {
		t.finish(e, Completion{Err: ErrSessionClosed{}})
		if t.inflightGauge != nil {
			t.inflightGauge(-1)
		}
	}
}

// ExpireOverdue scans for entries whose deadline has passed relative to now
// and completes them with ErrTimeout, without sending anything on the wire
// (spec.md §5: "expiry completes the correlation with Timeout and does not
// send anything on the wire"). Session.Call calls it when a call's timeout
// elapses.
func (t *Tracker) ExpireOverdue(now time.Time) {
	t.mu.Lock()
	var expired []*entry
	for id, e := range t.entries {
		if e.hasDeadline && now.After(e.deadline) {
			expired = append(expired, e)
			delete(t.entries, id)
		}
	}
	t.mu.Unlock()

	for _, e := range expired {
		t.finish(e, Completion{Err: ErrTimeout{}})
		if t.inflightGauge != nil {
			t.inflightGauge(-1)
		}
		if t.timeoutCount != nil {
			t.timeoutCount()
		}
	}
}

// Len reports the number of outstanding entries (for metrics/tests).
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Tracker) finish(e *entry, c Completion) {
	if e.completed {
		return
	}
	e.completed = true
	e.done <- c
	close(e.done)
}

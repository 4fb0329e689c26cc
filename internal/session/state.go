package session

import "sync/atomic"

// State is the session lifecycle state (spec.md §3): Negotiating -> Open ->
// Closing -> Closed. Terminal states discard all pending correlations.
type State int32

const (
	StateNegotiating State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNegotiating:
		return "Negotiating"
	case StateOpen:
		return "Open"
	case StateClosing:
		return "Closing"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

type stateBox struct {
	v atomic.Int32
}

func (b *stateBox) load() State   { return State(b.v.Load()) }
func (b *stateBox) store(s State) { b.v.Store(int32(s)) }

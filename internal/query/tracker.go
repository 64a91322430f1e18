package query

import (
	"sync"
	"time"
)

// ConnState is a relay's connection lifecycle state.
type ConnState int

const (
	ConnPending ConnState = iota
	ConnConnecting
	ConnConnected
	ConnDisconnected
	ConnError
)

func (s ConnState) String() string {
	switch s {
	case ConnPending:
		return "pending"
	case ConnConnecting:
		return "connecting"
	case ConnConnected:
		return "connected"
	case ConnDisconnected:
		return "disconnected"
	case ConnError:
		return "error"
	}
	return "unknown"
}

// SubState is a relay's subscription lifecycle state. It is independent of
// the connection axis and keeps its last value after a disconnect: a relay
// can be disconnected while its subscription state remains eose.
type SubState int

const (
	SubWaiting SubState = iota
	SubReceiving
	SubEOSE
	SubError
)

func (s SubState) String() string {
	switch s {
	case SubWaiting:
		return "waiting"
	case SubReceiving:
		return "receiving"
	case SubEOSE:
		return "eose"
	case SubError:
		return "error"
	}
	return "unknown"
}

// RelayState is the tracked state of a single relay within one query.
type RelayState struct {
	Connection   ConnState
	Subscription SubState
	EventCount   uint64
	FirstEventAt time.Time
	EOSEAt       time.Time
}

// failedTerminal reports whether the relay ended without ever delivering:
// errored, or disconnected before its subscription reached receiving/eose.
func (rs RelayState) failedTerminal() bool {
	if rs.Connection == ConnError {
		return true
	}
	return rs.Connection == ConnDisconnected &&
		rs.Subscription != SubReceiving && rs.Subscription != SubEOSE
}

// Tracker maps relay URLs (normalized) to their per-query lifecycle state.
// The connection layer applies one discrete mutation per lifecycle event;
// each relay's entry updates atomically and independently of the others.
// The aggregator only reads snapshots.
type Tracker struct {
	mu     sync.RWMutex
	states map[string]RelayState
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{states: make(map[string]RelayState)}
}

// Add registers a relay in pending/waiting state. Idempotent.
func (t *Tracker) Add(relayURL string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.states[relayURL]; !ok {
		t.states[relayURL] = RelayState{Connection: ConnPending, Subscription: SubWaiting}
	}
}

// SetConnection transitions the relay's connection state.
func (t *Tracker) SetConnection(relayURL string, state ConnState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rs := t.states[relayURL]
	rs.Connection = state
	t.states[relayURL] = rs
}

// RecordEvent counts one received event, moving the subscription to
// receiving if it was still waiting.
func (t *Tracker) RecordEvent(relayURL string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rs := t.states[relayURL]
	rs.EventCount++
	if rs.FirstEventAt.IsZero() {
		rs.FirstEventAt = at
	}
	if rs.Subscription == SubWaiting {
		rs.Subscription = SubReceiving
	}
	t.states[relayURL] = rs
}

// MarkEOSE records the relay's end-of-stored-events signal.
func (t *Tracker) MarkEOSE(relayURL string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rs := t.states[relayURL]
	rs.Subscription = SubEOSE
	if rs.EOSEAt.IsZero() {
		rs.EOSEAt = at
	}
	t.states[relayURL] = rs
}

// MarkSubError records a subscription-level failure (e.g. CLOSED by relay).
func (t *Tracker) MarkSubError(relayURL string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rs := t.states[relayURL]
	rs.Subscription = SubError
	t.states[relayURL] = rs
}

// Snapshot returns a copy of the current state map, safe to hand to the
// aggregator while mutations continue.
func (t *Tracker) Snapshot() map[string]RelayState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]RelayState, len(t.states))
	for url, rs := range t.states {
		out[url] = rs
	}
	return out
}

// Len returns the number of tracked relays.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.states)
}

// GlobalEOSE reports whether every tracked relay has either signaled EOSE or
// failed terminally, with at least one EOSE among them. This is the
// "globalEoseReached" input the aggregator consumes.
func (t *Tracker) GlobalEOSE() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.states) == 0 {
		return false
	}
	sawEOSE := false
	for _, rs := range t.states {
		if rs.Subscription == SubEOSE {
			sawEOSE = true
			continue
		}
		if !rs.failedTerminal() && rs.Subscription != SubError {
			return false
		}
	}
	return sawEOSE
}

package query

import "time"

// Status is the single coherent progress state of a multi-relay query.
type Status string

const (
	StatusDiscovering Status = "discovering" // relay set still being resolved
	StatusConnecting  Status = "connecting"  // no relay connected yet, nothing received
	StatusLoading     Status = "loading"     // backlog streaming in, global EOSE not reached
	StatusLive        Status = "live"        // post-EOSE, streaming, at least one relay up
	StatusPartial     Status = "partial"     // post-EOSE, streaming, some relays up and some lost
	StatusOffline     Status = "offline"     // post-EOSE, streaming, all relays gone but events arrived
	StatusClosed      Status = "closed"      // one-shot query complete
	StatusFailed      Status = "failed"      // nothing received and every relay failed
)

// OverallQueryState is the derived aggregate over all per-relay states. It
// is recomputed from scratch on every relay-state mutation and carries no
// memory of its previous value.
type OverallQueryState struct {
	Status            Status
	TotalRelays       int
	ConnectedCount    int
	ReceivingCount    int
	EOSECount         int
	ErrorCount        int
	DisconnectedCount int
	HasReceivedEvents bool
	HasActiveRelays   bool
	AllRelaysFailed   bool
	QueryStartedAt    time.Time
}

// DeriveOverallState maps a snapshot of per-relay states plus the two global
// booleans to one overall status. It is a pure, total function: every input
// yields a defined status, identical snapshots yield identical results, and
// no state is kept across calls — a query that was "live" demotes to
// "offline" the moment its last relay drops post-EOSE, with no new event
// needed to trigger the change.
//
// Relays in non-terminal states (pending/connecting) after global EOSE are
// excluded from both the failed and the success tallies: they do not force
// "partial" on their own and do not block "live".
func DeriveOverallState(relayStates map[string]RelayState, globalEoseReached, isStreaming bool, queryStartedAt time.Time) OverallQueryState {
	out := OverallQueryState{QueryStartedAt: queryStartedAt}

	allFailed := len(relayStates) > 0
	for _, rs := range relayStates {
		out.TotalRelays++
		switch rs.Connection {
		case ConnConnected:
			out.ConnectedCount++
		case ConnDisconnected:
			out.DisconnectedCount++
		case ConnError:
			out.ErrorCount++
		}
		switch rs.Subscription {
		case SubReceiving:
			out.ReceivingCount++
		case SubEOSE:
			out.EOSECount++
		}
		if rs.EventCount > 0 {
			out.HasReceivedEvents = true
		}
		if !rs.failedTerminal() {
			allFailed = false
		}
	}
	out.HasActiveRelays = out.ConnectedCount > 0
	out.AllRelaysFailed = allFailed

	out.Status = deriveStatus(out, globalEoseReached, isStreaming)
	return out
}

func deriveStatus(s OverallQueryState, globalEoseReached, isStreaming bool) Status {
	// Empty relay set: still discovering relays (e.g. outbox resolution),
	// regardless of the global flags.
	if s.TotalRelays == 0 {
		return StatusDiscovering
	}

	if !globalEoseReached {
		if s.AllRelaysFailed && !s.HasReceivedEvents {
			return StatusFailed
		}
		if s.ConnectedCount == 0 && s.ReceivingCount == 0 && s.EOSECount == 0 && !s.HasReceivedEvents {
			return StatusConnecting
		}
		return StatusLoading
	}

	if isStreaming {
		if s.ConnectedCount > 0 && (s.DisconnectedCount > 0 || s.ErrorCount > 0) {
			return StatusPartial
		}
		if s.ConnectedCount > 0 {
			return StatusLive
		}
		if s.HasReceivedEvents {
			return StatusOffline
		}
		return StatusFailed
	}

	// One-shot query complete; post-EOSE connection churn is irrelevant.
	return StatusClosed
}

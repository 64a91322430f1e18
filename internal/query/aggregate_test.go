package query

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var t0 = time.Unix(1700000000, 0)

func relays(states ...RelayState) map[string]RelayState {
	out := make(map[string]RelayState, len(states))
	for i, rs := range states {
		out[fmt.Sprintf("wss://relay%d.example.com/", i)] = rs
	}
	return out
}

func TestDeriveOverallStateDiscovering(t *testing.T) {
	// An empty relay set means discovering, regardless of the global flags.
	for _, eose := range []bool{false, true} {
		for _, streaming := range []bool{false, true} {
			state := DeriveOverallState(map[string]RelayState{}, eose, streaming, t0)
			assert.Equal(t, StatusDiscovering, state.Status, "eose=%v streaming=%v", eose, streaming)
		}
	}
}

func TestDeriveOverallStateConnecting(t *testing.T) {
	state := DeriveOverallState(relays(
		RelayState{Connection: ConnPending, Subscription: SubWaiting},
		RelayState{Connection: ConnConnecting, Subscription: SubWaiting},
	), false, true, t0)
	assert.Equal(t, StatusConnecting, state.Status)
}

func TestDeriveOverallStateLoading(t *testing.T) {
	t.Run("one connected", func(t *testing.T) {
		state := DeriveOverallState(relays(
			RelayState{Connection: ConnConnected, Subscription: SubWaiting},
			RelayState{Connection: ConnConnecting, Subscription: SubWaiting},
		), false, true, t0)
		assert.Equal(t, StatusLoading, state.Status)
	})

	t.Run("receiving events", func(t *testing.T) {
		state := DeriveOverallState(relays(
			RelayState{Connection: ConnConnected, Subscription: SubReceiving, EventCount: 4},
		), false, true, t0)
		assert.Equal(t, StatusLoading, state.Status)
		assert.True(t, state.HasReceivedEvents)
	})
}

func TestDeriveOverallStateFailed(t *testing.T) {
	t.Run("all relays errored pre-EOSE", func(t *testing.T) {
		state := DeriveOverallState(relays(
			RelayState{Connection: ConnError, Subscription: SubWaiting},
			RelayState{Connection: ConnError, Subscription: SubWaiting},
		), false, true, t0)
		assert.Equal(t, StatusFailed, state.Status)
		assert.True(t, state.AllRelaysFailed)
	})

	t.Run("disconnected before delivering counts as failed", func(t *testing.T) {
		state := DeriveOverallState(relays(
			RelayState{Connection: ConnDisconnected, Subscription: SubWaiting},
			RelayState{Connection: ConnError, Subscription: SubWaiting},
		), false, true, t0)
		assert.Equal(t, StatusFailed, state.Status)
	})

	t.Run("events received prevent failed", func(t *testing.T) {
		state := DeriveOverallState(relays(
			RelayState{Connection: ConnError, Subscription: SubReceiving, EventCount: 1},
			RelayState{Connection: ConnError, Subscription: SubWaiting},
		), false, true, t0)
		assert.NotEqual(t, StatusFailed, state.Status)
	})

	t.Run("post-EOSE streaming with nothing delivered and nothing up", func(t *testing.T) {
		state := DeriveOverallState(relays(
			RelayState{Connection: ConnError, Subscription: SubError},
		), true, true, t0)
		assert.Equal(t, StatusFailed, state.Status)
	})
}

func TestDeriveOverallStateLive(t *testing.T) {
	state := DeriveOverallState(relays(
		RelayState{Connection: ConnConnected, Subscription: SubEOSE, EventCount: 12},
		RelayState{Connection: ConnConnected, Subscription: SubEOSE, EventCount: 3},
	), true, true, t0)
	assert.Equal(t, StatusLive, state.Status)
	assert.Equal(t, 2, state.ConnectedCount)
}

func TestDeriveOverallStatePartial(t *testing.T) {
	states := make(map[string]RelayState, 30)
	for i := 0; i < 10; i++ {
		states[fmt.Sprintf("wss://up%d.example.com/", i)] = RelayState{Connection: ConnConnected, Subscription: SubEOSE, EventCount: 1}
	}
	for i := 0; i < 15; i++ {
		states[fmt.Sprintf("wss://down%d.example.com/", i)] = RelayState{Connection: ConnDisconnected, Subscription: SubEOSE}
	}
	for i := 0; i < 5; i++ {
		states[fmt.Sprintf("wss://err%d.example.com/", i)] = RelayState{Connection: ConnError, Subscription: SubWaiting}
	}

	state := DeriveOverallState(states, true, true, t0)
	assert.Equal(t, StatusPartial, state.Status)
	assert.Equal(t, 30, state.TotalRelays)
	assert.Equal(t, 10, state.ConnectedCount)
	assert.Equal(t, 15, state.DisconnectedCount)
	assert.Equal(t, 5, state.ErrorCount)
}

func TestDeriveOverallStateOffline(t *testing.T) {
	// Live demotes to offline the moment the last relay drops, with no new
	// event needed to trigger the change.
	up := relays(RelayState{Connection: ConnConnected, Subscription: SubEOSE, EventCount: 7})
	assert.Equal(t, StatusLive, DeriveOverallState(up, true, true, t0).Status)

	down := relays(RelayState{Connection: ConnDisconnected, Subscription: SubEOSE, EventCount: 7})
	assert.Equal(t, StatusOffline, DeriveOverallState(down, true, true, t0).Status)
}

func TestDeriveOverallStateClosed(t *testing.T) {
	t.Run("one-shot complete", func(t *testing.T) {
		state := DeriveOverallState(relays(
			RelayState{Connection: ConnConnected, Subscription: SubEOSE, EventCount: 2},
		), true, false, t0)
		assert.Equal(t, StatusClosed, state.Status)
	})

	t.Run("post-EOSE churn is irrelevant when not streaming", func(t *testing.T) {
		state := DeriveOverallState(relays(
			RelayState{Connection: ConnDisconnected, Subscription: SubEOSE, EventCount: 2},
			RelayState{Connection: ConnError, Subscription: SubEOSE},
		), true, false, t0)
		assert.Equal(t, StatusClosed, state.Status)
	})
}

func TestDeriveOverallStateNonTerminalRelaysDoNotForcePartial(t *testing.T) {
	// A relay still connecting after global EOSE neither forces partial nor
	// blocks live.
	state := DeriveOverallState(relays(
		RelayState{Connection: ConnConnected, Subscription: SubEOSE, EventCount: 1},
		RelayState{Connection: ConnConnecting, Subscription: SubWaiting},
	), true, true, t0)
	assert.Equal(t, StatusLive, state.Status)
}

func TestDeriveOverallStateIsPure(t *testing.T) {
	states := relays(
		RelayState{Connection: ConnConnected, Subscription: SubEOSE, EventCount: 5},
		RelayState{Connection: ConnDisconnected, Subscription: SubEOSE},
	)

	first := DeriveOverallState(states, true, true, t0)
	second := DeriveOverallState(states, true, true, t0)
	assert.Equal(t, first, second)

	// The input map is not mutated.
	assert.Len(t, states, 2)
}

func TestDeriveOverallStateTotal(t *testing.T) {
	// Every combination of connection and subscription state yields a
	// defined status.
	conns := []ConnState{ConnPending, ConnConnecting, ConnConnected, ConnDisconnected, ConnError}
	subs := []SubState{SubWaiting, SubReceiving, SubEOSE, SubError}

	for _, c := range conns {
		for _, s := range subs {
			for _, eose := range []bool{false, true} {
				for _, streaming := range []bool{false, true} {
					state := DeriveOverallState(relays(RelayState{Connection: c, Subscription: s}), eose, streaming, t0)
					assert.NotEmpty(t, state.Status, "conn=%v sub=%v eose=%v streaming=%v", c, s, eose, streaming)
				}
			}
		}
	}
}

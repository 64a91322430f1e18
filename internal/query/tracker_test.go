package query

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trackedRelay = "wss://relay.example.com/"

func TestTrackerAddIsIdempotent(t *testing.T) {
	tr := NewTracker()
	tr.Add(trackedRelay)
	tr.RecordEvent(trackedRelay, time.Now())
	tr.Add(trackedRelay)

	rs := tr.Snapshot()[trackedRelay]
	assert.Equal(t, uint64(1), rs.EventCount, "re-adding must not reset state")
	assert.Equal(t, 1, tr.Len())
}

func TestTrackerLifecycle(t *testing.T) {
	tr := NewTracker()
	tr.Add(trackedRelay)

	rs := tr.Snapshot()[trackedRelay]
	assert.Equal(t, ConnPending, rs.Connection)
	assert.Equal(t, SubWaiting, rs.Subscription)

	tr.SetConnection(trackedRelay, ConnConnecting)
	tr.SetConnection(trackedRelay, ConnConnected)
	tr.RecordEvent(trackedRelay, time.Unix(100, 0))
	tr.RecordEvent(trackedRelay, time.Unix(200, 0))
	tr.MarkEOSE(trackedRelay, time.Unix(300, 0))

	rs = tr.Snapshot()[trackedRelay]
	assert.Equal(t, ConnConnected, rs.Connection)
	assert.Equal(t, SubEOSE, rs.Subscription)
	assert.Equal(t, uint64(2), rs.EventCount)
	assert.Equal(t, time.Unix(100, 0), rs.FirstEventAt, "first event time sticks")
	assert.Equal(t, time.Unix(300, 0), rs.EOSEAt)
}

func TestTrackerSubStateSurvivesDisconnect(t *testing.T) {
	tr := NewTracker()
	tr.Add(trackedRelay)
	tr.SetConnection(trackedRelay, ConnConnected)
	tr.MarkEOSE(trackedRelay, time.Now())
	tr.SetConnection(trackedRelay, ConnDisconnected)

	rs := tr.Snapshot()[trackedRelay]
	assert.Equal(t, ConnDisconnected, rs.Connection)
	assert.Equal(t, SubEOSE, rs.Subscription, "subscription axis is independent of connection axis")
}

func TestTrackerSnapshotIsACopy(t *testing.T) {
	tr := NewTracker()
	tr.Add(trackedRelay)

	snap := tr.Snapshot()
	snap[trackedRelay] = RelayState{Connection: ConnError}

	assert.Equal(t, ConnPending, tr.Snapshot()[trackedRelay].Connection)
}

func TestTrackerGlobalEOSE(t *testing.T) {
	t.Run("empty tracker", func(t *testing.T) {
		assert.False(t, NewTracker().GlobalEOSE())
	})

	t.Run("all eose", func(t *testing.T) {
		tr := NewTracker()
		tr.Add("wss://a.example.com/")
		tr.Add("wss://b.example.com/")
		tr.MarkEOSE("wss://a.example.com/", time.Now())
		assert.False(t, tr.GlobalEOSE())
		tr.MarkEOSE("wss://b.example.com/", time.Now())
		assert.True(t, tr.GlobalEOSE())
	})

	t.Run("failed relays do not block", func(t *testing.T) {
		tr := NewTracker()
		tr.Add("wss://a.example.com/")
		tr.Add("wss://b.example.com/")
		tr.MarkEOSE("wss://a.example.com/", time.Now())
		tr.SetConnection("wss://b.example.com/", ConnError)
		assert.True(t, tr.GlobalEOSE())
	})

	t.Run("requires at least one eose", func(t *testing.T) {
		tr := NewTracker()
		tr.Add("wss://a.example.com/")
		tr.SetConnection("wss://a.example.com/", ConnError)
		assert.False(t, tr.GlobalEOSE())
	})

	t.Run("receiving relay blocks", func(t *testing.T) {
		tr := NewTracker()
		tr.Add("wss://a.example.com/")
		tr.Add("wss://b.example.com/")
		tr.MarkEOSE("wss://a.example.com/", time.Now())
		tr.SetConnection("wss://b.example.com/", ConnConnected)
		tr.RecordEvent("wss://b.example.com/", time.Now())
		assert.False(t, tr.GlobalEOSE())
	})
}

func TestTrackerConcurrentMutations(t *testing.T) {
	tr := NewTracker()
	urls := make([]string, 8)
	for i := range urls {
		urls[i] = fmt.Sprintf("wss://relay%d.example.com/", i)
		tr.Add(urls[i])
	}

	var wg sync.WaitGroup
	for _, url := range urls {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			tr.SetConnection(u, ConnConnected)
			for i := 0; i < 100; i++ {
				tr.RecordEvent(u, time.Now())
			}
			tr.MarkEOSE(u, time.Now())
		}(url)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			tr.Snapshot()
			tr.GlobalEOSE()
		}
	}()

	wg.Wait()
	<-done

	require.True(t, tr.GlobalEOSE())
	for _, url := range urls {
		rs := tr.Snapshot()[url]
		assert.Equal(t, uint64(100), rs.EventCount, url)
		assert.Equal(t, SubEOSE, rs.Subscription, url)
	}
}

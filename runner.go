package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/purrgrammer/grimoire-sub000/internal/nostr"
	"github.com/purrgrammer/grimoire-sub000/internal/query"
	"github.com/purrgrammer/grimoire-sub000/internal/spell"
)

// lifecycleKind identifies one discrete relay lifecycle event.
type lifecycleKind int

const (
	relayConnecting lifecycleKind = iota
	relayConnected
	relayConnectFailed
	relayEvent
	relayEOSE
	relayCount
	relayClosed
)

// lifecycleEvent is one mutation flowing from a relay watcher to the runner
// loop. The loop applies it to the tracker and re-derives the overall state.
type lifecycleEvent struct {
	relay string
	kind  lifecycleKind
	event *nostr.Event
	count int64
}

// QueryResult is the final outcome of one executed query.
type QueryResult struct {
	State      query.OverallQueryState
	EventsSeen int
	Counts     map[string]int64
	TotalCount int64
}

// Runner executes a compiled query against its relay set. Events stream to
// out as JSON lines, deduplicated by event ID across relays; the derived
// status renders to statusOut after every lifecycle event.
type Runner struct {
	pool      *RelayPool
	out       io.Writer
	statusOut io.Writer
	color     bool
}

// NewRunner creates a runner writing events to out and status to statusOut.
func NewRunner(pool *RelayPool, out, statusOut io.Writer, color bool) *Runner {
	return &Runner{pool: pool, out: out, statusOut: statusOut, color: color}
}

// Run executes the query until it completes or ctx is done. REQ queries
// stream until ctx cancellation unless CloseOnEose is set; COUNT queries are
// always one-shot. Timeout bounds one-shot queries only.
func (r *Runner) Run(ctx context.Context, qt spell.QueryType, q spell.CompiledQuery, timeout time.Duration) (*QueryResult, error) {
	if len(q.Relays) == 0 {
		return nil, fmt.Errorf("no relays to query")
	}

	streaming := qt == spell.QueryReq && !q.CloseOnEose
	if !streaming && timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	watchCtx, stopWatchers := context.WithCancel(ctx)
	defer stopWatchers()

	tracker := query.NewTracker()
	mutCh := make(chan lifecycleEvent, 256)
	var wg sync.WaitGroup

	for _, relayURL := range q.Relays {
		tracker.Add(relayURL)
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			r.watchRelay(watchCtx, url, qt, q.Filter, mutCh)
		}(relayURL)
	}

	go func() {
		wg.Wait()
		close(mutCh)
	}()

	startedAt := time.Now()
	result := &QueryResult{Counts: make(map[string]int64)}
	seen := make(map[string]bool)
	enc := json.NewEncoder(r.out)

	render := func(state query.OverallQueryState) {
		r.renderStatus(state, result)
	}

	for ev := range mutCh {
		r.apply(tracker, ev)

		switch ev.kind {
		case relayEvent:
			if ev.event != nil && !seen[ev.event.ID] {
				seen[ev.event.ID] = true
				result.EventsSeen++
				r.clearStatus()
				if err := enc.Encode(ev.event); err != nil {
					slog.Warn("event write failed", "error", err)
				}
			}
		case relayCount:
			result.Counts[ev.relay] = ev.count
			if ev.count > result.TotalCount {
				result.TotalCount = ev.count
			}
		}

		state := query.DeriveOverallState(tracker.Snapshot(), tracker.GlobalEOSE(), streaming, startedAt)
		result.State = state
		render(state)

		if !streaming && tracker.GlobalEOSE() {
			stopWatchers()
		}
		if state.Status == query.StatusFailed {
			stopWatchers()
		}
	}

	final := query.DeriveOverallState(tracker.Snapshot(), tracker.GlobalEOSE(), streaming, startedAt)
	result.State = final
	render(final)
	fmt.Fprintln(r.statusOut)

	if final.Status == query.StatusFailed {
		return result, fmt.Errorf("query failed: no relay delivered events")
	}
	return result, nil
}

// watchRelay owns one relay for the query's lifetime: dial, subscribe, then
// forward every subscription signal as a lifecycle event.
func (r *Runner) watchRelay(ctx context.Context, relayURL string, qt spell.QueryType, filter nostr.Filter, mutCh chan<- lifecycleEvent) {
	mutCh <- lifecycleEvent{relay: relayURL, kind: relayConnecting}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	sub, err := r.pool.Subscribe(dialCtx, relayURL, qt, filter)
	cancel()
	if err != nil {
		slog.Debug("relay connect failed", "relay", relayURL, "error", err)
		mutCh <- lifecycleEvent{relay: relayURL, kind: relayConnectFailed}
		return
	}
	mutCh <- lifecycleEvent{relay: relayURL, kind: relayConnected}
	defer r.pool.Unsubscribe(relayURL, sub)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done:
			mutCh <- lifecycleEvent{relay: relayURL, kind: relayClosed}
			return
		case evt := <-sub.EventChan:
			mutCh <- lifecycleEvent{relay: relayURL, kind: relayEvent, event: &evt}
		case <-sub.EOSEChan:
			mutCh <- lifecycleEvent{relay: relayURL, kind: relayEOSE}
		case n := <-sub.CountChan:
			mutCh <- lifecycleEvent{relay: relayURL, kind: relayCount, count: n}
		}
	}
}

// apply translates one lifecycle event into a tracker mutation. A COUNT
// response is the relay's terminal answer, so it also marks EOSE.
func (r *Runner) apply(tracker *query.Tracker, ev lifecycleEvent) {
	switch ev.kind {
	case relayConnecting:
		tracker.SetConnection(ev.relay, query.ConnConnecting)
	case relayConnected:
		tracker.SetConnection(ev.relay, query.ConnConnected)
	case relayConnectFailed:
		tracker.SetConnection(ev.relay, query.ConnError)
	case relayEvent:
		tracker.RecordEvent(ev.relay, time.Now())
	case relayEOSE:
		tracker.MarkEOSE(ev.relay, time.Now())
	case relayCount:
		tracker.MarkEOSE(ev.relay, time.Now())
	case relayClosed:
		tracker.SetConnection(ev.relay, query.ConnDisconnected)
	}
}

var ansiColors = map[string]string{
	"cyan":   "\x1b[36m",
	"yellow": "\x1b[33m",
	"blue":   "\x1b[34m",
	"green":  "\x1b[32m",
	"orange": "\x1b[38;5;208m",
	"gray":   "\x1b[90m",
	"red":    "\x1b[31m",
}

func (r *Runner) clearStatus() {
	fmt.Fprint(r.statusOut, "\r\x1b[K")
}

func (r *Runner) renderStatus(state query.OverallQueryState, result *QueryResult) {
	p := query.Present(state.Status)
	label := p.Label
	if r.color {
		if code, ok := ansiColors[p.Color]; ok {
			label = code + p.Label + "\x1b[0m"
		}
	}
	line := fmt.Sprintf("%s  relays %d/%d  events %d", label, state.ConnectedCount, state.TotalRelays, result.EventsSeen)
	if len(result.Counts) > 0 {
		line = fmt.Sprintf("%s  count %d", label, result.TotalCount)
	}
	fmt.Fprintf(r.statusOut, "\r\x1b[K%s", line)
}

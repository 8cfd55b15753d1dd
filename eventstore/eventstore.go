// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package eventstore implements an append-only log of outbound SSE
// events per stream, with cursor-based replay. Event ids follow the
// "<streamID>_<idx>" scheme (mcp/streamable.go's formatEventID /
// parseEventID), kept verbatim since it already supports strict
// ascending-order replay.
package eventstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mcpcore/protocol-go/internal/jsonrpc2"
	"golang.org/x/sync/errgroup"
)

// StoredEvent is {streamId, eventId, message}.
type StoredEvent struct {
	StreamID string
	EventID string
	Message jsonrpc2.Message
}

// Sender receives replayed events in ascending id order, used by
// Store.ReplayAfter.
type Sender func(StoredEvent) error

// Store is the append-only, per-stream event log. Implementations must
// guarantee that a replay emits events in strictly ascending id order
// with no duplicates and no gaps relative to what was originally stored.
type Store interface {
	// StoreEvent appends message to streamID's log and returns its
	// assigned event id.
	StoreEvent(streamID string, message jsonrpc2.Message) (eventID string, err error)

	// ReplayAfter emits, via send, every event stored for the stream that
	// owns lastEventID whose id is strictly greater than lastEventID, in
	// ascending order. It returns the stream id the replayed events
	// belonged to.
	ReplayAfter(lastEventID string, send Sender) (streamID string, err error)
}

type streamLog struct {
	base int // global index of msgs[0]; events before base have been dropped
	msgs []jsonrpc2.Message
}

// Memory is an in-memory Store. Retention is bounded per stream by count
// and, optionally, by an idle TTL swept in the background. A replay
// cursor pointing at an already dropped index simply replays from the
// oldest event still retained.
type Memory struct {
	mu sync.Mutex
	logs map[string]*streamLog
	maxPerStream int
	ttl time.Duration
	touched map[string]time.Time
}

// DefaultMaxEventsPerStream caps retained events per stream before the
// oldest are dropped.
const DefaultMaxEventsPerStream = 1000

func NewMemory() *Memory {
	return NewMemoryWithCapacity(DefaultMaxEventsPerStream)
}

func NewMemoryWithCapacity(maxPerStream int) *Memory {
	return NewMemoryWithTTL(maxPerStream, 0)
}

// NewMemoryWithTTL additionally drops a stream's whole log once it has
// gone untouched (no store or replay) for longer than ttl, once
// RunSweeper is started. Zero ttl disables idle expiry.
func NewMemoryWithTTL(maxPerStream int, ttl time.Duration) *Memory {
	if maxPerStream <= 0 {
 maxPerStream = DefaultMaxEventsPerStream
	}
	return &Memory{
 logs: make(map[string]*streamLog),
 maxPerStream: maxPerStream,
 ttl: ttl,
 touched: make(map[string]time.Time),
	}
}

// RunSweeper starts a background loop, run through an errgroup.Group so
// its lone goroutine is waited on like any other fallible task, that
// expires stream logs idle for longer than the configured TTL. Call the
// returned stop function to cancel the loop; it blocks until the
// goroutine has exited. A zero TTL makes this a no-op loop.
func (m *Memory) RunSweeper(interval time.Duration) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
 if m.ttl <= 0 {
 <-gctx.Done()
 return gctx.Err()
 }
 ticker := time.NewTicker(interval)
 defer ticker.Stop()
 for {
 select {
 case <-gctx.Done():
 return gctx.Err()
 case <-ticker.C:
 m.sweep()
 }
 }
	})
	return func() {
 cancel()
 _ = g.Wait()
	}
}

func (m *Memory) sweep() {
	if m.ttl <= 0 {
 return
	}
	cutoff := time.Now().Add(-m.ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, last := range m.touched {
 if last.Before(cutoff) {
 delete(m.logs, id)
 delete(m.touched, id)
 }
	}
}

func formatEventID(streamID string, idx int) string {
	return fmt.Sprintf("%s_%d", streamID, idx)
}

func parseEventID(eventID string) (streamID string, idx int, ok bool) {
	i := strings.LastIndex(eventID, "_")
	if i < 0 {
 return "", 0, false
	}
	streamID = eventID[:i]
	n, err := strconv.Atoi(eventID[i+1:])
	if err != nil {
 return "", 0, false
	}
	return streamID, n, true
}

// StartCursor returns the cursor that replays every event ever stored for
// streamID, for callers opening a stream with no prior Last-Event-ID.
func StartCursor(streamID string) string {
	return formatEventID(streamID, -1)
}

func (m *Memory) StoreEvent(streamID string, message jsonrpc2.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	log, ok := m.logs[streamID]
	if !ok {
 log = &streamLog{}
 m.logs[streamID] = log
	}
	if m.ttl > 0 {
 m.touched[streamID] = time.Now()
	}
	log.msgs = append(log.msgs, message)
	if len(log.msgs) > m.maxPerStream {
 drop := len(log.msgs) - m.maxPerStream
 log.msgs = log.msgs[drop:]
 log.base += drop
	}
	idx := log.base + len(log.msgs) - 1
	return formatEventID(streamID, idx), nil
}

func (m *Memory) ReplayAfter(lastEventID string, send Sender) (string, error) {
	streamID, idx, ok := parseEventID(lastEventID)
	if !ok {
 return "", fmt.Errorf("eventstore: malformed event id %q", lastEventID)
	}
	m.mu.Lock()
	log, ok := m.logs[streamID]
	var msgs []jsonrpc2.Message
	base := 0
	if ok {
 msgs = append([]jsonrpc2.Message(nil), log.msgs...)
 base = log.base
 if m.ttl > 0 {
 m.touched[streamID] = time.Now()
 }
	}
	m.mu.Unlock()

	start := idx + 1 - base
	if start < 0 {
 start = 0
	}
	for i := start; i < len(msgs); i++ {
 ev := StoredEvent{StreamID: streamID, EventID: formatEventID(streamID, base+i), Message: msgs[i]}
 if err := send(ev); err != nil {
 return streamID, err
 }
	}
	return streamID, nil
}

var _ Store = (*Memory)(nil)

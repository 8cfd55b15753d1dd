// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package eventstore_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpcore/protocol-go/eventstore"
	"github.com/mcpcore/protocol-go/internal/jsonrpc2"
)

func TestStoreAndReplayAfter(t *testing.T) {
	s := eventstore.NewMemory()

	var ids []string
	for i := 0; i < 3; i++ {
		msg := jsonrpc2.NewNotification("tick", jsonrpc2.RawMessage(`{}`))
		id, err := s.StoreEvent("stream-a", msg)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	var replayed []string
	stream, err := s.ReplayAfter(ids[0], func(ev eventstore.StoredEvent) error {
		replayed = append(replayed, ev.EventID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "stream-a", stream)
	assert.Equal(t, ids[1:], replayed)
}

func TestReplayFromStartCursor(t *testing.T) {
	s := eventstore.NewMemory()
	id, err := s.StoreEvent("stream-b", jsonrpc2.NewNotification("tick", nil))
	require.NoError(t, err)

	var replayed []string
	_, err = s.ReplayAfter(eventstore.StartCursor("stream-b"), func(ev eventstore.StoredEvent) error {
		replayed = append(replayed, ev.EventID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{id}, replayed)
}

func TestMalformedCursorErrors(t *testing.T) {
	s := eventstore.NewMemory()
	_, err := s.ReplayAfter("not-a-cursor", func(eventstore.StoredEvent) error { return nil })
	assert.Error(t, err)
}

func TestRetentionTrimsOldestWithoutBreakingReplay(t *testing.T) {
	// The replay law must hold even once retention has
	// dropped the oldest events: no gaps or duplicates among what remains.
	s := eventstore.NewMemoryWithCapacity(2)

	var ids []string
	for i := 0; i < 5; i++ {
		id, err := s.StoreEvent("stream-c", jsonrpc2.NewNotification("tick", nil))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	// Replaying from the very start should yield only the two retained
	// events, in order, with no error.
	var replayed []string
	_, err := s.ReplayAfter(eventstore.StartCursor("stream-c"), func(ev eventstore.StoredEvent) error {
		replayed = append(replayed, ev.EventID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, ids[3:], replayed)
}

func TestSweeperExpiresIdleStreams(t *testing.T) {
	s := eventstore.NewMemoryWithTTL(eventstore.DefaultMaxEventsPerStream, 10*time.Millisecond)
	_, err := s.StoreEvent("stream-d", jsonrpc2.NewNotification("tick", nil))
	require.NoError(t, err)

	stop := s.RunSweeper(5 * time.Millisecond)
	defer stop()

	require.Eventually(t, func() bool {
		_, err := s.ReplayAfter(eventstore.StartCursor("stream-d"), func(eventstore.StoredEvent) error { return nil })
		return err == nil
	}, time.Second, 5*time.Millisecond, "stream should still replay cleanly before expiry")

	time.Sleep(50 * time.Millisecond)

	var replayed []string
	_, err = s.ReplayAfter(eventstore.StartCursor("stream-d"), func(ev eventstore.StoredEvent) error {
		replayed = append(replayed, ev.EventID)
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, replayed, "idle stream should have been swept away")
}

// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package sessionstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpcore/protocol-go/protocol"
	"github.com/mcpcore/protocol-go/sessionstore"
)

func TestStoreAndGetSession(t *testing.T) {
	s := sessionstore.NewMemory()
	ctx := context.Background()
	want := protocol.Session{ID: "sess-1", CreatedAt: time.Now(), ProtocolVersion: "2025-06-18"}

	require.NoError(t, s.StoreSession(ctx, want, time.Hour))
	got, err := s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.ProtocolVersion, got.ProtocolVersion)
	assert.True(t, s.SessionExists(ctx, "sess-1"))
}

func TestUnknownSessionNotFound(t *testing.T) {
	s := sessionstore.NewMemory()
	_, err := s.GetSession(context.Background(), "nope")
	assert.ErrorIs(t, err, sessionstore.ErrNotFound)
}

func TestSessionExpiresAfterTTL(t *testing.T) {
	s := sessionstore.NewMemory()
	ctx := context.Background()
	require.NoError(t, s.StoreSession(ctx, protocol.Session{ID: "sess-2"}, 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)
	assert.False(t, s.SessionExists(ctx, "sess-2"))
	_, err := s.GetSession(ctx, "sess-2")
	assert.ErrorIs(t, err, sessionstore.ErrNotFound)
}

func TestUpdateActivityRefreshesTTL(t *testing.T) {
	s := sessionstore.NewMemory()
	ctx := context.Background()
	require.NoError(t, s.StoreSession(ctx, protocol.Session{ID: "sess-3"}, 30*time.Millisecond))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, s.UpdateActivity(ctx, "sess-3"))
	time.Sleep(20 * time.Millisecond)
	assert.True(t, s.SessionExists(ctx, "sess-3"), "want session still alive after activity refresh")
}

func TestDeleteSession(t *testing.T) {
	s := sessionstore.NewMemory()
	ctx := context.Background()
	require.NoError(t, s.StoreSession(ctx, protocol.Session{ID: "sess-4"}, time.Hour))
	require.NoError(t, s.DeleteSession(ctx, "sess-4"))
	assert.False(t, s.SessionExists(ctx, "sess-4"), "want session gone after delete")
}

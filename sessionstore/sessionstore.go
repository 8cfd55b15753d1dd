// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package sessionstore implements a durable map from session id to
// session metadata with TTL refresh. Grounded on mcp/session_store.go
// (ServerSessionStateStore / MemoryServerSessionStateStore), extended
// from a single opaque blob per session to an explicit {sessionId,
// createdAt, lastActivity, protocolVersion} shape, plus TTL.
package sessionstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mcpcore/protocol-go/protocol"
)

// ErrNotFound is returned by Get/UpdateActivity when a session id is
// unknown or has expired.
var ErrNotFound = errors.New("sessionstore: session not found")

// DefaultTTL is the default session idle lifetime of one hour.
const DefaultTTL = time.Hour

// Store persists session metadata. Implementations must be safe for
// concurrent use. Activity-update failures must not break the request
// path — callers should log and continue rather than fail the inbound
// request on an UpdateActivity error.
type Store interface {
	StoreSession(ctx context.Context, s protocol.Session, ttl time.Duration) error
	GetSession(ctx context.Context, id string) (protocol.Session, error)
	UpdateActivity(ctx context.Context, id string) error
	DeleteSession(ctx context.Context, id string) error
	SessionExists(ctx context.Context, id string) bool
}

type entry struct {
	session protocol.Session
	ttl time.Duration
	expires time.Time
}

// Memory is an in-memory Store. A session id, once deleted, is never
// reissued by the caller minting ids; Memory itself only tracks what it
// is told.
type Memory struct {
	mu sync.RWMutex
	entries map[string]*entry
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*entry)}
}

func (m *Memory) StoreSession(ctx context.Context, s protocol.Session, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
 return err
	}
	if ttl <= 0 {
 ttl = DefaultTTL
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[s.ID] = &entry{session: s.Clone(), ttl: ttl, expires: time.Now().Add(ttl)}
	return nil
}

func (m *Memory) GetSession(ctx context.Context, id string) (protocol.Session, error) {
	if err := ctx.Err(); err != nil {
 return protocol.Session{}, err
	}
	m.mu.RLock()
	e, ok := m.entries[id]
	m.mu.RUnlock()
	if !ok || time.Now().After(e.expires) {
 return protocol.Session{}, ErrNotFound
	}
	return e.session.Clone(), nil
}

// UpdateActivity bumps lastActivity and refreshes the TTL.
func (m *Memory) UpdateActivity(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
 return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok || time.Now().After(e.expires) {
 return ErrNotFound
	}
	e.session.LastActivity = time.Now()
	e.expires = e.session.LastActivity.Add(e.ttl)
	return nil
}

func (m *Memory) DeleteSession(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
 return err
	}
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
	return nil
}

func (m *Memory) SessionExists(ctx context.Context, id string) bool {
	m.mu.RLock()
	e, ok := m.entries[id]
	m.mu.RUnlock()
	return ok && time.Now().Before(e.expires)
}

var _ Store = (*Memory)(nil)

// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package protocol

import (
	"errors"
	"sync"
)

// ErrNoProgressToken mirrors mcp.ErrNoProgressToken. Nothing in this
// package returns it.
var ErrNoProgressToken = errors.New("no progress token")

// ProgressNotification is the payload delivered to a progress subscriber.
type ProgressNotification struct {
	ProgressToken string
	Message string
	Progress float64
	Total float64
}

// ProgressSubscriber receives progress notifications for one outstanding
// request.
type ProgressSubscriber func(ProgressNotification)

// ProgressManager maps progress tokens to subscriber callbacks. Generalizes
// the inline ServerRequest.Progress pattern (reading a token out of
// request metadata and calling Session.NotifyProgress) into a standalone
// component shared by both inbound and outbound requests, rather than a
// tool-call convenience method.
type ProgressManager struct {
	mu sync.Mutex
	subs map[string]ProgressSubscriber
}

func NewProgressManager() *ProgressManager {
	return &ProgressManager{subs: make(map[string]ProgressSubscriber)}
}

// Subscribe registers sub under token, overwriting any previous
// subscriber for the same token.
func (m *ProgressManager) Subscribe(token string, sub ProgressSubscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[token] = sub
}

// Unsubscribe removes the subscriber for token, if any.
func (m *ProgressManager) Unsubscribe(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, token)
}

// Dispatch delivers n to the subscriber for n.ProgressToken. It reports
// whether a subscriber was found: tokens without one produce an
// observable error and no delivery, which the caller surfaces through
// its own error channel.
func (m *ProgressManager) Dispatch(n ProgressNotification) bool {
	m.mu.Lock()
	sub, ok := m.subs[n.ProgressToken]
	m.mu.Unlock()
	if !ok {
 return false
	}
	sub(n)
	return true
}

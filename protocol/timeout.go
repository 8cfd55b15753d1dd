// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package protocol

import (
	"sync"
	"time"
)

// DefaultTimeout is the soft per-request deadline applied when a caller
// does not specify one.
const DefaultTimeout = 60 * time.Second

// TimeoutDescriptor configures a single outstanding request's deadline
// bookkeeping.
type TimeoutDescriptor struct {
	// Timeout is the soft deadline, reset by progress if ResetOnProgress.
	Timeout time.Duration

	// MaxTotalTimeout is an optional hard cap independent of progress
	// resets. Zero means no cap.
	MaxTotalTimeout time.Duration

	// ResetOnProgress, if true, restarts the soft timer whenever a
	// progress notification arrives for this request's id.
	ResetOnProgress bool

	// OnFire is invoked exactly once, from the timeout manager's own
	// goroutine, when the descriptor's effective deadline elapses.
	OnFire func()
}

type timeoutEntry struct {
	desc TimeoutDescriptor
	softTimer *time.Timer
	hardTimer *time.Timer
	fired bool
}

// TimeoutManager owns one timer pair per outstanding request: a soft timer
// that can be reset on progress, and an optional hard ceiling that never
// resets. Grounded on the per-request time.Timer + select loop pattern
// used by the gogentic protocol engine's Request method, generalized into
// a standalone component shared across the engine.
type TimeoutManager struct {
	mu sync.Mutex
	entries map[string]*timeoutEntry
}

func NewTimeoutManager() *TimeoutManager {
	return &TimeoutManager{entries: make(map[string]*timeoutEntry)}
}

// Start installs the timers for id. It is an error to call Start twice for
// the same id without an intervening Stop.
func (m *TimeoutManager) Start(id string, desc TimeoutDescriptor) {
	if desc.Timeout <= 0 {
 desc.Timeout = DefaultTimeout
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := &timeoutEntry{desc: desc}
	entry.softTimer = time.AfterFunc(desc.Timeout, func() { m.fire(id) })
	if desc.MaxTotalTimeout > 0 {
 entry.hardTimer = time.AfterFunc(desc.MaxTotalTimeout, func() { m.fire(id) })
	}
	m.entries[id] = entry
}

// ResetSoft restarts the soft timer for id if ResetOnProgress is set. It
// is a no-op if id has no entry or ResetOnProgress is false: receipt of a
// progress notification restarts the soft timer.
func (m *TimeoutManager) ResetSoft(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[id]
	if !ok || !entry.desc.ResetOnProgress || entry.fired {
 return
	}
	entry.softTimer.Stop()
	entry.softTimer = time.AfterFunc(entry.desc.Timeout, func() { m.fire(id) })
}

// Stop cancels both timers for id and removes the entry. Safe to call
// multiple times or for an unknown id.
func (m *TimeoutManager) Stop(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[id]
	if !ok {
 return
	}
	entry.softTimer.Stop()
	if entry.hardTimer != nil {
 entry.hardTimer.Stop()
	}
	delete(m.entries, id)
}

func (m *TimeoutManager) fire(id string) {
	m.mu.Lock()
	entry, ok := m.entries[id]
	if !ok || entry.fired {
 m.mu.Unlock()
 return
	}
	entry.fired = true
	delete(m.entries, id)
	m.mu.Unlock()

	entry.softTimer.Stop()
	if entry.hardTimer != nil {
 entry.hardTimer.Stop()
	}
	if entry.desc.OnFire != nil {
 entry.desc.OnFire()
	}
}

// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package protocol

import "time"

// Session is the core's view of a long-lived connection context, richer
// than a bare SessionState ({InitializeParams, LogLevel}): {sessionId,
// createdAt, lastActivity, protocolVersion}. Concrete stores
// (sessionstore.Store) persist exactly this shape plus a TTL.
type Session struct {
	ID string
	CreatedAt time.Time
	LastActivity time.Time
	ProtocolVersion string
}

// Clone returns a value copy, since Session is handed across store
// boundaries and must not alias caller-owned state.
func (s Session) Clone() Session {
	return s
}

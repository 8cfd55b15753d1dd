// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package protocol implements the MCP protocol engine: request/response
// correlation, timeouts, progress, cancellation and the plugin pipeline
// that sits above any Transport.
package protocol

import (
	"context"

	"github.com/mcpcore/protocol-go/internal/jsonrpc2"
)

// MessageExtra carries out-of-band context a Transport attaches to an
// inbound message: an opaque authentication record set by the embedding
// host, and handles to close the stream the message arrived on.
type MessageExtra struct {
	// Auth is the opaque authentication record from the transport. The
	// core never interprets it; plugins such as those in package auth do.
	Auth any

	// SessionID is the transport-level session this message belongs to,
	// if the transport is session-aware.
	SessionID string

	// CloseRequestStream closes the per-request SSE stream this inbound
	// request's responses should be written to, if any.
	CloseRequestStream func()

	// CloseStandaloneStream closes the standalone SSE stream for this
	// session, if any.
	CloseStandaloneStream func()
}

// SendOptions control how an outbound message is routed to its transport.
type SendOptions struct {
	// RelatedRequestID binds an outbound notification to an inbound
	// request's stream so it is delivered on the same SSE channel as the
	// eventual response to that request.
	RelatedRequestID jsonrpc2.ID

	// SessionID targets a specific session when a transport multiplexes
	// several sessions (the server-side Streamable HTTP transport).
	SessionID string

	// ResumptionToken, if set, is where a resumable client GET should
	// begin streaming from (the last seen event id).
	ResumptionToken string

	// OnResumptionToken is invoked whenever the transport advances its
	// resumption cursor, so the caller can persist it.
	OnResumptionToken func(token string)
}

// Transport is the core's only contract with the wire:
// start, close, send, and three inbound callbacks. A Transport is owned
// by at most one Protocol at a time; Connect overwrites its callbacks.
type Transport interface {
	// Start begins accepting inbound messages. It must not block past
	// the point where the transport is ready to receive Send calls.
	Start(ctx context.Context) error

	// Send writes a single outbound message, applying opts.
	Send(ctx context.Context, msg jsonrpc2.Message, opts *SendOptions) error

	// Close tears the transport down. It is idempotent.
	Close() error

	// SessionID returns the transport's current session id, or "" if the
	// transport is not session-aware.
	SessionID() string

	// SetHandlers installs the inbound callbacks. Called once by Protocol
	// at connect time.
	SetHandlers(onMessage func(jsonrpc2.Message, *MessageExtra), onClose func(), onError func(error))
}

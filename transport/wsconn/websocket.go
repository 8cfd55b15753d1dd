// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package wsconn implements a bidirectional WebSocket protocol.Transport,
// grounded on mcp/websocket.go, using the 'mcp' subprotocol convention.
package wsconn

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mcpcore/protocol-go/internal/jsonrpc2"
	"github.com/mcpcore/protocol-go/protocol"
)

const subprotocol = "mcp"

// Transport implements protocol.Transport over a single WebSocket
// connection, either side of which may be the MCP client or server.
type Transport struct {
	conn *websocket.Conn
	sessionID string

	writeMu sync.Mutex

	onMessage func(jsonrpc2.Message, *protocol.MessageExtra)
	onClose func()
	onError func(error)

	closeOnce sync.Once
}

// New wraps an already-established gorilla/websocket connection.
func New(conn *websocket.Conn, sessionID string) *Transport {
	if sessionID == "" {
 sessionID = uuid.NewString()
	}
	return &Transport{conn: conn, sessionID: sessionID}
}

func (t *Transport) SessionID() string { return t.sessionID }

func (t *Transport) SetHandlers(onMessage func(jsonrpc2.Message, *protocol.MessageExtra), onClose func(), onError func(error)) {
	t.onMessage = onMessage
	t.onClose = onClose
	t.onError = onError
}

func (t *Transport) Start(ctx context.Context) error {
	go t.readLoop(ctx)
	return nil
}

func (t *Transport) readLoop(ctx context.Context) {
	done := make(chan struct{})
	defer close(done)
	go func() {
 select {
 case <-ctx.Done():
 t.conn.Close()
 case <-done:
 }
	}()

	extra := &protocol.MessageExtra{SessionID: t.sessionID}
	for {
 messageType, data, err := t.conn.ReadMessage()
 if err != nil {
 if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && t.onError != nil {
 t.onError(fmt.Errorf("wsconn: read: %w", err))
 }
 t.signalClose()
 return
 }
 if messageType != websocket.TextMessage {
 if t.onError != nil {
 t.onError(fmt.Errorf("wsconn: unexpected message type %d", messageType))
 }
 continue
 }
 msg, err := jsonrpc2.DecodeMessage(data)
 if err != nil {
 if t.onError != nil {
 t.onError(fmt.Errorf("wsconn: decode: %w", err))
 }
 continue
 }
 if t.onMessage != nil {
 t.onMessage(msg, extra)
 }
	}
}

func (t *Transport) signalClose() {
	t.closeOnce.Do(func() {
 if t.onClose != nil {
 t.onClose()
 }
	})
}

func (t *Transport) Send(ctx context.Context, msg jsonrpc2.Message, opts *protocol.SendOptions) error {
	data, err := jsonrpc2.EncodeBatch([]jsonrpc2.Message{msg})
	if err != nil {
 return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
 t.conn.SetWriteDeadline(deadline)
 defer t.conn.SetWriteDeadline(time.Time{})
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *Transport) Close() error {
	t.signalClose()
	return t.conn.Close()
}

var _ protocol.Transport = (*Transport)(nil)

// Dial connects to a WebSocket MCP endpoint and returns a ready Transport.
func Dial(ctx context.Context, url string, dialer *websocket.Dialer, header http.Header) (*Transport, error) {
	if dialer == nil {
 dialer = websocket.DefaultDialer
	}
	dialer.Subprotocols = []string{subprotocol}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
 if resp != nil {
 return nil, fmt.Errorf("wsconn: dial failed: %w (status %d)", err, resp.StatusCode)
 }
 return nil, fmt.Errorf("wsconn: dial failed: %w", err)
	}
	return New(conn, ""), nil
}

// ServerHandler upgrades inbound HTTP requests to WebSocket connections
// and hands each one to newProtocol for its own Protocol instance, one
// session per socket.
type ServerHandler struct {
	newProtocol func(*http.Request) *protocol.Protocol
	upgrader websocket.Upgrader
}

func NewServerHandler(newProtocol func(*http.Request) *protocol.Protocol) *ServerHandler {
	return &ServerHandler{
 newProtocol: newProtocol,
 upgrader: websocket.Upgrader{
 Subprotocols: []string{subprotocol},
 CheckOrigin: func(r *http.Request) bool { return true },
 },
	}
}

func (h *ServerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
 http.Error(w, fmt.Sprintf("websocket upgrade failed: %v", err), http.StatusBadRequest)
 return
	}
	t := New(conn, "")
	p := h.newProtocol(r)
	// The request context is cancelled as soon as ServeHTTP returns, but
	// the hijacked socket outlives it.
	if err := p.Connect(context.WithoutCancel(r.Context()), t); err != nil {
 t.Close()
	}
}

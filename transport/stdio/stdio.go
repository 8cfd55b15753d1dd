// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package stdio implements a newline-delimited JSON-RPC Transport over
// an arbitrary io.Reader/io.Writer pair, the universal pattern used for
// process-local MCP servers.
package stdio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/mcpcore/protocol-go/internal/json"
	"github.com/mcpcore/protocol-go/internal/jsonrpc2"
	"github.com/mcpcore/protocol-go/protocol"
)

// Transport implements protocol.Transport over newline-delimited JSON
// frames, one message per line.
type Transport struct {
	r io.Reader
	w io.Writer

	writeMu sync.Mutex

	onMessage func(jsonrpc2.Message, *protocol.MessageExtra)
	onClose func()
	onError func(error)

	closeOnce sync.Once
	closed chan struct{}
}

func New(r io.Reader, w io.Writer) *Transport {
	return &Transport{r: r, w: w, closed: make(chan struct{})}
}

func (t *Transport) SetHandlers(onMessage func(jsonrpc2.Message, *protocol.MessageExtra), onClose func(), onError func(error)) {
	t.onMessage = onMessage
	t.onClose = onClose
	t.onError = onError
}

func (t *Transport) Start(ctx context.Context) error {
	go t.readLoop()
	return nil
}

func (t *Transport) readLoop() {
	scanner := bufio.NewScanner(t.r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
 line := scanner.Bytes()
 if len(line) == 0 {
 continue
 }
 msg, err := jsonrpc2.DecodeMessage(append([]byte(nil), line...))
 if err != nil {
 if t.onError != nil {
 t.onError(fmt.Errorf("stdio: decode: %w", err))
 }
 continue
 }
 if t.onMessage != nil {
 t.onMessage(msg, nil)
 }
	}
	if err := scanner.Err(); err != nil && t.onError != nil {
 t.onError(err)
	}
	t.signalClose()
}

func (t *Transport) signalClose() {
	t.closeOnce.Do(func() {
 close(t.closed)
 if t.onClose != nil {
 t.onClose()
 }
	})
}

func (t *Transport) Send(ctx context.Context, msg jsonrpc2.Message, opts *protocol.SendOptions) error {
	data, err := marshalLine(msg)
	if err != nil {
 return err
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_, err = t.w.Write(data)
	return err
}

func (t *Transport) Close() error {
	t.signalClose()
	return nil
}

func (t *Transport) SessionID() string { return "" }

func marshalLine(msg jsonrpc2.Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
 return nil, err
	}
	return append(data, '\n'), nil
}

var _ protocol.Transport = (*Transport)(nil)

// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package protocol_test

import (
	"context"
	"testing"

	"github.com/mcpcore/protocol-go/internal/jsonrpc2"
	"github.com/mcpcore/protocol-go/jsonrpc"
	"github.com/mcpcore/protocol-go/protocol"
)

type fakeTransport struct {
	sentCh    chan jsonrpc2.Message
	onMessage func(jsonrpc2.Message, *protocol.MessageExtra)
	onClose   func()
	onError   func(error)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sentCh: make(chan jsonrpc2.Message, 16)}
}

func (f *fakeTransport) Start(context.Context) error { return nil }

func (f *fakeTransport) Send(_ context.Context, msg jsonrpc2.Message, _ *protocol.SendOptions) error {
	f.sentCh <- msg
	return nil
}

func (f *fakeTransport) Close() error      { return nil }
func (f *fakeTransport) SessionID() string { return "" }

func (f *fakeTransport) SetHandlers(onMessage func(jsonrpc2.Message, *protocol.MessageExtra), onClose func(), onError func(error)) {
	f.onMessage = onMessage
	f.onClose = onClose
	f.onError = onError
}

func connect(t *testing.T) (*protocol.Protocol, *fakeTransport) {
	t.Helper()
	p := protocol.New(protocol.Options{})
	ft := newFakeTransport()
	if err := p.Connect(context.Background(), ft); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return p, ft
}

func TestSendRequestRoundTrip(t *testing.T) {
	p, ft := connect(t)

	go func() {
		req := (<-ft.sentCh).(*jsonrpc2.Request)
		ft.onMessage(jsonrpc2.NewResultResponse(req.ID, jsonrpc2.RawMessage(`{"ok":true}`)), nil)
	}()

	result, err := p.SendRequest(context.Background(), "demo/method", nil, nil)
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if string(result) != `{"ok":true}` {
		t.Errorf("got %s, want {\"ok\":true}", result)
	}
}

func TestDuplicateResponseIsIgnored(t *testing.T) {
	// Invariant 2: an outstanding request resolves exactly once. A second
	// response for the same id must not panic or be delivered twice.
	p, ft := connect(t)

	var req *jsonrpc2.Request
	go func() {
		req = (<-ft.sentCh).(*jsonrpc2.Request)
		resp := jsonrpc2.NewResultResponse(req.ID, jsonrpc2.RawMessage(`1`))
		ft.onMessage(resp, nil)
	}()

	if _, err := p.SendRequest(context.Background(), "demo/method", nil, nil); err != nil {
		t.Fatalf("SendRequest: %v", err)
	}

	// The request has already been taken out of the outstanding table;
	// delivering another response for it must be a silent no-op.
	ft.onMessage(jsonrpc2.NewResultResponse(req.ID, jsonrpc2.RawMessage(`2`)), nil)
}

func TestPingHandlerBuiltIn(t *testing.T) {
	p := protocol.New(protocol.Options{})
	req := jsonrpc2.NewRequest(jsonrpc2.NewIntID(1), "ping", nil)
	result, err := p.InvokeHandler(context.Background(), req)
	if err != nil {
		t.Fatalf("InvokeHandler: %v", err)
	}
	if string(result) != "{}" {
		t.Errorf("got %s, want {}", result)
	}
}

func TestUnknownMethodReturnsMethodNotFound(t *testing.T) {
	p, ft := connect(t)

	ft.onMessage(jsonrpc2.NewRequest(jsonrpc2.NewIntID(1), "nope", nil), nil)

	resp := (<-ft.sentCh).(*jsonrpc2.Response)
	if resp.Error == nil || resp.Error.Code != jsonrpc.CodeMethodNotFound {
		t.Fatalf("got %+v, want method-not-found", resp.Error)
	}
}

func TestCustomHandlerEchoesParams(t *testing.T) {
	p, ft := connect(t)
	p.RegisterHandler("echo", func(_ context.Context, req *jsonrpc2.Request) (jsonrpc2.RawMessage, error) {
		return req.Params, nil
	})

	ft.onMessage(jsonrpc2.NewRequest(jsonrpc2.NewIntID(2), "echo", jsonrpc2.RawMessage(`{"a":1}`)), nil)

	resp := (<-ft.sentCh).(*jsonrpc2.Response)
	if string(resp.Result) != `{"a":1}` {
		t.Errorf("got %s, want {\"a\":1}", resp.Result)
	}
}

func TestCloseRejectsOutstandingRequests(t *testing.T) {
	p, ft := connect(t)
	_ = ft

	errCh := make(chan error, 1)
	go func() {
		_, err := p.SendRequest(context.Background(), "demo/method", nil, nil)
		errCh <- err
	}()

	// Drain the outbound send so SendRequest proceeds to waiting on the
	// outstanding table before Close drains it.
	<-ft.sentCh
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	err := <-errCh
	rpcErr, ok := err.(*jsonrpc.Error)
	if !ok || rpcErr.Code != jsonrpc.CodeConnectionClosed {
		t.Fatalf("got %v, want connection-closed error", err)
	}
}

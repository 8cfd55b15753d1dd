// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package streamablehttp_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mcpcore/protocol-go/internal/jsonrpc2"
	"github.com/mcpcore/protocol-go/protocol"
	"github.com/mcpcore/protocol-go/transport/streamablehttp"
)

func newTestServer(t *testing.T, protoCh chan *protocol.Protocol) *httptest.Server {
	t.Helper()
	handler := streamablehttp.NewHandler(func(*http.Request) *protocol.Protocol {
		p := protocol.New(protocol.Options{})
		p.Handlers().SetRequestHandler("initialize", func(context.Context, *jsonrpc2.Request) (jsonrpc2.RawMessage, error) {
			return jsonrpc2.RawMessage(`{}`), nil
		})
		p.Handlers().SetRequestHandler("demo", func(context.Context, *jsonrpc2.Request) (jsonrpc2.RawMessage, error) {
			return jsonrpc2.RawMessage(`{"ok":true}`), nil
		})
		if protoCh != nil {
			protoCh <- p
		}
		return p
	}, streamablehttp.HandlerOptions{})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientServerRequestResponseRoundTrip(t *testing.T) {
	srv := newTestServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := streamablehttp.NewClientTransport(srv.URL, nil)
	p := protocol.New(protocol.Options{})
	if err := p.Connect(ctx, client); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	if _, err := p.SendRequest(ctx, "initialize", nil, nil); err != nil {
		t.Fatalf("SendRequest(initialize): %v", err)
	}
	if client.SessionID() == "" {
		t.Error("want a session id to have been assigned by initialize")
	}

	result, err := p.SendRequest(ctx, "demo", nil, nil)
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if string(result) != `{"ok":true}` {
		t.Errorf("got %s, want {\"ok\":true}", result)
	}
}

func TestDeleteTearsDownSession(t *testing.T) {
	srv := newTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := streamablehttp.NewClientTransport(srv.URL, nil)
	p := protocol.New(protocol.Options{})
	if err := p.Connect(ctx, client); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if _, err := p.SendRequest(ctx, "initialize", nil, nil); err != nil {
		t.Fatalf("SendRequest(initialize): %v", err)
	}
	sessionID := client.SessionID()

	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL, nil)
	if err != nil {
		t.Fatalf("NewRequestWithContext: %v", err)
	}
	req.Header.Set("Mcp-Session-Id", sessionID)
	req.Header.Set("Accept", "application/json, text/event-stream")
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("got status %d, want 404 for a deleted session", resp.StatusCode)
	}
}

func TestStandaloneStreamDeliversServerInitiatedNotifications(t *testing.T) {
	protoCh := make(chan *protocol.Protocol, 1)
	srv := newTestServer(t, protoCh)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := streamablehttp.NewClientTransport(srv.URL, nil)
	hostProto := protocol.New(protocol.Options{})

	received := make(chan *jsonrpc2.Notification, 1)
	hostProto.Handlers().SetNotificationHandler("tick", func(_ context.Context, n *jsonrpc2.Notification) {
		received <- n
	})

	if err := hostProto.Connect(ctx, client); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	// The standalone SSE subscription only starts once a session exists;
	// initialize establishes one the same way the round-trip test does.
	if _, err := hostProto.SendRequest(ctx, "initialize", nil, nil); err != nil {
		t.Fatalf("SendRequest(initialize): %v", err)
	}

	var serverSideProto *protocol.Protocol
	select {
	case serverSideProto = <-protoCh:
	case <-time.After(time.Second):
		t.Fatal("server never constructed a Protocol")
	}

	if err := serverSideProto.SendNotification(ctx, "tick", jsonrpc2.RawMessage(`{"n":1}`), nil); err != nil {
		t.Fatalf("SendNotification: %v", err)
	}

	select {
	case n := <-received:
		if n.Method != "tick" {
			t.Errorf("got method %q, want tick", n.Method)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("notification never delivered over the standalone stream")
	}
}

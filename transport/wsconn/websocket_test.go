// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package wsconn_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mcpcore/protocol-go/internal/jsonrpc2"
	"github.com/mcpcore/protocol-go/protocol"
	"github.com/mcpcore/protocol-go/transport/wsconn"
)

func TestClientServerRequestResponseRoundTrip(t *testing.T) {
	handler := wsconn.NewServerHandler(func(*http.Request) *protocol.Protocol {
		p := protocol.New(protocol.Options{})
		p.Handlers().SetRequestHandler("demo", func(context.Context, *jsonrpc2.Request) (jsonrpc2.RawMessage, error) {
			return jsonrpc2.RawMessage(`{"ok":true}`), nil
		})
		return p
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := wsconn.Dial(ctx, wsURL, nil, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	p := protocol.New(protocol.Options{})
	if err := p.Connect(ctx, client); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	result, err := p.SendRequest(ctx, "demo", nil, nil)
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if string(result) != `{"ok":true}` {
		t.Errorf("got %s, want {\"ok\":true}", result)
	}
}

func TestServerInitiatedNotificationReachesClient(t *testing.T) {
	protoCh := make(chan *protocol.Protocol, 1)
	handler := wsconn.NewServerHandler(func(*http.Request) *protocol.Protocol {
		p := protocol.New(protocol.Options{})
		protoCh <- p
		return p
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := wsconn.Dial(ctx, wsURL, nil, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	received := make(chan *jsonrpc2.Notification, 1)
	p := protocol.New(protocol.Options{})
	p.Handlers().SetNotificationHandler("tick", func(_ context.Context, n *jsonrpc2.Notification) {
		received <- n
	})
	if err := p.Connect(ctx, client); err != nil {
		t.Fatalf("Connect: %v", err)
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
		t.Fatal("notification never reached the client")
	}
}

func TestDialToNonWebSocketEndpointFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := wsconn.Dial(ctx, wsURL, nil, nil); err == nil {
		t.Fatal("want an error dialing a non-WebSocket endpoint")
	}
}

// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package stdio_test

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/mcpcore/protocol-go/internal/jsonrpc2"
	"github.com/mcpcore/protocol-go/protocol"
	"github.com/mcpcore/protocol-go/transport/stdio"
)

func TestSendWritesNewlineDelimitedFrame(t *testing.T) {
	var buf bytes.Buffer
	tr := stdio.New(bytes.NewReader(nil), &buf)

	req := jsonrpc2.NewRequest(jsonrpc2.NewIntID(1), "ping", nil)
	if err := tr.Send(context.Background(), req, nil); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := tr.Send(context.Background(), jsonrpc2.NewNotification("tick", nil), nil); err != nil {
		t.Fatalf("Send: %v", err)
	}

	lines := bytes.Split(bytes.TrimRight(buf.Bytes(), "\n"), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	msg, err := jsonrpc2.DecodeMessage(lines[0])
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if got, ok := msg.(*jsonrpc2.Request); !ok || got.Method != "ping" {
		t.Errorf("got %+v, want a ping request", msg)
	}
}

func TestReadLoopDeliversDecodedMessages(t *testing.T) {
	pr, pw := io.Pipe()
	tr := stdio.New(pr, io.Discard)

	received := make(chan jsonrpc2.Message, 1)
	tr.SetHandlers(func(msg jsonrpc2.Message, _ *protocol.MessageExtra) {
		received <- msg
	}, nil, nil)

	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	go func() {
		pw.Write([]byte(`{"jsonrpc":"2.0","method":"tick","params":{}}` + "\n"))
	}()

	select {
	case msg := <-received:
		notif, ok := msg.(*jsonrpc2.Notification)
		if !ok || notif.Method != "tick" {
			t.Errorf("got %+v, want a tick notification", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}
	pw.Close()
}

func TestReadLoopReportsDecodeErrorsAndContinues(t *testing.T) {
	pr, pw := io.Pipe()
	tr := stdio.New(pr, io.Discard)

	errCh := make(chan error, 1)
	received := make(chan jsonrpc2.Message, 1)
	tr.SetHandlers(
		func(msg jsonrpc2.Message, _ *protocol.MessageExtra) { received <- msg },
		nil,
		func(err error) { errCh <- err },
	)

	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	go func() {
		pw.Write([]byte("not json\n"))
		pw.Write([]byte(`{"jsonrpc":"2.0","method":"tick"}` + "\n"))
	}()

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("want a non-nil decode error")
		}
	case <-time.After(time.Second):
		t.Fatal("no decode error reported")
	}

	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("reader did not recover after a malformed line")
	}
	pw.Close()
}

func TestCloseSignalsOnClose(t *testing.T) {
	pr, pw := io.Pipe()
	tr := stdio.New(pr, io.Discard)

	closed := make(chan struct{})
	tr.SetHandlers(nil, func() { close(closed) }, nil)
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("onClose never called")
	}
	pw.Close()
}

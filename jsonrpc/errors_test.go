// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package jsonrpc_test

import (
	"errors"
	"testing"

	"github.com/mcpcore/protocol-go/jsonrpc"
)

func TestConstructorsSetExpectedCodes(t *testing.T) {
	for _, tt := range []struct {
		name string
		err  *jsonrpc.Error
		code int
	}{
		{"ParseError", jsonrpc.ParseError("bad json"), jsonrpc.CodeParseError},
		{"InvalidRequest", jsonrpc.InvalidRequest("nope"), jsonrpc.CodeInvalidRequest},
		{"MethodNotFound", jsonrpc.MethodNotFound("tools/call"), jsonrpc.CodeMethodNotFound},
		{"InvalidParams", jsonrpc.InvalidParams("missing field"), jsonrpc.CodeInvalidParams},
		{"InternalError", jsonrpc.InternalError("boom"), jsonrpc.CodeInternalError},
		{"ConnectionClosed", jsonrpc.ConnectionClosed("closed"), jsonrpc.CodeConnectionClosed},
		{"RequestTimeout", jsonrpc.RequestTimeout("timed out"), jsonrpc.CodeRequestTimeout},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("got code %d, want %d", tt.err.Code, tt.code)
			}
		})
	}
}

func TestMethodNotFoundMessageNamesMethod(t *testing.T) {
	err := jsonrpc.MethodNotFound("tools/call")
	if got, want := err.Error(), "jsonrpc: code -32601: method not found: tools/call"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFromErrorPassesThroughRPCError(t *testing.T) {
	original := jsonrpc.InvalidParams("bad")
	if got := jsonrpc.FromError(original); got != original {
		t.Errorf("got %p, want the same *Error %p", got, original)
	}
}

func TestFromErrorWrapsPlainErrorAsInternal(t *testing.T) {
	got := jsonrpc.FromError(errors.New("boom"))
	if got.Code != jsonrpc.CodeInternalError {
		t.Errorf("got code %d, want CodeInternalError", got.Code)
	}
	if got.Message != "boom" {
		t.Errorf("got message %q, want %q", got.Message, "boom")
	}
}

func TestFromErrorNilIsNil(t *testing.T) {
	if got := jsonrpc.FromError(nil); got != nil {
		t.Errorf("got %v, want nil", got)
	}
}

func TestCodeURLElicitationRequiredIsApplicationLevel(t *testing.T) {
	// CodeURLElicitationRequired must never collide with a fixed protocol
	// error code; it's an application error the core never assigns itself.
	for _, code := range []int{
		jsonrpc.CodeParseError,
		jsonrpc.CodeInvalidRequest,
		jsonrpc.CodeMethodNotFound,
		jsonrpc.CodeInvalidParams,
		jsonrpc.CodeInternalError,
		jsonrpc.CodeConnectionClosed,
		jsonrpc.CodeRequestTimeout,
	} {
		if jsonrpc.CodeURLElicitationRequired == code {
			t.Fatalf("CodeURLElicitationRequired collides with protocol code %d", code)
		}
	}
}

// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package jsonrpc2_test

import (
	"testing"

	"github.com/mcpcore/protocol-go/internal/jsonrpc2"
)

func TestIDRoundTripsThroughJSON(t *testing.T) {
	for _, tt := range []struct {
		name string
		id   jsonrpc2.ID
		want string
	}{
		{"string id", jsonrpc2.NewStringID("abc"), `"abc"`},
		{"int id", jsonrpc2.NewIntID(7), "7"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.id.MarshalJSON()
			if err != nil {
				t.Fatalf("MarshalJSON: %v", err)
			}
			if string(data) != tt.want {
				t.Fatalf("got %s, want %s", data, tt.want)
			}
			var got jsonrpc2.ID
			if err := got.UnmarshalJSON(data); err != nil {
				t.Fatalf("UnmarshalJSON: %v", err)
			}
			if got.String() != tt.id.String() {
				t.Errorf("got %q, want %q", got.String(), tt.id.String())
			}
		})
	}
}

func TestIDIsStringDistinguishesKind(t *testing.T) {
	if !jsonrpc2.NewStringID("x").IsString() {
		t.Error("want a string id to report IsString true")
	}
	if jsonrpc2.NewIntID(1).IsString() {
		t.Error("want an int id to report IsString false")
	}
}

func TestIDUnmarshalNullIsInvalid(t *testing.T) {
	var id jsonrpc2.ID
	if err := id.UnmarshalJSON([]byte("null")); err != nil {
		t.Fatalf("UnmarshalJSON(null): %v", err)
	}
	if id.IsValid() {
		t.Error("want null to unmarshal to an invalid id")
	}
}

func TestIDUnmarshalRejectsNegativeInt(t *testing.T) {
	var id jsonrpc2.ID
	if err := id.UnmarshalJSON([]byte("-1")); err == nil {
		t.Fatal("want an error unmarshaling a negative integer id")
	}
}

func TestDecodeMessageClassifiesRequestNotificationResponse(t *testing.T) {
	req, err := jsonrpc2.DecodeMessage([]byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	if err != nil {
		t.Fatalf("DecodeMessage request: %v", err)
	}
	if _, ok := req.(*jsonrpc2.Request); !ok {
		t.Errorf("got %T, want *Request", req)
	}

	notif, err := jsonrpc2.DecodeMessage([]byte(`{"jsonrpc":"2.0","method":"tick"}`))
	if err != nil {
		t.Fatalf("DecodeMessage notification: %v", err)
	}
	if _, ok := notif.(*jsonrpc2.Notification); !ok {
		t.Errorf("got %T, want *Notification", notif)
	}

	resp, err := jsonrpc2.DecodeMessage([]byte(`{"jsonrpc":"2.0","id":1,"result":{}}`))
	if err != nil {
		t.Fatalf("DecodeMessage response: %v", err)
	}
	if _, ok := resp.(*jsonrpc2.Response); !ok {
		t.Errorf("got %T, want *Response", resp)
	}
}

func TestDecodeMessageRejectsFrameWithNeitherMethodNorID(t *testing.T) {
	if _, err := jsonrpc2.DecodeMessage([]byte(`{"jsonrpc":"2.0"}`)); err == nil {
		t.Fatal("want an error for a frame that is neither request, notification, nor response")
	}
}

func TestDecodeBatchAcceptsBareObjectAndArray(t *testing.T) {
	single, err := jsonrpc2.DecodeBatch([]byte(`{"jsonrpc":"2.0","method":"tick"}`))
	if err != nil {
		t.Fatalf("DecodeBatch single: %v", err)
	}
	if len(single) != 1 {
		t.Fatalf("got %d messages, want 1", len(single))
	}

	batch, err := jsonrpc2.DecodeBatch([]byte(`[{"jsonrpc":"2.0","method":"a"},{"jsonrpc":"2.0","method":"b"}]`))
	if err != nil {
		t.Fatalf("DecodeBatch array: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("got %d messages, want 2", len(batch))
	}
}

func TestDecodeBatchRejectsEmptyArrayAndBody(t *testing.T) {
	if _, err := jsonrpc2.DecodeBatch([]byte(`[]`)); err == nil {
		t.Fatal("want an error decoding an empty batch array")
	}
	if _, err := jsonrpc2.DecodeBatch([]byte(``)); err == nil {
		t.Fatal("want an error decoding an empty body")
	}
}

func TestEncodeBatchFlushesSingleMessageAsBareObject(t *testing.T) {
	data, err := jsonrpc2.EncodeBatch([]jsonrpc2.Message{jsonrpc2.NewNotification("tick", nil)})
	if err != nil {
		t.Fatalf("EncodeBatch: %v", err)
	}
	if data[0] != '{' {
		t.Errorf("got %s, want a bare object, not an array", data)
	}
}

func TestEncodeBatchFlushesMultipleMessagesAsArray(t *testing.T) {
	data, err := jsonrpc2.EncodeBatch([]jsonrpc2.Message{
		jsonrpc2.NewNotification("a", nil),
		jsonrpc2.NewNotification("b", nil),
	})
	if err != nil {
		t.Fatalf("EncodeBatch: %v", err)
	}
	if data[0] != '[' {
		t.Errorf("got %s, want a JSON array", data)
	}
}

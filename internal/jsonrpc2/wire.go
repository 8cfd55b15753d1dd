// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package jsonrpc2 defines the wire-level JSON-RPC 2.0 message types shared
// by every transport: the request/notification/response variants, the id
// union type, and the batch envelope codec.
package jsonrpc2

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/mcpcore/protocol-go/internal/json"
)

const Version = "2.0"

// RawMessage re-exports the wire codec's raw JSON type so callers outside
// internal/json never need to import it directly.
type RawMessage = json.RawMessage

// ID is a JSON-RPC request identifier: either a non-negative integer or a
// string, The zero value is not a valid id; use IsValid.
type ID struct {
	str string
	num int64
	ok bool
}

func NewStringID(s string) ID { return ID{str: s, ok: true} }
func NewIntID(n int64) ID { return ID{num: n, ok: true} }

func (id ID) IsValid() bool { return id.ok }
func (id ID) IsString() bool { return id.ok && id.str != "" }

func (id ID) String() string {
	if !id.ok {
 return ""
	}
	if id.str != "" {
 return id.str
	}
	return strconv.FormatInt(id.num, 10)
}

func (id ID) MarshalJSON() ([]byte, error) {
	if !id.ok {
 return []byte("null"), nil
	}
	if id.str != "" {
 return json.Marshal(id.str)
	}
	return json.Marshal(id.num)
}

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
 *id = ID{}
 return nil
	}
	if len(data) > 0 && data[0] == '"' {
 var s string
 if err := json.Unmarshal(data, &s); err != nil {
 return err
 }
 *id = ID{str: s, ok: true}
 return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
 return fmt.Errorf("jsonrpc2: invalid id %s: %w", data, err)
	}
	if n < 0 {
 return fmt.Errorf("jsonrpc2: negative id %d", n)
	}
	*id = ID{num: n, ok: true}
	return nil
}

// WireError is the on-the-wire shape of a JSON-RPC error object.
type WireError struct {
	Code int `json:"code"`
	Message string `json:"message"`
	Data any `json:"data,omitempty"`
}

// Message is implemented by Request, Notification, Response. It exists so
// transports and the protocol engine can pass frames around uniformly
// before dispatching on concrete type.
type Message interface {
	isMessage()
}

// Request is an outbound or inbound call expecting a Response.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID ID `json:"id"`
	Method string `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

func (*Request) isMessage() {}

// Notification carries no id and expects no reply.
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method string `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

func (*Notification) isMessage() {}

// Response is either a result or an error response, never both.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID ID `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error *WireError `json:"error,omitempty"`
}

func (*Response) isMessage() {}

func NewRequest(id ID, method string, params json.RawMessage) *Request {
	return &Request{JSONRPC: Version, ID: id, Method: method, Params: params}
}

func NewNotification(method string, params json.RawMessage) *Notification {
	return &Notification{JSONRPC: Version, Method: method, Params: params}
}

func NewResultResponse(id ID, result json.RawMessage) *Response {
	return &Response{JSONRPC: Version, ID: id, Result: result}
}

func NewErrorResponse(id ID, code int, message string, data any) *Response {
	return &Response{JSONRPC: Version, ID: id, Error: &WireError{Code: code, Message: message, Data: data}}
}

// envelope is the superset of fields needed to classify a raw frame before
// unmarshaling it into its concrete type.
type envelope struct {
	JSONRPC string `json:"jsonrpc"`
	ID *ID `json:"id,omitempty"`
	Method string `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error *WireError `json:"error,omitempty"`
}

// DecodeMessage classifies and strictly unmarshals a single JSON-RPC frame.
func DecodeMessage(data []byte) (Message, error) {
	var env envelope
	if err := StrictUnmarshal(data, &env); err != nil {
 return nil, err
	}
	switch {
	case env.Method != "" && env.ID != nil:
 return &Request{JSONRPC: env.JSONRPC, ID: *env.ID, Method: env.Method, Params: env.Params}, nil
	case env.Method != "":
 return &Notification{JSONRPC: env.JSONRPC, Method: env.Method, Params: env.Params}, nil
	case env.ID != nil:
 return &Response{JSONRPC: env.JSONRPC, ID: *env.ID, Result: env.Result, Error: env.Error}, nil
	default:
 return nil, fmt.Errorf("jsonrpc2: frame is neither request, notification nor response")
	}
}

// DecodeBatch accepts either a single JSON object or a JSON array of
// objects, returning the constituent messages in order.
func DecodeBatch(data []byte) ([]Message, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
 return nil, fmt.Errorf("jsonrpc2: empty body")
	}
	if trimmed[0] == '[' {
 var raw []json.RawMessage
 if err := json.Unmarshal(trimmed, &raw); err != nil {
 return nil, err
 }
 if len(raw) == 0 {
 return nil, fmt.Errorf("jsonrpc2: empty batch")
 }
 msgs := make([]Message, 0, len(raw))
 for _, r := range raw {
 m, err := DecodeMessage(r)
 if err != nil {
 return nil, err
 }
 msgs = append(msgs, m)
 }
 return msgs, nil
	}
	m, err := DecodeMessage(trimmed)
	if err != nil {
 return nil, err
	}
	return []Message{m}, nil
}

// EncodeBatch renders a set of messages for JSON response mode: a lone
// message flushes as a bare object, never a one-element array.
func EncodeBatch(msgs []Message) ([]byte, error) {
	if len(msgs) == 1 {
 return json.Marshal(msgs[0])
	}
	return json.Marshal(msgs)
}

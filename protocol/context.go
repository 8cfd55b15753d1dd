// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package protocol

import "context"

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
	ctxKeyMethod
	ctxKeyMeta
	ctxKeySessionID
	ctxKeyExtra
)

// baseHandlerContext builds the {requestId, method, _meta, sessionId}
// context every handler needs before any onBuildHandlerContext plugin
// augments it. extra is also attached so plugins needing transport-level
// fields (auth.BearerPlugin) can reach them via MessageExtraFromContext.
func baseHandlerContext(ctx context.Context, reqID string, method string, meta map[string]any, sessionID string, extra *MessageExtra) context.Context {
	ctx = context.WithValue(ctx, ctxKeyRequestID, reqID)
	ctx = context.WithValue(ctx, ctxKeyMethod, method)
	ctx = context.WithValue(ctx, ctxKeyMeta, meta)
	ctx = context.WithValue(ctx, ctxKeySessionID, sessionID)
	ctx = context.WithValue(ctx, ctxKeyExtra, extra)
	return ctx
}

// MessageExtraFromContext returns the MessageExtra a transport attached
// to the inbound message that produced ctx, if any.
func MessageExtraFromContext(ctx context.Context) (*MessageExtra, bool) {
	v, ok := ctx.Value(ctxKeyExtra).(*MessageExtra)
	return v, ok && v != nil
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyRequestID).(string)
	return v, ok
}

func MethodFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyMethod).(string)
	return v, ok
}

func MetaFromContext(ctx context.Context) map[string]any {
	v, _ := ctx.Value(ctxKeyMeta).(map[string]any)
	return v
}

func SessionIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeySessionID).(string)
	return v
}

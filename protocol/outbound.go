// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package protocol

import (
	"context"
	"fmt"
	"time"

	"github.com/mcpcore/protocol-go/internal/json"
	"github.com/mcpcore/protocol-go/internal/jsonrpc2"
	"github.com/mcpcore/protocol-go/jsonrpc"
)

const progressTokenKey = "progressToken"

// SendRequest issues an outbound request and blocks for its response, its
// cancellation, or its timeout, whichever comes first. Grounded on the gogentic protocol engine's
// Request() timeout/cancel select loop.
func (p *Protocol) SendRequest(ctx context.Context, method string, params jsonrpc2.RawMessage, opts *RequestOptions) (jsonrpc2.RawMessage, error) {
	if opts == nil {
 opts = &RequestOptions{}
	}
	if p.opts.EnforceStrictCapabilities && p.opts.CapabilityChecker != nil {
 if !p.opts.CapabilityChecker(method) {
 return nil, jsonrpc.InvalidRequest(fmt.Sprintf("remote does not support method %q", method))
 }
	}

	id := jsonrpc2.NewIntID(p.nextID.Add(1) - 1)
	idStr := id.String()

	var meta map[string]any
	if opts.OnProgress != nil {
 p.progress.Subscribe(idStr, opts.OnProgress)
 meta = map[string]any{progressTokenKey: idStr}
	}

	req := jsonrpc2.NewRequest(id, method, params)
	if meta != nil {
 req.Params = injectMeta(req.Params, meta)
	}

	for _, interceptor := range p.pipeline.outboundRequestInterceptors() {
 substituted, err := interceptor.OnBeforeSendRequest(ctx, req)
 if err != nil {
 p.progress.Unsubscribe(idStr)
 return nil, err
 }
 if substituted != nil {
 req = substituted
 }
	}

	outstanding := newOutstandingRequest(id)
	outstanding.progressToken = idStr
	p.outstanding.register(outstanding)
	if p.opts.Metrics != nil {
 p.opts.Metrics.OutstandingRequests.Inc()
 defer p.opts.Metrics.OutstandingRequests.Dec()
	}

	timeout := opts.Timeout
	if timeout <= 0 {
 timeout = DefaultTimeout
	}
	fired := make(chan struct{}, 1)
	p.timeouts.Start(idStr, TimeoutDescriptor{
 Timeout: timeout,
 MaxTotalTimeout: opts.MaxTotalTimeout,
 ResetOnProgress: opts.ResetTimeoutOnProgress,
 OnFire: func() {
 select {
 case fired <- struct{}{}:
 default:
 }
 },
	})

	cleanup := func() {
 p.timeouts.Stop(idStr)
 p.progress.Unsubscribe(idStr)
	}

	sendOpts := opts.SendOptions
	if err := p.send(ctx, req, sendOpts); err != nil {
 p.outstanding.take(id)
 cleanup()
 return nil, err
	}

	select {
	case resp := <-outstanding.resultC:
 cleanup()
 if resp.Error != nil {
 return nil, jsonrpc.NewError(resp.Error.Code, resp.Error.Message, resp.Error.Data)
 }
 return resp.Result, nil

	case <-fired:
 p.outstanding.take(id)
 cleanup()
 p.sendCancelNotification(ctx, id, "Request timed out")
 return nil, jsonrpc.RequestTimeout(fmt.Sprintf("request %s timed out", idStr))

	case <-ctx.Done():
 p.outstanding.take(id)
 cleanup()
 p.sendCancelNotification(ctx, id, "Request cancelled")
 return nil, ctx.Err()
	}
}

// sendCancelNotification emits notifications/cancelled for an outbound
// request we gave up on.
func (p *Protocol) sendCancelNotification(ctx context.Context, id jsonrpc2.ID, reason string) {
	params, _ := json.Marshal(map[string]any{
 "requestId": id.String(),
 "reason": reason,
	})
	_ = p.SendNotification(ctx, "notifications/cancelled", params, nil)
}

// CancelRequest cancels request id from our side: detaches all state and
// emits the cancel notification, the same convergent cleanup used for all
// three cancellation sources.
func (p *Protocol) CancelRequest(ctx context.Context, id jsonrpc2.ID, reason string) {
	if req, ok := p.outstanding.take(id); ok {
 p.timeouts.Stop(id.String())
 p.progress.Unsubscribe(id.String())
 req.complete(jsonrpc2.NewErrorResponse(id, jsonrpc.CodeRequestTimeout, "cancelled", nil))
 p.sendCancelNotification(ctx, id, reason)
	}
}

// SendNotification sends a fire-and-forget notification, applying the
// configured debounce policy when method is in
// Options.DebouncedNotificationMethods and the send has no related
// request id.
func (p *Protocol) SendNotification(ctx context.Context, method string, params jsonrpc2.RawMessage, opts *SendOptions) error {
	n := jsonrpc2.NewNotification(method, params)
	for _, interceptor := range p.pipeline.outboundNotificationInterceptors() {
 substituted, err := interceptor.OnBeforeSendNotification(ctx, n)
 if err != nil {
 return err
 }
 if substituted != nil {
 n = substituted
 }
	}

	if opts == nil || !opts.RelatedRequestID.IsValid() {
 if p.debouncedSet[method] {
 return p.debounce(ctx, n, opts)
 }
	}
	return p.send(ctx, n, opts)
}

// debounce implements a "1 transmitted notification per tick" policy. Go
// has no microtask queue; a zero-delay timer stands in for "later in the
// same tick" while still coalescing synchronous calls made before it
// fires.
func (p *Protocol) debounce(ctx context.Context, n *jsonrpc2.Notification, opts *SendOptions) error {
	p.debounceMu.Lock()
	if p.debouncePending[n.Method] {
 p.debounceMu.Unlock()
 return nil
	}
	p.debouncePending[n.Method] = true
	p.debounceMu.Unlock()

	window := p.opts.DebounceWindow
	time.AfterFunc(window, func() {
 p.debounceMu.Lock()
 delete(p.debouncePending, n.Method)
 p.debounceMu.Unlock()

 if p.closed.Load() {
 return
 }
 if err := p.send(ctx, n, opts); err != nil {
 p.ReportError(err)
 }
	})
	return nil
}

func (p *Protocol) send(ctx context.Context, msg jsonrpc2.Message, opts *SendOptions) error {
	if p.transport == nil {
 return jsonrpc.ConnectionClosed("no transport connected")
	}
	return p.transport.Send(ctx, msg, opts)
}

// injectMeta adds key/value pairs under params._meta, creating params and
// _meta if absent. Mirrors the GetMeta/SetMeta pattern (mcp/protocol.go),
// generalized to raw JSON since the core does not know concrete params
// types.
func injectMeta(params jsonrpc2.RawMessage, meta map[string]any) jsonrpc2.RawMessage {
	var obj map[string]any
	if len(params) > 0 {
 _ = json.Unmarshal(params, &obj)
	}
	if obj == nil {
 obj = map[string]any{}
	}
	existingMeta, _ := obj["_meta"].(map[string]any)
	if existingMeta == nil {
 existingMeta = map[string]any{}
	}
	for k, v := range meta {
 existingMeta[k] = v
	}
	obj["_meta"] = existingMeta
	out, err := json.Marshal(obj)
	if err != nil {
 return params
	}
	return out
}

// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package protocol

import (
	"context"
	"strconv"

	"github.com/mcpcore/protocol-go/internal/json"
	"github.com/mcpcore/protocol-go/internal/jsonrpc2"
	"github.com/mcpcore/protocol-go/jsonrpc"
)

func (p *Protocol) handleInboundRequest(ctx context.Context, req *jsonrpc2.Request, extra *MessageExtra) {
	if p.opts.Metrics != nil {
 p.opts.Metrics.RequestsTotal.WithLabelValues(req.Method).Inc()
	}
	idStr := req.ID.String()
	handler, ok := p.handlers.lookupRequest(req.Method)
	if !ok {
 p.sendErrorResponse(ctx, req, jsonrpc.CodeMethodNotFound, "protocol", jsonrpc.MethodNotFound(req.Method))
 return
	}

	abortCtx, cancel := p.handlers.newAbortController(ctx, idStr)
	defer p.handlers.releaseAbortController(idStr)
	defer cancel()

	var meta map[string]any
	var params map[string]any
	if len(req.Params) > 0 {
 _ = json.Unmarshal(req.Params, &params)
 meta, _ = params["_meta"].(map[string]any)
	}

	hctx := baseHandlerContext(abortCtx, idStr, req.Method, meta, sessionIDFromExtra(extra), extra)
	for _, builder := range p.pipeline.handlerContextBuilders() {
 hctx = builder.OnBuildHandlerContext(hctx, req)
	}

	effectiveReq := req
	for _, interceptor := range p.pipeline.requestInterceptors() {
 substituted, err := interceptor.OnRequest(hctx, effectiveReq)
 if err != nil {
 p.sendErrorResponse(hctx, req, jsonrpc.CodeInternalError, "application", err)
 return
 }
 if substituted != nil {
 effectiveReq = substituted
 }
	}

	result, err := handler(hctx, effectiveReq)

	if abortCtx.Err() != nil {
 // Outcome discarded: the controller was aborted while the handler
 // ran.
 return
	}

	if err != nil {
 for _, obs := range p.pipeline.requestErrorObservers() {
 if rewritten := obs.OnRequestError(hctx, req, err); rewritten != nil {
 err = rewritten
 }
 }
 p.sendErrorResponse(hctx, req, 0, "application", err)
 return
	}

	for _, obs := range p.pipeline.requestResultObservers() {
 obs.OnRequestResult(hctx, req, result)
	}
	p.sendResultResponse(hctx, req, result, extra)
}

func sessionIDFromExtra(extra *MessageExtra) string {
	if extra == nil {
 return ""
	}
	return extra.SessionID
}

// sendResultResponse writes a successful response, honoring any related
// request stream via SendOptions.RelatedRequestID the same way an
// outbound notification would.
func (p *Protocol) sendResultResponse(ctx context.Context, req *jsonrpc2.Request, result jsonrpc2.RawMessage, extra *MessageExtra) {
	resp := jsonrpc2.NewResultResponse(req.ID, result)
	opts := &SendOptions{RelatedRequestID: req.ID, SessionID: sessionIDFromExtra(extra)}
	if err := p.send(ctx, resp, opts); err != nil {
 p.ReportError(err)
	}
}

// sendErrorResponse applies the error-interceptor policy: protocol errors
// keep their fixed code; application errors may have their code
// rewritten too.
func (p *Protocol) sendErrorResponse(ctx context.Context, req *jsonrpc2.Request, protocolCode int, kind string, err error) {
	wireErr := jsonrpc.FromError(err)
	if kind == "protocol" && protocolCode != 0 {
 wireErr.Code = protocolCode
	}

	if p.opts.ErrorInterceptor != nil {
 override := p.opts.ErrorInterceptor(ErrorContext{
 Type: kind,
 Method: req.Method,
 RequestID: req.ID.String(),
 ErrorCode: wireErr.Code,
 })
 if override != nil {
 if override.Message != nil {
 wireErr.Message = *override.Message
 }
 if override.Data != nil {
 wireErr.Data = override.Data
 }
 if kind == "application" && override.Code != nil {
 wireErr.Code = *override.Code
 }
 }
	}

	if p.opts.Metrics != nil {
 p.opts.Metrics.RequestErrorsTotal.WithLabelValues(req.Method, strconv.Itoa(wireErr.Code)).Inc()
	}

	resp := jsonrpc2.NewErrorResponse(req.ID, wireErr.Code, wireErr.Message, wireErr.Data)
	if err := p.send(ctx, resp, &SendOptions{RelatedRequestID: req.ID}); err != nil {
 p.ReportError(err)
	}
}

func (p *Protocol) handleInboundNotification(ctx context.Context, n *jsonrpc2.Notification, extra *MessageExtra) {
	if n.Method == "notifications/cancelled" {
 p.handleCancelledNotification(n)
 return
	}
	if n.Method == "notifications/progress" {
 p.handleProgressNotification(n)
 return
	}

	for _, obs := range p.pipeline.notificationObservers() {
 obs.OnNotification(ctx, n)
	}

	handler, ok := p.handlers.lookupNotification(n.Method)
	if !ok {
 return // subscriptions are optional; drop silently.
	}
	defer func() {
 if r := recover(); r != nil {
 p.ReportError(jsonrpc.InternalError("notification handler panicked"))
 }
	}()
	handler(ctx, n)
}

func (p *Protocol) handleCancelledNotification(n *jsonrpc2.Notification) {
	var params struct {
 RequestID string `json:"requestId"`
 Reason string `json:"reason"`
	}
	if len(n.Params) > 0 {
 _ = json.Unmarshal(n.Params, &params)
	}
	p.handlers.Abort(params.RequestID)
}

func (p *Protocol) handleProgressNotification(n *jsonrpc2.Notification) {
	var params struct {
 ProgressToken string `json:"progressToken"`
 Message string `json:"message"`
 Progress float64 `json:"progress"`
 Total float64 `json:"total"`
	}
	if len(n.Params) > 0 {
 _ = json.Unmarshal(n.Params, &params)
	}
	p.timeouts.ResetSoft(params.ProgressToken)
	delivered := p.progress.Dispatch(ProgressNotification{
 ProgressToken: params.ProgressToken,
 Message: params.Message,
 Progress: params.Progress,
 Total: params.Total,
	})
	if !delivered {
 p.ReportError(jsonrpc.InvalidParams("progress notification for unknown token: " + params.ProgressToken))
	}
}

// InvokeHandler runs the handler registered for req.Method directly,
// bypassing abort controllers and request interceptors, for use by
// routing plugins that have taken full ownership of a message.
func (p *Protocol) InvokeHandler(ctx context.Context, req *jsonrpc2.Request) (jsonrpc2.RawMessage, error) {
	handler, ok := p.handlers.lookupRequest(req.Method)
	if !ok {
 return nil, jsonrpc.MethodNotFound(req.Method)
	}
	return handler(ctx, req)
}

// RespondResult answers req with a successful result, for use by a
// routing plugin that owns the message.
func (p *Protocol) RespondResult(ctx context.Context, req *jsonrpc2.Request, result jsonrpc2.RawMessage) {
	p.sendResultResponse(ctx, req, result, nil)
}

// RespondError answers req with an application error, for use by a
// routing plugin that owns the message.
func (p *Protocol) RespondError(ctx context.Context, req *jsonrpc2.Request, err error) {
	p.sendErrorResponse(ctx, req, 0, "application", err)
}

func (p *Protocol) handleInboundResponse(ctx context.Context, resp *jsonrpc2.Response) {
	for _, obs := range p.pipeline.responseObservers() {
 obs.OnResponse(ctx, resp)
	}
	if req, ok := p.outstanding.take(resp.ID); ok {
 req.complete(resp)
	}
}

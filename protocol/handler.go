// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package protocol

import (
	"context"
	"sync"

	"github.com/mcpcore/protocol-go/internal/jsonrpc2"
)

// HandlerFunc answers an inbound request, returning the JSON result
// payload or an error (a *jsonrpc.Error carries an explicit wire code;
// any other error becomes CodeInternalError).
type HandlerFunc func(ctx context.Context, req *jsonrpc2.Request) (jsonrpc2.RawMessage, error)

// NotificationHandlerFunc handles an inbound notification. Handler errors
// are surfaced through the engine's error channel, never returned to the
// peer.
type NotificationHandlerFunc func(ctx context.Context, n *jsonrpc2.Notification)

// HandlerRegistry is the method-name lookup table plus the per-in-flight
// abort controllers: each in-flight inbound request owns an abort signal
// addressable by its id. Grounded on the flat method-dispatch maps (seen
// across mcp/*_server.go), generalized into a standalone registry.
type HandlerRegistry struct {
	mu sync.RWMutex
	requestHandlers map[string]HandlerFunc
	notificationHandlers map[string]NotificationHandlerFunc
	fallbackRequest HandlerFunc
	fallbackNotification NotificationHandlerFunc

	abortMu sync.Mutex
	abortFns map[string]context.CancelFunc
}

func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
 requestHandlers: make(map[string]HandlerFunc),
 notificationHandlers: make(map[string]NotificationHandlerFunc),
 abortFns: make(map[string]context.CancelFunc),
	}
}

func (r *HandlerRegistry) SetRequestHandler(method string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requestHandlers[method] = h
}

func (r *HandlerRegistry) RemoveRequestHandler(method string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.requestHandlers, method)
}

func (r *HandlerRegistry) SetNotificationHandler(method string, h NotificationHandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notificationHandlers[method] = h
}

func (r *HandlerRegistry) RemoveNotificationHandler(method string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.notificationHandlers, method)
}

func (r *HandlerRegistry) SetFallbackRequestHandler(h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbackRequest = h
}

func (r *HandlerRegistry) SetFallbackNotificationHandler(h NotificationHandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbackNotification = h
}

func (r *HandlerRegistry) lookupRequest(method string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.requestHandlers[method]; ok {
 return h, true
	}
	if r.fallbackRequest != nil {
 return r.fallbackRequest, true
	}
	return nil, false
}

func (r *HandlerRegistry) lookupNotification(method string) (NotificationHandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.notificationHandlers[method]; ok {
 return h, true
	}
	if r.fallbackNotification != nil {
 return r.fallbackNotification, true
	}
	return nil, false
}

// newAbortController registers a cancellable context for an inbound
// request id, returning the derived context and a function that aborts
// it. Overwrites any existing controller for the same id.
func (r *HandlerRegistry) newAbortController(parent context.Context, id string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	r.abortMu.Lock()
	r.abortFns[id] = cancel
	r.abortMu.Unlock()
	return ctx, cancel
}

// Abort cancels the in-flight request's context, if any. Idempotent.
func (r *HandlerRegistry) Abort(id string) {
	r.abortMu.Lock()
	cancel, ok := r.abortFns[id]
	r.abortMu.Unlock()
	if ok {
 cancel()
	}
}

func (r *HandlerRegistry) releaseAbortController(id string) {
	r.abortMu.Lock()
	delete(r.abortFns, id)
	r.abortMu.Unlock()
}

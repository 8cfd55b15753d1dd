// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package protocol

import (
	"context"
	"time"

	"github.com/mcpcore/protocol-go/internal/jsonrpc2"
)

// Plugin is the marker interface every pipeline participant implements: an
// ordered list of interface-conforming values whose capabilities are
// exactly the hooks a participant opts into, rather than prototype-based
// plugin objects. That becomes a base marker interface plus one optional
// interface per hook, checked with a type assertion the way io.Closer is
// checked for on a Transport.
type Plugin interface {
	// Name identifies the plugin for diagnostics and typed lookup.
	Name() string
}

// Host is the small interface Protocol implements and hands to plugins at
// install time, so a plugin never needs a back-pointer to Protocol
// itself. It exposes exactly the capabilities plugins need: sending,
// handler registration, side-channel response routing, progress, and
// error reporting.
type Host interface {
	SendRequest(ctx context.Context, method string, params jsonrpc2.RawMessage, opts *RequestOptions) (jsonrpc2.RawMessage, error)
	SendNotification(ctx context.Context, method string, params jsonrpc2.RawMessage, opts *SendOptions) error
	RegisterHandler(method string, h HandlerFunc)
	RemoveHandler(method string)
	RegisterResponseResolver(id jsonrpc2.ID, resolve func(*jsonrpc2.Response)) bool
	Progress() *ProgressManager
	ReportError(err error)
	SessionID() string

	// InvokeHandler runs the handler registered for req.Method directly,
	// bypassing the abort-controller/plugin-interceptor machinery normal
	// inbound dispatch applies. Used by routing plugins (the task
	// subsystem) that take over dispatch for a message entirely.
	InvokeHandler(ctx context.Context, req *jsonrpc2.Request) (jsonrpc2.RawMessage, error)

	// RespondResult and RespondError let a routing plugin answer an
	// inbound request it has taken ownership of.
	RespondResult(ctx context.Context, req *jsonrpc2.Request, result jsonrpc2.RawMessage)
	RespondError(ctx context.Context, req *jsonrpc2.Request, err error)
}

// Installer runs once when a plugin is added to the pipeline.
type Installer interface {
	Plugin
	Install(host Host) error
}

// ConnectObserver is notified when the underlying transport connects.
type ConnectObserver interface {
	Plugin
	OnConnect(ctx context.Context)
}

// CloseObserver is notified when the underlying transport closes.
type CloseObserver interface {
	Plugin
	OnClose()
}

// RequestInterceptor may substitute an inbound request before it reaches
// its handler.
type RequestInterceptor interface {
	Plugin
	OnRequest(ctx context.Context, req *jsonrpc2.Request) (*jsonrpc2.Request, error)
}

// RequestResultObserver is notified of a successful inbound request
// outcome before the response is sent.
type RequestResultObserver interface {
	Plugin
	OnRequestResult(ctx context.Context, req *jsonrpc2.Request, result jsonrpc2.RawMessage)
}

// RequestErrorObserver is notified of a failed inbound request outcome
// before the error response is sent; it may rewrite the error.
type RequestErrorObserver interface {
	Plugin
	OnRequestError(ctx context.Context, req *jsonrpc2.Request, err error) error
}

// NotificationObserver is notified of an inbound notification before its
// handler runs.
type NotificationObserver interface {
	Plugin
	OnNotification(ctx context.Context, n *jsonrpc2.Notification)
}

// OutboundRequestInterceptor may substitute an outbound request before
// send.
type OutboundRequestInterceptor interface {
	Plugin
	OnBeforeSendRequest(ctx context.Context, req *jsonrpc2.Request) (*jsonrpc2.Request, error)
}

// OutboundNotificationInterceptor may substitute an outbound notification
// before send.
type OutboundNotificationInterceptor interface {
	Plugin
	OnBeforeSendNotification(ctx context.Context, n *jsonrpc2.Notification) (*jsonrpc2.Notification, error)
}

// HandlerContextBuilder augments the base handler context with plugin
// specific values, merged in plugin priority order.
type HandlerContextBuilder interface {
	Plugin
	OnBuildHandlerContext(ctx context.Context, req *jsonrpc2.Request) context.Context
}

// ResponseObserver is notified of every inbound response before it is
// routed to its resolver. Once SendRequest receives that response it
// removes the progress subscriber for the request id, including one an
// observer registered from OnResponse.
type ResponseObserver interface {
	Plugin
	OnResponse(ctx context.Context, resp *jsonrpc2.Response)
}

// Router lets a plugin intercept inbound message routing entirely: the
// first plugin (in priority order) whose ShouldRoute returns true owns the
// message and the default handler never sees it. Routers are consulted
// for inbound messages only; SendRequest and SendNotification always hand
// outbound messages to the transport. Used by the task subsystem to
// short-circuit a create-task request into detached execution.
type Router interface {
	Plugin
	ShouldRoute(msg jsonrpc2.Message) bool
	Route(ctx context.Context, msg jsonrpc2.Message, host Host) error
}

// RequestOptions configure a single outbound request.
type RequestOptions struct {
	Timeout time.Duration
	MaxTotalTimeout time.Duration
	ResetTimeoutOnProgress bool
	OnProgress ProgressSubscriber
	SendOptions *SendOptions
}

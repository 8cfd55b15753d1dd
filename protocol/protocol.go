// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package protocol

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mcpcore/protocol-go/internal/json"
	"github.com/mcpcore/protocol-go/internal/jsonrpc2"
	"github.com/mcpcore/protocol-go/jsonrpc"
	"github.com/mcpcore/protocol-go/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrorContext is handed to the error interceptor on every outgoing error
// response.
type ErrorContext struct {
	Type string // "protocol" or "application"
	Method string
	RequestID string
	ErrorCode int
}

// ErrorOverride is what an error interceptor may return to rewrite an
// outgoing error response. Code is only honored for application errors;
// protocol errors keep their fixed code.
type ErrorOverride struct {
	Message *string
	Data any
	Code *int
}

// ErrorInterceptor is the single user-supplied error-rewrite filter,
// expressed as a Protocol option field rather than a global.
type ErrorInterceptor func(ErrorContext) *ErrorOverride

// CapabilityChecker answers whether the remote peer advertises support
// for method, used by strict capability enforcement.
type CapabilityChecker func(method string) bool

// Options configures a Protocol instance, following the options-struct
// convention (StreamableHTTPOptions et al.) rather than functional
// options.
type Options struct {
	Logger *zap.Logger

	// ErrorInterceptor, if set, is consulted before every outgoing error
	// response.
	ErrorInterceptor ErrorInterceptor

	// EnforceStrictCapabilities, if true, makes SendRequest consult
	// CapabilityChecker before sending.
	EnforceStrictCapabilities bool
	CapabilityChecker CapabilityChecker

	// DebouncedNotificationMethods lists notification methods coalesced
	// within a scheduling tick.
	DebouncedNotificationMethods []string

	// DebounceWindow stands in for a microtask tick; Go has no microtask
	// queue, so a short timer plays that role. Zero uses a 0-duration
	// timer (fires on the next scheduler tick).
	DebounceWindow time.Duration

	// Metrics, if set, receives Prometheus instrumentation for request
	// throughput and outstanding-request depth.
	Metrics *metrics.Set
}

// Protocol is the core engine: request dispatch, response routing,
// handler registry, timeout and progress management, plugin pipeline
// orchestration, error interception. Grounded primarily on the gogentic
// MCP protocol engine and on gate4ai's RequestManager for the
// outstanding-request idiom.
type Protocol struct {
	opts Options
	logger *zap.Logger
	transport Transport

	handlers *HandlerRegistry
	outstanding *outstandingTable
	timeouts *TimeoutManager
	progress *ProgressManager
	pipeline *Pipeline

	nextID atomic.Int64

	debounceMu sync.Mutex
	debouncedSet map[string]bool
	debouncePending map[string]bool

	closed atomic.Bool
}

func New(opts Options) *Protocol {
	logger := opts.Logger
	if logger == nil {
 logger = zap.NewNop()
	}
	debounced := make(map[string]bool, len(opts.DebouncedNotificationMethods))
	for _, m := range opts.DebouncedNotificationMethods {
 debounced[m] = true
	}
	p := &Protocol{
 opts: opts,
 logger: logger,
 handlers: NewHandlerRegistry(),
 outstanding: newOutstandingTable(),
 timeouts: NewTimeoutManager(),
 progress: NewProgressManager(),
 pipeline: &Pipeline{},
 debouncedSet: debounced,
 debouncePending: make(map[string]bool),
	}
	p.handlers.SetRequestHandler("ping", p.handlePing)
	return p
}

func (p *Protocol) handlePing(ctx context.Context, req *jsonrpc2.Request) (jsonrpc2.RawMessage, error) {
	return json.Marshal(struct{}{})
}

// Handlers exposes the registry for direct registration of application
// methods (tools/list, resources/read, and so on live outside the core
// and register themselves here).
func (p *Protocol) Handlers() *HandlerRegistry { return p.handlers }
func (p *Protocol) Progress() *ProgressManager { return p.progress }
func (p *Protocol) Pipeline() *Pipeline { return p.pipeline }

// Use installs plugin at priority, running its Install hook immediately
// if it implements Installer.
func (p *Protocol) Use(priority int, plugin Plugin) error {
	p.pipeline.Add(priority, plugin)
	if inst, ok := plugin.(Installer); ok {
 return inst.Install(p)
	}
	return nil
}

// Connect binds transport to this Protocol, overwriting the transport's
// callbacks.
func (p *Protocol) Connect(ctx context.Context, t Transport) error {
	p.transport = t
	t.SetHandlers(p.onMessage, p.onClose, p.onError)
	if err := t.Start(ctx); err != nil {
 return err
	}
	var g errgroup.Group
	for _, obs := range p.pipeline.connectObservers() {
 obs := obs
 g.Go(func() error {
 obs.OnConnect(ctx)
 return nil
 })
	}
	return g.Wait()
}

func (p *Protocol) SessionID() string {
	if p.transport == nil {
 return ""
	}
	return p.transport.SessionID()
}

func (p *Protocol) ReportError(err error) {
	if err == nil {
 return
	}
	p.logger.Warn("protocol error", zap.Error(err))
}

func (p *Protocol) onError(err error) {
	p.ReportError(err)
}

func (p *Protocol) onClose() {
	if !p.closed.CompareAndSwap(false, true) {
 return
	}
	for _, req := range p.outstanding.drain() {
 req.complete(jsonrpc2.NewErrorResponse(req.id, jsonrpc.CodeConnectionClosed, "connection closed", nil))
	}
	var g errgroup.Group
	for _, obs := range p.pipeline.closeObservers() {
 obs := obs
 g.Go(func() error {
 obs.OnClose()
 return nil
 })
	}
	_ = g.Wait()
}

// Close tears down the underlying transport and rejects every outstanding
// request with connection-closed.
func (p *Protocol) Close() error {
	p.onClose()
	if p.transport != nil {
 return p.transport.Close()
	}
	return nil
}

func (p *Protocol) onMessage(msg jsonrpc2.Message, extra *MessageExtra) {
	ctx := context.Background()
	for _, r := range p.pipeline.routers() {
 if r.ShouldRoute(msg) {
 if err := r.Route(ctx, msg, p); err != nil {
 p.ReportError(err)
 }
 return
 }
	}
	switch m := msg.(type) {
	case *jsonrpc2.Request:
 p.handleInboundRequest(ctx, m, extra)
	case *jsonrpc2.Notification:
 p.handleInboundNotification(ctx, m, extra)
	case *jsonrpc2.Response:
 p.handleInboundResponse(ctx, m)
	}
}

// RegisterResponseResolver installs a side-channel resolver for id,
// letting a routing plugin (the task subsystem) intercept the response to
// a request it redirected.
func (p *Protocol) RegisterResponseResolver(id jsonrpc2.ID, resolve func(*jsonrpc2.Response)) bool {
	req := newOutstandingRequest(id)
	p.outstanding.register(req)
	go func() {
 resp := <-req.resultC
 resolve(resp)
	}()
	return true
}

func (p *Protocol) RegisterHandler(method string, h HandlerFunc) { p.handlers.SetRequestHandler(method, h) }
func (p *Protocol) RemoveHandler(method string) { p.handlers.RemoveRequestHandler(method) }

var _ Host = (*Protocol)(nil)

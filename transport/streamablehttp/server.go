// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package streamablehttp implements the Streamable HTTP server and client
// transports: a single endpoint serving POST, GET and DELETE, session
// tracking via the Mcp-Session-Id header, and resumable SSE streams
// backed by an eventstore.Store. Grounded on mcp/streamable.go,
// generalized from its channel-based Connection model to the push-based
// protocol.Transport this module defines.
package streamablehttp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/mcpcore/protocol-go/eventstore"
	"github.com/mcpcore/protocol-go/internal/json"
	"github.com/mcpcore/protocol-go/internal/jsonrpc2"
	"github.com/mcpcore/protocol-go/internal/protocolgodebug"
	"github.com/mcpcore/protocol-go/internal/util"
	"github.com/mcpcore/protocol-go/metrics"
	"github.com/mcpcore/protocol-go/protocol"
	"github.com/mcpcore/protocol-go/sessionstore"
)

// standaloneStreamID names the logical stream a session's standalone GET
// request streams on, distinct from the per-POST-request streams that
// carry a single request's eventual response.
const standaloneStreamID = "_GET_stream"

// DefaultMaxBodyBytes bounds the size of a single POST body, guarding
// against unbounded memory growth from a malicious or buggy client
// (grounded on the mcp/http_limits.go).
const DefaultMaxBodyBytes int64 = 1_000_000

// DefaultSessionRateLimit bounds the number of HTTP requests a single
// session may issue per second, refilling in bursts of the same size.
const DefaultSessionRateLimit = 50

// ProtocolVersionHeader is the header a client pins its negotiated wire
// version to, checked on every POST (mcp/protocol.go's version history).
const ProtocolVersionHeader = "MCP-Protocol-Version"

// SessionIDHeader correlates every request after initialize with its
// session.
const SessionIDHeader = "Mcp-Session-Id"

// LatestProtocolVersion and PreviousProtocolVersion are the two wire
// versions this module understands out of the box.
const (
	LatestProtocolVersion = "2025-06-18"
	PreviousProtocolVersion = "2025-03-26"
)

// DefaultSupportedProtocolVersions is used when HandlerOptions leaves
// SupportedProtocolVersions unset.
var DefaultSupportedProtocolVersions = []string{LatestProtocolVersion, PreviousProtocolVersion}

// allowLegacyProtocolVersionKey is the PROTOCOLGODEBUG escape hatch that
// accepts an unrecognized MCP-Protocol-Version header instead of
// rejecting it, for operators running a mismatched client fleet during a
// staged rollout.
const allowLegacyProtocolVersionKey = "allowlegacyprotocolversion"

// DefaultEventIdleTTL is a value for HandlerOptions.EventIdleTTL matching
// sessionstore.DefaultTTL, so replay buffers don't outlive the sessions
// that own them. NewHandler does not apply it: a zero EventIdleTTL leaves
// idle expiry off.
const DefaultEventIdleTTL = sessionstore.DefaultTTL

// DefaultEventSweepInterval is how often the idle sweep runs.
const DefaultEventSweepInterval = 5 * time.Minute

// HandlerOptions configures a Handler, following the options-struct
// convention over functional options.
type HandlerOptions struct {
	// Sessions tracks session metadata (creation and last-activity time)
	// for TTL-based expiry. Defaults to an in-memory sessionstore.Memory.
	Sessions sessionstore.Store

	// Events backs SSE replay for every session's streams. Defaults to an
	// in-memory eventstore.Memory. If Events is non-nil, EventIdleTTL and
	// EventSweepInterval are ignored: the idle sweep only runs against the
	// default store, since it is the only one this
	// package can reach into for its concrete RunSweeper method.
	Events eventstore.Store

	// EventIdleTTL expires a stream's replay log after it has gone this
	// long without a store or replay, reclaiming memory held by
	// abandoned sessions. Zero disables idle expiry; only takes effect
	// when Events is left nil so the default eventstore.Memory is used.
	EventIdleTTL time.Duration

	// EventSweepInterval sets how often the idle sweep scans for expired
	// streams. Zero uses DefaultEventSweepInterval.
	EventSweepInterval time.Duration

	// MaxBodyBytes bounds POST request bodies. Zero uses
	// DefaultMaxBodyBytes; negative disables the limit.
	MaxBodyBytes int64

	// AllowedHosts, if non-empty, restricts accepted requests to those
	// whose Host header appears in the list or resolves to a loopback
	// address, guarding against DNS-rebinding attacks against a server
	// bound to localhost. Empty disables the guard.
	AllowedHosts []string

	// SessionRateLimit bounds requests per second per session. Zero uses
	// DefaultSessionRateLimit; negative disables rate limiting.
	SessionRateLimit int

	// SupportedProtocolVersions lists the MCP-Protocol-Version values this
	// handler accepts. Nil uses DefaultSupportedProtocolVersions.
	SupportedProtocolVersions []string

	// EnableJSONResponse switches POST responses from the default SSE
	// stream to a single buffered JSON body, flushed once every request
	// in the batch has answered.
	EnableJSONResponse bool

	// Metrics, if set, receives session and stream gauges.
	Metrics *metrics.Set
}

// Handler is an http.Handler serving one or more streamable MCP sessions
// over the StreamableHttpServerTransport wire protocol.
type Handler struct {
	newProtocol func(*http.Request) *protocol.Protocol
	opts HandlerOptions
	sweepStop func()

	mu sync.Mutex
	transports map[string]*ServerTransport
	limiters map[string]*rate.Limiter
}

// NewHandler returns a Handler that creates a fresh Protocol, via
// newProtocol, for each new session.
func NewHandler(newProtocol func(*http.Request) *protocol.Protocol, opts HandlerOptions) *Handler {
	if opts.Sessions == nil {
		opts.Sessions = sessionstore.NewMemory()
	}
	var sweepStop func()
	if opts.Events == nil {
		interval := opts.EventSweepInterval
		if interval <= 0 {
			interval = DefaultEventSweepInterval
		}
		mem := eventstore.NewMemoryWithTTL(eventstore.DefaultMaxEventsPerStream, opts.EventIdleTTL)
		opts.Events = mem
		if opts.EventIdleTTL > 0 {
			sweepStop = mem.RunSweeper(interval)
		}
	}
	if opts.MaxBodyBytes == 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	} else if opts.MaxBodyBytes < 0 {
		opts.MaxBodyBytes = 0
	}
	if opts.SessionRateLimit == 0 {
		opts.SessionRateLimit = DefaultSessionRateLimit
	}
	if len(opts.SupportedProtocolVersions) == 0 {
		opts.SupportedProtocolVersions = DefaultSupportedProtocolVersions
	}
	return &Handler{
		newProtocol: newProtocol,
		opts: opts,
		sweepStop: sweepStop,
		transports: make(map[string]*ServerTransport),
		limiters: make(map[string]*rate.Limiter),
	}
}

// CloseAll closes every tracked session's transport, for graceful server
// shutdown.
func (h *Handler) CloseAll() {
	h.mu.Lock()
	transports := h.transports
	h.transports = make(map[string]*ServerTransport)
	h.limiters = make(map[string]*rate.Limiter)
	h.mu.Unlock()
	for _, t := range transports {
		t.Close()
	}
	if h.sweepStop != nil {
		h.sweepStop()
	}
}

func (h *Handler) validateHost(req *http.Request) bool {
	if len(h.opts.AllowedHosts) == 0 {
		return true
	}
	if util.IsLoopback(req.Host) {
		return true
	}
	for _, allowed := range h.opts.AllowedHosts {
		if strings.EqualFold(allowed, req.Host) {
			return true
		}
	}
	return false
}

// checkProtocolVersion implements validation step 2: the header must name
// a supported version; a missing header defaults to the previous
// version. PROTOCOLGODEBUG=allowlegacyprotocolversion=1 accepts anything,
// for fleets that haven't finished a version rollout.
func (h *Handler) checkProtocolVersion(req *http.Request) bool {
	v := req.Header.Get(ProtocolVersionHeader)
	if v == "" {
		return true
	}
	for _, supported := range h.opts.SupportedProtocolVersions {
		if v == supported {
			return true
		}
	}
	return protocolgodebug.Value(allowLegacyProtocolVersionKey) == "1"
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if !h.validateHost(req) {
		http.Error(w, "host not allowed", http.StatusForbidden)
		return
	}

	if req.Method == http.MethodPost && !h.checkProtocolVersion(req) {
		http.Error(w, fmt.Sprintf("unsupported %s", ProtocolVersionHeader), http.StatusBadRequest)
		return
	}

	accept := strings.Split(strings.Join(req.Header.Values("Accept"), ","), ",")
	var jsonOK, streamOK bool
	for _, c := range accept {
		switch strings.TrimSpace(c) {
		case "application/json":
			jsonOK = true
		case "text/event-stream":
			streamOK = true
		}
	}
	if req.Method == http.MethodGet {
		if !streamOK {
			http.Error(w, "Accept must contain 'text/event-stream' for GET requests", http.StatusNotAcceptable)
			return
		}
	} else if req.Method == http.MethodPost && (!jsonOK || !streamOK) {
		http.Error(w, "Accept must contain both 'application/json' and 'text/event-stream'", http.StatusNotAcceptable)
		return
	}

	if req.Method == http.MethodPost {
		if ct := strings.TrimSpace(req.Header.Get("Content-Type")); !strings.HasPrefix(ct, "application/json") {
			http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
			return
		}
	}

	sessionHeaderID := req.Header.Get(SessionIDHeader)
	var transport *ServerTransport
	if sessionHeaderID != "" {
		h.mu.Lock()
		transport = h.transports[sessionHeaderID]
		limiter := h.limiters[sessionHeaderID]
		h.mu.Unlock()
		if transport == nil {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		if limiter != nil && !limiter.Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		_ = h.opts.Sessions.UpdateActivity(req.Context(), sessionHeaderID)
	}

	switch req.Method {
	case http.MethodDelete:
		if transport == nil {
			http.Error(w, "DELETE requires an Mcp-Session-Id header", http.StatusBadRequest)
			return
		}
		h.mu.Lock()
		delete(h.transports, transport.id)
		delete(h.limiters, transport.id)
		h.mu.Unlock()
		transport.Close()
		_ = h.opts.Sessions.DeleteSession(req.Context(), transport.id)
		if h.opts.Metrics != nil {
			h.opts.Metrics.ActiveSessions.Dec()
		}
		w.WriteHeader(http.StatusNoContent)
		return

	case http.MethodGet:
		if transport == nil {
			http.Error(w, "GET requires an established Mcp-Session-Id", http.StatusBadRequest)
			return
		}
		transport.serveGET(w, req)
		return

	case http.MethodPost:
		h.servePOST(w, req, transport, sessionHeaderID)
		return

	default:
		w.Header().Set("Allow", "GET, POST, DELETE")
		http.Error(w, "unsupported method", http.StatusMethodNotAllowed)
		return
	}
}

// servePOST implements the rest of the POST validation order (steps 5-8)
// once the header-level checks above have passed, then either mints a
// session off a batch's sole initialize request or dispatches against an
// existing one.
func (h *Handler) servePOST(w http.ResponseWriter, req *http.Request, transport *ServerTransport, sessionHeaderID string) {
	if req.Header.Get("Last-Event-ID") != "" {
		http.Error(w, "can't send Last-Event-ID for POST request", http.StatusBadRequest)
		return
	}
	if h.opts.MaxBodyBytes > 0 {
		req.Body = http.MaxBytesReader(w, req.Body, h.opts.MaxBodyBytes)
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		if isMaxBytesError(err) {
			writeRequestBodyTooLarge(w)
			return
		}
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	if len(body) == 0 {
		http.Error(w, "POST requires a non-empty body", http.StatusBadRequest)
		return
	}

	incoming, err := jsonrpc2.DecodeBatch(body)
	if err != nil {
		http.Error(w, fmt.Sprintf("malformed payload: %v", err), http.StatusBadRequest)
		return
	}

	initReq, err := extractInitializeRequest(incoming)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if sessionHeaderID != "" {
		for _, msg := range incoming {
			if sid, ok := embeddedSessionID(msg); ok && sid != sessionHeaderID {
				http.Error(w, "embedded sessionId does not match Mcp-Session-Id header", http.StatusBadRequest)
				return
			}
		}
	}

	if transport == nil {
		if initReq == nil {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		h.servePOSTNewSession(w, req, incoming, initReq)
		return
	}

	if initReq != nil {
		http.Error(w, "session already initialized", http.StatusBadRequest)
		return
	}

	transport.servePOST(w, req, incoming, nil, h.opts.EnableJSONResponse)
}

// servePOSTNewSession mints a session and invokes its initialize request
// synchronously (step 7): a failure tears the session back down and
// surfaces as a plain HTTP error before any response stream opens.
func (h *Handler) servePOSTNewSession(w http.ResponseWriter, req *http.Request, incoming []jsonrpc2.Message, initReq *jsonrpc2.Request) {
	id := uuid.NewString()
	transport := NewServerTransport(id, h.opts.Events, h.opts.Metrics)
	p := h.newProtocol(req)
	if err := p.Connect(req.Context(), transport); err != nil {
		http.Error(w, "failed connection", http.StatusInternalServerError)
		return
	}

	result, invokeErr := p.InvokeHandler(req.Context(), initReq)
	if invokeErr != nil {
		transport.Close()
		http.Error(w, fmt.Sprintf("initialize failed: %v", invokeErr), http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	h.transports[id] = transport
	if h.opts.SessionRateLimit > 0 {
		h.limiters[id] = rate.NewLimiter(rate.Limit(h.opts.SessionRateLimit), h.opts.SessionRateLimit)
	}
	h.mu.Unlock()
	_ = h.opts.Sessions.StoreSession(req.Context(), protocol.Session{ID: id, CreatedAt: time.Now(), LastActivity: time.Now()}, sessionstore.DefaultTTL)
	if h.opts.Metrics != nil {
		h.opts.Metrics.ActiveSessions.Inc()
	}

	pre := &preInvokedResponse{id: initReq.ID, result: result}
	transport.servePOST(w, req, incoming, pre, h.opts.EnableJSONResponse)
}

// extractInitializeRequest returns the batch's sole initialize request,
// nil if there isn't one, or an error if there's more than one (step 7).
func extractInitializeRequest(incoming []jsonrpc2.Message) (*jsonrpc2.Request, error) {
	var found *jsonrpc2.Request
	for _, msg := range incoming {
		req, ok := msg.(*jsonrpc2.Request)
		if !ok || req.Method != "initialize" {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("at most one initialize request is allowed per batch")
		}
		found = req
	}
	return found, nil
}

// embeddedSessionID reads the "sessionId" field a request or notification
// may carry in its params, for the header-mismatch check (step 6).
func embeddedSessionID(msg jsonrpc2.Message) (string, bool) {
	var params jsonrpc2.RawMessage
	switch m := msg.(type) {
	case *jsonrpc2.Request:
		params = m.Params
	case *jsonrpc2.Notification:
		params = m.Params
	default:
		return "", false
	}
	if len(params) == 0 {
		return "", false
	}
	var fields struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(params, &fields); err != nil || fields.SessionID == "" {
		return "", false
	}
	return fields.SessionID, true
}

// ServerTransport implements protocol.Transport for a single Streamable
// HTTP session. Unlike the channel-based Connection, inbound
// messages are pushed directly into the Protocol's onMessage callback as
// soon as an HTTP POST decodes them, matching this module's push-based
// Transport contract.
type ServerTransport struct {
	id string
	events eventstore.Store
	metrics *metrics.Set

	nextStreamSeq atomic.Int64

	onMessage func(jsonrpc2.Message, *protocol.MessageExtra)
	onClose func()
	onError func(error)

	mu sync.Mutex
	isDone bool
	done chan struct{}
	signals map[string]chan struct{}
	streamRequests map[string]map[string]struct{}
	requestStreams map[string]string
}

func NewServerTransport(sessionID string, events eventstore.Store, m *metrics.Set) *ServerTransport {
	return &ServerTransport{
		id: sessionID,
		events: events,
		metrics: m,
		done: make(chan struct{}),
		signals: make(map[string]chan struct{}),
		streamRequests: make(map[string]map[string]struct{}),
		requestStreams: make(map[string]string),
	}
}

func (t *ServerTransport) SessionID() string { return t.id }

func (t *ServerTransport) SetHandlers(onMessage func(jsonrpc2.Message, *protocol.MessageExtra), onClose func(), onError func(error)) {
	t.onMessage = onMessage
	t.onClose = onClose
	t.onError = onError
}

func (t *ServerTransport) Start(ctx context.Context) error { return nil }

func (t *ServerTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.isDone {
		t.isDone = true
		close(t.done)
		if t.onClose != nil {
			go t.onClose()
		}
	}
	return nil
}

// Send stores msg in the stream that owns opts.RelatedRequestID (or the
// standalone stream if unset) and wakes any HTTP request currently
// streaming that logical stream.
func (t *ServerTransport) Send(ctx context.Context, msg jsonrpc2.Message, opts *protocol.SendOptions) error {
	streamID := t.resolveStreamID(opts)
	if _, err := t.events.StoreEvent(streamID, msg); err != nil {
		return err
	}

	t.mu.Lock()
	if resp, ok := msg.(*jsonrpc2.Response); ok {
		if reqs, ok := t.streamRequests[streamID]; ok {
			delete(reqs, resp.ID.String())
			if len(reqs) == 0 {
				delete(t.streamRequests, streamID)
			}
		}
	}
	signal, ok := t.signals[streamID]
	t.mu.Unlock()
	if ok {
		select {
		case signal <- struct{}{}:
		default:
		}
	}
	return nil
}

func (t *ServerTransport) resolveStreamID(opts *protocol.SendOptions) string {
	if opts != nil && opts.RelatedRequestID.IsValid() {
		t.mu.Lock()
		sid, ok := t.requestStreams[opts.RelatedRequestID.String()]
		t.mu.Unlock()
		if ok {
			return sid
		}
	}
	return standaloneStreamID
}

func (t *ServerTransport) serveGET(w http.ResponseWriter, req *http.Request) {
	cursor := eventstore.StartCursor(standaloneStreamID)
	if lastID := req.Header.Get("Last-Event-ID"); lastID != "" {
		cursor = lastID
	}

	t.mu.Lock()
	if _, ok := t.signals[standaloneStreamID]; ok {
		t.mu.Unlock()
		http.Error(w, "standalone stream already open", http.StatusConflict)
		return
	}
	signal := make(chan struct{}, 1)
	t.signals[standaloneStreamID] = signal
	t.mu.Unlock()
	if t.metrics != nil {
		t.metrics.ActiveSSEStreams.Inc()
		defer t.metrics.ActiveSSEStreams.Dec()
	}
	defer func() {
		t.mu.Lock()
		delete(t.signals, standaloneStreamID)
		t.mu.Unlock()
	}()

	t.streamResponse(w, req, standaloneStreamID, cursor, signal, false)
}

// preInvokedResponse carries the already-computed outcome of a
// synchronously invoked initialize request past the normal onMessage
// dispatch, so it is delivered on the batch's stream instead of run
// through the handler a second time.
type preInvokedResponse struct {
	id jsonrpc2.ID
	result jsonrpc2.RawMessage
}

// servePOST dispatches a decoded batch on streamID, optionally delivering
// pre's precomputed response for the batch's initialize request (if any)
// without invoking it a second time through onMessage, then either
// streams SSE (default) or, with enableJSON, buffers and flushes a single
// JSON body once every request in the batch has answered.
func (t *ServerTransport) servePOST(w http.ResponseWriter, req *http.Request, incoming []jsonrpc2.Message, pre *preInvokedResponse, enableJSON bool) {
	streamID := fmt.Sprintf("post_%d", t.nextStreamSeq.Add(1))
	outstanding := make(map[string]struct{})
	for _, msg := range incoming {
		if r, ok := msg.(*jsonrpc2.Request); ok && r.ID.IsValid() {
			outstanding[r.ID.String()] = struct{}{}
		}
	}
	// Captured before dispatch: a synchronous handler may answer (and so
	// drain the aliased t.streamRequests[streamID] map below) before this
	// function ever checks outstanding again, so the 202-vs-stream
	// decision must not be made by re-inspecting that same map.
	hadOutstanding := len(outstanding) > 0

	signal := make(chan struct{}, 1)
	t.mu.Lock()
	if len(outstanding) > 0 {
		t.streamRequests[streamID] = outstanding
		for reqID := range outstanding {
			t.requestStreams[reqID] = streamID
		}
	}
	t.signals[streamID] = signal
	t.mu.Unlock()
	if t.metrics != nil {
		t.metrics.ActiveSSEStreams.Inc()
		defer t.metrics.ActiveSSEStreams.Dec()
	}

	extra := &protocol.MessageExtra{SessionID: t.id}
	if scheme, token, ok := strings.Cut(req.Header.Get("Authorization"), " "); ok && strings.EqualFold(scheme, "Bearer") {
		extra.Auth = token
	}
	for _, msg := range incoming {
		if pre != nil {
			if r, ok := msg.(*jsonrpc2.Request); ok && r.ID.String() == pre.id.String() {
				_ = t.Send(req.Context(), jsonrpc2.NewResultResponse(pre.id, pre.result), &protocol.SendOptions{RelatedRequestID: pre.id})
				continue
			}
		}
		if t.onMessage != nil {
			t.onMessage(msg, extra)
		}
	}

	defer func() {
		t.mu.Lock()
		delete(t.signals, streamID)
		t.mu.Unlock()
	}()

	if !hadOutstanding {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if enableJSON {
		t.collectAndWriteJSON(w, req, streamID, signal)
		return
	}

	t.streamResponse(w, req, streamID, eventstore.StartCursor(streamID), signal, true)
}

// collectAndWriteJSON implements JSON response mode: it drains the
// stream's replay log until every outstanding request has answered, then
// writes the collected responses as a single JSON body (jsonrpc2.EncodeBatch
// already renders a lone response as a bare object rather than a
// one-element array).
func (t *ServerTransport) collectAndWriteJSON(w http.ResponseWriter, req *http.Request, streamID string, signal chan struct{}) {
	cursor := eventstore.StartCursor(streamID)
	var collected []jsonrpc2.Message
	drain := func() error {
		_, err := t.events.ReplayAfter(cursor, func(ev eventstore.StoredEvent) error {
			if resp, ok := ev.Message.(*jsonrpc2.Response); ok {
				collected = append(collected, resp)
			}
			cursor = ev.EventID
			return nil
		})
		return err
	}

	if err := drain(); err != nil {
		http.Error(w, "replay failure", http.StatusInternalServerError)
		return
	}

	for {
		t.mu.Lock()
		nOutstanding := len(t.streamRequests[streamID])
		t.mu.Unlock()
		if nOutstanding == 0 {
			break
		}
		select {
		case <-signal:
			if err := drain(); err != nil {
				http.Error(w, "replay failure", http.StatusInternalServerError)
				return
			}
		case <-t.done:
			http.Error(w, "session terminated", http.StatusGone)
			return
		case <-req.Context().Done():
			return
		}
	}

	data, err := jsonrpc2.EncodeBatch(collected)
	if err != nil {
		http.Error(w, "encode failure", http.StatusInternalServerError)
		return
	}
	w.Header().Set(SessionIDHeader, t.id)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (t *ServerTransport) streamResponse(w http.ResponseWriter, req *http.Request, streamID, cursor string, signal chan struct{}, isPost bool) {
	w.Header().Set(SessionIDHeader, t.id)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")

	writes := 0
	flush := func() error {
		_, err := t.events.ReplayAfter(cursor, func(ev eventstore.StoredEvent) error {
			data, err := jsonrpc2.EncodeBatch([]jsonrpc2.Message{ev.Message})
			if err != nil {
				return err
			}
			if _, err := writeEvent(w, sseEvent{id: ev.EventID, name: "message", data: data}); err != nil {
				return err
			}
			cursor = ev.EventID
			writes++
			return nil
		})
		return err
	}

	if err := flush(); err != nil {
		return
	}

	for {
		t.mu.Lock()
		nOutstanding := len(t.streamRequests[streamID])
		t.mu.Unlock()

		if isPost && nOutstanding == 0 {
			return
		}

		select {
		case <-signal:
			if err := flush(); err != nil {
				return
			}
		case <-t.done:
			if writes == 0 {
				http.Error(w, "session terminated", http.StatusGone)
			}
			return
		case <-req.Context().Done():
			return
		}
	}
}

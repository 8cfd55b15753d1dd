// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package streamablehttp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/r3labs/sse/v2"

	"github.com/mcpcore/protocol-go/internal/jsonrpc2"
	"github.com/mcpcore/protocol-go/protocol"
)

// ClientTransportOptions configures a ClientTransport.
type ClientTransportOptions struct {
	// HTTPClient issues POST and DELETE requests. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client

	// MaxSendRetries bounds retries of a single POST send on a retryable
	// HTTP status or network error.
	MaxSendRetries uint64

	// InitialBackoff seeds the exponential backoff used for both POST
	// retries and SSE stream reconnection.
	InitialBackoff time.Duration

	// Reinitialize re-runs the initialize handshake on the Protocol bound
	// to this transport. Send calls it, once, before replaying a
	// non-initialize request that came back 404 for an unknown session;
	// without a fresh initialize the replay would just 404 again.
	Reinitialize func(ctx context.Context) error
}

// ClientTransport is the StreamableHttpClientTransport: it posts outbound
// messages to url and maintains a standalone SSE stream for
// server-initiated messages, recovering once from a 404 by
// re-establishing a fresh session.
type ClientTransport struct {
	url string
	httpClient *http.Client
	opts ClientTransportOptions

	sessionID atomic.Value // string

	onMessage func(jsonrpc2.Message, *protocol.MessageExtra)
	onClose func()
	onError func(error)

	sessionReady chan struct{}
	readyOnce sync.Once

	mu sync.Mutex
	lastEventID string
	sseClient *sse.Client
	recovered bool

	done chan struct{}
	closeOnce sync.Once
}

func NewClientTransport(url string, opts *ClientTransportOptions) *ClientTransport {
	t := &ClientTransport{
 url: url,
 sessionReady: make(chan struct{}),
 done: make(chan struct{}),
	}
	if opts != nil {
 t.opts = *opts
	}
	if t.opts.HTTPClient != nil {
 t.httpClient = t.opts.HTTPClient
	} else {
 t.httpClient = http.DefaultClient
	}
	if t.opts.InitialBackoff <= 0 {
 t.opts.InitialBackoff = time.Second
	}
	t.sessionID.Store("")
	return t
}

func (t *ClientTransport) SessionID() string { return t.sessionID.Load().(string) }

func (t *ClientTransport) SetHandlers(onMessage func(jsonrpc2.Message, *protocol.MessageExtra), onClose func(), onError func(error)) {
	t.onMessage = onMessage
	t.onClose = onClose
	t.onError = onError
}

func (t *ClientTransport) Start(ctx context.Context) error {
	go t.runStream(ctx)
	return nil
}

func (t *ClientTransport) markSessionReady() {
	t.readyOnce.Do(func() { close(t.sessionReady) })
}

// runStream waits for the first POST to establish a session, then
// maintains the standalone SSE stream using the sse/v2 client's built-in
// reconnect loop, seeded with our own exponential backoff so it matches
// the POST retry policy.
func (t *ClientTransport) runStream(ctx context.Context) {
	select {
	case <-t.sessionReady:
	case <-t.done:
 return
	case <-ctx.Done():
 return
	}

	client := sse.NewClient(t.url)
	client.Headers["Accept"] = "text/event-stream"
	boff := backoff.NewExponentialBackOff()
	boff.InitialInterval = t.opts.InitialBackoff
	boff.MaxInterval = 30 * time.Second
	client.ReconnectStrategy = boff

	t.mu.Lock()
	t.sseClient = client
	t.mu.Unlock()

	for {
 select {
 case <-t.done:
 return
 case <-ctx.Done():
 return
 default:
 }

 client.Headers["Mcp-Session-Id"] = t.SessionID()
 t.mu.Lock()
 if t.lastEventID != "" {
 client.Headers["Last-Event-ID"] = t.lastEventID
 }
 t.mu.Unlock()

 err := client.SubscribeRawWithContext(ctx, func(ev *sse.Event) {
 if len(ev.ID) > 0 {
 t.mu.Lock()
 t.lastEventID = string(ev.ID)
 t.mu.Unlock()
 }
 if len(ev.Data) == 0 {
 return
 }
 msg, decodeErr := jsonrpc2.DecodeMessage(ev.Data)
 if decodeErr != nil {
 if t.onError != nil {
 t.onError(fmt.Errorf("streamablehttp client: decode event: %w", decodeErr))
 }
 return
 }
 if t.onMessage != nil {
 t.onMessage(msg, &protocol.MessageExtra{SessionID: t.SessionID()})
 }
 })
 if err != nil && t.onError != nil {
 t.onError(fmt.Errorf("streamablehttp client: SSE stream: %w", err))
 }

 select {
 case <-t.done:
 return
 case <-ctx.Done():
 return
 default:
 }
	}
}

// isInitializeMessage reports whether msg is the initialize request
// itself, which must never trigger recovery: there is no prior session
// to recover from, and Reinitialize would just send another one.
func isInitializeMessage(msg jsonrpc2.Message) bool {
	req, ok := msg.(*jsonrpc2.Request)
	return ok && req.Method == "initialize"
}

// Send posts msg to the server, recovering once from a 404 (unknown
// session) by discarding the session id, re-running initialize, and
// only then retrying the original request.
func (t *ClientTransport) Send(ctx context.Context, msg jsonrpc2.Message, opts *protocol.SendOptions) error {
	data, err := jsonrpc2.EncodeBatch([]jsonrpc2.Message{msg})
	if err != nil {
 return err
	}

	status, respBody, respHeaders, err := t.postOnce(ctx, data)
	if err == nil && status == http.StatusNotFound && !isInitializeMessage(msg) {
 t.mu.Lock()
 alreadyRecovered := t.recovered
 t.recovered = true
 t.mu.Unlock()
 if !alreadyRecovered {
 t.sessionID.Store("")
 if t.opts.Reinitialize != nil {
 if reinitErr := t.opts.Reinitialize(ctx); reinitErr != nil {
 return fmt.Errorf("streamablehttp client: reinitialize after session loss: %w", reinitErr)
 }
 }
 status, respBody, respHeaders, err = t.postOnce(ctx, data)
 }
	}
	if err != nil {
 return err
	}
	if status < 200 || status >= 300 {
 return fmt.Errorf("streamablehttp client: POST returned status %d: %s", status, strings.TrimSpace(string(respBody)))
	}

	if sid := respHeaders.Get("Mcp-Session-Id"); sid != "" && t.SessionID() == "" {
 t.sessionID.Store(sid)
 t.markSessionReady()
	}

	if len(respBody) == 0 {
 return nil
	}

	// The server streams a request's response as SSE on its own per-POST
	// stream (not the standalone GET stream), so the client must parse it
	// out of the buffered body here rather than rely on its SSE
	// subscription ever seeing it.
	if strings.HasPrefix(respHeaders.Get("Content-Type"), "text/event-stream") {
 for _, ev := range parseSSEBody(respBody) {
 if len(ev.data) == 0 {
 continue
 }
 msg, decodeErr := jsonrpc2.DecodeMessage(ev.data)
 if decodeErr != nil {
 if t.onError != nil {
 t.onError(fmt.Errorf("streamablehttp client: decode POST response event: %w", decodeErr))
 }
 continue
 }
 if t.onMessage != nil {
 t.onMessage(msg, &protocol.MessageExtra{SessionID: t.SessionID()})
 }
 }
 return nil
	}

	if inline, decodeErr := jsonrpc2.DecodeBatch(respBody); decodeErr == nil && t.onMessage != nil {
 for _, m := range inline {
 t.onMessage(m, &protocol.MessageExtra{SessionID: t.SessionID()})
 }
	}
	return nil
}

func (t *ClientTransport) postOnce(ctx context.Context, data []byte) (status int, body []byte, headers http.Header, err error) {
	op := func() error {
 req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(data))
 if reqErr != nil {
 return backoff.Permanent(reqErr)
 }
 if sid := t.SessionID(); sid != "" {
 req.Header.Set("Mcp-Session-Id", sid)
 }
 req.Header.Set("Content-Type", "application/json")
 req.Header.Set("Accept", "application/json, text/event-stream")

 resp, doErr := t.httpClient.Do(req)
 if doErr != nil {
 return doErr
 }
 defer resp.Body.Close()
 b, readErr := io.ReadAll(resp.Body)
 if readErr != nil {
 return readErr
 }
 status, body, headers = resp.StatusCode, b, resp.Header
 if status == http.StatusNotFound {
 return nil // caller handles 404 recovery, not retryable here.
 }
 if isRetryableStatus(status) {
 return fmt.Errorf("streamablehttp client: retryable status %d", status)
 }
 return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = t.opts.InitialBackoff
	boff := backoff.WithMaxRetries(eb, t.opts.MaxSendRetries)
	err = backoff.Retry(op, backoff.WithContext(boff, ctx))
	return status, body, headers, err
}

func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests,
 http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
 return true
	default:
 return false
	}
}

func (t *ClientTransport) Close() error {
	t.closeOnce.Do(func() {
 close(t.done)
 sid := t.SessionID()
 if sid != "" {
 req, err := http.NewRequest(http.MethodDelete, t.url, nil)
 if err == nil {
 req.Header.Set("Mcp-Session-Id", sid)
 resp, doErr := t.httpClient.Do(req)
 if doErr == nil {
 resp.Body.Close()
 }
 }
 }
 if t.onClose != nil {
 t.onClose()
 }
	})
	return nil
}

var _ protocol.Transport = (*ClientTransport)(nil)

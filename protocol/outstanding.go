// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package protocol

import (
	"sync"

	"github.com/mcpcore/protocol-go/internal/jsonrpc2"
)

// outstandingRequest is the per-outbound-request bookkeeping: an id, a
// response resolver, and (implicitly, via the TimeoutManager/
// ProgressManager keyed by the same id string) a timeout descriptor and
// progress subscriber. complete must resolve exactly once; any further
// call is a no-op.
type outstandingRequest struct {
	id jsonrpc2.ID
	progressToken string

	once sync.Once
	resultC chan *jsonrpc2.Response
}

func newOutstandingRequest(id jsonrpc2.ID) *outstandingRequest {
	return &outstandingRequest{id: id, resultC: make(chan *jsonrpc2.Response, 1)}
}

// complete delivers resp exactly once; later calls are no-ops.
func (o *outstandingRequest) complete(resp *jsonrpc2.Response) {
	o.once.Do(func() {
 o.resultC <- resp
	})
}

// outstandingTable is the table mutated only by Protocol itself. Grounded
// on gate4ai's RequestManager (shared/requestManager.go), generalized
// from a callback-only shape to the richer outstandingRequest above.
type outstandingTable struct {
	mu sync.Mutex
	byID map[string]*outstandingRequest
}

func newOutstandingTable() *outstandingTable {
	return &outstandingTable{byID: make(map[string]*outstandingRequest)}
}

func (t *outstandingTable) register(req *outstandingRequest) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byID[req.id.String()] = req
}

func (t *outstandingTable) take(id jsonrpc2.ID) (*outstandingRequest, bool) {
	key := id.String()
	t.mu.Lock()
	defer t.mu.Unlock()
	req, ok := t.byID[key]
	if ok {
 delete(t.byID, key)
	}
	return req, ok
}

func (t *outstandingTable) peek(id jsonrpc2.ID) (*outstandingRequest, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	req, ok := t.byID[id.String()]
	return req, ok
}

// drain removes and returns every outstanding request, used on connection
// close to reject everything with connection-closed.
func (t *outstandingTable) drain() []*outstandingRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*outstandingRequest, 0, len(t.byID))
	for _, req := range t.byID {
 out = append(out, req)
	}
	t.byID = make(map[string]*outstandingRequest)
	return out
}

// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package streamablehttp

import (
	"bytes"
	"fmt"
	"net/http"
)

type sseEvent struct {
	id string
	name string
	data []byte
}

// writeEvent renders ev in the standard SSE wire format and flushes it,
// the same shape as the mcp/sse.go writeEvent.
func writeEvent(w http.ResponseWriter, ev sseEvent) (int, error) {
	var buf bytes.Buffer
	if ev.id != "" {
 fmt.Fprintf(&buf, "id: %s\n", ev.id)
	}
	if ev.name != "" {
 fmt.Fprintf(&buf, "event: %s\n", ev.name)
	}
	for _, line := range bytes.Split(ev.data, []byte("\n")) {
 buf.WriteString("data: ")
 buf.Write(line)
 buf.WriteByte('\n')
	}
	buf.WriteString("\n")
	n, err := w.Write(buf.Bytes())
	if f, ok := w.(http.Flusher); ok {
 f.Flush()
	}
	return n, err
}

// parseSSEBody splits a fully-buffered SSE response body into its
// constituent events. Used by ClientTransport.Send to read the events a
// POST response streams back, since those arrive on a per-request stream
// the client's standalone GET subscription never sees.
func parseSSEBody(body []byte) []sseEvent {
	var events []sseEvent
	var cur sseEvent
	var dataLines [][]byte
	flush := func() {
 if len(dataLines) > 0 {
 cur.data = bytes.Join(dataLines, []byte("\n"))
 events = append(events, cur)
 }
 cur = sseEvent{}
 dataLines = nil
	}
	for _, line := range bytes.Split(body, []byte("\n")) {
 line = bytes.TrimRight(line, []byte("\r"))
 switch {
 case len(line) == 0:
 flush()
 case bytes.HasPrefix(line, []byte("id: ")):
 cur.id = string(line[len("id: "):])
 case bytes.HasPrefix(line, []byte("event: ")):
 cur.name = string(line[len("event: "):])
 case bytes.HasPrefix(line, []byte("data: ")):
 dataLines = append(dataLines, line[len("data: "):])
 }
	}
	flush()
	return events
}

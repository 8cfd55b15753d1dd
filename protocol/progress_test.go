// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package protocol

import "testing"

func TestProgressManagerDispatch(t *testing.T) {
	pm := NewProgressManager()

	var got ProgressNotification
	pm.Subscribe("tok", func(n ProgressNotification) { got = n })

	if delivered := pm.Dispatch(ProgressNotification{ProgressToken: "tok", Progress: 0.5}); !delivered {
		t.Fatal("want delivered")
	}
	if got.ProgressToken != "tok" || got.Progress != 0.5 {
		t.Errorf("got %+v", got)
	}
}

func TestProgressManagerUndeliveredIsObservable(t *testing.T) {
	// Invariant 6: a progress notification for an unknown token must
	// produce an observable delivery failure, never be silently dropped.
	pm := NewProgressManager()
	if delivered := pm.Dispatch(ProgressNotification{ProgressToken: "missing"}); delivered {
		t.Fatal("want not delivered")
	}
}

func TestProgressManagerUnsubscribe(t *testing.T) {
	pm := NewProgressManager()
	pm.Subscribe("tok", func(ProgressNotification) {})
	pm.Unsubscribe("tok")
	if delivered := pm.Dispatch(ProgressNotification{ProgressToken: "tok"}); delivered {
		t.Fatal("want not delivered after unsubscribe")
	}
}

// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package protocol

import (
	"testing"
	"time"
)

func TestTimeoutManagerFires(t *testing.T) {
	tm := NewTimeoutManager()
	fired := make(chan struct{})
	tm.Start("id", TimeoutDescriptor{
		Timeout: 10 * time.Millisecond,
		OnFire:  func() { close(fired) },
	})

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timeout never fired")
	}
}

func TestTimeoutManagerResetSoftDelaysFire(t *testing.T) {
	tm := NewTimeoutManager()
	fired := make(chan struct{})
	tm.Start("id", TimeoutDescriptor{
		Timeout:         40 * time.Millisecond,
		ResetOnProgress: true,
		OnFire:          func() { close(fired) },
	})

	time.Sleep(20 * time.Millisecond)
	tm.ResetSoft("id")

	select {
	case <-fired:
		t.Fatal("fired before the reset soft deadline elapsed")
	case <-time.After(20 * time.Millisecond):
	}
	tm.Stop("id")
}

func TestTimeoutManagerStopPreventsFire(t *testing.T) {
	tm := NewTimeoutManager()
	fired := make(chan struct{})
	tm.Start("id", TimeoutDescriptor{
		Timeout: 20 * time.Millisecond,
		OnFire:  func() { close(fired) },
	})
	tm.Stop("id")

	select {
	case <-fired:
		t.Fatal("fired after Stop")
	case <-time.After(40 * time.Millisecond):
	}
}

// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package protocol

import "sort"

// registeredPlugin pairs a plugin with its install-time priority. Lower
// priority values run first, ordered by an integer priority at install
// time.
type registeredPlugin struct {
	plugin Plugin
	priority int
}

// Pipeline holds the install-ordered plugin list and provides one
// iteration method per hook kind. Message routing via predicate plugins
// is first-match interception under the pipeline's total order;
// Protocol.onMessage implements exactly that for inbound messages.
type Pipeline struct {
	plugins []registeredPlugin
}

func (p *Pipeline) Add(priority int, plugin Plugin) {
	p.plugins = append(p.plugins, registeredPlugin{plugin, priority})
	sort.SliceStable(p.plugins, func(i, j int) bool {
 return p.plugins[i].priority < p.plugins[j].priority
	})
}

func (p *Pipeline) ordered() []Plugin {
	out := make([]Plugin, len(p.plugins))
	for i, rp := range p.plugins {
 out[i] = rp.plugin
	}
	return out
}

// Lookup performs a typed lookup in place of a runtime-class-based
// getPlugin<T>: it returns the first installed plugin assignable to T.
func Lookup[T any](p *Pipeline) (T, bool) {
	var zero T
	for _, rp := range p.plugins {
 if t, ok := rp.plugin.(T); ok {
 return t, true
 }
	}
	return zero, false
}

func (p *Pipeline) routers() []Router {
	var out []Router
	for _, pl := range p.ordered() {
 if r, ok := pl.(Router); ok {
 out = append(out, r)
 }
	}
	return out
}

func (p *Pipeline) installers() []Installer {
	var out []Installer
	for _, pl := range p.ordered() {
 if i, ok := pl.(Installer); ok {
 out = append(out, i)
 }
	}
	return out
}

func (p *Pipeline) connectObservers() []ConnectObserver {
	var out []ConnectObserver
	for _, pl := range p.ordered() {
 if c, ok := pl.(ConnectObserver); ok {
 out = append(out, c)
 }
	}
	return out
}

func (p *Pipeline) closeObservers() []CloseObserver {
	var out []CloseObserver
	for _, pl := range p.ordered() {
 if c, ok := pl.(CloseObserver); ok {
 out = append(out, c)
 }
	}
	return out
}

func (p *Pipeline) requestInterceptors() []RequestInterceptor {
	var out []RequestInterceptor
	for _, pl := range p.ordered() {
 if r, ok := pl.(RequestInterceptor); ok {
 out = append(out, r)
 }
	}
	return out
}

func (p *Pipeline) requestResultObservers() []RequestResultObserver {
	var out []RequestResultObserver
	for _, pl := range p.ordered() {
 if r, ok := pl.(RequestResultObserver); ok {
 out = append(out, r)
 }
	}
	return out
}

func (p *Pipeline) requestErrorObservers() []RequestErrorObserver {
	var out []RequestErrorObserver
	for _, pl := range p.ordered() {
 if r, ok := pl.(RequestErrorObserver); ok {
 out = append(out, r)
 }
	}
	return out
}

func (p *Pipeline) notificationObservers() []NotificationObserver {
	var out []NotificationObserver
	for _, pl := range p.ordered() {
 if n, ok := pl.(NotificationObserver); ok {
 out = append(out, n)
 }
	}
	return out
}

func (p *Pipeline) outboundRequestInterceptors() []OutboundRequestInterceptor {
	var out []OutboundRequestInterceptor
	for _, pl := range p.ordered() {
 if o, ok := pl.(OutboundRequestInterceptor); ok {
 out = append(out, o)
 }
	}
	return out
}

func (p *Pipeline) outboundNotificationInterceptors() []OutboundNotificationInterceptor {
	var out []OutboundNotificationInterceptor
	for _, pl := range p.ordered() {
 if o, ok := pl.(OutboundNotificationInterceptor); ok {
 out = append(out, o)
 }
	}
	return out
}

func (p *Pipeline) handlerContextBuilders() []HandlerContextBuilder {
	var out []HandlerContextBuilder
	for _, pl := range p.ordered() {
 if h, ok := pl.(HandlerContextBuilder); ok {
 out = append(out, h)
 }
	}
	return out
}

func (p *Pipeline) responseObservers() []ResponseObserver {
	var out []ResponseObserver
	for _, pl := range p.ordered() {
 if r, ok := pl.(ResponseObserver); ok {
 out = append(out, r)
 }
	}
	return out
}

// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package auth attaches an opaque authentication record to inbound
// handler contexts. The core itself never performs multi-tenant auth
// logic; a plugin here validates a bearer JWT carried by the transport,
// or accepts an OAuth token set by the embedding host, and exposes the
// result to handlers via the request context.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mcpcore/protocol-go/internal/jsonrpc2"
	"github.com/mcpcore/protocol-go/protocol"
	"golang.org/x/oauth2"
)

// ErrUnauthorized is a sentinel for a failed bearer-token check. BearerPlugin
// itself never returns it: a token that fails verification only leaves the
// handler context without a Record.
var ErrUnauthorized = errors.New("auth: unauthorized")

// Claims is the parsed JWT payload attached to a Record.
type Claims = jwt.MapClaims

// Record is the opaque authentication record the core passes through
// MessageExtra.Auth without interpreting. Handlers downstream call
// RecordFromContext to read it.
type Record struct {
	// Token is the raw bearer token, preserved for handlers that need to
	// forward it to an upstream service.
	Token string

	// Claims holds the verified JWT claims, nil if the transport supplied
	// an oauth2.Token instead of a bearer JWT.
	Claims Claims

	// OAuthToken holds the opaque *oauth2.Token set by an embedding host
	// that authenticates via OAuth, nil otherwise.
	OAuthToken *oauth2.Token
}

type ctxKey struct{}

func withRecord(ctx context.Context, r *Record) context.Context {
	return context.WithValue(ctx, ctxKey{}, r)
}

// RecordFromContext returns the authentication record attached to ctx by
// BearerPlugin.OnBuildHandlerContext, if any.
func RecordFromContext(ctx context.Context) (*Record, bool) {
	r, ok := ctx.Value(ctxKey{}).(*Record)
	return r, ok
}

// KeyFunc resolves the signing key for a token, the same shape
// golang-jwt/jwt/v5 expects for jwt.Parse.
type KeyFunc = jwt.Keyfunc

// BearerPlugin is a protocol.HandlerContextBuilder that parses the bearer
// JWT carried in a request's MessageExtra.Auth (set by the transport —
// see transport/streamablehttp, which copies the token of a POST's
// "Authorization: Bearer" header into it) and, on success, attaches a Record to the handler context.
// Installed at a low priority so its claims are available to every
// later-installed plugin's own hooks.
type BearerPlugin struct {
	keyFunc KeyFunc
	parser  *jwt.Parser
}

func NewBearerPlugin(keyFunc KeyFunc) *BearerPlugin {
	return &BearerPlugin{keyFunc: keyFunc, parser: jwt.NewParser()}
}

func (p *BearerPlugin) Name() string { return "auth.bearer" }

// OnBuildHandlerContext implements protocol.HandlerContextBuilder. It
// never rejects a request on its own: a missing or invalid token simply
// means RecordFromContext finds nothing, leaving the authorization
// decision to the handler or a later plugin, matching the core's
// non-goal of performing auth logic itself.
func (p *BearerPlugin) OnBuildHandlerContext(ctx context.Context, req *jsonrpc2.Request) context.Context {
	extra, ok := protocol.MessageExtraFromContext(ctx)
	if !ok {
		return ctx
	}

	switch v := extra.Auth.(type) {
	case *oauth2.Token:
		return withRecord(ctx, &Record{OAuthToken: v})
	case string:
		record, err := p.parseBearer(v)
		if err != nil {
			return ctx
		}
		return withRecord(ctx, record)
	default:
		return ctx
	}
}

func (p *BearerPlugin) parseBearer(token string) (*Record, error) {
	if token == "" {
		return nil, fmt.Errorf("auth: empty token")
	}
	claims := Claims{}
	_, err := p.parser.ParseWithClaims(token, claims, p.keyFunc)
	if err != nil {
		return nil, err
	}
	return &Record{Token: token, Claims: claims}, nil
}

var _ protocol.HandlerContextBuilder = (*BearerPlugin)(nil)

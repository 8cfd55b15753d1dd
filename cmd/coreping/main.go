// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Command coreping is a minimal exerciser for the protocol engine: run it
// with no flags to serve pings over stdin/stdout, with -http to serve
// them over Streamable HTTP, or with -client to dial a running server and
// time a round trip.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mcpcore/protocol-go/internal/jsonrpc2"
	"github.com/mcpcore/protocol-go/metrics"
	"github.com/mcpcore/protocol-go/protocol"
	"github.com/mcpcore/protocol-go/transport/stdio"
	"github.com/mcpcore/protocol-go/transport/streamablehttp"
)

var (
	httpAddr = flag.String("http", "", "if set, serve Streamable HTTP at this address instead of stdin/stdout")
	client   = flag.String("client", "", "if set, dial this Streamable HTTP URL and send one ping instead of serving")
)

func main() {
	flag.Parse()
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *client != "" {
		if err := runClient(logger, *client); err != nil {
			logger.Fatal("client failed", zap.Error(err))
		}
		return
	}

	if *httpAddr != "" {
		runHTTPServer(logger, *httpAddr)
		return
	}

	runStdioServer(logger)
}

func newProtocol(logger *zap.Logger, m *metrics.Set) *protocol.Protocol {
	p := protocol.New(protocol.Options{
		Logger:  logger,
		Metrics: m,
	})
	p.Handlers().SetRequestHandler("initialize", func(context.Context, *jsonrpc2.Request) (jsonrpc2.RawMessage, error) {
		return jsonrpc2.RawMessage(`{}`), nil
	})
	return p
}

func runStdioServer(logger *zap.Logger) {
	reg := prometheus.NewRegistry()
	p := newProtocol(logger, metrics.New(reg))
	t := stdio.New(os.Stdin, os.Stdout)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := p.Connect(ctx, t); err != nil {
		logger.Fatal("connect failed", zap.Error(err))
	}
	<-ctx.Done()
	p.Close()
}

func runHTTPServer(logger *zap.Logger, addr string) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	handler := streamablehttp.NewHandler(func(*http.Request) *protocol.Protocol {
		return newProtocol(logger, m)
	}, streamablehttp.HandlerOptions{Metrics: m})

	mux := http.NewServeMux()
	mux.Handle("/mcp", handler)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	logger.Info("coreping listening", zap.String("addr", addr))
	server := &http.Server{Addr: addr, Handler: mux}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	go func() {
		<-ctx.Done()
		handler.CloseAll()
		server.Close()
	}()
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func runClient(logger *zap.Logger, url string) error {
	p := newProtocol(logger, nil)
	t := streamablehttp.NewClientTransport(url, &streamablehttp.ClientTransportOptions{
		Reinitialize: func(ctx context.Context) error {
			_, err := p.SendRequest(ctx, "initialize", jsonrpc2.RawMessage(`{}`), nil)
			return err
		},
	})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.Connect(ctx, t); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer p.Close()

	if _, err := p.SendRequest(ctx, "initialize", jsonrpc2.RawMessage(`{}`), nil); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	start := time.Now()
	if _, err := p.SendRequest(ctx, "ping", jsonrpc2.RawMessage(`{}`), nil); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	logger.Info("ping succeeded", zap.Duration("latency", time.Since(start)))
	return nil
}

// Package driftkv provides a single-threaded in-memory key/value server with
// bounded worst-case latency, plus a client SDK for talking to a cluster of
// such servers.
//
// DriftKV keeps tail latency flat through two design choices: the server is
// one event loop over edge-triggered epoll with no locks on the data path,
// and the hash table rehashes incrementally so no single operation ever pays
// for moving the whole table.
//
// # Architecture Overview
//
// DriftKV consists of several key components:
//
//   - Server: epoll-based reactor owning every connection and the store
//   - Store: hash map with two tables and incremental migration
//   - Protocol: length-prefixed binary protocol over TCP
//   - Client SDK: consistent hashing, connection pooling, retries
//   - Configuration: flags and environment variables
//
// # Quick Start
//
// Server:
//
//	import "github.com/driftkv/driftkv/internal/server"
//	import "github.com/driftkv/driftkv/pkg/config"
//
//	cfg := config.LoadServerConfig()
//	srv := server.New(cfg, slog.Default())
//	log.Fatal(srv.Start())
//
// Client:
//
//	import "github.com/driftkv/driftkv/pkg/client"
//
//	c := client.New([]string{"localhost:3333"})
//	defer c.Close()
//
//	c.Set("user:123", "john_doe")
//	value, err := c.Get("user:123")
//	deleted, err := c.Del("user:123")
//
// # Supported Operations
//
//   - get <key>: return the stored value
//   - set <key> <value>: store or overwrite a value
//   - del <key>: remove a key
//
// # Concurrency Model
//
// The server runs all I/O and all store operations on a single goroutine.
// Clients are free to pipeline requests; responses come back in request
// order. The client SDK is safe for concurrent use and multiplexes load
// over pooled connections.
//
// # Configuration
//
// Server configuration via flags or environment variables:
//
//	./driftkv-server -port 3333 -max-conns 1000
//	# or
//	DRIFTKV_PORT=3333 DRIFTKV_MAX_CONNS=1000 ./driftkv-server
//
// # Package Structure
//
//   - pkg/store: incremental-rehash hash map
//   - pkg/protocol: binary communication protocol
//   - pkg/client: client SDK with consistent hashing
//   - pkg/hash: consistent hash ring
//   - pkg/config: configuration management
//   - internal/db: command processing over the store
//   - internal/server: epoll reactor
//   - cmd/server: server executable
//   - cmd/client-example: example client usage
//
// For detailed documentation of individual packages, see their respective godoc pages.
package driftkv

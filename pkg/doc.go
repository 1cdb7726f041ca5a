// Package driftkv provides the public components of the DriftKV key/value system.
//
// This directory groups the packages a client application needs: the client
// SDK, the wire protocol, the consistent hash ring, the configuration layer,
// and the hash map the server is built on.
//
// # Overview
//
// DriftKV is a single-threaded in-memory key/value server built for flat
// tail latency. The server runs one epoll-based event loop with no locks on
// the data path, and its hash table grows incrementally so no operation ever
// stalls behind a full rehash. Clients shard keys across server nodes with
// consistent hashing; the nodes themselves never talk to each other.
//
// # Components
//
// Client SDK (pkg/client):
//   - Node selection via consistent hashing
//   - Connection pooling per server node
//   - Retry logic and error handling
//
// Store (pkg/store):
//   - Hash map with two tables and incremental migration
//   - Constant migration work per operation
//   - Built for single-goroutine ownership
//
// Protocol (pkg/protocol):
//   - Length-prefixed binary framing
//   - Incremental request parsing for non-blocking sockets
//   - Strict message size limits
//
// Consistent Hashing (pkg/hash):
//   - Virtual nodes for even distribution
//   - Minimal key redistribution on topology changes
//   - Thread-safe ring operations
//
// Configuration (pkg/config):
//   - Server and client configuration management
//   - Command-line flags and environment variables
//   - Validation and defaults
//
// # Usage Examples
//
// Basic client usage:
//
//	import "github.com/driftkv/driftkv/pkg/client"
//
//	c := client.New([]string{"server1:3333", "server2:3333"})
//	defer c.Close()
//
//	err := c.Set("user:123", "john_doe")
//	value, err := c.Get("user:123")
//	deleted, err := c.Del("user:123")
//
// Advanced client configuration:
//
//	import "github.com/driftkv/driftkv/pkg/config"
//
//	cfg := &config.ClientConfig{
//		Nodes:         []string{"node1:3333", "node2:3333"},
//		PoolSize:      50,
//		ConnTimeout:   10,
//		RetryAttempts: 5,
//		VirtualNodes:  300,
//	}
//	c := client.NewWithConfig(cfg)
//
// For detailed documentation of specific components, refer to their
// individual package documentation.
package driftkv

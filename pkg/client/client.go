// Package client provides a high-level client SDK for DriftKV servers.
//
// The client routes each key to a server node with consistent hashing, pools
// connections per node, and retries transient failures. It speaks the same
// length-prefixed binary protocol the server does and translates response
// text back into Go values and errors.
//
// Basic Usage:
//
//	// Connect to a cluster
//	client := client.New([]string{"server1:3333", "server2:3333"})
//	defer client.Close()
//
//	err := client.Set("user:123", "john_doe")
//	value, err := client.Get("user:123")
//	deleted, err := client.Del("user:123")
//
// Advanced Configuration:
//
//	config := &config.ClientConfig{
//		Nodes:         []string{"node1:3333", "node2:3333"},
//		PoolSize:      20,
//		ConnTimeout:   10,
//		RetryAttempts: 5,
//		VirtualNodes:  200,
//	}
//	client := client.NewWithConfig(config)
//
// The client is safe for concurrent use from multiple goroutines.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	pool "github.com/jolestar/go-commons-pool/v2"

	"github.com/driftkv/driftkv/pkg/config"
	"github.com/driftkv/driftkv/pkg/hash"
	"github.com/driftkv/driftkv/pkg/protocol"
)

// ErrKeyNotFound is returned by Get when the key has no entry on the server.
var ErrKeyNotFound = errors.New("key not found")

// Client provides a high-level interface to a DriftKV cluster. It selects
// the node for each key via a consistent hash ring and borrows connections
// from a per-node pool.
type Client struct {
	config *config.ClientConfig
	ring   *hash.Ring
	pools  map[string]*pool.ObjectPool
	mu     sync.RWMutex
	ctx    context.Context
}

// connFactory creates and destroys pooled TCP connections to a single node.
type connFactory struct {
	address string
	timeout time.Duration
}

func (f *connFactory) MakeObject(ctx context.Context) (*pool.PooledObject, error) {
	dialer := &net.Dialer{Timeout: f.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", f.address)
	if err != nil {
		return nil, err
	}
	return pool.NewPooledObject(conn), nil
}

func (f *connFactory) DestroyObject(ctx context.Context, object *pool.PooledObject) error {
	conn, ok := object.Object.(net.Conn)
	if !ok {
		return errors.New("pooled object is not a connection")
	}
	return conn.Close()
}

func (f *connFactory) ValidateObject(ctx context.Context, object *pool.PooledObject) bool {
	return true
}

func (f *connFactory) ActivateObject(ctx context.Context, object *pool.PooledObject) error {
	return nil
}

func (f *connFactory) PassivateObject(ctx context.Context, object *pool.PooledObject) error {
	return nil
}

// New creates a Client connected to the given server nodes with default
// configuration.
//
// Example:
//
//	client := client.New([]string{"localhost:3333"})
//	defer client.Close()
func New(nodes []string) *Client {
	cfg := config.LoadClientConfig()
	cfg.Nodes = nodes
	return NewWithConfig(cfg)
}

// NewWithConfig creates a Client from an explicit configuration. Panics if
// the configuration fails validation.
func NewWithConfig(cfg *config.ClientConfig) *Client {
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("invalid client config: %v", err))
	}

	c := &Client{
		config: cfg,
		ring:   hash.NewRing(cfg.VirtualNodes),
		pools:  make(map[string]*pool.ObjectPool),
		ctx:    context.Background(),
	}
	for _, node := range cfg.Nodes {
		c.ring.AddNode(node)
		c.pools[node] = c.newPool(node)
	}
	return c
}

func (c *Client) newPool(address string) *pool.ObjectPool {
	factory := &connFactory{
		address: address,
		timeout: time.Duration(c.config.ConnTimeout) * time.Second,
	}
	p := pool.NewObjectPoolWithDefaultConfig(c.ctx, factory)
	p.Config.MaxTotal = c.config.PoolSize
	return p
}

// AddNode adds a server node to the cluster at runtime. Keys adjacent to the
// node's ring positions start routing to it immediately.
func (c *Client) AddNode(address string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ring.AddNode(address)
	if _, ok := c.pools[address]; !ok {
		c.pools[address] = c.newPool(address)
	}
}

// RemoveNode removes a server node from the cluster at runtime and closes
// its connection pool.
func (c *Client) RemoveNode(address string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ring.RemoveNode(address)
	if p, ok := c.pools[address]; ok {
		p.Close(c.ctx)
		delete(c.pools, address)
	}
}

// execute sends one command to the node owning key and returns the response
// text. Failed attempts discard the borrowed connection and retry up to the
// configured number of times.
func (c *Client) execute(key string, tokens []string) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.RetryAttempts; attempt++ {
		node := c.ring.GetNode(key)
		if node == "" {
			return "", errors.New("no available nodes")
		}

		c.mu.RLock()
		p, ok := c.pools[node]
		c.mu.RUnlock()
		if !ok {
			return "", fmt.Errorf("no connection pool for node: %s", node)
		}

		raw, err := p.BorrowObject(c.ctx)
		if err != nil {
			lastErr = err
			continue
		}
		conn := raw.(net.Conn)

		reply, err := c.exchange(conn, tokens)
		if err != nil {
			// The connection is in an unknown state; destroy it rather
			// than hand it to the next borrower.
			p.InvalidateObject(c.ctx, raw)
			lastErr = err
			continue
		}

		if err := p.ReturnObject(c.ctx, raw); err != nil {
			lastErr = err
		}
		return reply, nil
	}

	return "", fmt.Errorf("command failed after %d attempts: %w", c.config.RetryAttempts+1, lastErr)
}

func (c *Client) exchange(conn net.Conn, tokens []string) (string, error) {
	if err := conn.SetWriteDeadline(time.Now().Add(time.Duration(c.config.WriteTimeout) * time.Second)); err != nil {
		return "", err
	}
	if err := protocol.WriteRequest(conn, tokens); err != nil {
		return "", err
	}

	if err := conn.SetReadDeadline(time.Now().Add(time.Duration(c.config.ReadTimeout) * time.Second)); err != nil {
		return "", err
	}
	return protocol.ReadResponse(conn, c.config.MaxMsgSize)
}

// Set stores a value under key.
//
// Example:
//
//	if err := client.Set("greeting", "hello"); err != nil {
//		log.Fatal(err)
//	}
func (c *Client) Set(key, value string) error {
	_, err := c.execute(key, []string{"set", key, value})
	return err
}

// Get retrieves the value of key. Returns ErrKeyNotFound if the key has no
// entry.
//
// Example:
//
//	value, err := client.Get("greeting")
//	if errors.Is(err, client.ErrKeyNotFound) {
//		// handle the miss
//	}
func (c *Client) Get(key string) (string, error) {
	reply, err := c.execute(key, []string{"get", key})
	if err != nil {
		return "", err
	}
	if reply == fmt.Sprintf("key %s not found", key) {
		return "", ErrKeyNotFound
	}
	return reply, nil
}

// Del deletes key. Returns true if the key existed and was deleted, false if
// it did not exist.
func (c *Client) Del(key string) (bool, error) {
	reply, err := c.execute(key, []string{"del", key})
	if err != nil {
		return false, err
	}
	return reply == fmt.Sprintf("key %s deleted", key), nil
}

// Close shuts down every connection pool. The client must not be used after
// Close.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.pools {
		p.Close(c.ctx)
	}
	return nil
}

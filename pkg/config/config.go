// Package config provides configuration management for DriftKV server and client components.
//
// The package supports configuration through multiple sources with the following precedence:
//  1. Command-line flags (highest priority)
//  2. Environment variables
//  3. Default values (lowest priority)
//
// Server Configuration:
//   - Port and host binding settings
//   - Connection and message size limits
//   - Accept rate limiting
//   - Logging configuration
//
// Client Configuration:
//   - Node discovery and connection settings
//   - Connection pooling parameters
//   - Retry policies and timeouts
//   - Consistent hashing parameters
//
// Example server usage:
//
//	config := config.LoadServerConfig()
//	if err := config.Validate(); err != nil {
//		log.Fatal(err)
//	}
//	srv := server.New(config, logger)
//
// Example client usage:
//
//	config := config.LoadClientConfig()
//	config.Nodes = []string{"server1:3333", "server2:3333"}
//	client := client.NewWithConfig(config)
//
// Environment variables are prefixed with "DRIFTKV_" and use uppercase names.
// For example, the server port can be set with DRIFTKV_PORT=3333.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Default server configuration constants
const (
	DefaultServerPort      = 3333
	DefaultMaxConnections  = 1000
	DefaultMaxMsgSize      = 4096
	DefaultAcceptBurst     = 64
	DefaultPoolSize        = 10
	DefaultConnTimeoutSecs = 5
	DefaultReadTimeoutSecs = 30
	DefaultWriteTimeoutSec = 10
	DefaultRetryAttempts   = 3
	DefaultVirtualNodes    = 150
)

// ServerConfig holds all configuration options for a DriftKV server instance.
// It includes network settings, resource limits, and operational parameters.
//
// Configuration sources (in order of precedence):
//  1. Command-line flags: -port, -host, -max-conns, etc.
//  2. Environment variables: DRIFTKV_PORT, DRIFTKV_HOST, etc.
//  3. Default values
//
// Example:
//
//	config := &ServerConfig{
//		Port:     3333,
//		Host:     "0.0.0.0",
//		MaxConns: 1000,
//	}
//	if err := config.Validate(); err != nil {
//		log.Fatal(err)
//	}
type ServerConfig struct {
	Host        string  // Host address to bind to (default: "0.0.0.0")
	LogLevel    string  // Log level: debug, info, warn, error (default: "info")
	Port        int     // TCP port to listen on (default: 3333)
	MaxConns    int     // Maximum concurrent connections (default: 1000)
	MaxMsgSize  int     // Maximum encoded request/response size in bytes (default: 4096)
	AcceptRate  float64 // Accepted connections per second, 0 disables limiting (default: 0)
	AcceptBurst int     // Burst size for the accept rate limiter (default: 64)
}

// ClientConfig holds all configuration options for a DriftKV client instance.
// It includes node discovery, connection pooling, and retry settings.
//
// Configuration sources (in order of precedence):
//  1. Programmatic configuration
//  2. Environment variables: DRIFTKV_NODES, DRIFTKV_POOL_SIZE, etc.
//  3. Default values
//
// Example:
//
//	config := &ClientConfig{
//		Nodes:         []string{"server1:3333", "server2:3333"},
//		PoolSize:      20,
//		RetryAttempts: 3,
//	}
//	client := client.NewWithConfig(config)
type ClientConfig struct {
	Nodes         []string // List of server addresses (default: ["localhost:3333"])
	PoolSize      int      // Max pooled connections per server node (default: 10)
	ConnTimeout   int      // Connection timeout in seconds (default: 5)
	ReadTimeout   int      // Read timeout in seconds (default: 30)
	WriteTimeout  int      // Write timeout in seconds (default: 10)
	RetryAttempts int      // Number of retry attempts (default: 3)
	VirtualNodes  int      // Virtual nodes for consistent hashing (default: 150)
	MaxMsgSize    int      // Maximum response size accepted from a server (default: 4096)
}

// LoadServerConfig creates a ServerConfig by loading values from command-line flags
// and environment variables, with sensible defaults.
//
// Command-line flags:
//
//	-port: Server port (default: 3333)
//	-host: Server host (default: "0.0.0.0")
//	-max-conns: Maximum connections (default: 1000)
//	-max-msg-size: Maximum message size in bytes (default: 4096)
//	-accept-rate: Accepted connections per second, 0 disables (default: 0)
//	-accept-burst: Accept limiter burst size (default: 64)
//	-log-level: Log level (default: "info")
//
// Environment variables:
//
//	DRIFTKV_PORT: Server port
//	DRIFTKV_HOST: Server host
//	DRIFTKV_MAX_CONNS: Maximum connections
//	DRIFTKV_MAX_MSG_SIZE: Maximum message size in bytes
//
// Returns:
//   - ServerConfig with values loaded from various sources
func LoadServerConfig() *ServerConfig {
	config := &ServerConfig{
		Port:        DefaultServerPort,
		Host:        "0.0.0.0",
		MaxConns:    DefaultMaxConnections,
		MaxMsgSize:  DefaultMaxMsgSize,
		AcceptRate:  0,
		AcceptBurst: DefaultAcceptBurst,
		LogLevel:    "info",
	}

	flag.IntVar(&config.Port, "port", config.Port, "Server port")
	flag.StringVar(&config.Host, "host", config.Host, "Server host")
	flag.IntVar(&config.MaxConns, "max-conns", config.MaxConns, "Maximum concurrent connections")
	flag.IntVar(&config.MaxMsgSize, "max-msg-size", config.MaxMsgSize, "Maximum message size in bytes")
	flag.Float64Var(&config.AcceptRate, "accept-rate", config.AcceptRate, "Accepted connections per second (0 disables)")
	flag.IntVar(&config.AcceptBurst, "accept-burst", config.AcceptBurst, "Accept rate limiter burst size")
	flag.StringVar(&config.LogLevel, "log-level", config.LogLevel, "Log level (debug, info, warn, error)")
	flag.Parse()

	if port := os.Getenv("DRIFTKV_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Port = p
		}
	}

	if host := os.Getenv("DRIFTKV_HOST"); host != "" {
		config.Host = host
	}

	if maxConns := os.Getenv("DRIFTKV_MAX_CONNS"); maxConns != "" {
		if mc, err := strconv.Atoi(maxConns); err == nil {
			config.MaxConns = mc
		}
	}

	if maxMsg := os.Getenv("DRIFTKV_MAX_MSG_SIZE"); maxMsg != "" {
		if ms, err := strconv.Atoi(maxMsg); err == nil {
			config.MaxMsgSize = ms
		}
	}

	return config
}

// LoadClientConfig creates a ClientConfig by loading values from environment
// variables, with sensible defaults.
//
// Environment variables:
//
//	DRIFTKV_NODES: Comma-separated list of server addresses
//	DRIFTKV_POOL_SIZE: Maximum pooled connections per server
//	DRIFTKV_CONN_TIMEOUT: Connection timeout in seconds
//	DRIFTKV_READ_TIMEOUT: Read timeout in seconds
//	DRIFTKV_WRITE_TIMEOUT: Write timeout in seconds
//	DRIFTKV_RETRY_ATTEMPTS: Number of retry attempts
//	DRIFTKV_VIRTUAL_NODES: Virtual nodes for consistent hashing
//
// Returns:
//   - ClientConfig with values loaded from environment variables and defaults
func LoadClientConfig() *ClientConfig {
	config := &ClientConfig{
		Nodes:         []string{"localhost:3333"},
		PoolSize:      DefaultPoolSize,
		ConnTimeout:   DefaultConnTimeoutSecs,
		ReadTimeout:   DefaultReadTimeoutSecs,
		WriteTimeout:  DefaultWriteTimeoutSec,
		RetryAttempts: DefaultRetryAttempts,
		VirtualNodes:  DefaultVirtualNodes,
		MaxMsgSize:    DefaultMaxMsgSize,
	}

	if nodes := os.Getenv("DRIFTKV_NODES"); nodes != "" {
		config.Nodes = strings.Split(nodes, ",")
		for i, node := range config.Nodes {
			config.Nodes[i] = strings.TrimSpace(node)
		}
	}

	if poolSize := os.Getenv("DRIFTKV_POOL_SIZE"); poolSize != "" {
		if ps, err := strconv.Atoi(poolSize); err == nil {
			config.PoolSize = ps
		}
	}

	if connTimeout := os.Getenv("DRIFTKV_CONN_TIMEOUT"); connTimeout != "" {
		if ct, err := strconv.Atoi(connTimeout); err == nil {
			config.ConnTimeout = ct
		}
	}

	if readTimeout := os.Getenv("DRIFTKV_READ_TIMEOUT"); readTimeout != "" {
		if rt, err := strconv.Atoi(readTimeout); err == nil {
			config.ReadTimeout = rt
		}
	}

	if writeTimeout := os.Getenv("DRIFTKV_WRITE_TIMEOUT"); writeTimeout != "" {
		if wt, err := strconv.Atoi(writeTimeout); err == nil {
			config.WriteTimeout = wt
		}
	}

	if retryAttempts := os.Getenv("DRIFTKV_RETRY_ATTEMPTS"); retryAttempts != "" {
		if ra, err := strconv.Atoi(retryAttempts); err == nil {
			config.RetryAttempts = ra
		}
	}

	if virtualNodes := os.Getenv("DRIFTKV_VIRTUAL_NODES"); virtualNodes != "" {
		if vn, err := strconv.Atoi(virtualNodes); err == nil {
			config.VirtualNodes = vn
		}
	}

	return config
}

// Address returns the full address string for the server to bind to.
// It combines the host and port into a format suitable for binding.
//
// Example:
//
//	config := &ServerConfig{Host: "0.0.0.0", Port: 3333}
//	addr := config.Address() // Returns "0.0.0.0:3333"
//
// Returns:
//   - Address string in "host:port" format
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks if the ServerConfig contains valid values.
// It verifies that all numeric values are within acceptable ranges
// and that string values are from valid sets.
//
// Validation rules:
//   - Port must be between 0 and 65535 (0 asks the kernel for a free port)
//   - MaxConns must be positive
//   - MaxMsgSize must be positive
//   - AcceptRate must be non-negative
//   - AcceptBurst must be positive when AcceptRate is set
//   - LogLevel must be one of: debug, info, warn, error
//
// Returns:
//   - nil if configuration is valid
//   - Error describing the first validation failure found
func (c *ServerConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	if c.MaxConns < 1 {
		return fmt.Errorf("max connections must be positive: %d", c.MaxConns)
	}

	if c.MaxMsgSize < 1 {
		return fmt.Errorf("max message size must be positive: %d", c.MaxMsgSize)
	}

	if c.AcceptRate < 0 {
		return fmt.Errorf("accept rate must be non-negative: %f", c.AcceptRate)
	}

	if c.AcceptRate > 0 && c.AcceptBurst < 1 {
		return fmt.Errorf("accept burst must be positive: %d", c.AcceptBurst)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}

	return nil
}

// Validate checks if the ClientConfig contains valid values.
// It verifies that all settings are within acceptable ranges and
// that required fields are properly configured.
//
// Validation rules:
//   - At least one node must be specified
//   - All node addresses must be non-empty and contain a colon
//   - PoolSize must be positive
//   - All timeout values must be positive
//   - RetryAttempts must be non-negative
//   - VirtualNodes must be positive
//   - MaxMsgSize must be positive
//
// Returns:
//   - nil if configuration is valid
//   - Error describing the first validation failure found
func (c *ClientConfig) Validate() error {
	if len(c.Nodes) == 0 {
		return fmt.Errorf("at least one node must be specified")
	}

	for _, node := range c.Nodes {
		if node == "" {
			return fmt.Errorf("empty node address")
		}
		if !strings.Contains(node, ":") {
			return fmt.Errorf("invalid node address format: %s", node)
		}
	}

	if c.PoolSize < 1 {
		return fmt.Errorf("pool size must be positive: %d", c.PoolSize)
	}

	if c.ConnTimeout < 1 {
		return fmt.Errorf("connection timeout must be positive: %d", c.ConnTimeout)
	}

	if c.ReadTimeout < 1 {
		return fmt.Errorf("read timeout must be positive: %d", c.ReadTimeout)
	}

	if c.WriteTimeout < 1 {
		return fmt.Errorf("write timeout must be positive: %d", c.WriteTimeout)
	}

	if c.RetryAttempts < 0 {
		return fmt.Errorf("retry attempts must be non-negative: %d", c.RetryAttempts)
	}

	if c.VirtualNodes < 1 {
		return fmt.Errorf("virtual nodes must be positive: %d", c.VirtualNodes)
	}

	if c.MaxMsgSize < 1 {
		return fmt.Errorf("max message size must be positive: %d", c.MaxMsgSize)
	}

	return nil
}

// Package db implements the DriftKV command layer: it maps parsed request
// tokens onto the hash map and produces the response text sent back to the
// client. All state lives in a single store.Map owned by the reactor
// goroutine, so nothing here takes a lock.
package db

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/driftkv/driftkv/pkg/store"
)

// Status classifies the outcome of a processed command. Every status is a
// normal, non-fatal result; the connection stays open regardless.
type Status uint8

const (
	// StatusSuccess means the command ran and the response carries its result.
	StatusSuccess Status = iota

	// StatusUnknownCommand means the verb was not get, set, or del.
	StatusUnknownCommand

	// StatusArgumentError means the verb was recognized but the token count
	// did not match its arity.
	StatusArgumentError

	// StatusKeyNotFound means a get or del referenced a key with no entry.
	StatusKeyNotFound
)

// DB is the in-memory key/value database behind a DriftKV server.
// It is not safe for concurrent use.
type DB struct {
	m *store.Map
}

// New returns an empty database.
func New() *DB {
	return &DB{m: store.New()}
}

// Len returns the number of keys currently stored.
func (d *DB) Len() int {
	return d.m.Len()
}

// Process executes one command and returns its status along with the response
// text to send to the client. Keys and values are arbitrary byte strings; the
// protocol layer has already bounded their size.
//
// Supported commands:
//
//	get <key>         -> the stored value
//	set <key> <value> -> "set <key> to <value>"
//	del <key>         -> "key <key> deleted"
func (d *DB) Process(tokens []string) (Status, string) {
	if len(tokens) == 0 {
		return StatusUnknownCommand, "unknown command"
	}

	switch tokens[0] {
	case "get":
		if len(tokens) != 2 {
			return StatusArgumentError, "invalid number of arguments, get requires one argument"
		}
		return d.get(tokens[1])
	case "set":
		if len(tokens) != 3 {
			return StatusArgumentError, "invalid number of arguments, set requires two arguments"
		}
		return d.set(tokens[1], tokens[2])
	case "del":
		if len(tokens) != 2 {
			return StatusArgumentError, "invalid number of arguments, del requires one argument"
		}
		return d.del(tokens[1])
	default:
		return StatusUnknownCommand, "unknown command"
	}
}

func (d *DB) get(key string) (Status, string) {
	n := d.m.Lookup(xxhash.Sum64String(key), store.ByKey(key))
	if n == nil {
		return StatusKeyNotFound, fmt.Sprintf("key %s not found", key)
	}
	return StatusSuccess, n.Value
}

func (d *DB) set(key, value string) (Status, string) {
	hash := xxhash.Sum64String(key)
	if n := d.m.Lookup(hash, store.ByKey(key)); n != nil {
		n.Value = value
	} else {
		d.m.Insert(&store.Node{Hash: hash, Key: key, Value: value})
	}
	return StatusSuccess, fmt.Sprintf("set %s to %s", key, value)
}

func (d *DB) del(key string) (Status, string) {
	n := d.m.Delete(xxhash.Sum64String(key), store.ByKey(key))
	if n == nil {
		return StatusKeyNotFound, fmt.Sprintf("key %s not found", key)
	}
	return StatusSuccess, fmt.Sprintf("key %s deleted", key)
}

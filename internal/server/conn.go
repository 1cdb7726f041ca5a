package server

import (
	"github.com/driftkv/driftkv/pkg/protocol"
)

// writeBufFactor sizes a connection's outgoing buffer as a multiple of the
// largest framed response. Pipelined requests can queue a few responses
// before the socket drains; anything beyond that is dropped by enqueue.
const writeBufFactor = 4

// conn is the per-connection state owned by the reactor. Both buffers are
// allocated once at accept time and never grow: the read buffer is large
// enough for any request the protocol allows, and the write buffer is
// bounded so a peer that never reads cannot pin unbounded memory.
type conn struct {
	fd int

	// rbuf[:rlen] holds bytes received but not yet consumed by the parser.
	rbuf []byte
	rlen int

	// wbuf[wsent:] holds framed responses not yet written to the socket.
	// wantWrite mirrors whether the fd is registered for writability.
	wbuf      []byte
	wsent     int
	wantWrite bool
}

func newConn(fd, maxMsgSize int) *conn {
	return &conn{
		fd:   fd,
		rbuf: make([]byte, protocol.HeaderSize+maxMsgSize),
		wbuf: make([]byte, 0, writeBufFactor*(protocol.HeaderSize+maxMsgSize)),
	}
}

// consume discards n parsed bytes from the front of the read buffer and
// shifts the remainder down. The parser never consumes partial requests, so
// what remains is always the prefix of the next request.
func (c *conn) consume(n int) {
	copy(c.rbuf, c.rbuf[n:c.rlen])
	c.rlen -= n
}

// enqueue frames msg into the write buffer. Reports false when the framed
// response does not fit within the buffer's capacity, in which case the
// response is dropped and the buffer is left untouched.
func (c *conn) enqueue(msg string) bool {
	out, ok := protocol.AppendResponse(c.wbuf, cap(c.wbuf), msg)
	c.wbuf = out
	return ok
}

// pending reports whether unwritten response bytes remain.
func (c *conn) pending() bool {
	return c.wsent < len(c.wbuf)
}

// resetWrite clears the write buffer once everything queued has been sent.
func (c *conn) resetWrite() {
	c.wbuf = c.wbuf[:0]
	c.wsent = 0
}

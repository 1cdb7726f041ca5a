// Package protocol implements the length-prefixed binary wire format spoken
// between DriftKV clients and servers.
//
// All multi-byte integers travel in network byte order (big-endian),
// regardless of host byte order.
//
// Request frame:
//   - u32 count: number of command tokens (only 2 or 3 are valid)
//   - count times: u32 length + that many bytes of token data
//
// Response frame:
//   - u32 length + that many bytes of UTF-8 text; the outcome of the command
//     is encoded in the text itself, there is no separate status field.
//
// The parser is incremental: TryParseRequest consumes nothing unless the
// buffer holds one complete, well-formed request, which is what lets the
// server's reactor feed it partial reads straight off a non-blocking socket.
// A length field that would push the request past the configured maximum
// message size is a fatal protocol violation rather than a "need more data"
// condition, so a hostile peer cannot pin unbounded memory by advertising an
// absurd length.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Framing constants.
const (
	// HeaderSize is the width of every length/count field on the wire.
	HeaderSize = 4

	// MinTokens and MaxTokens bound the token count of a valid request:
	// get/del carry 2 tokens, set carries 3.
	MinTokens = 2
	MaxTokens = 3

	// DefaultMaxMsgSize caps the encoded size of a single request, count
	// field excluded. Also the cap on a single response payload.
	DefaultMaxMsgSize = 4096
)

// Parse outcomes. ErrIncomplete means the buffer simply does not hold a full
// request yet; the other two are fatal to the connection.
var (
	ErrIncomplete = errors.New("incomplete request")
	ErrTokenCount = errors.New("invalid token count")
	ErrOversized  = errors.New("oversized request")
)

// TryParseRequest attempts to decode one complete request from the front of
// buf. maxMsgSize bounds the cumulative encoded size of the request's tokens
// (length prefixes included, count field excluded); values <= 0 fall back to
// DefaultMaxMsgSize.
//
// Returns the token list and the number of bytes consumed on success. On
// ErrIncomplete, consumed is 0 and no bytes may be discarded. ErrTokenCount
// and ErrOversized are fatal protocol violations: the caller should send one
// best-effort error response and close the connection.
func TryParseRequest(buf []byte, maxMsgSize int) (tokens []string, consumed int, err error) {
	if maxMsgSize <= 0 {
		maxMsgSize = DefaultMaxMsgSize
	}

	if len(buf) < HeaderSize {
		return nil, 0, ErrIncomplete
	}
	count := int(binary.BigEndian.Uint32(buf))
	if count < MinTokens || count > MaxTokens {
		return nil, 0, fmt.Errorf("%w: %d tokens", ErrTokenCount, count)
	}

	off := HeaderSize
	total := 0 // encoded bytes so far, count field excluded
	tokens = make([]string, 0, count)

	for i := 0; i < count; i++ {
		if len(buf)-off < HeaderSize {
			return nil, 0, ErrIncomplete
		}
		length := int(binary.BigEndian.Uint32(buf[off:]))
		off += HeaderSize

		// The size check comes before the availability check: an
		// advertised length beyond the limit is fatal even if the bytes
		// have not arrived yet, and never would fit.
		total += HeaderSize + length
		if total > maxMsgSize {
			return nil, 0, fmt.Errorf("%w: %d bytes exceeds limit %d", ErrOversized, total, maxMsgSize)
		}

		if len(buf)-off < length {
			return nil, 0, ErrIncomplete
		}
		tokens = append(tokens, string(buf[off:off+length]))
		off += length
	}

	return tokens, off, nil
}

// AppendRequest encodes tokens as a request frame and appends it to dst.
// It performs no validity checks; it is the encoding half used by clients
// and tests, including tests that deliberately build invalid frames.
func AppendRequest(dst []byte, tokens []string) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(tokens)))
	for _, tok := range tokens {
		dst = binary.BigEndian.AppendUint32(dst, uint32(len(tok)))
		dst = append(dst, tok...)
	}
	return dst
}

// AppendResponse frames msg and appends it to dst, provided the result stays
// within limit bytes. If the framed response does not fit, dst is returned
// unchanged and ok is false: the response is dropped rather than allowed to
// overflow the connection's bounded write buffer.
func AppendResponse(dst []byte, limit int, msg string) (out []byte, ok bool) {
	if len(dst)+HeaderSize+len(msg) > limit {
		return dst, false
	}
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(msg)))
	dst = append(dst, msg...)
	return dst, true
}

// WriteRequest encodes tokens and writes the full frame to w.
// Used by the client SDK; the server never writes requests.
func WriteRequest(w io.Writer, tokens []string) error {
	_, err := w.Write(AppendRequest(nil, tokens))
	return err
}

// ReadResponse reads one framed response from r and returns its text.
// Responses longer than maxMsgSize (<= 0 means DefaultMaxMsgSize) are
// rejected without reading the payload.
func ReadResponse(r io.Reader, maxMsgSize int) (string, error) {
	if maxMsgSize <= 0 {
		maxMsgSize = DefaultMaxMsgSize
	}

	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return "", err
	}
	length := int(binary.BigEndian.Uint32(header[:]))
	if length > maxMsgSize {
		return "", fmt.Errorf("response too large: %d bytes", length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return "", err
	}
	return string(payload), nil
}

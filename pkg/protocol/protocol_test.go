package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestRequestRoundTrip(t *testing.T) {
	want := []string{"set", "k", "v"}
	frame := AppendRequest(nil, want)

	tokens, consumed, err := TryParseRequest(frame, 0)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if consumed != len(frame) {
		t.Errorf("expected %d bytes consumed, got %d", len(frame), consumed)
	}
	if len(tokens) != len(want) {
		t.Fatalf("expected %d tokens, got %d", len(want), len(tokens))
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Errorf("token %d: expected %q, got %q", i, want[i], tokens[i])
		}
	}
}

func TestParseIncompleteConsumesNothing(t *testing.T) {
	frame := AppendRequest(nil, []string{"get", "somekey"})

	// Every strict prefix of a valid frame must report ErrIncomplete
	// without consuming anything.
	for cut := 0; cut < len(frame); cut++ {
		tokens, consumed, err := TryParseRequest(frame[:cut], 0)
		if !errors.Is(err, ErrIncomplete) {
			t.Fatalf("prefix of %d bytes: expected ErrIncomplete, got %v (tokens=%v)", cut, err, tokens)
		}
		if consumed != 0 {
			t.Fatalf("prefix of %d bytes consumed %d", cut, consumed)
		}
	}
}

func TestParseHeaderClaimsMoreThanSent(t *testing.T) {
	// A request whose length field claims a 50-byte token but only carries
	// a few bytes must never be treated as complete.
	var frame []byte
	frame = binary.BigEndian.AppendUint32(frame, 2)
	frame = binary.BigEndian.AppendUint32(frame, 50)
	frame = append(frame, "short"...)

	_, consumed, err := TryParseRequest(frame, 0)
	if !errors.Is(err, ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
	if consumed != 0 {
		t.Errorf("consumed %d bytes of an incomplete request", consumed)
	}
}

func TestParseInvalidTokenCount(t *testing.T) {
	for _, count := range []uint32{0, 1, 4, 100} {
		var frame []byte
		frame = binary.BigEndian.AppendUint32(frame, count)
		frame = binary.BigEndian.AppendUint32(frame, 1)
		frame = append(frame, 'x')

		if _, _, err := TryParseRequest(frame, 0); !errors.Is(err, ErrTokenCount) {
			t.Errorf("count %d: expected ErrTokenCount, got %v", count, err)
		}
	}
}

func TestParseOversizedIsFatalNotIncomplete(t *testing.T) {
	// The advertised length exceeds the limit, so this must be fatal even
	// though the payload bytes never arrived.
	var frame []byte
	frame = binary.BigEndian.AppendUint32(frame, 2)
	frame = binary.BigEndian.AppendUint32(frame, 1<<30)

	if _, _, err := TryParseRequest(frame, 1024); !errors.Is(err, ErrOversized) {
		t.Fatalf("expected ErrOversized, got %v", err)
	}
}

func TestParseOversizedCumulative(t *testing.T) {
	// Each token is individually under the limit but the running total is
	// not.
	big := string(bytes.Repeat([]byte{'a'}, 600))
	frame := AppendRequest(nil, []string{"set", big, big})

	if _, _, err := TryParseRequest(frame, 1024); !errors.Is(err, ErrOversized) {
		t.Fatalf("expected ErrOversized, got %v", err)
	}
}

func TestParsePipelinedRequests(t *testing.T) {
	frame := AppendRequest(nil, []string{"set", "a", "1"})
	frame = AppendRequest(frame, []string{"get", "a"})

	first, n1, err := TryParseRequest(frame, 0)
	if err != nil {
		t.Fatalf("first parse failed: %v", err)
	}
	if first[0] != "set" || first[1] != "a" || first[2] != "1" {
		t.Errorf("first request wrong: %v", first)
	}

	second, n2, err := TryParseRequest(frame[n1:], 0)
	if err != nil {
		t.Fatalf("second parse failed: %v", err)
	}
	if second[0] != "get" || second[1] != "a" {
		t.Errorf("second request wrong: %v", second)
	}
	if n1+n2 != len(frame) {
		t.Errorf("parses consumed %d of %d bytes", n1+n2, len(frame))
	}
}

func TestAppendResponseRespectsLimit(t *testing.T) {
	buf, ok := AppendResponse(nil, 64, "hello")
	if !ok {
		t.Fatal("response within limit was dropped")
	}
	if len(buf) != HeaderSize+5 {
		t.Errorf("unexpected framed size %d", len(buf))
	}

	// Filling the buffer close to the limit must drop the next response
	// and leave the buffer untouched.
	before := len(buf)
	buf, ok = AppendResponse(buf, 16, "this does not fit")
	if ok {
		t.Error("oversized append reported ok")
	}
	if len(buf) != before {
		t.Errorf("dropped append changed buffer length %d -> %d", before, len(buf))
	}
}

func TestResponseRoundTrip(t *testing.T) {
	var wire bytes.Buffer
	framed, ok := AppendResponse(nil, 1024, "set name to bob")
	if !ok {
		t.Fatal("append failed")
	}
	wire.Write(framed)

	msg, err := ReadResponse(&wire, 0)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if msg != "set name to bob" {
		t.Errorf("expected echo of set, got %q", msg)
	}
}

func TestWriteRequestMatchesAppend(t *testing.T) {
	var wire bytes.Buffer
	if err := WriteRequest(&wire, []string{"del", "name"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if !bytes.Equal(wire.Bytes(), AppendRequest(nil, []string{"del", "name"})) {
		t.Error("WriteRequest and AppendRequest disagree on encoding")
	}
}

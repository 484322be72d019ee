package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// TxnTag and BlockTag are the 4-byte ASCII tags that prefix a relay
// message body, classifying it for the node's ingress dispatch.
var (
	TxnTag   = [4]byte{'T', 'X', 'N', ' '}
	BlockTag = [4]byte{'B', 'L', 'O', 'C'}
)

// MaxFrameSize bounds a single frame's payload to guard against a
// corrupt or hostile length prefix demanding an unreasonable allocation.
const MaxFrameSize = 64 << 20 // 64 MiB

// WriteFrame writes data as a 4-byte big-endian length prefix followed
// by data itself.
func WriteFrame(w io.Writer, data []byte) error {
	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(len(data)))
	if _, err := w.Write(size[:]); err != nil {
		return fmt.Errorf("wire: write frame length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("wire: write frame body: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame from r. It blocks until
// the full frame has arrived or the underlying reader errs.
func ReadFrame(r io.Reader) ([]byte, error) {
	var size [4]byte
	if _, err := io.ReadFull(r, size[:]); err != nil {
		return nil, fmt.Errorf("wire: read frame length: %w", err)
	}
	n := binary.BigEndian.Uint32(size[:])
	if n > MaxFrameSize {
		return nil, fmt.Errorf("wire: frame length %d exceeds maximum %d", n, MaxFrameSize)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("wire: read frame body: %w", err)
	}
	return data, nil
}

// TagBody prefixes body with a 4-byte tag, producing the payload a
// frame carries over the relay bus.
func TagBody(tag [4]byte, body []byte) []byte {
	out := make([]byte, 4+len(body))
	copy(out, tag[:])
	copy(out[4:], body)
	return out
}

// SplitTag splits a tagged relay payload into its 4-byte tag and body.
// It reports ok=false if payload is shorter than a tag.
func SplitTag(payload []byte) (tag [4]byte, body []byte, ok bool) {
	if len(payload) < 4 {
		return tag, nil, false
	}
	copy(tag[:], payload[:4])
	return tag, payload[4:], true
}

// Package wire holds the small byte-twiddling helpers shared by the frame
// codec: big-endian u24/u32 conversion and the optional frame padding.
package wire

import (
	"crypto/rand"
	"fmt"

	"github.com/valyala/fastrand"
)

// Uint24ToBytes writes the low 24 bits of n into b (big-endian).
func Uint24ToBytes(b []byte, n uint32) {
	_ = b[2] // bound check hint
	b[0] = byte(n >> 16)
	b[1] = byte(n >> 8)
	b[2] = byte(n)
}

// BytesToUint24 reads a big-endian 24-bit value from b.
func BytesToUint24(b []byte) uint32 {
	_ = b[2]
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

// Uint32ToBytes writes n into b (big-endian).
func Uint32ToBytes(b []byte, n uint32) {
	_ = b[3]
	b[0] = byte(n >> 24)
	b[1] = byte(n >> 16)
	b[2] = byte(n >> 8)
	b[3] = byte(n)
}

// AppendUint32Bytes appends the big-endian encoding of n to dst.
func AppendUint32Bytes(dst []byte, n uint32) []byte {
	return append(dst, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
}

// BytesToUint32 reads a big-endian 32-bit value from b. The reserved top
// bit (used by stream identifiers) is NOT masked off here; callers that
// need the 31-bit stream id must mask explicitly.
func BytesToUint32(b []byte) uint32 {
	_ = b[3]
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// CutPadding strips a 1-byte pad-length prefix and trailing padding from
// payload, returning the remaining content. length is the frame's declared
// payload length (== len(payload) for a freshly read frame).
func CutPadding(payload []byte, length int) ([]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("wire: padded frame has zero-length payload")
	}
	pad := int(payload[0])
	if pad > length-1 {
		return nil, fmt.Errorf("wire: padding %d exceeds frame length %d", pad, length)
	}
	return payload[1 : length-pad], nil
}

// ResizeBuf returns b grown or shrunk to exactly n bytes, reusing the
// backing array when it already has enough capacity.
func ResizeBuf(b []byte, n int) []byte {
	if cap(b) < n {
		return make([]byte, n)
	}
	return b[:n]
}

// AddPadding prepends a random pad-length byte and appends that many random
// bytes to b, mirroring the optional PADDED flag behavior the teacher
// applies to outbound HEADERS frames. maxPad must be > 0; callers compute
// it from the room actually left in the frame.
func AddPadding(b []byte, maxPad int) []byte {
	n := int(fastrand.Uint32n(uint32(maxPad)))

	out := make([]byte, 0, len(b)+n+1)
	out = append(out, byte(n))
	out = append(out, b...)

	padStart := len(out)
	out = append(out, make([]byte, n)...)
	rand.Read(out[padStart:])

	return out
}

package h2conn

import (
	"bufio"
	"io"
	"sync"

	"github.com/coralmesh/h2conn/wire"
)

// DefaultFrameSize is the fixed 9-byte frame header size.
// http://httpwg.org/specs/rfc7540.html#FrameHeader
const DefaultFrameSize = 9

// FrameType identifies the kind of an HTTP/2 frame.
type FrameType uint8

const (
	FrameData         FrameType = 0x0
	FrameHeaders      FrameType = 0x1
	FramePriority     FrameType = 0x2
	FrameRstStream    FrameType = 0x3
	FrameSettings     FrameType = 0x4
	FramePushPromise  FrameType = 0x5
	FramePing         FrameType = 0x6
	FrameGoAway       FrameType = 0x7
	FrameWindowUpdate FrameType = 0x8
	FrameContinuation FrameType = 0x9

	maxKnownFrameType FrameType = FrameContinuation
)

func (t FrameType) String() string {
	switch t {
	case FrameData:
		return "DATA"
	case FrameHeaders:
		return "HEADERS"
	case FramePriority:
		return "PRIORITY"
	case FrameRstStream:
		return "RST_STREAM"
	case FrameSettings:
		return "SETTINGS"
	case FramePushPromise:
		return "PUSH_PROMISE"
	case FramePing:
		return "PING"
	case FrameGoAway:
		return "GOAWAY"
	case FrameWindowUpdate:
		return "WINDOW_UPDATE"
	case FrameContinuation:
		return "CONTINUATION"
	}
	return "UNKNOWN"
}

// FrameFlags is the 8-bit flags field of a frame header. Which bits are
// meaningful depends on the frame type; see the per-type files.
type FrameFlags uint8

const (
	FlagAck        FrameFlags = 0x1
	FlagEndStream  FrameFlags = 0x1
	FlagEndHeaders FrameFlags = 0x4
	FlagPadded     FrameFlags = 0x8
	FlagPriority   FrameFlags = 0x20
)

// Has reports whether f contains bit.
func (f FrameFlags) Has(bit FrameFlags) bool { return f&bit == bit }

// Add returns f with bit set.
func (f FrameFlags) Add(bit FrameFlags) FrameFlags { return f | bit }

// rawFrame is the decoded-but-untyped representation read off the wire:
// a header plus its raw payload bytes. The Frame Processor type-switches
// on Type to interpret Payload.
type rawFrame struct {
	Length   uint32
	Type     FrameType
	Flags    FrameFlags
	StreamID uint32 // top (reserved) bit already masked off

	Payload []byte
}

var rawFramePool = sync.Pool{
	New: func() interface{} { return &rawFrame{} },
}

func acquireRawFrame() *rawFrame {
	fr := rawFramePool.Get().(*rawFrame)
	fr.Length = 0
	fr.Type = 0
	fr.Flags = 0
	fr.StreamID = 0
	fr.Payload = fr.Payload[:0]
	return fr
}

func releaseRawFrame(fr *rawFrame) {
	rawFramePool.Put(fr)
}

// readFrame pulls the next frame off br. maxFrameLen enforces the
// peer-advertised (or still-default) MAX_FRAME_SIZE; a length above it is
// reported as a FRAME_SIZE_ERROR connection error per spec so the caller
// can still discard the remainder of the stream deterministically.
//
// Unknown frame types are consumed (so the byte stream stays aligned) and
// reported via ok=false, err=nil — RFC 7540 §4.1 says they must simply be
// discarded, not treated as an error.
func readFrame(br *bufio.Reader, maxFrameLen uint32) (fr *rawFrame, ok bool, err error) {
	var hdr [DefaultFrameSize]byte

	if _, err = io.ReadFull(br, hdr[:]); err != nil {
		return nil, false, err
	}

	fr = acquireRawFrame()
	fr.Length = wire.BytesToUint24(hdr[:3])
	fr.Type = FrameType(hdr[3])
	fr.Flags = FrameFlags(hdr[4])
	fr.StreamID = wire.BytesToUint32(hdr[5:]) & (1<<31 - 1)

	if maxFrameLen != 0 && fr.Length > maxFrameLen {
		releaseRawFrame(fr)
		return nil, false, connErrf(FrameSizeError, "frame length %d exceeds max %d", fr.Length, maxFrameLen)
	}

	if fr.Length > 0 {
		fr.Payload = wire.ResizeBuf(fr.Payload, int(fr.Length))
		if _, err = io.ReadFull(br, fr.Payload); err != nil {
			releaseRawFrame(fr)
			return nil, false, err
		}
	}

	if fr.Type > maxKnownFrameType {
		releaseRawFrame(fr)
		return nil, false, nil
	}

	return fr, true, nil
}

// writeFrame serializes one frame and writes its header and payload to bw
// back to back. Per spec §4.1, a frame write must be atomic — callers
// serialize access to bw themselves (the engine funnels all writes through
// one writer goroutine, see conn.go).
func writeFrame(bw *bufio.Writer, typ FrameType, flags FrameFlags, streamID uint32, payload []byte) error {
	var hdr [DefaultFrameSize]byte

	wire.Uint24ToBytes(hdr[:3], uint32(len(payload)))
	hdr[3] = byte(typ)
	hdr[4] = byte(flags)
	wire.Uint32ToBytes(hdr[5:], streamID&(1<<31-1))

	if _, err := bw.Write(hdr[:]); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := bw.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

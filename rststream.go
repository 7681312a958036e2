package h2conn

import (
	"bufio"

	"github.com/coralmesh/h2conn/wire"
)

// RstStreamFrame abruptly terminates a single stream.
// http://httpwg.org/specs/rfc7540.html#rfc.section.6.4
type RstStreamFrame struct {
	Code Code
}

func parseRstStreamFrame(fr *rawFrame) (*RstStreamFrame, error) {
	if len(fr.Payload) < 4 {
		return nil, connErrf(FrameSizeError, "short RST_STREAM frame on stream %d", fr.StreamID)
	}
	return &RstStreamFrame{Code: Code(wire.BytesToUint32(fr.Payload))}, nil
}

func writeRstStreamFrame(bw *bufio.Writer, streamID uint32, code Code) error {
	payload := wire.AppendUint32Bytes(make([]byte, 0, 4), uint32(code))
	return writeFrame(bw, FrameRstStream, 0, streamID, payload)
}

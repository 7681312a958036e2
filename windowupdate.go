package h2conn

import (
	"bufio"

	"github.com/coralmesh/h2conn/wire"
)

// WindowUpdateFrame grows either the connection window (StreamID == 0) or a
// single stream's window by Increment bytes.
// http://httpwg.org/specs/rfc7540.html#rfc.section.6.9
type WindowUpdateFrame struct {
	Increment uint32
}

func parseWindowUpdateFrame(fr *rawFrame) (*WindowUpdateFrame, error) {
	if len(fr.Payload) != 4 {
		return nil, connErrf(FrameSizeError, "WINDOW_UPDATE payload length %d != 4", len(fr.Payload))
	}
	inc := wire.BytesToUint32(fr.Payload) & (1<<31 - 1)
	if inc == 0 {
		if fr.StreamID == 0 {
			return nil, connErr(ProtocolError, "WINDOW_UPDATE increment of 0 on connection")
		}
		return nil, streamErr(fr.StreamID, ProtocolError, "WINDOW_UPDATE increment of 0")
	}
	return &WindowUpdateFrame{Increment: inc}, nil
}

func writeWindowUpdateFrame(bw *bufio.Writer, streamID, increment uint32) error {
	payload := wire.AppendUint32Bytes(make([]byte, 0, 4), increment&(1<<31-1))
	return writeFrame(bw, FrameWindowUpdate, 0, streamID, payload)
}

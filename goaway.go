package h2conn

import (
	"bufio"

	"github.com/coralmesh/h2conn/wire"
)

// GoAwayFrame announces the peer is shutting the connection down, and the
// highest-numbered stream it will still process.
// http://httpwg.org/specs/rfc7540.html#rfc.section.6.8
type GoAwayFrame struct {
	LastStreamID uint32
	Code         Code
	Debug        []byte
}

func parseGoAwayFrame(fr *rawFrame) (*GoAwayFrame, error) {
	if len(fr.Payload) < 8 {
		return nil, connErrf(FrameSizeError, "short GOAWAY frame")
	}
	ga := &GoAwayFrame{
		LastStreamID: wire.BytesToUint32(fr.Payload) & (1<<31 - 1),
		Code:         Code(wire.BytesToUint32(fr.Payload[4:])),
	}
	if len(fr.Payload) > 8 {
		ga.Debug = append([]byte(nil), fr.Payload[8:]...)
	}
	return ga, nil
}

func writeGoAwayFrame(bw *bufio.Writer, lastStreamID uint32, code Code, debug []byte) error {
	payload := wire.AppendUint32Bytes(make([]byte, 0, 8+len(debug)), lastStreamID&(1<<31-1))
	payload = wire.AppendUint32Bytes(payload, uint32(code))
	payload = append(payload, debug...)
	return writeFrame(bw, FrameGoAway, 0, 0, payload)
}

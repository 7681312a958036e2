package h2conn

import "bufio"

// PingFrame is used for connection-level RTT measurement and keepalive.
// http://httpwg.org/specs/rfc7540.html#rfc.section.6.7
type PingFrame struct {
	Ack  bool
	Data [8]byte
}

func parsePingFrame(fr *rawFrame) (*PingFrame, error) {
	if len(fr.Payload) != 8 {
		return nil, connErrf(FrameSizeError, "PING payload length %d != 8", len(fr.Payload))
	}
	pf := &PingFrame{Ack: fr.Flags.Has(FlagAck)}
	copy(pf.Data[:], fr.Payload)
	return pf, nil
}

func writePingFrame(bw *bufio.Writer, data [8]byte, ack bool) error {
	flags := FrameFlags(0)
	if ack {
		flags = flags.Add(FlagAck)
	}
	return writeFrame(bw, FramePing, flags, 0, data[:])
}

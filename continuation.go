package h2conn

import "bufio"

// ContinuationFrame carries the overflow of a header block that did not fit
// in one HEADERS (or PUSH_PROMISE) frame.
// http://httpwg.org/specs/rfc7540.html#rfc.section.6.10
type ContinuationFrame struct {
	EndHeaders    bool
	BlockFragment []byte
}

func parseContinuationFrame(fr *rawFrame) (*ContinuationFrame, error) {
	return &ContinuationFrame{
		EndHeaders:    fr.Flags.Has(FlagEndHeaders),
		BlockFragment: append([]byte(nil), fr.Payload...),
	}, nil
}

func writeContinuationFrame(bw *bufio.Writer, streamID uint32, block []byte, endHeaders bool) error {
	flags := FrameFlags(0)
	if endHeaders {
		flags = flags.Add(FlagEndHeaders)
	}
	return writeFrame(bw, FrameContinuation, flags, streamID, block)
}

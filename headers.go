package h2conn

import (
	"bufio"

	"github.com/coralmesh/h2conn/wire"
)

// HeadersFrame opens a stream (or carries trailers) with a header block
// fragment, optionally preceded by the stream's initial priority.
// http://httpwg.org/specs/rfc7540.html#rfc.section.6.2
type HeadersFrame struct {
	EndStream     bool
	EndHeaders    bool
	Priority      *PriorityParams
	BlockFragment []byte
}

func parseHeadersFrame(fr *rawFrame) (*HeadersFrame, error) {
	payload := fr.Payload

	if fr.Flags.Has(FlagPadded) {
		var err error
		payload, err = wire.CutPadding(payload, int(fr.Length))
		if err != nil {
			return nil, streamErrf(fr.StreamID, ProtocolError, "%s", err)
		}
	}

	hf := &HeadersFrame{
		EndStream:  fr.Flags.Has(FlagEndStream),
		EndHeaders: fr.Flags.Has(FlagEndHeaders),
	}

	if fr.Flags.Has(FlagPriority) {
		p, rest, err := parsePriorityParams(payload)
		if err != nil {
			return nil, streamErrf(fr.StreamID, FrameSizeError, "short HEADERS priority prefix")
		}
		hf.Priority = &p
		payload = rest
	}

	hf.BlockFragment = append([]byte(nil), payload...)
	return hf, nil
}

// writeHeadersFrame writes block as one HEADERS frame followed by as many
// CONTINUATION frames as needed to stay within maxFrameSize, exactly as
// RFC 7540 section 4.3 requires: the header block is one logical unit that
// must not be interleaved with frames for other streams.
//
// padMax, if > 0, asks for up to that many bytes of RFC 7540 section 6.2
// PADDED padding on the HEADERS frame, mirroring the teacher's headers.go
// AddPadding call. Padding only ever applies to the single-frame case: a
// header block already split across CONTINUATION has no room budget left
// to pad without perturbing the fragmentation math, so padMax is ignored
// whenever the block doesn't fit in one frame.
func writeHeadersFrame(bw *bufio.Writer, streamID uint32, block []byte, endStream bool, maxFrameSize uint32, padMax int) error {
	first := block
	rest := []byte(nil)
	if uint32(len(first)) > maxFrameSize {
		first, rest = block[:maxFrameSize], block[maxFrameSize:]
	}

	flags := FrameFlags(0)
	if endStream {
		flags = flags.Add(FlagEndStream)
	}
	if len(rest) == 0 {
		flags = flags.Add(FlagEndHeaders)
	}

	payload := first
	if padMax > 0 && len(rest) == 0 {
		if room := int(maxFrameSize) - len(first) - 1; room > 0 {
			if padMax > room {
				padMax = room
			}
			payload = wire.AddPadding(first, padMax)
			flags = flags.Add(FlagPadded)
		}
	}

	if err := writeFrame(bw, FrameHeaders, flags, streamID, payload); err != nil {
		return err
	}

	for len(rest) > 0 {
		chunk := rest
		last := true
		if uint32(len(chunk)) > maxFrameSize {
			chunk, rest = rest[:maxFrameSize], rest[maxFrameSize:]
			last = false
		} else {
			rest = nil
		}
		if err := writeContinuationFrame(bw, streamID, chunk, last); err != nil {
			return err
		}
	}
	return nil
}

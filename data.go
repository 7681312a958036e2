package h2conn

import (
	"bufio"

	"github.com/coralmesh/h2conn/wire"
)

// DataFrame carries a chunk of a request or response body.
// http://httpwg.org/specs/rfc7540.html#rfc.section.6.1
type DataFrame struct {
	EndStream bool
	Data      []byte
}

func parseDataFrame(fr *rawFrame) (*DataFrame, error) {
	payload := fr.Payload

	if fr.Flags.Has(FlagPadded) {
		var err error
		payload, err = wire.CutPadding(payload, int(fr.Length))
		if err != nil {
			return nil, streamErrf(fr.StreamID, ProtocolError, "%s", err)
		}
	}

	d := &DataFrame{
		EndStream: fr.Flags.Has(FlagEndStream),
		Data:      append([]byte(nil), payload...),
	}
	return d, nil
}

func writeDataFrame(bw *bufio.Writer, streamID uint32, data []byte, endStream bool) error {
	flags := FrameFlags(0)
	if endStream {
		flags = flags.Add(FlagEndStream)
	}
	return writeFrame(bw, FrameData, flags, streamID, data)
}

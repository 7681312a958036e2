package h2conn

import (
	"github.com/coralmesh/h2conn/wire"
)

// PriorityParams is the 5-byte priority specification shared by the
// PRIORITY frame and the optional priority prefix of a HEADERS frame.
// http://httpwg.org/specs/rfc7540.html#rfc.section.6.3
type PriorityParams struct {
	StreamDep uint32
	Exclusive bool
	Weight    uint8
}

func parsePriorityParams(b []byte) (PriorityParams, []byte, error) {
	if len(b) < 5 {
		return PriorityParams{}, nil, ErrMissingBytes
	}
	raw := wire.BytesToUint32(b)
	return PriorityParams{
		StreamDep: raw & (1<<31 - 1),
		Exclusive: raw&(1<<31) != 0,
		Weight:    b[4],
	}, b[5:], nil
}

func appendPriorityParams(dst []byte, p PriorityParams) []byte {
	dep := p.StreamDep & (1<<31 - 1)
	if p.Exclusive {
		dep |= 1 << 31
	}
	dst = wire.AppendUint32Bytes(dst, dep)
	return append(dst, p.Weight)
}

// PriorityFrame reprioritizes a stream. The engine records what the peer
// asks but does not implement the dependency tree or scheduling itself —
// see the non-goals in SPEC_FULL.md section 1.
type PriorityFrame struct {
	Params PriorityParams
}

func parsePriorityFrame(fr *rawFrame) (*PriorityFrame, error) {
	p, _, err := parsePriorityParams(fr.Payload)
	if err != nil {
		return nil, streamErrf(fr.StreamID, FrameSizeError, "short PRIORITY frame")
	}
	return &PriorityFrame{Params: p}, nil
}

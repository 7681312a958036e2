package h2conn

import (
	"bufio"

	"github.com/coralmesh/h2conn/wire"
)

// Setting identifiers as defined by RFC 7540 section 6.5.2.
type Setting uint16

const (
	SettingHeaderTableSize      Setting = 0x1
	SettingEnablePush           Setting = 0x2
	SettingMaxConcurrentStreams Setting = 0x3
	SettingInitialWindowSize    Setting = 0x4
	SettingMaxFrameSize         Setting = 0x5
	SettingMaxHeaderListSize    Setting = 0x6
)

const settingEntrySize = 6 // 2-byte id + 4-byte value

// SettingsFrame communicates connection-level configuration parameters.
// http://httpwg.org/specs/rfc7540.html#rfc.section.6.5
type SettingsFrame struct {
	Ack    bool
	Values map[Setting]uint32
}

func parseSettingsFrame(fr *rawFrame) (*SettingsFrame, error) {
	sf := &SettingsFrame{Ack: fr.Flags.Has(FlagAck)}

	if sf.Ack {
		if len(fr.Payload) != 0 {
			return nil, connErrf(FrameSizeError, "SETTINGS ack carries a non-empty payload")
		}
		return sf, nil
	}

	if len(fr.Payload)%settingEntrySize != 0 {
		return nil, connErrf(FrameSizeError, "SETTINGS payload length %d not a multiple of %d", len(fr.Payload), settingEntrySize)
	}

	sf.Values = make(map[Setting]uint32, len(fr.Payload)/settingEntrySize)
	for i := 0; i+settingEntrySize <= len(fr.Payload); i += settingEntrySize {
		id := Setting(uint16(fr.Payload[i])<<8 | uint16(fr.Payload[i+1]))
		val := wire.BytesToUint32(fr.Payload[i+2:])
		sf.Values[id] = val
	}
	return sf, nil
}

func writeSettingsFrame(bw *bufio.Writer, streamID uint32, values map[Setting]uint32) error {
	payload := make([]byte, 0, len(values)*settingEntrySize)
	for id, val := range values {
		payload = append(payload, byte(id>>8), byte(id))
		payload = wire.AppendUint32Bytes(payload, val)
	}
	return writeFrame(bw, FrameSettings, 0, streamID, payload)
}

func writeSettingsAck(bw *bufio.Writer) error {
	return writeFrame(bw, FrameSettings, FlagAck, 0, nil)
}

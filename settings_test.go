package h2conn

import (
	"bufio"
	"bytes"
	"testing"
)

func TestSettingsFrameRoundTrip(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	bw := bufio.NewWriter(buf)

	values := map[Setting]uint32{
		SettingInitialWindowSize: 1 << 20,
		SettingMaxFrameSize:      1 << 16,
	}
	if err := writeSettingsFrame(bw, 0, values); err != nil {
		t.Fatal(err)
	}
	bw.Flush()

	br := bufio.NewReader(buf)
	fr, ok, err := readFrame(br, 0)
	if err != nil || !ok {
		t.Fatal(err)
	}
	sf, err := parseSettingsFrame(fr)
	if err != nil {
		t.Fatal(err)
	}
	if sf.Ack {
		t.Fatal("did not expect ACK")
	}
	for id, v := range values {
		if sf.Values[id] != v {
			t.Fatalf("setting %d = %d, want %d", id, sf.Values[id], v)
		}
	}
}

func TestSettingsAckRejectsNonEmptyPayload(t *testing.T) {
	fr := &rawFrame{Flags: FlagAck, Payload: []byte{1, 2, 3}}
	if _, err := parseSettingsFrame(fr); err == nil {
		t.Fatal("expected an error for a non-empty SETTINGS ack")
	}
}

func TestSettingsFrameRejectsMisalignedPayload(t *testing.T) {
	fr := &rawFrame{Payload: make([]byte, 5)}
	if _, err := parseSettingsFrame(fr); err == nil {
		t.Fatal("expected an error for a payload not a multiple of 6")
	}
}

func TestWindowUpdateFrameRoundTrip(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	bw := bufio.NewWriter(buf)
	if err := writeWindowUpdateFrame(bw, 9, 1000); err != nil {
		t.Fatal(err)
	}
	bw.Flush()

	br := bufio.NewReader(buf)
	fr, ok, err := readFrame(br, 0)
	if err != nil || !ok {
		t.Fatal(err)
	}
	wu, err := parseWindowUpdateFrame(fr)
	if err != nil {
		t.Fatal(err)
	}
	if wu.Increment != 1000 {
		t.Fatalf("increment = %d, want 1000", wu.Increment)
	}
}

func TestWindowUpdateRejectsZeroIncrement(t *testing.T) {
	connFr := &rawFrame{StreamID: 0, Payload: make([]byte, 4)}
	_, err := parseWindowUpdateFrame(connFr)
	cerr, ok := err.(*ConnError)
	if !ok || cerr.Code != ProtocolError {
		t.Fatalf("connection-level zero increment err = %v (%T)", err, err)
	}

	streamFr := &rawFrame{StreamID: 3, Payload: make([]byte, 4)}
	_, err = parseWindowUpdateFrame(streamFr)
	serr, ok := err.(*StreamError)
	if !ok || serr.Code != ProtocolError {
		t.Fatalf("stream-level zero increment err = %v (%T)", err, err)
	}
}

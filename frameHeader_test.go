package h2conn

import (
	"bufio"
	"bytes"
	"testing"
)

func TestFrameWriteReadRoundTrip(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	bw := bufio.NewWriter(buf)

	payload := []byte("make fasthttp great again")
	if err := writeFrame(bw, FrameData, FlagEndStream, 3, payload); err != nil {
		t.Fatal(err)
	}
	if err := bw.Flush(); err != nil {
		t.Fatal(err)
	}

	br := bufio.NewReader(buf)
	fr, ok, err := readFrame(br, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected ok frame")
	}
	defer releaseRawFrame(fr)

	if fr.Type != FrameData {
		t.Fatalf("type = %v, want DATA", fr.Type)
	}
	if fr.StreamID != 3 {
		t.Fatalf("stream id = %d, want 3", fr.StreamID)
	}
	if !fr.Flags.Has(FlagEndStream) {
		t.Fatal("expected END_STREAM flag")
	}
	if string(fr.Payload) != string(payload) {
		t.Fatalf("payload = %q, want %q", fr.Payload, payload)
	}
}

func TestReadFrameMasksReservedStreamBit(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	bw := bufio.NewWriter(buf)

	if err := writeFrame(bw, FramePing, 0, 0, make([]byte, 8)); err != nil {
		t.Fatal(err)
	}
	bw.Flush()

	raw := buf.Bytes()
	raw[5] |= 0x80 // set the reserved top bit directly on the wire

	br := bufio.NewReader(bytes.NewReader(raw))
	fr, ok, err := readFrame(br, 0)
	if err != nil || !ok {
		t.Fatalf("readFrame: ok=%v err=%v", ok, err)
	}
	defer releaseRawFrame(fr)

	if fr.StreamID != 0 {
		t.Fatalf("stream id = %d, want reserved bit masked off", fr.StreamID)
	}
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	bw := bufio.NewWriter(buf)
	writeFrame(bw, FrameData, 0, 1, make([]byte, 100))
	bw.Flush()

	br := bufio.NewReader(buf)
	_, _, err := readFrame(br, 16)
	cerr, ok := err.(*ConnError)
	if !ok {
		t.Fatalf("err = %v (%T), want *ConnError", err, err)
	}
	if cerr.Code != FrameSizeError {
		t.Fatalf("code = %v, want FRAME_SIZE_ERROR", cerr.Code)
	}
}

func TestReadFrameDiscardsUnknownType(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	bw := bufio.NewWriter(buf)
	writeFrame(bw, FrameType(0xff), 0, 1, []byte("ignored"))
	bw.Flush()

	br := bufio.NewReader(buf)
	fr, ok, err := readFrame(br, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for unknown frame type")
	}
	if fr != nil {
		t.Fatal("expected nil frame for unknown type")
	}
}

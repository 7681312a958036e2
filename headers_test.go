package h2conn

import (
	"bufio"
	"bytes"
	"testing"
)

func TestWriteHeadersFrameFragmentsAcrossContinuation(t *testing.T) {
	block := bytes.Repeat([]byte{0x42}, 30)

	buf := bytes.NewBuffer(nil)
	bw := bufio.NewWriter(buf)
	if err := writeHeadersFrame(bw, 1, block, true, 10, 0); err != nil {
		t.Fatal(err)
	}
	bw.Flush()

	br := bufio.NewReader(buf)

	fr, ok, err := readFrame(br, 0)
	if err != nil || !ok {
		t.Fatalf("read HEADERS: ok=%v err=%v", ok, err)
	}
	hf, err := parseHeadersFrame(fr)
	if err != nil {
		t.Fatal(err)
	}
	if !hf.EndStream {
		t.Fatal("expected END_STREAM on the first frame")
	}
	if hf.EndHeaders {
		t.Fatal("did not expect END_HEADERS on the first frame")
	}
	if len(hf.BlockFragment) != 10 {
		t.Fatalf("first fragment len = %d, want 10", len(hf.BlockFragment))
	}
	releaseRawFrame(fr)

	var reassembled []byte
	reassembled = append(reassembled, hf.BlockFragment...)

	for {
		fr, ok, err := readFrame(br, 0)
		if err != nil || !ok {
			t.Fatalf("read CONTINUATION: ok=%v err=%v", ok, err)
		}
		if fr.Type != FrameContinuation {
			t.Fatalf("type = %v, want CONTINUATION", fr.Type)
		}
		cf, _ := parseContinuationFrame(fr)
		reassembled = append(reassembled, cf.BlockFragment...)
		last := cf.EndHeaders
		releaseRawFrame(fr)
		if last {
			break
		}
	}

	if !bytes.Equal(reassembled, block) {
		t.Fatalf("reassembled block mismatch: got %d bytes, want %d", len(reassembled), len(block))
	}
}

func TestParseHeadersFrameWithPriorityPrefix(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	bw := bufio.NewWriter(buf)

	payload := appendPriorityParams(make([]byte, 0, 5), PriorityParams{StreamDep: 7, Exclusive: true, Weight: 200})
	payload = append(payload, []byte("hdrs")...)

	if err := writeFrame(bw, FrameHeaders, FlagEndHeaders.Add(FlagPriority), 5, payload); err != nil {
		t.Fatal(err)
	}
	bw.Flush()

	br := bufio.NewReader(buf)
	fr, ok, err := readFrame(br, 0)
	if err != nil || !ok {
		t.Fatal(err)
	}
	hf, err := parseHeadersFrame(fr)
	if err != nil {
		t.Fatal(err)
	}
	if hf.Priority == nil {
		t.Fatal("expected priority prefix to be parsed")
	}
	if hf.Priority.StreamDep != 7 || !hf.Priority.Exclusive || hf.Priority.Weight != 200 {
		t.Fatalf("priority = %+v", hf.Priority)
	}
	if string(hf.BlockFragment) != "hdrs" {
		t.Fatalf("block fragment = %q", hf.BlockFragment)
	}
}

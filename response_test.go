package h2conn

import (
	"context"
	"io"
	"testing"
)

func TestBodyStreamPushThenReadAll(t *testing.T) {
	bs := newBodyStream()
	bs.push([]byte("hello "))
	bs.push([]byte("world"))
	bs.closeWith(nil)

	got, err := bs.ReadAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello world" {
		t.Fatalf("got %q", got)
	}
}

func TestBodyStreamNextBlocksUntilPush(t *testing.T) {
	bs := newBodyStream()

	done := make(chan struct{})
	var got []byte
	go func() {
		chunk, err := bs.Next(context.Background())
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		got = chunk
		close(done)
	}()

	bs.push([]byte("late"))
	<-done

	if string(got) != "late" {
		t.Fatalf("got %q, want %q", got, "late")
	}
}

func TestBodyStreamClosedWithErrorSurfacesToReader(t *testing.T) {
	bs := newBodyStream()
	sentinel := streamErr(1, Cancel, "truncated")
	bs.closeWith(sentinel)

	_, err := bs.Next(context.Background())
	if err != sentinel {
		t.Fatalf("err = %v, want %v", err, sentinel)
	}
}

func TestBodyStreamCleanEOF(t *testing.T) {
	bs := newBodyStream()
	bs.closeWith(nil)
	_, err := bs.Next(context.Background())
	if err != io.EOF {
		t.Fatalf("err = %v, want io.EOF", err)
	}
}

func TestBytesBodyYieldsOnceThenEOF(t *testing.T) {
	b := NewBytesBody([]byte("payload"))
	chunk, err := b.Next(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if string(chunk) != "payload" {
		t.Fatalf("chunk = %q", chunk)
	}
	if _, err := b.Next(context.Background()); err != io.EOF {
		t.Fatalf("second Next err = %v, want io.EOF", err)
	}
}

func TestNewBytesBodyEmptyIsNil(t *testing.T) {
	if b := NewBytesBody(nil); b != nil {
		t.Fatalf("expected nil BodyReader for an empty body, got %v", b)
	}
}

package h2conn

import (
	"context"
	"io"
)

// Request is the engine's wire-agnostic view of an outbound exchange: a
// method, a path, a scheme/authority pair, a header list, and an optional
// body source. The fasthttp bridge (fasthttpbridge.go) builds one of these
// from a *fasthttp.Request.
type Request struct {
	Method    string
	Scheme    string
	Authority string
	Path      string

	Headers []HeaderField

	// Body, if non-nil, is read in chunks until it returns io.EOF. A nil
	// Body means the request has no entity and HEADERS carries END_STREAM.
	Body BodyReader
}

// BodyReader is pulled by the Request Driver one chunk at a time so a
// caller can stream a body without buffering it all up front.
type BodyReader interface {
	// Next returns the next chunk of body bytes, or io.EOF when exhausted.
	// ctx cancellation must cause Next to return promptly.
	Next(ctx context.Context) ([]byte, error)
}

// bytesBody is the BodyReader for a request body already fully in memory,
// the common case when bridging from fasthttp.Request.Body().
type bytesBody struct {
	b    []byte
	sent bool
}

// NewBytesBody wraps a complete in-memory body as a single-chunk BodyReader.
func NewBytesBody(b []byte) BodyReader {
	if len(b) == 0 {
		return nil
	}
	return &bytesBody{b: b}
}

func (bb *bytesBody) Next(ctx context.Context) ([]byte, error) {
	if bb.sent {
		return nil, io.EOF
	}
	bb.sent = true
	return bb.b, nil
}

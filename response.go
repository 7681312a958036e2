package h2conn

import (
	"context"
	"io"
	"sync"

	"github.com/valyala/bytebufferpool"
)

// Response is what request() resolves with: a status code, the decoded
// header list (minus :status), and a Body that streams DATA frames as
// they arrive.
type Response struct {
	StatusCode int
	Headers    []HeaderField
	Body       *BodyStream
}

// BodyStream is a multi-producer/single-consumer chunk queue for one
// response body: the Frame Processor is the sole producer
// (pushing chunks as DATA frames arrive), and the caller's reads are the
// sole consumer. bytebufferpool backs each chunk's storage, mirroring how
// the teacher pools byte buffers for response bodies elsewhere in the
// fasthttp stack.
type BodyStream struct {
	mu     sync.Mutex
	chunks [][]byte
	ready  chan struct{}
	err    error
	closed bool
}

func newBodyStream() *BodyStream {
	return &BodyStream{ready: make(chan struct{}, 1)}
}

// push is called by the Frame Processor for every DATA frame belonging to
// this stream. b is copied into a pooled buffer since fr.Payload is reused
// once the frame is released.
func (bs *BodyStream) push(b []byte) {
	if len(b) == 0 {
		return
	}
	buf := bytebufferpool.Get()
	buf.Set(b)

	// buf.B now owns the copy; it is handed to the consumer via chunks and
	// must not be returned to the pool, or a later Get could hand the same
	// backing array to an unrelated caller while we still reference it.
	bs.mu.Lock()
	bs.chunks = append(bs.chunks, buf.B)
	bs.mu.Unlock()

	select {
	case bs.ready <- struct{}{}:
	default:
	}
}

// closeWith marks the stream finished, with err == nil for a clean
// END_STREAM and non-nil for a stream/connection fault that truncated it.
func (bs *BodyStream) closeWith(err error) {
	bs.mu.Lock()
	if bs.closed {
		bs.mu.Unlock()
		return
	}
	bs.closed = true
	bs.err = err
	bs.mu.Unlock()

	select {
	case bs.ready <- struct{}{}:
	default:
	}
}

// Next returns the next available chunk, or io.EOF once the stream ended
// cleanly, or the terminal error if it ended abnormally.
func (bs *BodyStream) Next(ctx context.Context) ([]byte, error) {
	for {
		bs.mu.Lock()
		if len(bs.chunks) > 0 {
			chunk := bs.chunks[0]
			bs.chunks = bs.chunks[1:]
			bs.mu.Unlock()
			return chunk, nil
		}
		if bs.closed {
			err := bs.err
			bs.mu.Unlock()
			if err == nil {
				err = io.EOF
			}
			return nil, err
		}
		bs.mu.Unlock()

		select {
		case <-bs.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// ReadAll drains the body stream into a single slice. Convenience for
// callers (and tests) that don't need incremental delivery.
func (bs *BodyStream) ReadAll(ctx context.Context) ([]byte, error) {
	var out []byte
	for {
		chunk, err := bs.Next(ctx)
		if len(chunk) > 0 {
			out = append(out, chunk...)
		}
		if err != nil {
			if err == io.EOF {
				return out, nil
			}
			return out, err
		}
	}
}

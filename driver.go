package h2conn

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync/atomic"
)

var hopByHopRequestHeaders = map[string]bool{
	"host":       true,
	"connection": true,
}

// Request implements the Request Driver: allocate a stream, emit headers
// (and body, if any), and wait for the response head. This is the single
// public entry point an embedding HTTP client calls.
//
// Steps follow SPEC_FULL.md section 4.5 in order.
func (c *Conn) Request(ctx context.Context, req *Request) (*Response, error) {
	if atomic.LoadInt32(&c.closed) == 1 {
		return nil, ErrConnClosed
	}

	if err := c.awaitSettings(ctx); err != nil {
		return nil, err
	}

	s, err := c.streams.allocate(func(id uint32) *stream {
		return newStream(id, DefaultInitialWindowSize, c.trackedInitialWindow(), int(c.opts.MaxHeaderListSize), c.opts.MaxBodySize)
	})
	if err != nil {
		return nil, err
	}

	c.sock.Reference()
	defer c.sock.Unreference()

	cancelled := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			close(cancelled)
			_ = c.enqueue(false, func(bw *bufio.Writer) error {
				return writeRstStreamFrame(bw, s.id, Cancel)
			})
			c.releaseStream(s.id, ErrCancelled)
		case <-s.done:
		}
	}()

	if err := c.writeRequest(ctx, s, req); err != nil {
		c.releaseStream(s.id, err)
		return nil, err
	}

	select {
	case <-s.headReady:
		s.mu.Lock()
		resp := s.resp
		s.mu.Unlock()
		if resp != nil {
			return resp, nil
		}
	case <-s.done:
	case <-ctx.Done():
		return nil, ErrCancelled
	}

	s.mu.Lock()
	err = s.err
	s.mu.Unlock()
	if err == nil {
		err = ErrConnClosed
	}
	return nil, err
}

// writeRequest encodes the pseudo-headers and caller headers, then emits
// HEADERS (+ CONTINUATION) and, if a body is present, pumps DATA frames.
func (c *Conn) writeRequest(ctx context.Context, s *stream, req *Request) error {
	path := req.Path
	if path == "" {
		path = "/"
	}

	fields := make([]HeaderField, 0, 4+len(req.Headers))
	fields = append(fields,
		HeaderField{Name: ":method", Value: req.Method},
		HeaderField{Name: ":scheme", Value: req.Scheme},
		HeaderField{Name: ":authority", Value: req.Authority},
		HeaderField{Name: ":path", Value: path},
	)
	for _, h := range req.Headers {
		name := strings.ToLower(h.Name)
		if hopByHopRequestHeaders[name] {
			continue
		}
		fields = append(fields, HeaderField{Name: name, Value: h.Value})
	}

	var block []byte
	block, err := c.hp.encode(block, fields)
	if err != nil {
		return err
	}

	hasBody := req.Body != nil
	maxFrameSize := c.peerMaxFrameSizeSnapshot()

	streamID := s.id
	endStreamOnHeaders := !hasBody

	err = c.enqueue(true, func(bw *bufio.Writer) error {
		return writeHeadersFrame(bw, streamID, block, endStreamOnHeaders, maxFrameSize, c.opts.PadHeaderFrames)
	})
	if err != nil {
		return err
	}
	if endStreamOnHeaders {
		s.mu.Lock()
		s.state |= streamLocalClosed
		s.mu.Unlock()
	}

	if !hasBody {
		return nil
	}

	return c.pumpBody(ctx, s, req.Body, maxFrameSize)
}

// pumpBody reads chunks from body and writes each as a non-terminal DATA
// frame except the last, which carries END_STREAM. It awaits flow-control
// credit on both the connection and the stream windows before each write,
// per SPEC_FULL.md section 4.3's "effective writable amount" rule, and
// fragments any chunk wider than maxFrameSize. ctx is the caller's request
// context: body.Next and every window wait observe it, so a cancellation
// that lands while this goroutine is blocked on window credit unblocks it
// instead of hanging until the peer happens to send WINDOW_UPDATE.
func (c *Conn) pumpBody(ctx context.Context, s *stream, body BodyReader, maxFrameSize uint32) error {
	chunk, err := body.Next(ctx)
	if err != nil && err != io.EOF {
		return err
	}

	for {
		if err == io.EOF {
			if writeErr := c.writeDataChunk(ctx, s, chunk, true, maxFrameSize); writeErr != nil {
				return writeErr
			}
			break
		}

		next, nextErr := body.Next(ctx)
		if nextErr != nil && nextErr != io.EOF {
			return nextErr
		}

		if nextErr == io.EOF && len(next) == 0 {
			if writeErr := c.writeDataChunk(ctx, s, chunk, true, maxFrameSize); writeErr != nil {
				return writeErr
			}
			break
		}

		if writeErr := c.writeDataChunk(ctx, s, chunk, false, maxFrameSize); writeErr != nil {
			return writeErr
		}
		chunk, err = next, nextErr
	}

	s.mu.Lock()
	s.state |= streamLocalClosed
	s.mu.Unlock()
	return nil
}

// writeDataChunk blocks until enough combined connection+stream window is
// available, writing as many maxFrameSize-sized fragments as needed.
func (c *Conn) writeDataChunk(ctx context.Context, s *stream, data []byte, endStream bool, maxFrameSize uint32) error {
	empty := len(data) == 0
	for len(data) > 0 {
		n, err := c.awaitSendCredit(ctx, s, len(data), maxFrameSize)
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		fragment := data[:n]
		data = data[n:]
		last := endStream && len(data) == 0

		if err := c.enqueue(true, func(bw *bufio.Writer) error {
			return writeDataFrame(bw, s.id, fragment, last)
		}); err != nil {
			return err
		}

		c.flow.addClientWindow(-int64(n))
		s.mu.Lock()
		s.clientWindow -= int64(n)
		s.mu.Unlock()
	}
	if empty && endStream {
		// an originally-empty final chunk still needs an END_STREAM DATA frame
		return c.enqueue(true, func(bw *bufio.Writer) error {
			return writeDataFrame(bw, s.id, nil, true)
		})
	}
	return nil
}

// awaitSendCredit blocks until the connection or stream window has grown,
// per the sendWaiter design: wake() (armed by WINDOW_UPDATE handling and
// SETTINGS_INITIAL_WINDOW_SIZE changes) unblocks this wait. It also
// revalidates on every suspension per SPEC_FULL.md section 5: if the
// stream is released out from under the pump (RST_STREAM, GOAWAY, socket
// error) or ctx is cancelled while credit is never granted, the wait ends
// instead of blocking forever on a window that will never arrive.
func (c *Conn) awaitSendCredit(ctx context.Context, s *stream, want int, maxFrameSize uint32) (int, error) {
	for {
		connWin := c.flow.loadClientWindow()
		s.mu.Lock()
		streamWin := s.clientWindow
		s.mu.Unlock()

		if n := effectiveSend(connWin, streamWin, maxFrameSize, want); n > 0 {
			return n, nil
		}

		select {
		case <-s.waitChan():
		case <-s.done:
			return 0, s.doneErr()
		case <-ctx.Done():
			return 0, ErrCancelled
		}
	}
}

func (c *Conn) peerMaxFrameSizeSnapshot() uint32 {
	c.peerSettingsMu.Lock()
	defer c.peerSettingsMu.Unlock()
	return c.peerMaxFrameSize
}

package h2conn

import (
	"bufio"
	"context"
	"crypto/tls"
	"sync"
	"sync/atomic"
	"time"
)

// clientPreface is sent before anything else, per RFC 7540 section 3.5.
var clientPreface = []byte("PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n")

// DefaultPingInterval mirrors the teacher's conn.go default of keeping the
// connection alive with a PING roughly every 5 seconds of otherwise-idle
// write-loop time.
const DefaultPingInterval = 5 * time.Second

const (
	defaultMaxConcurrentStreams = 256
	defaultMaxHeaderListSize    = 1 << 20
	defaultMaxBodySize          = 1 << 30
	defaultMaxFrameSize         = 1 << 14

	// defaultSettingsAckTimeout bounds how long the engine waits for the
	// peer to ack its initial SETTINGS before giving up on the handshake,
	// mirroring the unacks/ticker idiom the teacher uses for PING.
	defaultSettingsAckTimeout = 10 * time.Second
)

// ConnOpts configures a Conn. All fields are optional; zero values fall
// back to the package defaults applied in withDefaults.
type ConnOpts struct {
	// PingInterval is how often the write loop pings an otherwise idle
	// peer. Zero uses DefaultPingInterval.
	PingInterval time.Duration
	// DisablePingChecking, when true, never treats unacknowledged pings as
	// a timeout (matches the teacher's DisablePingChecking knob).
	DisablePingChecking bool

	MaxHeaderListSize uint32
	MaxBodySize       int64
	InitialWindowSize uint32

	// PadHeaderFrames, if > 0, requests up to that many bytes of RFC 7540
	// PADDED padding on outbound single-frame HEADERS (mirrors the
	// teacher's headers.go AddPadding call). Zero disables padding.
	PadHeaderFrames int

	// OnClose fires exactly once when the connection finishes closing,
	// for any reason (renamed from the teacher's OnDisconnect to match
	// the Close/closed vocabulary used throughout this package).
	OnClose func(*Conn)

	Logger Logger
}

func (o *ConnOpts) withDefaults() ConnOpts {
	out := *o
	if out.PingInterval <= 0 {
		out.PingInterval = DefaultPingInterval
	}
	if out.MaxHeaderListSize == 0 {
		out.MaxHeaderListSize = defaultMaxHeaderListSize
	}
	if out.MaxBodySize == 0 {
		out.MaxBodySize = defaultMaxBodySize
	}
	if out.InitialWindowSize == 0 {
		out.InitialWindowSize = DefaultInitialWindowSize
	}
	if out.Logger == nil {
		out.Logger = defaultLogger
	}
	return out
}

// writeJob is one atomic unit of work for the writer goroutine: everything
// fn writes to bw is flushed together before the next job runs, which is
// how a HEADERS+CONTINUATION run stays contiguous (SPEC_FULL.md section 5).
type writeJob struct {
	fn     func(bw *bufio.Writer) error
	result chan error
}

// Conn is a live HTTP/2 client connection: one Frame Codec, one Stream
// Table, one Flow Controller, one Frame Processor dispatch loop, and the
// Request Driver surface (Request) that the embedding HTTP client calls.
type Conn struct {
	sock Socket
	br   *bufio.Reader
	bw   *bufio.Writer

	opts ConnOpts
	log  Logger

	hp *hpackCodec

	streams *streamTable
	flow    *connFlow

	peerMaxFrameSize         uint32
	peerMaxConcurrentStreams uint32
	peerInitialWindowSize    int64
	peerSettingsMu           sync.Mutex

	writeCh chan writeJob
	closeCh chan struct{}

	settingsReceived     chan struct{}
	settingsReceivedOnce sync.Once

	unacks int32

	settingsAckTimer *time.Timer

	closeOnce  sync.Once
	closed     int32
	closeErr   error
	onCloseCBs []func(*Conn)
	onCloseMu  sync.Mutex

	lastErr atomic.Value // error
}

// NewConn wraps an already-established, ALPN-negotiated socket. Call
// Handshake before Request.
func NewConn(sock Socket, opts ConnOpts) *Conn {
	opts = opts.withDefaults()

	c := &Conn{
		sock:             sock,
		br:               bufio.NewReaderSize(sock, 4096),
		opts:             opts,
		log:              opts.Logger,
		hp:               newHPACKCodec(opts.MaxHeaderListSize),
		streams:          newStreamTable(defaultMaxConcurrentStreams),
		flow:             newConnFlow(int64(opts.InitialWindowSize)),
		peerMaxFrameSize: defaultMaxFrameSize,
		writeCh:          make(chan writeJob, 128),
		closeCh:          make(chan struct{}),
		settingsReceived: make(chan struct{}),
	}
	if opts.OnClose != nil {
		c.onCloseCBs = append(c.onCloseCBs, opts.OnClose)
	}
	return c
}

// Handshake sends the client preface and initial SETTINGS, then starts the
// reader and writer goroutines. It does not wait for the peer's SETTINGS;
// Request blocks on that itself (SPEC_FULL.md section 4.5 step 1).
func (c *Conn) Handshake() error {
	bw := bufio.NewWriterSize(c.sock, defaultMaxFrameSize)

	if _, err := bw.Write(clientPreface); err != nil {
		return err
	}

	initialSettings := map[Setting]uint32{
		SettingEnablePush:           0,
		SettingMaxConcurrentStreams: defaultMaxConcurrentStreams,
		SettingInitialWindowSize:    uint32(c.opts.InitialWindowSize),
		SettingMaxHeaderListSize:    c.opts.MaxHeaderListSize,
		SettingMaxFrameSize:         defaultMaxFrameSize,
	}
	if err := writeSettingsFrame(bw, 0, initialSettings); err != nil {
		return err
	}
	if err := writeWindowUpdateFrame(bw, 0, uint32(maxWindowSize-DefaultInitialWindowSize)); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}

	c.bw = bw
	c.settingsAckTimer = time.AfterFunc(defaultSettingsAckTimeout, func() {
		_ = c.shutdown(nil, SettingsTimeout)
	})

	go c.readLoop()
	go c.writeLoop()

	return nil
}

// IsBusy reports whether the connection can accept no further requests:
// either the peer's concurrent-stream budget is exhausted or the socket
// has closed.
func (c *Conn) IsBusy() bool {
	if atomic.LoadInt32(&c.closed) == 1 {
		return true
	}
	c.streams.mu.Lock()
	busy := c.streams.remainingStreams == 0
	c.streams.mu.Unlock()
	return busy
}

// OnClose registers cb to run when the connection closes. If the
// connection is already closed, cb runs immediately.
func (c *Conn) OnClose(cb func(*Conn)) {
	c.onCloseMu.Lock()
	if atomic.LoadInt32(&c.closed) == 1 {
		c.onCloseMu.Unlock()
		cb(c)
		return
	}
	c.onCloseCBs = append(c.onCloseCBs, cb)
	c.onCloseMu.Unlock()
}

// LocalAddr, RemoteAddr and TLSConnectionState expose the socket's
// identity to callers without leaking the Socket collaborator itself.
func (c *Conn) LocalAddr() string  { return c.sock.LocalAddr().String() }
func (c *Conn) RemoteAddr() string { return c.sock.RemoteAddr().String() }
func (c *Conn) TLSConnectionState() (tls.ConnectionState, bool) {
	return c.sock.TLSConnectionState()
}

// Close tears the connection down gracefully: GOAWAY(GRACEFUL_SHUTDOWN),
// drain, then fire on-close callbacks exactly once (SPEC_FULL.md 4.6).
func (c *Conn) Close() error {
	return c.shutdown(nil, GracefulShutdown)
}

// shutdown implements every close path. lastID == nil means "compute it"
// as the highest open stream id (Close, connection errors, transport
// failures); a non-nil lastID is sent as given (handleGoAway passes the
// peer's own last-stream-id).
func (c *Conn) shutdown(lastID *uint32, code Code) error {
	var err error
	c.closeOnce.Do(func() {
		atomic.StoreInt32(&c.closed, 1)
		if c.settingsAckTimer != nil {
			c.settingsAckTimer.Stop()
		}

		id := uint32(0)
		if lastID != nil {
			id = *lastID
		} else {
			id = c.streams.maxOpenID()
		}

		if c.bw != nil {
			_ = writeGoAwayFrame(c.bw, id, code, nil)
			_ = c.bw.Flush()
		}

		disErr := disconnected(connErr(code, "connection closed"))
		c.streams.forEach(func(s *stream) { s.finish(disErr) })

		close(c.closeCh)
		err = c.sock.Close()

		c.onCloseMu.Lock()
		cbs := c.onCloseCBs
		c.onCloseMu.Unlock()
		for _, cb := range cbs {
			cb(c)
		}
	})
	return err
}

func (c *Conn) recordErr(err error) {
	c.lastErr.Store(err)
}

// LastErr returns the error that caused the connection to close, if any.
func (c *Conn) LastErr() error {
	e, _ := c.lastErr.Load().(error)
	return e
}

func (c *Conn) writeLoop() {
	defer func() { _ = c.shutdown(nil, InternalError) }()

	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case job, ok := <-c.writeCh:
			if !ok {
				return
			}
			err := job.fn(c.bw)
			if err == nil {
				err = c.bw.Flush()
			}
			if job.result != nil {
				job.result <- err
			}
			if err != nil {
				c.recordErr(disconnected(err))
				return
			}
			if !c.opts.DisablePingChecking && atomic.LoadInt32(&c.unacks) >= 3 {
				c.recordErr(ErrSocketDisconnected)
				_ = c.shutdown(nil, SettingsTimeout)
				return
			}
		case <-ticker.C:
			if !c.opts.DisablePingChecking && atomic.LoadInt32(&c.unacks) >= 3 {
				c.recordErr(ErrSocketDisconnected)
				_ = c.shutdown(nil, SettingsTimeout)
				return
			}
			var data [8]byte
			if err := writePingFrame(c.bw, data, false); err != nil {
				c.recordErr(disconnected(err))
				return
			}
			if err := c.bw.Flush(); err != nil {
				c.recordErr(disconnected(err))
				return
			}
			atomic.AddInt32(&c.unacks, 1)
		case <-c.closeCh:
			return
		}
	}
}

// enqueue submits fn to the writer goroutine and, if wait, blocks until it
// has been written and flushed.
func (c *Conn) enqueue(wait bool, fn func(bw *bufio.Writer) error) error {
	job := writeJob{fn: fn}
	if wait {
		job.result = make(chan error, 1)
	}
	select {
	case c.writeCh <- job:
	case <-c.closeCh:
		return ErrConnClosed
	}
	if wait {
		select {
		case err := <-job.result:
			return err
		case <-c.closeCh:
			return ErrConnClosed
		}
	}
	return nil
}

func (c *Conn) readLoop() {
	defer func() { _ = c.shutdown(nil, InternalError) }()

	for {
		fr, ok, err := readFrame(c.br, c.peerMaxFrameSize)
		if err != nil {
			if cerr, isConn := err.(*ConnError); isConn {
				_ = c.shutdown(nil, cerr.Code)
			} else {
				c.recordErr(disconnected(err))
			}
			return
		}
		if !ok {
			continue
		}

		if err := c.dispatch(fr); err != nil {
			releaseRawFrame(fr)
			switch e := err.(type) {
			case *ConnError:
				_ = c.shutdown(nil, e.Code)
				return
			case *StreamError:
				c.resetStream(e.StreamID, e.Code)
				continue
			default:
				c.recordErr(err)
				return
			}
		}
		releaseRawFrame(fr)
	}
}

func (c *Conn) resetStream(id uint32, code Code) {
	_ = c.enqueue(false, func(bw *bufio.Writer) error {
		return writeRstStreamFrame(bw, id, code)
	})
	if s := c.streams.get(id); s != nil {
		c.releaseStream(id, streamErr(id, code, ""))
	}
}

func (c *Conn) releaseStream(id uint32, err error) {
	s := c.streams.get(id)
	if s == nil {
		return
	}
	c.streams.release(id)
	s.finish(err)
}

// fireSettingsReceived is called exactly once, the first time a non-ACK
// SETTINGS frame arrives.
func (c *Conn) fireSettingsReceived() {
	c.settingsReceivedOnce.Do(func() { close(c.settingsReceived) })
}

func (c *Conn) awaitSettings(ctx context.Context) error {
	select {
	case <-c.settingsReceived:
		return nil
	case <-c.closeCh:
		return ErrConnClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

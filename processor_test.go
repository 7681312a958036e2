package h2conn

import (
	"bufio"
	"bytes"
	"crypto/tls"
	"io"
	"net"
	"testing"
	"time"
)

// discardSocket is a Socket that throws every write away, enough for tests
// that exercise shutdown()'s bookkeeping without a real peer on the other
// end.
type discardSocket struct{}

func (discardSocket) Read([]byte) (int, error)         { return 0, io.EOF }
func (discardSocket) Write(b []byte) (int, error)      { return len(b), nil }
func (discardSocket) Close() error                     { return nil }
func (discardSocket) LocalAddr() net.Addr              { return discardAddr{} }
func (discardSocket) RemoteAddr() net.Addr             { return discardAddr{} }
func (discardSocket) SetDeadline(time.Time) error      { return nil }
func (discardSocket) SetReadDeadline(time.Time) error  { return nil }
func (discardSocket) SetWriteDeadline(time.Time) error { return nil }
func (discardSocket) IsClosed() bool                   { return false }
func (discardSocket) Reference()                       {}
func (discardSocket) Unreference()                     {}
func (discardSocket) TLSConnectionState() (tls.ConnectionState, bool) {
	return tls.ConnectionState{}, false
}

type discardAddr struct{}

func (discardAddr) Network() string { return "test" }
func (discardAddr) String() string  { return "test" }

// newTestConn builds a Conn with a no-op socket, enough to exercise the
// frame processor methods directly against its streams/flow state.
func newTestConn() *Conn {
	opts := ConnOpts{}.withDefaults()
	return &Conn{
		sock:             discardSocket{},
		opts:             opts,
		log:              opts.Logger,
		hp:               newHPACKCodec(opts.MaxHeaderListSize),
		streams:          newStreamTable(defaultMaxConcurrentStreams),
		flow:             newConnFlow(int64(opts.InitialWindowSize)),
		peerMaxFrameSize: defaultMaxFrameSize,
		writeCh:          make(chan writeJob, 8),
		closeCh:          make(chan struct{}),
		settingsReceived: make(chan struct{}),
	}
}

func TestApplyInitialWindowDeltaAppliesToExistingStreams(t *testing.T) {
	c := newTestConn()
	s, err := c.streams.allocate(func(id uint32) *stream {
		return newStream(id, DefaultInitialWindowSize, DefaultInitialWindowSize, 0, 0)
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := c.applyInitialWindowDelta(DefaultInitialWindowSize + 1000); err != nil {
		t.Fatal(err)
	}

	s.mu.Lock()
	win := s.clientWindow
	s.mu.Unlock()
	if win != DefaultInitialWindowSize+1000 {
		t.Fatalf("clientWindow = %d, want %d", win, DefaultInitialWindowSize+1000)
	}

	// a second, smaller update must apply as a further delta, not an overwrite
	if err := c.applyInitialWindowDelta(DefaultInitialWindowSize); err != nil {
		t.Fatal(err)
	}
	s.mu.Lock()
	win = s.clientWindow
	s.mu.Unlock()
	if win != DefaultInitialWindowSize {
		t.Fatalf("clientWindow after second delta = %d, want %d", win, DefaultInitialWindowSize)
	}
}

func TestApplyInitialWindowDeltaOverflowIsStreamError(t *testing.T) {
	c := newTestConn()
	s, err := c.streams.allocate(func(id uint32) *stream {
		return newStream(id, DefaultInitialWindowSize, maxWindowSize-10, 0, 0)
	})
	if err != nil {
		t.Fatal(err)
	}
	_ = s

	err = c.applyInitialWindowDelta(maxWindowSize)
	serr, ok := err.(*StreamError)
	if !ok {
		t.Fatalf("err = %v (%T), want *StreamError", err, err)
	}
	if serr.Code != FlowControlError {
		t.Fatalf("code = %v, want FLOW_CONTROL_ERROR", serr.Code)
	}
}

func TestHandleSettingsAppliesAndAcks(t *testing.T) {
	c := newTestConn()

	buf := bytes.NewBuffer(nil)
	bw := bufio.NewWriter(buf)
	if err := writeSettingsFrame(bw, 0, map[Setting]uint32{SettingMaxFrameSize: 1 << 15}); err != nil {
		t.Fatal(err)
	}
	bw.Flush()

	br := bufio.NewReader(buf)
	fr, ok, err := readFrame(br, 0)
	if err != nil || !ok {
		t.Fatal(err)
	}

	go func() {
		job := <-c.writeCh
		out := bytes.NewBuffer(nil)
		obw := bufio.NewWriter(out)
		err := job.fn(obw)
		obw.Flush()
		if job.result != nil {
			job.result <- err
		}
	}()

	if err := c.handleSettings(fr); err != nil {
		t.Fatal(err)
	}

	select {
	case <-c.settingsReceived:
	default:
		t.Fatal("expected settingsReceived to fire")
	}
	if c.peerMaxFrameSize != 1<<15 {
		t.Fatalf("peerMaxFrameSize = %d, want %d", c.peerMaxFrameSize, 1<<15)
	}
}

func TestHandleGoAwayMarksStreamsPerRetryability(t *testing.T) {
	c := newTestConn()
	c.bw = bufio.NewWriter(bytes.NewBuffer(nil))

	low, err := c.streams.allocate(func(id uint32) *stream { return newStream(id, 0, 0, 0, 0) })
	if err != nil {
		t.Fatal(err)
	}
	high, err := c.streams.allocate(func(id uint32) *stream { return newStream(id, 0, 0, 0, 0) })
	if err != nil {
		t.Fatal(err)
	}

	buf := bytes.NewBuffer(nil)
	bw := bufio.NewWriter(buf)
	writeGoAwayFrame(bw, low.id, Cancel, nil)
	bw.Flush()
	br := bufio.NewReader(buf)
	fr, ok, rerr := readFrame(br, 0)
	if rerr != nil || !ok {
		t.Fatal(rerr)
	}

	if err := c.handleGoAway(fr); err != nil {
		t.Fatal(err)
	}

	<-low.done
	<-high.done

	ga, ok := low.err.(*PeerGoAway)
	if !ok {
		t.Fatalf("low stream err = %v (%T), want *PeerGoAway", low.err, low.err)
	}
	if ga.Retryable(low.id) {
		t.Fatalf("stream %d should not be retryable (<= last_stream_id %d)", low.id, ga.LastStreamID)
	}
	if !ga.Retryable(high.id) {
		t.Fatalf("stream %d should be retryable (> last_stream_id %d)", high.id, ga.LastStreamID)
	}
}

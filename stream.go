package h2conn

import (
	"sync"
)

// streamState is a set of bitflags describing a stream's half-closed
// status from the client's point of view. The engine only ever drives
// streams it opened itself, so the full RFC 7540 section 5.1 state machine
// collapses to: open, half-closed by either side, and closed.
type streamState uint8

const (
	streamOpen streamState = 1 << iota
	streamLocalClosed
	streamRemoteClosed
	streamReserved // set once the response head has been assembled; a second head is a duplicate
)

// stream tracks the per-stream state the connection needs: flow-control
// windows, partial header assembly, and the pending response being built
// up for the caller blocked in request().
type stream struct {
	id uint32

	mu    sync.Mutex
	state streamState

	// serverWindow is how many bytes of DATA the peer may still send us;
	// clientWindow is how many bytes of DATA we may still send the peer.
	// Both are signed because a SETTINGS_INITIAL_WINDOW_SIZE decrease can
	// push a stream's window negative (RFC 7540 section 6.9.2).
	serverWindow int64
	clientWindow int64

	// headerBlock accumulates HEADERS+CONTINUATION fragments until
	// END_HEADERS arrives. nil when not currently assembling.
	headerBlock []byte
	awaitingContinuation bool

	resp           *Response
	maxHeaderBytes int
	maxBodyBytes   int64
	bodyReceived   int64
	expectedLength *int64 // remaining declared content-length bytes, decremented as DATA arrives

	headReady chan struct{} // closed once the response head has been resolved
	err       error

	// sendWaiter-style readiness gate: a goroutine blocked on a stream's
	// window becoming writable waits on wake(); any window change (a
	// WINDOW_UPDATE, a SETTINGS_INITIAL_WINDOW_SIZE delta, or the stream
	// finishing) replaces the channel so every
	// waiter observes the change. Channels can't be reopened in Go, which
	// is why growth replaces rather than closes-and-reuses.
	waitMu sync.Mutex
	waitCh chan struct{}

	done chan struct{} // closed exactly once, when the response (or error) is final

	priority PriorityParams
}

func newStream(id uint32, initialServerWindow, initialClientWindow int64, maxHeaderBytes int, maxBodyBytes int64) *stream {
	s := &stream{
		id:             id,
		state:          streamOpen,
		serverWindow:   initialServerWindow,
		clientWindow:   initialClientWindow,
		maxHeaderBytes: maxHeaderBytes,
		maxBodyBytes:   maxBodyBytes,
		waitCh:         make(chan struct{}),
		done:           make(chan struct{}),
		headReady:      make(chan struct{}),
	}
	return s
}

// wake unblocks every goroutine currently waiting on the stream's send
// window and arms a fresh channel for the next wait.
func (s *stream) wake() {
	s.waitMu.Lock()
	close(s.waitCh)
	s.waitCh = make(chan struct{})
	s.waitMu.Unlock()
}

func (s *stream) waitChan() <-chan struct{} {
	s.waitMu.Lock()
	ch := s.waitCh
	s.waitMu.Unlock()
	return ch
}

func (s *stream) finish(err error) {
	s.mu.Lock()
	alreadyDone := false
	select {
	case <-s.done:
		alreadyDone = true
	default:
	}
	if !alreadyDone {
		s.err = err
		close(s.done)
		select {
		case <-s.headReady:
		default:
			close(s.headReady)
		}
	}
	s.mu.Unlock()
	s.wake()
}

// doneErr returns the error s.finish recorded, or ErrConnClosed if s is
// done without one (shouldn't happen in practice, but callers that observe
// s.done without inspecting err first need a non-nil value to return).
func (s *stream) doneErr() error {
	s.mu.Lock()
	err := s.err
	s.mu.Unlock()
	if err == nil {
		err = ErrConnClosed
	}
	return err
}

// resolveHead publishes the response head and unblocks request().
func (s *stream) resolveHead(resp *Response) {
	s.mu.Lock()
	select {
	case <-s.headReady:
	default:
		s.resp = resp
		close(s.headReady)
	}
	s.mu.Unlock()
}

func (s *stream) addClientWindow(delta int64) {
	s.mu.Lock()
	s.clientWindow += delta
	s.mu.Unlock()
	s.wake()
}

func (s *stream) addServerWindow(delta int64) int64 {
	s.mu.Lock()
	s.serverWindow += delta
	w := s.serverWindow
	s.mu.Unlock()
	return w
}

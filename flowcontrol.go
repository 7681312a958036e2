package h2conn

import "sync/atomic"

// DefaultInitialWindowSize is what RFC 7540 section 6.9.2 mandates absent
// a SETTINGS override: 64KiB - 1.
const DefaultInitialWindowSize = 65535

// maxWindowSize is the largest value a 31-bit flow-control window may hold.
const maxWindowSize = 1<<31 - 1

// connFlow tracks the two connection-level flow-control windows: how much
// DATA the peer may still send us (serverWindow) and how much we may still
// send the peer (clientWindow). Stream-level windows live on stream and
// are combined with these via effectiveSend.
type connFlow struct {
	serverWindow int64 // inbound budget, shrinks as peer DATA arrives
	clientWindow int64 // outbound budget, shrinks as we send DATA

	// target is the window size we advertise and replenish towards;
	// ConnOpts.InitialWindowSize or DefaultInitialWindowSize.
	target int64
}

func newConnFlow(target int64) *connFlow {
	if target <= 0 {
		target = DefaultInitialWindowSize
	}
	return &connFlow{serverWindow: target, clientWindow: DefaultInitialWindowSize, target: target}
}

func (f *connFlow) addClientWindow(delta int64) int64 {
	return atomic.AddInt64(&f.clientWindow, delta)
}

func (f *connFlow) loadClientWindow() int64 {
	return atomic.LoadInt64(&f.clientWindow)
}

// consumeServerWindow records that n bytes of inbound DATA were received
// and returns the connection-level WINDOW_UPDATE increment to send back,
// or 0 if none is due yet. The engine replenishes once the window has
// drained past half of its target, matching the teacher's conn.go
// readStream threshold.
func (f *connFlow) consumeServerWindow(n int64) (increment int64) {
	remaining := atomic.AddInt64(&f.serverWindow, -n)
	if remaining < f.target/2 {
		increment = f.target - remaining
		atomic.AddInt64(&f.serverWindow, increment)
	}
	return increment
}

// effectiveSend returns how many bytes may be written right now given both
// the connection window and a stream window, capped at maxFrameSize so a
// single DATA frame never needs its own fragmentation loop beyond this.
func effectiveSend(connWindow, streamWindow int64, maxFrameSize uint32, want int) int {
	avail := connWindow
	if streamWindow < avail {
		avail = streamWindow
	}
	if avail <= 0 {
		return 0
	}
	if int64(want) > avail {
		want = int(avail)
	}
	if uint32(want) > maxFrameSize {
		want = int(maxFrameSize)
	}
	return want
}

package h2conn

import (
	"crypto/tls"
	"net"
	"sync/atomic"
)

// Socket is the transport collaborator the engine drives: an established,
// already-negotiated (ALPN "h2") byte stream. Dialing, TLS handshake, and
// connection pooling are a caller's concern, not this package's — callers
// hand in a live net.Conn (or anything implementing it) via NewSocket.
type Socket interface {
	net.Conn

	// IsClosed reports whether the socket has already been torn down.
	IsClosed() bool
	// Reference/Unreference are idle-tracking hints for a connection pool
	// sitting above this engine; netSocket only keeps a reference count
	// that nothing in this package reads, but they are called at the right
	// points (see driver.go) so a pool can veto idle reaping of
	// a connection with in-flight streams.
	Reference()
	Unreference()
	// TLSConnectionState returns the negotiated TLS state, or false if the
	// socket isn't a TLS connection (e.g. in tests over an in-memory pipe).
	TLSConnectionState() (tls.ConnectionState, bool)
}

// netSocket adapts a plain net.Conn (optionally *tls.Conn) to Socket.
type netSocket struct {
	net.Conn
	closed int32
	refs   int32
}

// NewSocket wraps an established connection for use by Conn. The caller is
// responsible for having already completed any TLS handshake and ALPN
// negotiation of "h2".
func NewSocket(c net.Conn) Socket {
	return &netSocket{Conn: c}
}

func (s *netSocket) Close() error {
	atomic.StoreInt32(&s.closed, 1)
	return s.Conn.Close()
}

func (s *netSocket) IsClosed() bool {
	return atomic.LoadInt32(&s.closed) == 1
}

func (s *netSocket) Reference()   { atomic.AddInt32(&s.refs, 1) }
func (s *netSocket) Unreference() { atomic.AddInt32(&s.refs, -1) }

func (s *netSocket) TLSConnectionState() (tls.ConnectionState, bool) {
	tc, ok := s.Conn.(*tls.Conn)
	if !ok {
		return tls.ConnectionState{}, false
	}
	return tc.ConnectionState(), true
}

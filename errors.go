package h2conn

import (
	"errors"
	"fmt"
)

// Code is an HTTP/2 error code as defined by RFC 7540 section 7.
type Code uint32

const (
	GracefulShutdown   Code = 0x0
	ProtocolError      Code = 0x1
	InternalError      Code = 0x2
	FlowControlError   Code = 0x3
	SettingsTimeout    Code = 0x4
	StreamClosedError  Code = 0x5
	FrameSizeError     Code = 0x6
	RefusedStream      Code = 0x7
	Cancel             Code = 0x8
	CompressionError   Code = 0x9
	ConnectError       Code = 0xa
	EnhanceYourCalm    Code = 0xb
	InadequateSecurity Code = 0xc
	HTTP11Required     Code = 0xd
)

var codeNames = [...]string{
	"GRACEFUL_SHUTDOWN", "PROTOCOL_ERROR", "INTERNAL_ERROR", "FLOW_CONTROL_ERROR",
	"SETTINGS_TIMEOUT", "STREAM_CLOSED", "FRAME_SIZE_ERROR", "REFUSED_STREAM",
	"CANCEL", "COMPRESSION_ERROR", "CONNECT_ERROR", "ENHANCE_YOUR_CALM",
	"INADEQUATE_SECURITY", "HTTP_1_1_REQUIRED",
}

func (c Code) String() string {
	if int(c) < len(codeNames) {
		return codeNames[c]
	}
	return fmt.Sprintf("UNKNOWN_ERROR(%#x)", uint32(c))
}

// ConnError represents a connection-scoped protocol fault: the whole
// connection is torn down, every in-flight stream fails with it, and a
// GOAWAY carrying Code is sent to the peer.
type ConnError struct {
	Code   Code
	Reason string
}

func (e *ConnError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("h2conn: connection error: %s", e.Code)
	}
	return fmt.Sprintf("h2conn: connection error: %s: %s", e.Code, e.Reason)
}

func connErr(code Code, reason string) *ConnError {
	return &ConnError{Code: code, Reason: reason}
}

func connErrf(code Code, format string, args ...interface{}) *ConnError {
	return &ConnError{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// StreamError represents a stream-scoped protocol fault: only StreamID is
// affected, an RST_STREAM carrying Code is sent, and the connection stays
// usable.
type StreamError struct {
	StreamID uint32
	Code     Code
	Reason   string
}

func (e *StreamError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("h2conn: stream %d error: %s", e.StreamID, e.Code)
	}
	return fmt.Sprintf("h2conn: stream %d error: %s: %s", e.StreamID, e.Code, e.Reason)
}

func streamErr(id uint32, code Code, reason string) *StreamError {
	return &StreamError{StreamID: id, Code: code, Reason: reason}
}

func streamErrf(id uint32, code Code, format string, args ...interface{}) *StreamError {
	return &StreamError{StreamID: id, Code: code, Reason: fmt.Sprintf(format, args...)}
}

// PeerGoAway is returned to every in-flight request when a GOAWAY arrives;
// requests on streams above the peer's advertised last-stream-id (see
// Retryable) may be retried on a new connection.
type PeerGoAway struct {
	LastStreamID uint32
	Code         Code
}

func (e *PeerGoAway) Error() string {
	return fmt.Sprintf("h2conn: peer sent GOAWAY (last_stream_id=%d, code=%s)", e.LastStreamID, e.Code)
}

// Retryable reports whether a request on the given stream id may be retried
// against a fresh connection after this GOAWAY.
func (e *PeerGoAway) Retryable(streamID uint32) bool {
	return streamID > e.LastStreamID
}

var (
	// ErrConnClosed is returned to callers of Request after Close has run.
	ErrConnClosed = errors.New("h2conn: connection closed")
	// ErrCancelled is surfaced to the caller whose own cancellation fired.
	ErrCancelled = errors.New("h2conn: request cancelled")
	// ErrNoAvailableStreams is returned when the peer's MAX_CONCURRENT_STREAMS
	// budget is exhausted.
	ErrNoAvailableStreams = errors.New("h2conn: no available stream ids")
	// ErrMissingBytes is returned by frame decoders fed a truncated payload.
	ErrMissingBytes = errors.New("h2conn: frame payload shorter than required")
	// ErrStreamNotFound marks an upcall against a stream id no longer in the table.
	ErrStreamNotFound = errors.New("h2conn: stream not found")
	// ErrSocketDisconnected surfaces a transport-level read/write failure.
	ErrSocketDisconnected = errors.New("h2conn: socket disconnected")
)

// disconnectedError wraps a transport failure so callers can both match
// ErrSocketDisconnected with errors.Is and inspect the underlying cause.
type disconnectedError struct{ cause error }

func (e *disconnectedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrSocketDisconnected, e.cause)
}
func (e *disconnectedError) Unwrap() error { return ErrSocketDisconnected }
func (e *disconnectedError) Cause() error  { return e.cause }

func disconnected(cause error) error {
	if cause == nil {
		return ErrSocketDisconnected
	}
	return &disconnectedError{cause: cause}
}

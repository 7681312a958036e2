package h2conn

// Receiving a PUSH_PROMISE frame is always a connection error: this engine
// implements an HTTP/2 client only, never advertises SETTINGS_ENABLE_PUSH,
// and per RFC 7540 section 8.2 a server must not push when push is
// disabled. There is no partial-parse path — any PUSH_PROMISE on the wire
// is treated as a protocol violation outright.
func parsePushPromiseFrame(fr *rawFrame) error {
	return connErrf(ProtocolError, "received unexpected PUSH_PROMISE on stream %d", fr.StreamID)
}

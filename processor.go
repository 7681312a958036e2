package h2conn

import (
	"bufio"
	"strconv"
	"sync/atomic"
)

// dispatch type-switches an inbound frame to its handler. It returns a
// *ConnError for connection-scoped faults, a *StreamError for
// stream-scoped ones (the caller sends RST_STREAM and keeps going), or a
// plain error for a transport-level problem.
func (c *Conn) dispatch(fr *rawFrame) error {
	switch fr.Type {
	case FrameData:
		return c.handleData(fr)
	case FrameHeaders:
		return c.handleHeaders(fr)
	case FrameContinuation:
		return c.handleContinuation(fr)
	case FramePriority:
		return c.handlePriority(fr)
	case FrameRstStream:
		return c.handleRstStream(fr)
	case FrameSettings:
		return c.handleSettings(fr)
	case FramePushPromise:
		return parsePushPromiseFrame(fr)
	case FramePing:
		return c.handlePing(fr)
	case FrameGoAway:
		return c.handleGoAway(fr)
	case FrameWindowUpdate:
		return c.handleWindowUpdate(fr)
	}
	return nil
}

func (c *Conn) handleData(fr *rawFrame) error {
	if fr.StreamID == 0 {
		return connErr(ProtocolError, "DATA frame on stream 0")
	}
	s := c.streams.get(fr.StreamID)
	if s == nil {
		return connErrf(ProtocolError, "DATA on unknown stream %d", fr.StreamID)
	}

	s.mu.Lock()
	if len(s.headerBlock) > 0 || s.awaitingContinuation {
		s.mu.Unlock()
		return connErr(ProtocolError, "DATA received while a header block is in progress")
	}
	if s.state&streamRemoteClosed != 0 {
		s.mu.Unlock()
		return streamErr(fr.StreamID, StreamClosedError, "DATA after END_STREAM")
	}
	s.mu.Unlock()

	df, err := parseDataFrame(fr)
	if err != nil {
		return err
	}

	length := int64(fr.Length)
	connInc := c.flow.consumeServerWindow(length)
	remainingWindow := s.addServerWindow(-length)

	s.mu.Lock()
	s.bodyReceived += int64(len(df.Data))
	over := s.bodyReceived > s.maxBodyBytes
	body := (*BodyStream)(nil)
	if s.resp != nil {
		body = s.resp.Body
	}
	if s.expectedLength != nil {
		*s.expectedLength -= int64(len(df.Data))
	}
	s.mu.Unlock()

	if over && !df.EndStream {
		return streamErr(fr.StreamID, Cancel, "response body exceeds maxBodySize")
	}

	if body != nil && len(df.Data) > 0 {
		body.push(df.Data)
	}

	if connInc > 0 {
		inc := uint32(connInc)
		_ = c.enqueue(false, func(bw *bufio.Writer) error {
			return writeWindowUpdateFrame(bw, 0, inc)
		})
	}
	if remainingWindow <= 0 {
		s.mu.Lock()
		budget := s.maxBodyBytes - s.bodyReceived
		s.mu.Unlock()
		if budget > 0 {
			inc := budget
			if inc > maxWindowSize {
				inc = maxWindowSize
			}
			s.addServerWindow(inc)
			streamID := fr.StreamID
			_ = c.enqueue(false, func(bw *bufio.Writer) error {
				return writeWindowUpdateFrame(bw, streamID, uint32(inc))
			})
		}
	}

	if df.EndStream {
		s.mu.Lock()
		s.state |= streamRemoteClosed
		mismatch := s.expectedLength != nil && *s.expectedLength != 0
		s.mu.Unlock()

		if mismatch {
			return streamErr(fr.StreamID, ProtocolError, "content-length mismatch at END_STREAM")
		}
		if body != nil {
			body.closeWith(nil)
		}
		c.releaseStream(fr.StreamID, nil)
	}

	return nil
}

func (c *Conn) handleHeaders(fr *rawFrame) error {
	if fr.StreamID == 0 {
		return connErr(ProtocolError, "HEADERS frame on stream 0")
	}
	s := c.streams.get(fr.StreamID)
	if s == nil {
		return connErrf(ProtocolError, "HEADERS on unknown stream %d", fr.StreamID)
	}

	hf, err := parseHeadersFrame(fr)
	if err != nil {
		return err
	}
	if hf.Priority != nil && hf.Priority.StreamDep == fr.StreamID {
		return connErrf(ProtocolError, "stream %d depends on itself", fr.StreamID)
	}

	s.mu.Lock()
	if s.state&streamRemoteClosed != 0 {
		s.mu.Unlock()
		return streamErr(fr.StreamID, StreamClosedError, "HEADERS after END_STREAM")
	}
	if len(s.headerBlock)+len(hf.BlockFragment) > s.maxHeaderBytes {
		s.mu.Unlock()
		return streamErr(fr.StreamID, EnhanceYourCalm, "header block exceeds max header size")
	}
	s.headerBlock = append(s.headerBlock, hf.BlockFragment...)
	if hf.Priority != nil {
		s.priority = *hf.Priority
	}
	if hf.EndStream {
		s.state |= streamRemoteClosed
	}

	if !hf.EndHeaders {
		s.awaitingContinuation = true
		s.mu.Unlock()
		return nil
	}

	s.awaitingContinuation = false
	block := s.headerBlock
	s.headerBlock = nil
	s.mu.Unlock()

	return c.assembleHeaders(s, block)
}

func (c *Conn) handleContinuation(fr *rawFrame) error {
	s := c.streams.get(fr.StreamID)
	if s == nil {
		return connErrf(ProtocolError, "CONTINUATION on unknown stream %d", fr.StreamID)
	}

	s.mu.Lock()
	if !s.awaitingContinuation {
		s.mu.Unlock()
		return connErrf(ProtocolError, "unexpected CONTINUATION on stream %d", fr.StreamID)
	}
	cf, _ := parseContinuationFrame(fr)
	if len(s.headerBlock)+len(cf.BlockFragment) > s.maxHeaderBytes {
		s.mu.Unlock()
		return streamErr(fr.StreamID, EnhanceYourCalm, "header block exceeds max header size")
	}
	s.headerBlock = append(s.headerBlock, cf.BlockFragment...)

	if !cf.EndHeaders {
		s.mu.Unlock()
		return nil
	}

	s.awaitingContinuation = false
	block := s.headerBlock
	s.headerBlock = nil
	s.mu.Unlock()

	return c.assembleHeaders(s, block)
}

// assembleHeaders runs HPACK decode + validation on a complete header
// block and publishes either a final (headers-only) response or a
// streaming one, per SPEC_FULL.md section 4.4 "Header assembly".
func (c *Conn) assembleHeaders(s *stream, block []byte) error {
	fields, err := c.hp.decode(s.id, block)
	if err != nil {
		return err
	}

	status, err := validateResponsePseudoHeaders(fields)
	if err != nil {
		return err
	}
	code, err := strconv.Atoi(status)
	if err != nil {
		return connErrf(ProtocolError, "non-numeric :status %q", status)
	}

	s.mu.Lock()
	if s.state&streamReserved != 0 {
		s.mu.Unlock()
		return streamErr(s.id, ProtocolError, "duplicate response head")
	}
	s.state |= streamReserved
	remoteClosed := s.state&streamRemoteClosed != 0
	s.mu.Unlock()

	regular := make([]HeaderField, 0, len(fields))
	var contentLength *int64
	for _, f := range fields {
		if f.IsPseudo() {
			continue
		}
		if f.Name == "content-length" {
			n, perr := strconv.ParseInt(f.Value, 10, 64)
			if perr != nil || n < 0 {
				return connErrf(ProtocolError, "invalid content-length %q", f.Value)
			}
			contentLength = &n
		}
		regular = append(regular, f)
	}

	resp := &Response{StatusCode: code, Headers: regular}

	if remoteClosed {
		resp.Body = nil
		s.resolveHead(resp)
		c.releaseStream(s.id, nil)
		return nil
	}

	resp.Body = newBodyStream()
	s.mu.Lock()
	s.expectedLength = contentLength
	s.mu.Unlock()
	s.resolveHead(resp)
	return nil
}

func (c *Conn) handleRstStream(fr *rawFrame) error {
	rf, err := parseRstStreamFrame(fr)
	if err != nil {
		return err
	}
	if fr.StreamID == 0 {
		return connErr(ProtocolError, "RST_STREAM on stream 0")
	}
	if s := c.streams.get(fr.StreamID); s != nil {
		if bs := s.resp; bs != nil && bs.Body != nil {
			bs.Body.closeWith(streamErr(fr.StreamID, rf.Code, "peer reset the stream"))
		}
		c.releaseStream(fr.StreamID, streamErr(fr.StreamID, rf.Code, "peer reset the stream"))
	}
	return nil
}

func (c *Conn) handleSettings(fr *rawFrame) error {
	sf, err := parseSettingsFrame(fr)
	if err != nil {
		return err
	}
	if fr.StreamID != 0 {
		return connErr(ProtocolError, "SETTINGS on non-zero stream")
	}
	if sf.Ack {
		if c.settingsAckTimer != nil {
			c.settingsAckTimer.Stop()
		}
		return nil
	}
	if len(fr.Payload) > 60*settingEntrySize {
		return connErr(FrameSizeError, "too many SETTINGS entries")
	}

	for id, val := range sf.Values {
		if err := c.applySetting(id, val); err != nil {
			return err
		}
	}

	c.fireSettingsReceived()

	return c.enqueue(false, func(bw *bufio.Writer) error {
		return writeSettingsAck(bw)
	})
}

func (c *Conn) applySetting(id Setting, val uint32) error {
	switch id {
	case SettingInitialWindowSize:
		if val >= 1<<31 {
			return connErrf(FlowControlError, "SETTINGS_INITIAL_WINDOW_SIZE %d out of range", val)
		}
		return c.applyInitialWindowDelta(int64(val))
	case SettingMaxFrameSize:
		if val < 1<<14 || val >= 1<<24 {
			return connErrf(ProtocolError, "SETTINGS_MAX_FRAME_SIZE %d out of range", val)
		}
		c.peerSettingsMu.Lock()
		c.peerMaxFrameSize = val
		c.peerSettingsMu.Unlock()
	case SettingMaxConcurrentStreams:
		if val >= 1<<31 {
			return connErrf(ProtocolError, "SETTINGS_MAX_CONCURRENT_STREAMS %d out of range", val)
		}
		c.streams.setMaxConcurrent(val)
	case SettingEnablePush:
		if val != 0 {
			return connErr(ProtocolError, "peer advertised SETTINGS_ENABLE_PUSH != 0")
		}
	case SettingHeaderTableSize:
		c.hp.setMaxEncoderTableSize(val)
	case SettingMaxHeaderListSize:
		// accepted, not enforced locally beyond our own maxHeaderListSize.
	}
	return nil
}

// applyInitialWindowDelta implements the delta rule from SPEC_FULL.md
// section 4.4.1: the new SETTINGS_INITIAL_WINDOW_SIZE is applied as a
// delta to every existing stream's clientWindow, not as an overwrite.
func (c *Conn) applyInitialWindowDelta(newInitial int64) error {
	delta := newInitial - c.trackedInitialWindow()
	c.setTrackedInitialWindow(newInitial)

	var firstErr error
	c.streams.forEach(func(s *stream) {
		if firstErr != nil {
			return
		}
		s.mu.Lock()
		s.clientWindow += delta
		overflow := s.clientWindow > maxWindowSize
		s.mu.Unlock()
		if overflow {
			firstErr = streamErr(s.id, FlowControlError, "SETTINGS_INITIAL_WINDOW_SIZE update overflowed stream window")
			return
		}
		s.wake()
	})
	return firstErr
}

func (c *Conn) trackedInitialWindow() int64 {
	c.peerSettingsMu.Lock()
	defer c.peerSettingsMu.Unlock()
	if c.peerInitialWindowSize == 0 {
		return DefaultInitialWindowSize
	}
	return c.peerInitialWindowSize
}

func (c *Conn) setTrackedInitialWindow(v int64) {
	c.peerSettingsMu.Lock()
	c.peerInitialWindowSize = v
	c.peerSettingsMu.Unlock()
}

func (c *Conn) handlePing(fr *rawFrame) error {
	pf, err := parsePingFrame(fr)
	if err != nil {
		return err
	}
	if fr.StreamID != 0 {
		return connErr(ProtocolError, "PING on non-zero stream")
	}
	if pf.Ack {
		c.ackPing()
		return nil
	}
	return c.enqueue(false, func(bw *bufio.Writer) error {
		return writePingFrame(bw, pf.Data, true)
	})
}

// handleGoAway reacts to a peer-initiated shutdown directly rather than
// going through dispatch's error-classification return value: every open
// stream is finished with the same PeerGoAway (its Retryable method tells
// which stream ids lie above lastStreamID), and the connection then shuts
// down, sending its own GOAWAY(GRACEFUL_SHUTDOWN) that carries the peer's
// lastStreamID.
func (c *Conn) handleGoAway(fr *rawFrame) error {
	ga, err := parseGoAwayFrame(fr)
	if err != nil {
		return err
	}
	peerGoAway := &PeerGoAway{LastStreamID: ga.LastStreamID, Code: ga.Code}
	c.streams.forEach(func(s *stream) {
		s.finish(peerGoAway)
	})
	c.recordErr(peerGoAway)
	go func() { _ = c.shutdown(&ga.LastStreamID, GracefulShutdown) }()
	return nil
}

func (c *Conn) handleWindowUpdate(fr *rawFrame) error {
	wu, err := parseWindowUpdateFrame(fr)
	if err != nil {
		return err
	}

	if fr.StreamID == 0 {
		newWin := c.flow.addClientWindow(int64(wu.Increment))
		if newWin > maxWindowSize {
			return connErr(FlowControlError, "connection WINDOW_UPDATE overflow")
		}
		c.streams.forEach(func(s *stream) { s.wake() })
		return nil
	}

	s := c.streams.get(fr.StreamID)
	if s == nil {
		return nil // stream already gone; nothing to credit
	}
	s.addClientWindow(int64(wu.Increment))
	s.mu.Lock()
	overflow := s.clientWindow > maxWindowSize
	s.mu.Unlock()
	if overflow {
		return streamErr(fr.StreamID, FlowControlError, "stream WINDOW_UPDATE overflow")
	}
	return nil
}

func (c *Conn) handlePriority(fr *rawFrame) error {
	pf, err := parsePriorityFrame(fr)
	if err != nil {
		return err
	}
	if s := c.streams.get(fr.StreamID); s != nil {
		s.mu.Lock()
		s.priority = pf.Params
		s.mu.Unlock()
	}
	return nil
}

func (c *Conn) ackPing() {
	atomic.AddInt32(&c.unacks, -1)
}

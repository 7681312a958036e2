package h2conn

import (
	"bytes"
	"fmt"
	"regexp"

	"golang.org/x/net/http2/hpack"
)

// HeaderField is a single name/value pair, either a pseudo-header
// (":method", ":path", ...) or a regular field.
type HeaderField struct {
	Name  string
	Value string
}

// IsPseudo reports whether hf is a pseudo-header field.
func (hf HeaderField) IsPseudo() bool {
	return len(hf.Name) > 0 && hf.Name[0] == ':'
}

// validFieldName matches the header-name grammar literally as RFC 7540
// section 8.1.2 states it: any byte in \x21-\x7e except \x41-\x5a (the
// uppercase ASCII letters excluded because field names arrive lowercased),
// which collapses to the two ranges below.
var validFieldName = regexp.MustCompile(`^[\x21-\x40\x5b-\x7e]+$`)

// hpackCodec owns the pair of dynamic tables that HPACK requires: an
// encoder table for outbound request headers and a decoder table for
// inbound response headers. The encoder table is resized by applySetting
// (processor.go) when the peer's SETTINGS_HEADER_TABLE_SIZE arrives; the
// decoder table stays at 4096 bytes, since the engine's own SETTINGS never
// change SETTINGS_HEADER_TABLE_SIZE.
//
// The engine treats HPACK as a black-box collaborator and defers entirely
// to golang.org/x/net/http2/hpack rather than reimplementing Huffman
// coding and the static/dynamic table logic by hand.
type hpackCodec struct {
	enc    *hpack.Encoder
	encBuf bytes.Buffer
	dec    *hpack.Decoder

	maxHeaderListSize uint32
}

func newHPACKCodec(maxHeaderListSize uint32) *hpackCodec {
	c := &hpackCodec{maxHeaderListSize: maxHeaderListSize}
	c.enc = hpack.NewEncoder(&c.encBuf)
	c.dec = hpack.NewDecoder(4096, nil)
	return c
}

func (c *hpackCodec) setMaxEncoderTableSize(n uint32) {
	c.enc.SetMaxDynamicTableSize(n)
}

// encode appends the HPACK-compressed representation of fields to dst.
// Pseudo-header fields must precede regular fields per RFC 7540 section
// 8.1.2.1 — callers are expected to have ordered fields that way already;
// encode does not reorder.
func (c *hpackCodec) encode(dst []byte, fields []HeaderField) ([]byte, error) {
	c.encBuf.Reset()
	for _, f := range fields {
		if err := c.enc.WriteField(hpack.HeaderField{Name: f.Name, Value: f.Value}); err != nil {
			return nil, fmt.Errorf("h2conn: hpack encode: %w", err)
		}
	}
	return append(dst, c.encBuf.Bytes()...), nil
}

// decode parses a complete header block (already reassembled from HEADERS
// + any CONTINUATION frames) and validates it per RFC 7540 section 8.1.2:
// pseudo-headers must come first, names must be lowercase, and no field
// named "connection" is permitted.
func (c *hpackCodec) decode(streamID uint32, block []byte) ([]HeaderField, error) {
	raw, err := c.dec.DecodeFull(block)
	if err != nil {
		return nil, connErrf(CompressionError, "hpack decode: %s", err)
	}

	fields := make([]HeaderField, 0, len(raw))
	seenRegular := false
	var size uint32

	for _, f := range raw {
		if !validFieldName.MatchString(f.Name) {
			return nil, connErrf(ProtocolError, "invalid header field name %q", f.Name)
		}
		if f.Name == "connection" {
			return nil, connErrf(ProtocolError, `forbidden "connection" header field`)
		}
		isPseudo := len(f.Name) > 0 && f.Name[0] == ':'
		if isPseudo {
			if seenRegular {
				return nil, connErrf(ProtocolError, "pseudo-header %q after regular field", f.Name)
			}
		} else {
			seenRegular = true
		}

		size += uint32(len(f.Name)) + uint32(len(f.Value)) + 32
		if c.maxHeaderListSize != 0 && size > c.maxHeaderListSize {
			return nil, streamErrf(streamID, EnhanceYourCalm, "header list exceeds max size %d", c.maxHeaderListSize)
		}

		fields = append(fields, HeaderField{Name: f.Name, Value: f.Value})
	}

	return fields, nil
}

// validateResponsePseudoHeaders checks that a response header block carries
// exactly the ":status" pseudo-header and no others, per RFC 7540 section
// 8.1.2.4.
func validateResponsePseudoHeaders(fields []HeaderField) (status string, err error) {
	for _, f := range fields {
		if !f.IsPseudo() {
			continue
		}
		if f.Name != ":status" {
			return "", connErrf(ProtocolError, "unexpected response pseudo-header %q", f.Name)
		}
		if status != "" {
			return "", connErrf(ProtocolError, "duplicate :status pseudo-header")
		}
		status = f.Value
	}
	if status == "" {
		return "", connErrf(ProtocolError, "response missing :status pseudo-header")
	}
	return status, nil
}

package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderLen is the fixed size of a message header in bytes.
const HeaderLen = 16

// DefaultMaxMessageBytes is the default maximum total frame length the
// parser accepts.
const DefaultMaxMessageBytes = 48_000_000

// ErrProtocol is the sentinel wrapped by header/frame parse failures that
// must produce a protocol-error reply.
var ErrProtocol = errors.New("wire: protocol error")

// Header is the 16-byte frame header: four little-endian int32 fields.
type Header struct {
	MessageLength int32
	RequestID     int32
	ResponseTo    int32
	OpCode        Opcode
}

// ParseHeader reads a Header from the first HeaderLen bytes of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderLen {
		return Header{}, fmt.Errorf("wire: header: %w: need %d bytes, have %d", ErrProtocol, HeaderLen, len(b))
	}
	h := Header{
		MessageLength: int32(binary.LittleEndian.Uint32(b[0:4])),
		RequestID:     int32(binary.LittleEndian.Uint32(b[4:8])),
		ResponseTo:    int32(binary.LittleEndian.Uint32(b[8:12])),
		OpCode:        Opcode(int32(binary.LittleEndian.Uint32(b[12:16]))),
	}
	return h, nil
}

// ValidateLength checks a header's declared total length against the
// protocol's floor and a configured ceiling.
func ValidateLength(length int32, maxBytes int32) error {
	if length < HeaderLen {
		return fmt.Errorf("wire: frame length %d below minimum %d: %w", length, HeaderLen, ErrProtocol)
	}
	if length > maxBytes {
		return fmt.Errorf("wire: frame length %d exceeds maximum %d: %w", length, maxBytes, ErrProtocol)
	}
	return nil
}

// AppendHeader appends h's wire encoding to buf.
func AppendHeader(buf []byte, h Header) []byte {
	var tmp [HeaderLen]byte
	binary.LittleEndian.PutUint32(tmp[0:4], uint32(h.MessageLength))
	binary.LittleEndian.PutUint32(tmp[4:8], uint32(h.RequestID))
	binary.LittleEndian.PutUint32(tmp[8:12], uint32(h.ResponseTo))
	binary.LittleEndian.PutUint32(tmp[12:16], uint32(h.OpCode))
	return append(buf, tmp[:]...)
}

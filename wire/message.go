package wire

import "fmt"

// Message is a fully parsed frame: its header plus a typed body.
//
// Body holds one of *QueryBody, *InsertBody, *UpdateBody, *DeleteBody,
// *GetMoreBody, *KillCursorsBody, *MsgBody, or *ReplyBody, matching
// Header.OpCode.
type Message struct {
	Header Header
	Body   any
}

// ParseFrame parses one complete frame from raw, which must hold exactly
// Header.MessageLength bytes (the caller is responsible for buffering up
// to that length before calling ParseFrame; see conn for the splice
// logic). maxBytes bounds the declared length.
func ParseFrame(raw []byte, maxBytes int32) (*Message, error) {
	h, err := ParseHeader(raw)
	if err != nil {
		return nil, err
	}
	if err := ValidateLength(h.MessageLength, maxBytes); err != nil {
		return nil, err
	}
	if int(h.MessageLength) != len(raw) {
		return nil, fmt.Errorf("wire: frame: %w: declared length %d, got %d bytes", ErrProtocol, h.MessageLength, len(raw))
	}
	if !h.OpCode.Recognized() {
		return nil, fmt.Errorf("wire: frame: %w: unrecognized opcode %d", ErrProtocol, int32(h.OpCode))
	}

	body := raw[HeaderLen:]
	var parsed any
	switch h.OpCode {
	case OpQuery:
		parsed, err = ParseQueryBody(body)
	case OpInsert:
		parsed, err = ParseInsertBody(body)
	case OpUpdate:
		parsed, err = ParseUpdateBody(body)
	case OpDelete:
		parsed, err = ParseDeleteBody(body)
	case OpGetMore:
		parsed, err = ParseGetMoreBody(body)
	case OpKillCursors:
		parsed, err = ParseKillCursorsBody(body)
	case OpMsg:
		parsed, err = ParseMsgBody(body)
	case OpReply:
		parsed, err = ParseReplyBody(body)
	default:
		return nil, fmt.Errorf("wire: frame: %w: unhandled opcode %d", ErrProtocol, int32(h.OpCode))
	}
	if err != nil {
		return nil, err
	}
	return &Message{Header: h, Body: parsed}, nil
}

// bodyEncoder is implemented by every *XxxBody type.
type bodyEncoder interface {
	Encode() ([]byte, error)
}

// BuildFrame serializes body and patches Header.MessageLength to match
// before prepending the header. OpCode, RequestID and ResponseTo are
// taken as given by the caller — callers building a reply
// set ResponseTo to the originating request's RequestID.
func BuildFrame(h Header, body bodyEncoder) ([]byte, error) {
	payload, err := body.Encode()
	if err != nil {
		return nil, err
	}
	h.MessageLength = int32(HeaderLen + len(payload))

	buf := make([]byte, 0, h.MessageLength)
	buf = AppendHeader(buf, h)
	buf = append(buf, payload...)
	return buf, nil
}

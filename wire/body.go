package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/solatis/mongofront/bsondoc"
)

// QueryBody is the OP_QUERY body.
type QueryBody struct {
	Flags              int32
	FullCollectionName string
	Skip               int32
	Return             int32
	Query              *bsondoc.Document
	Projection         *bsondoc.Document // nil if absent
}

// InsertBody is the OP_INSERT body.
type InsertBody struct {
	Flags              int32
	FullCollectionName string
	Documents          []*bsondoc.Document
}

// UpdateBody is the OP_UPDATE body.
type UpdateBody struct {
	FullCollectionName string
	Flags              int32
	Selector           *bsondoc.Document
	Update             *bsondoc.Document
}

// DeleteBody is the OP_DELETE body.
type DeleteBody struct {
	FullCollectionName string
	Flags              int32
	Selector           *bsondoc.Document
}

// GetMoreBody is the OP_GET_MORE body.
type GetMoreBody struct {
	FullCollectionName string
	NumberToReturn     int32
	CursorID           int64
}

// KillCursorsBody is the OP_KILL_CURSORS body.
type KillCursorsBody struct {
	CursorIDs []int64
}

// MsgSection is one section of an OP_MSG body.
type MsgSection struct {
	Kind       byte
	Identifier string // set only for MsgSectionSequence
	Documents  []*bsondoc.Document
}

// MsgBody is the OP_MSG body.
type MsgBody struct {
	FlagBits uint32
	Sections []MsgSection
	// Checksum is the trailing CRC32C value, present only if FlagBits has
	// MsgFlagChecksumPresent set. It is parsed but never validated, and
	// never written on encode.
	Checksum uint32
	// ChecksumValid reports only that a checksum trailer was present and
	// read; its value is not checked against the message.
	ChecksumValid bool
}

// ReplyBody is the legacy OP_REPLY body.
type ReplyBody struct {
	ResponseFlags  int32
	CursorID       int64
	StartingFrom   int32
	NumberReturned int32
	Documents      []*bsondoc.Document
}

func readCString(b []byte) (string, int, error) {
	nul := bytes.IndexByte(b, 0x00)
	if nul < 0 {
		return "", 0, fmt.Errorf("wire: cstring: unterminated: %w", ErrProtocol)
	}
	return string(b[:nul]), nul + 1, nil
}

func readInt32(b []byte) (int32, error) {
	if len(b) < 4 {
		return 0, fmt.Errorf("wire: int32: %w: need 4 bytes, have %d", ErrProtocol, len(b))
	}
	return int32(binary.LittleEndian.Uint32(b[:4])), nil
}

func readInt64(b []byte) (int64, error) {
	if len(b) < 8 {
		return 0, fmt.Errorf("wire: int64: %w: need 8 bytes, have %d", ErrProtocol, len(b))
	}
	return int64(binary.LittleEndian.Uint64(b[:8])), nil
}

func appendInt32(buf []byte, v int32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(v))
	return append(buf, tmp[:]...)
}

func appendInt64(buf []byte, v int64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	return append(buf, tmp[:]...)
}

func appendCString(buf []byte, s string) []byte {
	buf = append(buf, s...)
	return append(buf, 0x00)
}

// ParseQueryBody decodes an OP_QUERY body.
func ParseQueryBody(b []byte) (*QueryBody, error) {
	flags, err := readInt32(b)
	if err != nil {
		return nil, err
	}
	pos := 4
	name, n, err := readCString(b[pos:])
	if err != nil {
		return nil, err
	}
	pos += n

	skip, err := readInt32(b[pos:])
	if err != nil {
		return nil, err
	}
	pos += 4
	ret, err := readInt32(b[pos:])
	if err != nil {
		return nil, err
	}
	pos += 4

	query, n, err := bsondoc.Decode(b, pos)
	if err != nil {
		return nil, fmt.Errorf("wire: query body: %w", err)
	}
	pos += n

	body := &QueryBody{Flags: flags, FullCollectionName: name, Skip: skip, Return: ret, Query: query}
	if pos < len(b) {
		proj, _, err := bsondoc.Decode(b, pos)
		if err != nil {
			return nil, fmt.Errorf("wire: query projection: %w", err)
		}
		body.Projection = proj
	}
	return body, nil
}

// Encode re-serializes q into an OP_QUERY body.
func (q *QueryBody) Encode() ([]byte, error) {
	buf := appendInt32(nil, q.Flags)
	buf = appendCString(buf, q.FullCollectionName)
	buf = appendInt32(buf, q.Skip)
	buf = appendInt32(buf, q.Return)
	qb, err := bsondoc.Encode(q.Query)
	if err != nil {
		return nil, err
	}
	buf = append(buf, qb...)
	if q.Projection != nil {
		pb, err := bsondoc.Encode(q.Projection)
		if err != nil {
			return nil, err
		}
		buf = append(buf, pb...)
	}
	return buf, nil
}

// ParseInsertBody decodes an OP_INSERT body: documents are concatenated
// until end-of-frame.
func ParseInsertBody(b []byte) (*InsertBody, error) {
	flags, err := readInt32(b)
	if err != nil {
		return nil, err
	}
	pos := 4
	name, n, err := readCString(b[pos:])
	if err != nil {
		return nil, err
	}
	pos += n

	var docs []*bsondoc.Document
	for pos < len(b) {
		doc, n, err := bsondoc.Decode(b, pos)
		if err != nil {
			return nil, fmt.Errorf("wire: insert document: %w", err)
		}
		docs = append(docs, doc)
		pos += n
	}
	return &InsertBody{Flags: flags, FullCollectionName: name, Documents: docs}, nil
}

// Encode re-serializes the insert body.
func (ib *InsertBody) Encode() ([]byte, error) {
	buf := appendInt32(nil, ib.Flags)
	buf = appendCString(buf, ib.FullCollectionName)
	for _, d := range ib.Documents {
		db, err := bsondoc.Encode(d)
		if err != nil {
			return nil, err
		}
		buf = append(buf, db...)
	}
	return buf, nil
}

// ParseUpdateBody decodes an OP_UPDATE body.
func ParseUpdateBody(b []byte) (*UpdateBody, error) {
	if _, err := readInt32(b); err != nil { // reserved
		return nil, err
	}
	pos := 4
	name, n, err := readCString(b[pos:])
	if err != nil {
		return nil, err
	}
	pos += n
	flags, err := readInt32(b[pos:])
	if err != nil {
		return nil, err
	}
	pos += 4
	selector, n, err := bsondoc.Decode(b, pos)
	if err != nil {
		return nil, fmt.Errorf("wire: update selector: %w", err)
	}
	pos += n
	update, _, err := bsondoc.Decode(b, pos)
	if err != nil {
		return nil, fmt.Errorf("wire: update document: %w", err)
	}
	return &UpdateBody{FullCollectionName: name, Flags: flags, Selector: selector, Update: update}, nil
}

// Encode re-serializes the update body.
func (ub *UpdateBody) Encode() ([]byte, error) {
	buf := appendInt32(nil, 0)
	buf = appendCString(buf, ub.FullCollectionName)
	buf = appendInt32(buf, ub.Flags)
	sb, err := bsondoc.Encode(ub.Selector)
	if err != nil {
		return nil, err
	}
	buf = append(buf, sb...)
	upb, err := bsondoc.Encode(ub.Update)
	if err != nil {
		return nil, err
	}
	return append(buf, upb...), nil
}

// ParseDeleteBody decodes an OP_DELETE body.
func ParseDeleteBody(b []byte) (*DeleteBody, error) {
	if _, err := readInt32(b); err != nil {
		return nil, err
	}
	pos := 4
	name, n, err := readCString(b[pos:])
	if err != nil {
		return nil, err
	}
	pos += n
	flags, err := readInt32(b[pos:])
	if err != nil {
		return nil, err
	}
	pos += 4
	selector, _, err := bsondoc.Decode(b, pos)
	if err != nil {
		return nil, fmt.Errorf("wire: delete selector: %w", err)
	}
	return &DeleteBody{FullCollectionName: name, Flags: flags, Selector: selector}, nil
}

// Encode re-serializes the delete body.
func (db *DeleteBody) Encode() ([]byte, error) {
	buf := appendInt32(nil, 0)
	buf = appendCString(buf, db.FullCollectionName)
	buf = appendInt32(buf, db.Flags)
	sb, err := bsondoc.Encode(db.Selector)
	if err != nil {
		return nil, err
	}
	return append(buf, sb...), nil
}

// ParseGetMoreBody decodes an OP_GET_MORE body.
func ParseGetMoreBody(b []byte) (*GetMoreBody, error) {
	if _, err := readInt32(b); err != nil {
		return nil, err
	}
	pos := 4
	name, n, err := readCString(b[pos:])
	if err != nil {
		return nil, err
	}
	pos += n
	ret, err := readInt32(b[pos:])
	if err != nil {
		return nil, err
	}
	pos += 4
	cursorID, err := readInt64(b[pos:])
	if err != nil {
		return nil, err
	}
	return &GetMoreBody{FullCollectionName: name, NumberToReturn: ret, CursorID: cursorID}, nil
}

// Encode re-serializes the get-more body.
func (gb *GetMoreBody) Encode() ([]byte, error) {
	buf := appendInt32(nil, 0)
	buf = appendCString(buf, gb.FullCollectionName)
	buf = appendInt32(buf, gb.NumberToReturn)
	return appendInt64(buf, gb.CursorID), nil
}

// ParseKillCursorsBody decodes an OP_KILL_CURSORS body.
func ParseKillCursorsBody(b []byte) (*KillCursorsBody, error) {
	if _, err := readInt32(b); err != nil { // reserved
		return nil, err
	}
	count, err := readInt32(b[4:])
	if err != nil {
		return nil, err
	}
	pos := 8
	ids := make([]int64, 0, count)
	for range int(count) {
		id, err := readInt64(b[pos:])
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
		pos += 8
	}
	return &KillCursorsBody{CursorIDs: ids}, nil
}

// Encode re-serializes the kill-cursors body.
func (kb *KillCursorsBody) Encode() ([]byte, error) {
	buf := appendInt32(nil, 0)
	buf = appendInt32(buf, int32(len(kb.CursorIDs)))
	for _, id := range kb.CursorIDs {
		buf = appendInt64(buf, id)
	}
	return buf, nil
}

// ParseMsgBody decodes an OP_MSG body: a flag-bits field followed by
// sections until end-of-frame, with an optional trailing CRC32C.
func ParseMsgBody(b []byte) (*MsgBody, error) {
	flags, err := readInt32(b)
	if err != nil {
		return nil, err
	}
	flagBits := uint32(flags)
	pos := 4

	end := len(b)
	hasChecksum := flagBits&MsgFlagChecksumPresent != 0
	if hasChecksum {
		end -= 4
		if end < pos {
			return nil, fmt.Errorf("wire: msg: %w: too short for checksum", ErrProtocol)
		}
	}

	var sections []MsgSection
	for pos < end {
		kind := b[pos]
		pos++
		switch kind {
		case MsgSectionBody:
			doc, n, err := bsondoc.Decode(b, pos)
			if err != nil {
				return nil, fmt.Errorf("wire: msg section 0: %w", err)
			}
			pos += n
			sections = append(sections, MsgSection{Kind: MsgSectionBody, Documents: []*bsondoc.Document{doc}})

		case MsgSectionSequence:
			secLen, err := readInt32(b[pos:])
			if err != nil {
				return nil, err
			}
			secEnd := pos + int(secLen)
			if secLen < 4 || secEnd > end {
				return nil, fmt.Errorf("wire: msg section 1: %w: bad length", ErrProtocol)
			}
			cur := pos + 4
			identifier, n, err := readCString(b[cur:secEnd])
			if err != nil {
				return nil, err
			}
			cur += n
			var docs []*bsondoc.Document
			for cur < secEnd {
				doc, n, err := bsondoc.Decode(b, cur)
				if err != nil {
					return nil, fmt.Errorf("wire: msg section 1 document: %w", err)
				}
				docs = append(docs, doc)
				cur += n
			}
			sections = append(sections, MsgSection{Kind: MsgSectionSequence, Identifier: identifier, Documents: docs})
			pos = secEnd

		default:
			return nil, fmt.Errorf("wire: msg: %w: unknown section kind %d", ErrProtocol, kind)
		}
	}

	body := &MsgBody{FlagBits: flagBits, Sections: sections}
	if hasChecksum {
		sum, err := readInt32(b[end:])
		if err != nil {
			return nil, err
		}
		body.Checksum = uint32(sum)
		body.ChecksumValid = true
	}
	return body, nil
}

// Encode re-serializes the OP_MSG body. The checksum-present flag bit, if
// set on input, is cleared: this implementation never computes a checksum
// (see DESIGN.md).
func (mb *MsgBody) Encode() ([]byte, error) {
	buf := appendInt32(nil, int32(mb.FlagBits&^MsgFlagChecksumPresent))
	for _, sec := range mb.Sections {
		buf = append(buf, sec.Kind)
		switch sec.Kind {
		case MsgSectionBody:
			if len(sec.Documents) != 1 {
				return nil, fmt.Errorf("wire: msg: %w: section 0 must carry exactly one document", ErrProtocol)
			}
			db, err := bsondoc.Encode(sec.Documents[0])
			if err != nil {
				return nil, err
			}
			buf = append(buf, db...)
		case MsgSectionSequence:
			inner := appendCString(nil, sec.Identifier)
			for _, d := range sec.Documents {
				db, err := bsondoc.Encode(d)
				if err != nil {
					return nil, err
				}
				inner = append(inner, db...)
			}
			buf = appendInt32(buf, int32(len(inner)+4))
			buf = append(buf, inner...)
		default:
			return nil, fmt.Errorf("wire: msg: %w: unknown section kind %d", ErrProtocol, sec.Kind)
		}
	}
	return buf, nil
}

// Command returns the single document carried by an OP_MSG's kind-0
// section, if any — the command document for router dispatch.
func (mb *MsgBody) Command() (*bsondoc.Document, bool) {
	for _, sec := range mb.Sections {
		if sec.Kind == MsgSectionBody && len(sec.Documents) == 1 {
			return sec.Documents[0], true
		}
	}
	return nil, false
}

// ParseReplyBody decodes a legacy OP_REPLY body.
func ParseReplyBody(b []byte) (*ReplyBody, error) {
	flags, err := readInt32(b)
	if err != nil {
		return nil, err
	}
	cursorID, err := readInt64(b[4:])
	if err != nil {
		return nil, err
	}
	startingFrom, err := readInt32(b[12:])
	if err != nil {
		return nil, err
	}
	numberReturned, err := readInt32(b[16:])
	if err != nil {
		return nil, err
	}
	pos := 20
	docs := make([]*bsondoc.Document, 0, numberReturned)
	for pos < len(b) {
		doc, n, err := bsondoc.Decode(b, pos)
		if err != nil {
			return nil, fmt.Errorf("wire: reply document: %w", err)
		}
		docs = append(docs, doc)
		pos += n
	}
	return &ReplyBody{
		ResponseFlags: flags, CursorID: cursorID, StartingFrom: startingFrom,
		NumberReturned: numberReturned, Documents: docs,
	}, nil
}

// Encode re-serializes the reply body.
func (rb *ReplyBody) Encode() ([]byte, error) {
	buf := appendInt32(nil, rb.ResponseFlags)
	buf = appendInt64(buf, rb.CursorID)
	buf = appendInt32(buf, rb.StartingFrom)
	buf = appendInt32(buf, int32(len(rb.Documents)))
	for _, d := range rb.Documents {
		db, err := bsondoc.Encode(d)
		if err != nil {
			return nil, err
		}
		buf = append(buf, db...)
	}
	return buf, nil
}

// Package wire implements the framed message layer: fixed 16-byte headers
// plus typed, opcode-specific bodies.
package wire

import "fmt"

// Opcode identifies a message's body layout.
type Opcode int32

const (
	OpReply       Opcode = 1
	OpUpdate      Opcode = 2001
	OpInsert      Opcode = 2002
	OpQuery       Opcode = 2004
	OpGetMore     Opcode = 2005
	OpDelete      Opcode = 2006
	OpKillCursors Opcode = 2007
	OpMsg         Opcode = 2013
)

func (o Opcode) String() string {
	switch o {
	case OpReply:
		return "REPLY"
	case OpUpdate:
		return "UPDATE"
	case OpInsert:
		return "INSERT"
	case OpQuery:
		return "QUERY"
	case OpGetMore:
		return "GET_MORE"
	case OpDelete:
		return "DELETE"
	case OpKillCursors:
		return "KILL_CURSORS"
	case OpMsg:
		return "MSG"
	}
	return fmt.Sprintf("UNKNOWN(%d)", int32(o))
}

// Recognized reports whether o is one of the eight opcodes the framer
// handles (the seven request opcodes plus OP_REPLY); any other opcode is
// rejected with a protocol error.
func (o Opcode) Recognized() bool {
	switch o {
	case OpReply, OpUpdate, OpInsert, OpQuery, OpGetMore, OpDelete, OpKillCursors, OpMsg:
		return true
	}
	return false
}

// Update flag bits.
const (
	UpdateUpsert int32 = 0x01
	UpdateMulti  int32 = 0x02
)

// Delete flag bits.
const (
	DeleteSingleRemove int32 = 0x01
)

// MsgFlagChecksumPresent is bit 0 of an OP_MSG's flag-bits: a trailing
// 4-byte CRC32C follows the sections.
const MsgFlagChecksumPresent uint32 = 1 << 0

// MsgSection kinds.
const (
	MsgSectionBody     byte = 0 // single document
	MsgSectionSequence byte = 1 // {identifier, documents...}
)

// OP_REPLY response flag bits.
const (
	ReplyCursorNotFound int32 = 1 << 0
	ReplyQueryFailure   int32 = 1 << 1
)

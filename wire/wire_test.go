package wire_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solatis/mongofront/bsondoc"
	"github.com/solatis/mongofront/wire"
)

func buildAndParse(t *testing.T, h wire.Header, body interface {
	Encode() ([]byte, error)
}) *wire.Message {
	t.Helper()
	raw, err := wire.BuildFrame(h, body)
	require.NoError(t, err)

	msg, err := wire.ParseFrame(raw, wire.DefaultMaxMessageBytes)
	require.NoError(t, err)
	return msg
}

func TestHeaderRoundTrip(t *testing.T) {
	h := wire.Header{RequestID: 7, ResponseTo: 0, OpCode: wire.OpQuery}
	buf := wire.AppendHeader(nil, h)
	require.Len(t, buf, wire.HeaderLen)

	got, err := wire.ParseHeader(buf)
	require.NoError(t, err)
	require.Equal(t, h.RequestID, got.RequestID)
	require.Equal(t, h.OpCode, got.OpCode)
}

func TestQueryRoundTrip(t *testing.T) {
	q := &wire.QueryBody{
		FullCollectionName: "test.coll",
		Skip:               5,
		Return:             10,
		Query:              bsondoc.Doc("name", bsondoc.String("alice")),
		Projection:         bsondoc.Doc("name", bsondoc.Int32(1)),
	}
	h := wire.Header{RequestID: 1, OpCode: wire.OpQuery}
	msg := buildAndParse(t, h, q)

	got, ok := msg.Body.(*wire.QueryBody)
	require.True(t, ok)
	require.Equal(t, q.FullCollectionName, got.FullCollectionName)
	require.Equal(t, q.Skip, got.Skip)
	require.Equal(t, q.Return, got.Return)
	require.NotNil(t, got.Projection)
}

func TestQueryRoundTripNoProjection(t *testing.T) {
	q := &wire.QueryBody{
		FullCollectionName: "test.coll",
		Query:              bsondoc.NewDocument(),
	}
	h := wire.Header{RequestID: 1, OpCode: wire.OpQuery}
	msg := buildAndParse(t, h, q)

	got := msg.Body.(*wire.QueryBody)
	require.Nil(t, got.Projection)
}

func TestInsertRoundTrip(t *testing.T) {
	ib := &wire.InsertBody{
		FullCollectionName: "test.coll",
		Documents: []*bsondoc.Document{
			bsondoc.Doc("a", bsondoc.Int32(1)),
			bsondoc.Doc("b", bsondoc.Int32(2)),
		},
	}
	h := wire.Header{RequestID: 2, OpCode: wire.OpInsert}
	msg := buildAndParse(t, h, ib)

	got := msg.Body.(*wire.InsertBody)
	require.Len(t, got.Documents, 2)
}

func TestUpdateRoundTrip(t *testing.T) {
	ub := &wire.UpdateBody{
		FullCollectionName: "test.coll",
		Flags:              wire.UpdateUpsert,
		Selector:           bsondoc.Doc("_id", bsondoc.Int32(1)),
		Update:             bsondoc.Doc("$set", bsondoc.Doc("x", bsondoc.Int32(2))),
	}
	h := wire.Header{RequestID: 3, OpCode: wire.OpUpdate}
	msg := buildAndParse(t, h, ub)

	got := msg.Body.(*wire.UpdateBody)
	require.Equal(t, wire.UpdateUpsert, got.Flags)
}

func TestDeleteRoundTrip(t *testing.T) {
	db := &wire.DeleteBody{
		FullCollectionName: "test.coll",
		Flags:              wire.DeleteSingleRemove,
		Selector:           bsondoc.Doc("_id", bsondoc.Int32(1)),
	}
	h := wire.Header{RequestID: 4, OpCode: wire.OpDelete}
	msg := buildAndParse(t, h, db)

	got := msg.Body.(*wire.DeleteBody)
	require.Equal(t, wire.DeleteSingleRemove, got.Flags)
}

func TestGetMoreRoundTrip(t *testing.T) {
	gb := &wire.GetMoreBody{
		FullCollectionName: "test.coll",
		NumberToReturn:     100,
		CursorID:           123456789,
	}
	h := wire.Header{RequestID: 5, OpCode: wire.OpGetMore}
	msg := buildAndParse(t, h, gb)

	got := msg.Body.(*wire.GetMoreBody)
	require.Equal(t, int64(123456789), got.CursorID)
}

func TestKillCursorsRoundTrip(t *testing.T) {
	kb := &wire.KillCursorsBody{CursorIDs: []int64{1, 2, 3}}
	h := wire.Header{RequestID: 6, OpCode: wire.OpKillCursors}
	msg := buildAndParse(t, h, kb)

	got := msg.Body.(*wire.KillCursorsBody)
	require.Equal(t, []int64{1, 2, 3}, got.CursorIDs)
}

func TestMsgRoundTripSingleSection(t *testing.T) {
	mb := &wire.MsgBody{
		Sections: []wire.MsgSection{
			{Kind: wire.MsgSectionBody, Documents: []*bsondoc.Document{bsondoc.Doc("insert", bsondoc.String("coll"))}},
		},
	}
	h := wire.Header{RequestID: 7, OpCode: wire.OpMsg}
	msg := buildAndParse(t, h, mb)

	got := msg.Body.(*wire.MsgBody)
	cmd, ok := got.Command()
	require.True(t, ok)
	v, _ := cmd.Get("insert")
	require.Equal(t, bsondoc.String("coll"), v)
}

func TestMsgRoundTripWithSequence(t *testing.T) {
	mb := &wire.MsgBody{
		Sections: []wire.MsgSection{
			{Kind: wire.MsgSectionBody, Documents: []*bsondoc.Document{bsondoc.Doc("insert", bsondoc.String("coll"))}},
			{Kind: wire.MsgSectionSequence, Identifier: "documents", Documents: []*bsondoc.Document{
				bsondoc.Doc("a", bsondoc.Int32(1)),
				bsondoc.Doc("b", bsondoc.Int32(2)),
			}},
		},
	}
	h := wire.Header{RequestID: 8, OpCode: wire.OpMsg}
	msg := buildAndParse(t, h, mb)

	got := msg.Body.(*wire.MsgBody)
	require.Len(t, got.Sections, 2)
	require.Equal(t, "documents", got.Sections[1].Identifier)
	require.Len(t, got.Sections[1].Documents, 2)
}

func TestMsgChecksumFlagClearedOnEncode(t *testing.T) {
	mb := &wire.MsgBody{
		FlagBits: wire.MsgFlagChecksumPresent,
		Sections: []wire.MsgSection{
			{Kind: wire.MsgSectionBody, Documents: []*bsondoc.Document{bsondoc.NewDocument()}},
		},
	}
	buf, err := mb.Encode()
	require.NoError(t, err)

	reparsed, err := wire.ParseMsgBody(buf)
	require.NoError(t, err)
	require.False(t, reparsed.ChecksumValid)
	require.Equal(t, uint32(0), reparsed.FlagBits&wire.MsgFlagChecksumPresent)
}

func TestReplyRoundTrip(t *testing.T) {
	rb := &wire.ReplyBody{
		CursorID: 42,
		Documents: []*bsondoc.Document{
			bsondoc.Doc("ok", bsondoc.Double(1)),
		},
	}
	h := wire.Header{ResponseTo: 9, OpCode: wire.OpReply}
	msg := buildAndParse(t, h, rb)

	got := msg.Body.(*wire.ReplyBody)
	require.Equal(t, int64(42), got.CursorID)
	require.Equal(t, int32(1), got.NumberReturned)
}

func TestParseFrameRejectsUnrecognizedOpcode(t *testing.T) {
	h := wire.Header{OpCode: 9999, MessageLength: wire.HeaderLen}
	raw := wire.AppendHeader(nil, h)

	_, err := wire.ParseFrame(raw, wire.DefaultMaxMessageBytes)
	require.ErrorIs(t, err, wire.ErrProtocol)
}

func TestParseFrameRejectsLengthMismatch(t *testing.T) {
	h := wire.Header{OpCode: wire.OpQuery, MessageLength: 999}
	raw := wire.AppendHeader(nil, h)
	raw = append(raw, make([]byte, 4)...)

	_, err := wire.ParseFrame(raw, wire.DefaultMaxMessageBytes)
	require.ErrorIs(t, err, wire.ErrProtocol)
}

func TestParseFrameRejectsOversizedLength(t *testing.T) {
	h := wire.Header{OpCode: wire.OpQuery, MessageLength: 1000}
	raw := wire.AppendHeader(nil, h)
	raw = append(raw, make([]byte, 1000-wire.HeaderLen)...)

	_, err := wire.ParseFrame(raw, 100)
	require.ErrorIs(t, err, wire.ErrProtocol)
}

func TestParseHeaderTruncated(t *testing.T) {
	_, err := wire.ParseHeader([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestResponseToCorrelatesWithRequestID(t *testing.T) {
	reqID := int32(55)
	replyHeader := wire.Header{ResponseTo: reqID, OpCode: wire.OpReply}
	rb := &wire.ReplyBody{Documents: []*bsondoc.Document{bsondoc.NewDocument()}}

	raw, err := wire.BuildFrame(replyHeader, rb)
	require.NoError(t, err)

	msg, err := wire.ParseFrame(raw, wire.DefaultMaxMessageBytes)
	require.NoError(t, err)
	require.Equal(t, reqID, msg.Header.ResponseTo)
}

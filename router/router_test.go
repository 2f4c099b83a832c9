package router_test

import (
	"context"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solatis/mongofront/bsondoc"
	"github.com/solatis/mongofront/conn"
	"github.com/solatis/mongofront/router"
	"github.com/solatis/mongofront/session"
	"github.com/solatis/mongofront/storage"
	"github.com/solatis/mongofront/wire"
)

// newTestRig wires a Router up to one end of a net.Pipe, returning the
// server-side Conn, the client end for the test to drive, and the Router.
func newTestRig(t *testing.T) (*conn.Conn, net.Conn, *router.Router) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close() })

	store := storage.NewStore()
	sessions := session.NewManager(0, 0)
	t.Cleanup(sessions.Close)

	r := router.New(store, sessions, "7.0.0-mongofront", "test-host", wire.DefaultMaxMessageBytes)
	c := conn.New(1, server, wire.DefaultMaxMessageBytes)
	return c, client, r
}

// roundtrip writes req on the client side, serves one Dispatch on the
// server side, and reads the reply back on the client side. Requests that
// never produce a reply (legacy fire-and-forget opcodes) aren't exercised
// through this helper.
func roundtrip(t *testing.T, c *conn.Conn, client net.Conn, r *router.Router, h wire.Header, body interface {
	Encode() ([]byte, error)
}) *wire.Message {
	t.Helper()
	raw, err := wire.BuildFrame(h, body)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		msg, err := c.ReadMessage(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		errCh <- r.Dispatch(context.Background(), c, msg)
	}()

	_, err = client.Write(raw)
	require.NoError(t, err)

	replyBuf := make([]byte, wire.HeaderLen)
	_, err = client.Read(replyBuf)
	require.NoError(t, err)
	length := int32(replyBuf[0]) | int32(replyBuf[1])<<8 | int32(replyBuf[2])<<16 | int32(replyBuf[3])<<24
	rest := make([]byte, int(length)-wire.HeaderLen)
	_, err = io.ReadFull(client, rest)
	require.NoError(t, err)

	full := append(replyBuf, rest...)
	msg, err := wire.ParseFrame(full, wire.DefaultMaxMessageBytes)
	require.NoError(t, err)

	require.NoError(t, <-errCh)
	return msg
}

func TestDispatchHelloHandshake(t *testing.T) {
	c, client, r := newTestRig(t)

	cmd := bsondoc.Doc("hello", bsondoc.Int32(1))
	msgBody := &wire.MsgBody{Sections: []wire.MsgSection{{Kind: wire.MsgSectionBody, Documents: []*bsondoc.Document{cmd}}}}
	h := wire.Header{RequestID: 1, OpCode: wire.OpMsg}

	reply := roundtrip(t, c, client, r, h, msgBody)
	require.Equal(t, wire.OpMsg, reply.Header.OpCode)
	require.Equal(t, int32(1), reply.Header.ResponseTo)

	rb := reply.Body.(*wire.MsgBody)
	doc := rb.Sections[0].Documents[0]
	ok, _ := doc.Get("ok")
	require.Equal(t, bsondoc.Double(1), ok)
	ismaster, _ := doc.Get("isWritablePrimary")
	require.Equal(t, bsondoc.Bool(true), ismaster)
}

func TestDispatchInsertThenFind(t *testing.T) {
	c, client, r := newTestRig(t)

	insertCmd := bsondoc.Doc(
		"insert", bsondoc.String("widgets"),
		"$db", bsondoc.String("shop"),
		"documents", bsondoc.Array{bsondoc.Doc("name", bsondoc.String("gear"), "price", bsondoc.Int32(10))},
	)
	insertMsg := &wire.MsgBody{Sections: []wire.MsgSection{{Kind: wire.MsgSectionBody, Documents: []*bsondoc.Document{insertCmd}}}}
	reply := roundtrip(t, c, client, r, wire.Header{RequestID: 1, OpCode: wire.OpMsg}, insertMsg)
	rb := reply.Body.(*wire.MsgBody)
	n, _ := rb.Sections[0].Documents[0].Get("n")
	require.Equal(t, bsondoc.Int32(1), n)

	findCmd := bsondoc.Doc(
		"find", bsondoc.String("widgets"),
		"$db", bsondoc.String("shop"),
		"filter", bsondoc.Doc("name", bsondoc.String("gear")),
	)
	findMsg := &wire.MsgBody{Sections: []wire.MsgSection{{Kind: wire.MsgSectionBody, Documents: []*bsondoc.Document{findCmd}}}}
	reply = roundtrip(t, c, client, r, wire.Header{RequestID: 2, OpCode: wire.OpMsg}, findMsg)
	rb = reply.Body.(*wire.MsgBody)
	cursorVal, ok := rb.Sections[0].Documents[0].Get("cursor")
	require.True(t, ok)
	cursor := cursorVal.(*bsondoc.Document)
	batchVal, _ := cursor.Get("firstBatch")
	batch := batchVal.(bsondoc.Array)
	require.NotEmpty(t, batch)
}

func TestDispatchLegacyCmdQuery(t *testing.T) {
	c, client, r := newTestRig(t)

	cmd := bsondoc.Doc("ping", bsondoc.Int32(1))
	qb := &wire.QueryBody{FullCollectionName: "admin.$cmd", Query: cmd, Return: 1}
	reply := roundtrip(t, c, client, r, wire.Header{RequestID: 7, OpCode: wire.OpQuery}, qb)
	require.Equal(t, wire.OpReply, reply.Header.OpCode)

	rb := reply.Body.(*wire.ReplyBody)
	require.Len(t, rb.Documents, 1)
	okVal, _ := rb.Documents[0].Get("ok")
	require.Equal(t, bsondoc.Double(1), okVal)
}

func TestDispatchKillCursorsIsFireAndForget(t *testing.T) {
	c, _, r := newTestRig(t)

	kc := &wire.KillCursorsBody{CursorIDs: []int64{42}}
	msg := &wire.Message{Header: wire.Header{RequestID: 1, OpCode: wire.OpKillCursors}, Body: kc}
	require.NoError(t, r.Dispatch(context.Background(), c, msg))
}

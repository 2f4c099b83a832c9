package conn_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/solatis/mongofront/bsondoc"
	"github.com/solatis/mongofront/conn"
	"github.com/solatis/mongofront/wire"
)

func TestReadWriteMessageRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c := conn.New(1, server, wire.DefaultMaxMessageBytes)
	require.Equal(t, conn.StateConnecting, c.State())

	qb := &wire.QueryBody{FullCollectionName: "test.coll", Query: bsondoc.NewDocument()}
	h := wire.Header{RequestID: 5, OpCode: wire.OpQuery}

	go func() {
		raw, _ := wire.BuildFrame(h, qb)
		_, _ = client.Write(raw)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := c.ReadMessage(ctx)
	require.NoError(t, err)
	require.Equal(t, wire.OpQuery, msg.Header.OpCode)
	require.Equal(t, conn.StateConnected, c.State())
}

func TestWriteMessageSilentAfterClose(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	c := conn.New(1, server, wire.DefaultMaxMessageBytes)
	require.NoError(t, c.Close())

	rb := &wire.ReplyBody{Documents: []*bsondoc.Document{bsondoc.NewDocument()}}
	err := c.WriteMessage(wire.Header{OpCode: wire.OpReply}, rb)
	require.NoError(t, err)
}

func TestCursorRegistryLifecycle(t *testing.T) {
	reg := conn.NewCursorRegistry()
	id := conn.NewCursorID()
	reg.Register(&conn.Cursor{ID: id})

	got, ok := reg.Get(id)
	require.True(t, ok)
	require.Equal(t, id, got.ID)

	require.Equal(t, 1, reg.Kill([]int64{id}))
	_, ok = reg.Get(id)
	require.False(t, ok)
}

func TestCursorIDsAreDistinct(t *testing.T) {
	a := conn.NewCursorID()
	b := conn.NewCursorID()
	require.NotEqual(t, a, b)
}

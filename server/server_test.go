package server_test

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/solatis/mongofront/bsondoc"
	"github.com/solatis/mongofront/router"
	"github.com/solatis/mongofront/server"
	"github.com/solatis/mongofront/session"
	"github.com/solatis/mongofront/storage"
	"github.com/solatis/mongofront/tap"
	"github.com/solatis/mongofront/wire"
)

func startServer(t *testing.T, broker *tap.Broker) (addr string, cancel context.CancelFunc) {
	t.Helper()

	var lc net.ListenConfig
	lis, err := lc.Listen(context.Background(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr = lis.Addr().String()
	require.NoError(t, lis.Close())

	sessions := session.NewManager(0, 0)
	t.Cleanup(sessions.Close)
	r := router.New(storage.NewStore(), sessions, "7.0.0-mongofront", "test-host", wire.DefaultMaxMessageBytes)
	r.Broker = broker

	s := server.New(server.Config{Addr: addr, MaxMessageBytes: wire.DefaultMaxMessageBytes}, r)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := s.ListenAndServe(ctx); err != nil {
			t.Logf("server error: %v", err)
		}
	}()
	t.Cleanup(func() { _ = s.Close() })

	d := net.Dialer{Timeout: 100 * time.Millisecond}
	for range 50 {
		c, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			_ = c.Close()
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	return addr, cancel
}

func TestServerAcceptsAndDispatchesPing(t *testing.T) {
	addr, cancel := startServer(t, nil)
	defer cancel()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	cmd := bsondoc.Doc("ping", bsondoc.Int32(1), "$db", bsondoc.String("admin"))
	msgBody := &wire.MsgBody{Sections: []wire.MsgSection{{Kind: wire.MsgSectionBody, Documents: []*bsondoc.Document{cmd}}}}
	raw, err := wire.BuildFrame(wire.Header{RequestID: 1, OpCode: wire.OpMsg}, msgBody)
	require.NoError(t, err)

	_, err = conn.Write(raw)
	require.NoError(t, err)

	hdr := make([]byte, wire.HeaderLen)
	_, err = io.ReadFull(conn, hdr)
	require.NoError(t, err)
	length := int32(hdr[0]) | int32(hdr[1])<<8 | int32(hdr[2])<<16 | int32(hdr[3])<<24
	rest := make([]byte, int(length)-wire.HeaderLen)
	_, err = io.ReadFull(conn, rest)
	require.NoError(t, err)

	msg, err := wire.ParseFrame(append(hdr, rest...), wire.DefaultMaxMessageBytes)
	require.NoError(t, err)
	require.Equal(t, wire.OpMsg, msg.Header.OpCode)

	rb := msg.Body.(*wire.MsgBody)
	ok, _ := rb.Sections[0].Documents[0].Get("ok")
	require.Equal(t, bsondoc.Double(1), ok)
}

func TestServerPublishesEvents(t *testing.T) {
	b := tap.New(16)
	addr, cancel := startServer(t, b)
	defer cancel()

	ch, unsub := b.Subscribe()
	defer unsub()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	cmd := bsondoc.Doc("ping", bsondoc.Int32(1), "$db", bsondoc.String("admin"))
	msgBody := &wire.MsgBody{Sections: []wire.MsgSection{{Kind: wire.MsgSectionBody, Documents: []*bsondoc.Document{cmd}}}}
	raw, err := wire.BuildFrame(wire.Header{RequestID: 1, OpCode: wire.OpMsg}, msgBody)
	require.NoError(t, err)
	_, err = conn.Write(raw)
	require.NoError(t, err)

	select {
	case ev := <-ch:
		require.Equal(t, "ping", ev.Command)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

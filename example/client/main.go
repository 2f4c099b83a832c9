// Command client is a small hand-rolled demonstration client for
// mongofrontd: it speaks the wire protocol directly via bsondoc/wire
// instead of pulling in a full driver, performing a handshake, an insert,
// and a find against a running server.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"sync/atomic"
	"time"

	"github.com/solatis/mongofront/bsondoc"
	"github.com/solatis/mongofront/wire"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:27017", "mongofrontd address")
	flag.Parse()

	if err := run(*addr); err != nil {
		log.Fatal(err)
	}
}

var requestID int32

func nextRequestID() int32 {
	return atomic.AddInt32(&requestID, 1)
}

func run(addr string) error {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer func() { _ = conn.Close() }()

	hello, err := runCommand(conn, "admin", bsondoc.Doc("hello", bsondoc.Int32(1)))
	if err != nil {
		return fmt.Errorf("hello: %w", err)
	}
	fmt.Printf("handshake ok: %v\n", fieldOrNil(hello, "ok"))

	docID := bsondoc.NewObjectID()
	doc := bsondoc.Doc(
		"_id", docID,
		"name", bsondoc.String("ada"),
		"age", bsondoc.Int32(36),
	)
	insertReply, err := runCommand(conn, "demo", bsondoc.Doc(
		"insert", bsondoc.String("people"),
		"documents", bsondoc.Array{doc},
	))
	if err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	fmt.Printf("inserted n=%v\n", fieldOrNil(insertReply, "n"))

	findReply, err := runCommand(conn, "demo", bsondoc.Doc(
		"find", bsondoc.String("people"),
		"filter", bsondoc.Doc("name", bsondoc.String("ada")),
	))
	if err != nil {
		return fmt.Errorf("find: %w", err)
	}
	fmt.Printf("find reply: %v\n", fieldOrNil(findReply, "cursor"))

	return nil
}

// runCommand sends cmd as an OP_MSG against db and returns the reply's
// command document.
func runCommand(conn net.Conn, db string, cmd *bsondoc.Document) (*bsondoc.Document, error) {
	if _, ok := cmd.Get("$db"); !ok {
		cmd.Set("$db", bsondoc.String(db))
	}

	body := &wire.MsgBody{Sections: []wire.MsgSection{
		{Kind: wire.MsgSectionBody, Documents: []*bsondoc.Document{cmd}},
	}}
	h := wire.Header{RequestID: nextRequestID(), OpCode: wire.OpMsg}
	raw, err := wire.BuildFrame(h, body)
	if err != nil {
		return nil, fmt.Errorf("build frame: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := conn.Write(raw); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}

	header := make([]byte, wire.HeaderLen)
	if _, err := io.ReadFull(conn, header); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	length := int32(header[0]) | int32(header[1])<<8 | int32(header[2])<<16 | int32(header[3])<<24
	rest := make([]byte, int(length)-wire.HeaderLen)
	if _, err := io.ReadFull(conn, rest); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	full := append(header, rest...)
	msg, err := wire.ParseFrame(full, wire.DefaultMaxMessageBytes)
	if err != nil {
		return nil, fmt.Errorf("parse reply: %w", err)
	}

	mb, ok := msg.Body.(*wire.MsgBody)
	if !ok {
		return nil, fmt.Errorf("unexpected reply body %T", msg.Body)
	}
	reply, ok := mb.Command()
	if !ok {
		return nil, fmt.Errorf("reply has no command document")
	}
	return reply, nil
}

func fieldOrNil(doc *bsondoc.Document, key string) any {
	v, ok := doc.Get(key)
	if !ok {
		return nil
	}
	return v
}

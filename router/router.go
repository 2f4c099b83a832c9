// Package router classifies an incoming wire.Message and dispatches it to
// the CRUD facade or the admin command surface, reproducing the legacy
// opcode fire-and-forget semantics and the OP_MSG command-key precedence
// rules of the real protocol.
package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/solatis/mongofront/bsondoc"
	"github.com/solatis/mongofront/conn"
	"github.com/solatis/mongofront/crud"
	"github.com/solatis/mongofront/session"
	"github.com/solatis/mongofront/tap"
	"github.com/solatis/mongofront/wire"
)

// commandKeyOrder is the precedence order OP_MSG command documents are
// scanned in to find the actual command verb: the first key from this
// list present in the document wins, mirroring how a real command
// dispatcher resolves which top-level key names the operation regardless
// of what other options keys are also present.
var commandKeyOrder = []string{
	"insert", "find", "update", "delete", "aggregate", "count",
	"createIndexes", "listIndexes", "listCollections", "listDatabases",
	"isMaster", "ismaster", "hello", "ping", "startSession", "endSessions",
	"refreshSessions", "connectionStatus", "getParameter", "buildInfo",
	"buildinfo", "hostInfo", "getLastError", "atlasVersion",
	"startTransaction", "commitTransaction", "abortTransaction",
}

// Router dispatches messages for one connection.
type Router struct {
	Backend         crud.Backend
	Sessions        *session.Manager
	Facade          *crud.Facade
	Version         string
	Hostname        string
	MaxMessageBytes int32
	// Broker, if set, receives one tap.Event per dispatched message,
	// including fire-and-forget legacy writes the protocol never
	// acknowledges to the client itself.
	Broker *tap.Broker
}

// New constructs a Router over backend.
func New(backend crud.Backend, sessions *session.Manager, version, hostname string, maxMessageBytes int32) *Router {
	return &Router{
		Backend:         backend,
		Sessions:        sessions,
		Facade:          crud.NewFacade(backend),
		Version:         version,
		Hostname:        hostname,
		MaxMessageBytes: maxMessageBytes,
	}
}

// Dispatch handles one message on c, writing a reply if the opcode
// requires one. Legacy write opcodes (insert/update/delete) are
// fire-and-forget: no reply is sent even on error.
func (r *Router) Dispatch(ctx context.Context, c *conn.Conn, msg *wire.Message) error {
	start := time.Now()
	err := r.dispatch(ctx, c, msg)
	r.publish(c, msg, start, err)
	return err
}

func (r *Router) dispatch(ctx context.Context, c *conn.Conn, msg *wire.Message) error {
	switch body := msg.Body.(type) {
	case *wire.QueryBody:
		return r.dispatchQuery(ctx, c, msg.Header, body)
	case *wire.InsertBody:
		r.dispatchInsertLegacy(ctx, body)
		return nil
	case *wire.UpdateBody:
		r.dispatchUpdateLegacy(ctx, body)
		return nil
	case *wire.DeleteBody:
		r.dispatchDeleteLegacy(ctx, body)
		return nil
	case *wire.GetMoreBody:
		return r.dispatchGetMore(ctx, c, msg.Header, body)
	case *wire.KillCursorsBody:
		c.Cursors.Kill(body.CursorIDs)
		return nil
	case *wire.MsgBody:
		return r.dispatchMsg(ctx, c, msg.Header, body)
	default:
		return fmt.Errorf("router: unhandled opcode %s", msg.Header.OpCode)
	}
}

func (r *Router) publish(c *conn.Conn, msg *wire.Message, start time.Time, err error) {
	if r.Broker == nil {
		return
	}
	ev := tap.Event{
		ConnID:    c.ID,
		OpCode:    msg.Header.OpCode.String(),
		StartTime: start,
		Duration:  time.Since(start),
	}
	ev.Command, ev.Namespace, ev.Document = describe(msg)
	if err != nil {
		ev.Error = err.Error()
	}
	r.Broker.Publish(ev)
}

// describe extracts a best-effort command name, namespace, and command
// document for an event, without re-running dispatch logic.
func describe(msg *wire.Message) (command, namespace string, doc *bsondoc.Document) {
	switch body := msg.Body.(type) {
	case *wire.QueryBody:
		return "query", body.FullCollectionName, body.Query
	case *wire.InsertBody:
		return "insert", body.FullCollectionName, nil
	case *wire.UpdateBody:
		return "update", body.FullCollectionName, body.Update
	case *wire.DeleteBody:
		return "delete", body.FullCollectionName, body.Selector
	case *wire.GetMoreBody:
		return "getMore", body.FullCollectionName, nil
	case *wire.KillCursorsBody:
		return "killCursors", "", nil
	case *wire.MsgBody:
		if cmdDoc, ok := body.Command(); ok {
			if name, ok := firstCommandKey(cmdDoc); ok {
				coll := stringField(cmdDoc, name)
				db, _ := cmdDoc.Get("$db")
				dbName, _ := db.(bsondoc.String)
				ns := string(dbName)
				if coll != "" {
					ns += "." + coll
				}
				return name, ns, cmdDoc
			}
		}
	}
	return "", "", nil
}

// dispatchQuery handles legacy OP_QUERY: a collection-scoped find, or a
// "$cmd" re-dispatch to the admin/command surface if the collection
// portion of the namestring is "$cmd".
func (r *Router) dispatchQuery(ctx context.Context, c *conn.Conn, h wire.Header, body *wire.QueryBody) error {
	db, coll := splitNamespace(body.FullCollectionName)
	if coll == "$cmd" {
		return r.dispatchCmdQuery(ctx, c, h, db, body)
	}

	ns := crud.Namespace{Database: db, Collection: coll}
	docs, err := r.Facade.Find(ctx, ns, body.Query, crud.FindOptions{
		Projection: body.Projection, Skip: body.Skip, Limit: body.Return,
	})
	if err != nil {
		return r.replyError(c, h, err)
	}

	batchSize := int(body.Return)
	if batchSize < 0 {
		batchSize = -batchSize // negative Return closes the cursor after one batch; size is its magnitude
	}
	batch, cursorID := r.openBatch(c, ns, body.Query, body.Projection, docs, batchSize)
	if body.Return < 0 {
		cursorID = 0
	}

	reply := &wire.ReplyBody{CursorID: cursorID, Documents: bsondocArrayToDocs(batch), NumberReturned: int32(len(batch))}
	return c.WriteMessage(wire.Header{ResponseTo: h.RequestID, OpCode: wire.OpReply}, reply)
}

func (r *Router) dispatchCmdQuery(ctx context.Context, c *conn.Conn, h wire.Header, db string, body *wire.QueryBody) error {
	name, ok := firstCommandKey(body.Query)
	if !ok {
		return c.WriteMessage(wire.Header{ResponseTo: h.RequestID, OpCode: wire.OpReply},
			&wire.ReplyBody{Documents: []*bsondoc.Document{errReply(59, "empty command document")}, NumberReturned: 1})
	}
	result, err := r.runCommand(ctx, c, db, name, body.Query)
	if err != nil {
		return r.replyError(c, h, err)
	}
	return c.WriteMessage(wire.Header{ResponseTo: h.RequestID, OpCode: wire.OpReply},
		&wire.ReplyBody{Documents: []*bsondoc.Document{result}, NumberReturned: 1})
}

func (r *Router) dispatchInsertLegacy(ctx context.Context, body *wire.InsertBody) {
	db, coll := splitNamespace(body.FullCollectionName)
	_ = r.Backend.Insert(ctx, crud.Namespace{Database: db, Collection: coll}, body.Documents)
}

func (r *Router) dispatchUpdateLegacy(ctx context.Context, body *wire.UpdateBody) {
	db, coll := splitNamespace(body.FullCollectionName)
	ns := crud.Namespace{Database: db, Collection: coll}
	upsert := body.Flags&wire.UpdateUpsert != 0
	multi := body.Flags&wire.UpdateMulti != 0
	if multi {
		_, _ = r.Facade.UpdateMany(ctx, ns, body.Selector, body.Update, upsert)
	} else {
		_, _ = r.Facade.UpdateOne(ctx, ns, body.Selector, body.Update, upsert)
	}
}

func (r *Router) dispatchDeleteLegacy(ctx context.Context, body *wire.DeleteBody) {
	db, coll := splitNamespace(body.FullCollectionName)
	ns := crud.Namespace{Database: db, Collection: coll}
	if body.Flags&wire.DeleteSingleRemove != 0 {
		_, _ = r.Facade.DeleteOne(ctx, ns, body.Selector)
	} else {
		_, _ = r.Facade.DeleteMany(ctx, ns, body.Selector)
	}
}

func (r *Router) dispatchGetMore(ctx context.Context, c *conn.Conn, h wire.Header, body *wire.GetMoreBody) error {
	cur, ok := c.Cursors.Get(body.CursorID)
	if !ok {
		reply := &wire.ReplyBody{ResponseFlags: wire.ReplyCursorNotFound}
		return c.WriteMessage(wire.Header{ResponseTo: h.RequestID, OpCode: wire.OpReply}, reply)
	}

	n := int(body.NumberToReturn)
	if n <= 0 || n > len(cur.Batch)-cur.Position {
		n = len(cur.Batch) - cur.Position
	}
	docs := cur.Batch[cur.Position : cur.Position+n]
	cur.Position += n

	cursorID := cur.ID
	if cur.Position >= len(cur.Batch) {
		c.Cursors.Kill([]int64{cur.ID})
		cursorID = 0
	}

	reply := &wire.ReplyBody{CursorID: cursorID, Documents: docs, NumberReturned: int32(len(docs))}
	return c.WriteMessage(wire.Header{ResponseTo: h.RequestID, OpCode: wire.OpReply}, reply)
}

// dispatchMsg handles OP_MSG: the command verb is resolved by precedence
// among the recognized command keys present in the kind-0 section's
// document, and any kind-1 sequence sections are folded back in under
// their identifier before dispatch.
func (r *Router) dispatchMsg(ctx context.Context, c *conn.Conn, h wire.Header, body *wire.MsgBody) error {
	cmdDoc, ok := body.Command()
	if !ok {
		return r.replyMsgError(c, h, errReply(59, "OP_MSG requires a kind-0 section"))
	}
	cmdDoc = foldSequenceSections(cmdDoc, body.Sections)

	name, ok := firstCommandKey(cmdDoc)
	if !ok {
		return r.replyMsgError(c, h, errReply(59, "empty command document"))
	}

	db, _ := cmdDoc.Get("$db")
	dbName, _ := db.(bsondoc.String)

	result, err := r.runCommand(ctx, c, string(dbName), name, cmdDoc)
	if err != nil {
		return r.replyMsgError(c, h, errReply(1, err.Error()))
	}

	reply := &wire.MsgBody{Sections: []wire.MsgSection{
		{Kind: wire.MsgSectionBody, Documents: []*bsondoc.Document{result}},
	}}
	return c.WriteMessage(wire.Header{ResponseTo: h.RequestID, OpCode: wire.OpMsg}, reply)
}

func foldSequenceSections(cmdDoc *bsondoc.Document, sections []wire.MsgSection) *bsondoc.Document {
	for _, sec := range sections {
		if sec.Kind != wire.MsgSectionSequence {
			continue
		}
		arr := make(bsondoc.Array, 0, len(sec.Documents))
		for _, d := range sec.Documents {
			arr = append(arr, d)
		}
		cmdDoc.Set(sec.Identifier, arr)
	}
	return cmdDoc
}

func (r *Router) replyMsgError(c *conn.Conn, h wire.Header, errDoc *bsondoc.Document) error {
	reply := &wire.MsgBody{Sections: []wire.MsgSection{
		{Kind: wire.MsgSectionBody, Documents: []*bsondoc.Document{errDoc}},
	}}
	return c.WriteMessage(wire.Header{ResponseTo: h.RequestID, OpCode: wire.OpMsg}, reply)
}

func (r *Router) replyError(c *conn.Conn, h wire.Header, err error) error {
	reply := &wire.ReplyBody{ResponseFlags: wire.ReplyQueryFailure, Documents: []*bsondoc.Document{errReply(1, err.Error())}, NumberReturned: 1}
	return c.WriteMessage(wire.Header{ResponseTo: h.RequestID, OpCode: wire.OpReply}, reply)
}

func firstCommandKey(doc *bsondoc.Document) (string, bool) {
	for _, candidate := range commandKeyOrder {
		if _, ok := doc.Get(candidate); ok {
			return candidate, true
		}
	}
	for _, k := range doc.Keys() {
		if k != "$db" && k != "lsid" && k != "txnNumber" && !strings.HasPrefix(k, "$") {
			return k, true
		}
	}
	return "", false
}

func bsondocArrayToDocs(arr bsondoc.Array) []*bsondoc.Document {
	docs := make([]*bsondoc.Document, 0, len(arr))
	for _, v := range arr {
		if d, ok := v.(*bsondoc.Document); ok {
			docs = append(docs, d)
		}
	}
	return docs
}

func splitNamespace(full string) (db, coll string) {
	idx := strings.IndexByte(full, '.')
	if idx < 0 {
		return full, ""
	}
	return full[:idx], full[idx+1:]
}

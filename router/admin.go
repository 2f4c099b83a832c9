package router

import (
	"context"
	"fmt"
	"time"

	"github.com/solatis/mongofront/bsondoc"
	"github.com/solatis/mongofront/session"
)

// adminCommand handles the wire-protocol admin surface that doesn't touch
// a specific collection's data: handshake, session bookkeeping, server
// metadata.
func (r *Router) adminCommand(ctx context.Context, name string, cmd *bsondoc.Document) (*bsondoc.Document, error) {
	switch name {
	case "isMaster", "ismaster", "hello":
		return r.hello(), nil
	case "ping":
		return ok(), nil
	case "startSession":
		s := r.Sessions.Start()
		reply := ok()
		reply.Set("id", bsondoc.NewDocument().Set("id", bsondoc.Binary{Subtype: bsondoc.BinaryUUID, Data: s.ID[:]}))
		return reply, nil
	case "endSessions":
		ids := extractSessionIDs(cmd)
		r.Sessions.End(ids)
		return ok(), nil
	case "refreshSessions":
		ids := extractSessionIDs(cmd)
		for _, id := range ids {
			r.Sessions.Touch(id)
		}
		return ok(), nil
	case "connectionStatus":
		reply := ok()
		authInfo := bsondoc.NewDocument()
		authInfo.Set("authenticatedUsers", bsondoc.Array{})
		authInfo.Set("authenticatedUserRoles", bsondoc.Array{})
		if show, ok := cmd.Get("showPrivileges"); ok {
			if b, isBool := show.(bsondoc.Bool); isBool && bool(b) {
				authInfo.Set("authenticatedUserPrivileges", bsondoc.Array{})
			}
		}
		reply.Set("authInfo", authInfo)
		return reply, nil
	case "getParameter":
		return r.getParameter(cmd), nil
	case "buildInfo", "buildinfo":
		return r.buildInfo(), nil
	case "hostInfo":
		return r.hostInfo(), nil
	case "listDatabases":
		return r.listDatabases(ctx)
	case "getLastError":
		return ok(), nil
	case "atlasVersion":
		return errReply(59, "no such command: 'atlasVersion'"), nil
	default:
		return errReply(59, fmt.Sprintf("no such command: '%s'", name)), nil
	}
}

func (r *Router) hello() *bsondoc.Document {
	reply := ok()
	reply.Set("ismaster", bsondoc.Bool(true))
	reply.Set("isWritablePrimary", bsondoc.Bool(true))
	reply.Set("maxBsonObjectSize", bsondoc.Int32(16*1024*1024))
	reply.Set("maxMessageSizeBytes", bsondoc.NewNumber(int64(r.MaxMessageBytes)))
	reply.Set("maxWriteBatchSize", bsondoc.Int32(100000))
	reply.Set("localTime", bsondoc.NewDateTime(time.Now()))
	reply.Set("logicalSessionTimeoutMinutes", bsondoc.Int32(int32(session.DefaultAbsoluteTimeout.Minutes())))
	reply.Set("connectionId", bsondoc.Int32(1))
	reply.Set("minWireVersion", bsondoc.Int32(0))
	reply.Set("maxWireVersion", bsondoc.Int32(13))
	reply.Set("readOnly", bsondoc.Bool(false))
	reply.Set("compression", bsondoc.Array{bsondoc.String("snappy"), bsondoc.String("zlib")})
	return reply
}

func (r *Router) getParameter(cmd *bsondoc.Document) *bsondoc.Document {
	reply := ok()
	if all, ok := cmd.Get("allParameters"); ok {
		if b, isBool := all.(bsondoc.Bool); isBool && bool(b) {
			reply.Set("featureCompatibilityVersion", bsondoc.String("7.0"))
		}
	}
	return reply
}

func (r *Router) buildInfo() *bsondoc.Document {
	reply := ok()
	reply.Set("version", bsondoc.String(r.Version))
	reply.Set("versionArray", bsondoc.Array{bsondoc.Int32(7), bsondoc.Int32(0), bsondoc.Int32(0), bsondoc.Int32(0)})
	reply.Set("bits", bsondoc.Int32(64))
	reply.Set("maxBsonObjectSize", bsondoc.Int32(16*1024*1024))
	return reply
}

func (r *Router) hostInfo() *bsondoc.Document {
	reply := ok()
	system := bsondoc.NewDocument()
	system.Set("currentTime", bsondoc.NewDateTime(time.Now()))
	system.Set("hostname", bsondoc.String(r.Hostname))
	reply.Set("system", system)
	return reply
}

func (r *Router) listDatabases(ctx context.Context) (*bsondoc.Document, error) {
	names, err := r.Backend.ListDatabases(ctx)
	if err != nil {
		return nil, fmt.Errorf("router: listDatabases: %w", err)
	}
	dbs := make(bsondoc.Array, 0, len(names))
	for _, name := range names {
		dbs = append(dbs, bsondoc.Doc("name", bsondoc.String(name), "sizeOnDisk", bsondoc.Int64(0), "empty", bsondoc.Bool(false)))
	}
	reply := ok()
	reply.Set("databases", dbs)
	reply.Set("totalSize", bsondoc.Int64(0))
	return reply, nil
}

func extractSessionIDs(cmd *bsondoc.Document) []session.ID {
	v, ok := cmd.Get("endSessions")
	if !ok {
		v, ok = cmd.Get("refreshSessions")
	}
	arr, isArr := v.(bsondoc.Array)
	if !ok || !isArr {
		return nil
	}
	var ids []session.ID
	for _, item := range arr {
		doc, ok := item.(*bsondoc.Document)
		if !ok {
			continue
		}
		idVal, ok := doc.Get("id")
		bin, isBin := idVal.(bsondoc.Binary)
		if !ok || !isBin || len(bin.Data) != 16 {
			continue
		}
		var id session.ID
		copy(id[:], bin.Data)
		ids = append(ids, id)
	}
	return ids
}

func ok() *bsondoc.Document {
	return bsondoc.NewDocument().Set("ok", bsondoc.Double(1))
}

func errReply(code int32, msg string) *bsondoc.Document {
	return bsondoc.Doc("ok", bsondoc.Double(0), "code", bsondoc.Int32(code), "errmsg", bsondoc.String(msg))
}

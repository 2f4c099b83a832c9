// Package tui implements a live event inspector: a scrolling list of
// dispatched commands and a detail pane with chroma-highlighted JSON.
package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/solatis/mongofront/bsondoc"
)

// renderJSON renders doc as an indented, Mongo extended-JSON-flavored
// string for the inspector's detail pane.
func renderJSON(doc *bsondoc.Document) string {
	if doc == nil {
		return "{}"
	}
	var b strings.Builder
	writeDoc(&b, doc, 0)
	return b.String()
}

func writeDoc(b *strings.Builder, doc *bsondoc.Document, depth int) {
	keys := doc.Keys()
	b.WriteString("{\n")
	for i, k := range keys {
		v, _ := doc.Get(k)
		indent(b, depth+1)
		fmt.Fprintf(b, "%q: ", k)
		writeValue(b, v, depth+1)
		if i < len(keys)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	indent(b, depth)
	b.WriteString("}")
}

func writeValue(b *strings.Builder, v bsondoc.Value, depth int) {
	switch val := v.(type) {
	case bsondoc.String:
		fmt.Fprintf(b, "%q", string(val))
	case bsondoc.Int32:
		b.WriteString(strconv.Itoa(int(val)))
	case bsondoc.Int64:
		b.WriteString(strconv.FormatInt(int64(val), 10))
	case bsondoc.Double:
		b.WriteString(strconv.FormatFloat(float64(val), 'g', -1, 64))
	case bsondoc.Bool:
		b.WriteString(strconv.FormatBool(bool(val)))
	case bsondoc.DateTime:
		fmt.Fprintf(b, "%q", val.Time().Format("2006-01-02T15:04:05.000Z"))
	case bsondoc.ObjectID:
		fmt.Fprintf(b, "ObjectId(%q)", val.Hex())
	case bsondoc.Binary:
		fmt.Fprintf(b, "Binary(%d bytes)", len(val.Data))
	case bsondoc.Regex:
		fmt.Fprintf(b, "/%s/%s", val.Pattern, val.Options)
	case *bsondoc.Document:
		writeDoc(b, val, depth)
	case bsondoc.Array:
		writeArray(b, val, depth)
	case nil:
		b.WriteString("null")
	default:
		if v == bsondoc.Null {
			b.WriteString("null")
		} else {
			b.WriteString("undefined")
		}
	}
}

func writeArray(b *strings.Builder, arr bsondoc.Array, depth int) {
	if len(arr) == 0 {
		b.WriteString("[]")
		return
	}
	b.WriteString("[\n")
	for i, v := range arr {
		indent(b, depth+1)
		writeValue(b, v, depth+1)
		if i < len(arr)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	indent(b, depth)
	b.WriteString("]")
}

func indent(b *strings.Builder, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
}

package tui

import (
	"bytes"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

var (
	jsonLexer     chroma.Lexer
	jsonFormatter chroma.Formatter
	jsonStyle     *chroma.Style
)

func init() {
	jsonLexer = lexers.Get("json")
	jsonFormatter = formatters.Get("terminal256")
	jsonStyle = styles.Get("monokai")
}

// highlightJSON returns s with ANSI terminal syntax highlighting applied,
// for the JSON-shaped command documents this server deals in.
func highlightJSON(s string) string {
	if s == "" {
		return s
	}
	iterator, err := jsonLexer.Tokenise(nil, s)
	if err != nil {
		return s
	}
	var buf bytes.Buffer
	if err := jsonFormatter.Format(&buf, jsonStyle, iterator); err != nil {
		return s
	}
	return strings.TrimRight(buf.String(), "\n")
}

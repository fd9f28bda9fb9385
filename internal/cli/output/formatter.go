// Package output provides output formatting for memkv-cli.
package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/yndnr/memkv/internal/cli/connection"
)

// Format represents the output format.
type Format string

const (
	FormatText  Format = "text"
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates a format name. The empty string selects text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "":
		return FormatText, nil
	case FormatText, FormatTable, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, table, json or yaml)", s)
	}
}

// Formatter writes a server reply.
type Formatter interface {
	Format(w io.Writer, r *connection.Reply) error
}

// NewFormatter creates a formatter for the given format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{}
	case FormatYAML:
		return &YAMLFormatter{}
	case FormatTable:
		return &TableFormatter{}
	default:
		return &TextFormatter{}
	}
}

// TextFormatter renders replies the way redis-cli does.
type TextFormatter struct{}

// Format writes r followed by a newline.
func (f *TextFormatter) Format(w io.Writer, r *connection.Reply) error {
	var b strings.Builder
	writeText(&b, r, "")
	_, err := io.WriteString(w, b.String())
	return err
}

func writeText(b *strings.Builder, r *connection.Reply, indent string) {
	switch r.Kind {
	case connection.KindStatus:
		b.WriteString(r.Str)
	case connection.KindError:
		b.WriteString("(error) ")
		b.WriteString(r.Str)
	case connection.KindInteger:
		b.WriteString("(integer) ")
		b.WriteString(strconv.FormatInt(r.Int, 10))
	case connection.KindBulk:
		b.WriteString(strconv.Quote(r.Str))
	case connection.KindNil:
		b.WriteString("(nil)")
	case connection.KindArray:
		if len(r.Elems) == 0 {
			b.WriteString("(empty array)")
			break
		}
		width := len(strconv.Itoa(len(r.Elems)))
		for i, e := range r.Elems {
			if i > 0 {
				b.WriteString(indent)
			}
			label := fmt.Sprintf("%*d) ", width, i+1)
			b.WriteString(label)
			writeText(b, e, indent+strings.Repeat(" ", len(label)))
		}
		return
	}
	b.WriteString("\n")
}

// document converts r into a value for structured encoders. Error replies
// become {"error": msg} so they stay distinguishable from strings.
func document(r *connection.Reply) any {
	switch r.Kind {
	case connection.KindError:
		return map[string]string{"error": r.Str}
	case connection.KindArray:
		out := make([]any, len(r.Elems))
		for i, e := range r.Elems {
			out[i] = document(e)
		}
		return out
	default:
		return r.Value()
	}
}

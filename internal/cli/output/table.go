package output

import (
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/yndnr/memkv/internal/cli/connection"
)

// TableFormatter formats replies as an aligned table with one row per
// array element.
type TableFormatter struct {
	NoHeaders bool
}

// Format formats r as a table.
func (f *TableFormatter) Format(w io.Writer, r *connection.Reply) error {
	table := &Table{Headers: []string{"#", "TYPE", "VALUE"}}
	if r.Kind == connection.KindArray {
		for i, e := range r.Elems {
			table.AddRow(strconv.Itoa(i+1), e.Kind.String(), cell(e))
		}
	} else {
		table.AddRow("1", r.Kind.String(), cell(r))
	}
	return table.RenderWithOptions(w, f.NoHeaders)
}

// cell renders a reply as a single table cell.
func cell(r *connection.Reply) string {
	switch r.Kind {
	case connection.KindInteger:
		return strconv.FormatInt(r.Int, 10)
	case connection.KindNil:
		return "-"
	case connection.KindArray:
		parts := make([]string, len(r.Elems))
		for i, e := range r.Elems {
			parts[i] = cell(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case connection.KindBulk:
		return strconv.Quote(r.Str)
	default:
		return r.Str
	}
}

// Table represents tabular data.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Render renders the table to the writer.
func (t *Table) Render(w io.Writer) error {
	return t.RenderWithOptions(w, false)
}

// RenderWithOptions renders the table with options.
func (t *Table) RenderWithOptions(w io.Writer, noHeaders bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if !noHeaders && len(t.Headers) > 0 {
		if _, err := io.WriteString(tw, strings.Join(t.Headers, "\t")+"\n"); err != nil {
			return err
		}
	}
	for _, row := range t.Rows {
		if _, err := io.WriteString(tw, strings.Join(row, "\t")+"\n"); err != nil {
			return err
		}
	}

	return tw.Flush()
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

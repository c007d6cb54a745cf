package tableio

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"surveyflat/lib/flatten"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type Format string

const (
	FormatTable    Format = "table"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatHTML     Format = "html"
	FormatJSON     Format = "json"
)

var Formats = []Format{FormatTable, FormatMarkdown, FormatCSV, FormatHTML, FormatJSON}

func ParseFormat(name string) (Format, error) {
	for _, f := range Formats {
		if strings.EqualFold(name, string(f)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown output format '%s'", name)
}

// Extension is the file extension conventionally used for the format.
func (f Format) Extension() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatCSV:
		return ".csv"
	case FormatHTML:
		return ".html"
	case FormatJSON:
		return ".json"
	}
	return ".txt"
}

func newWriter(w io.Writer, t *flatten.Table) table.Writer {
	style := table.StyleRounded
	// column names are data, they must not be upper-cased
	style.Format.Header = text.FormatDefault
	style.Format.Footer = text.FormatDefault

	out := table.NewWriter()
	out.SetStyle(style)
	out.SetOutputMirror(w)

	columns := t.Columns()
	header := make(table.Row, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	out.AppendHeader(header)

	for i := 0; i < t.Len(); i++ {
		row := make(table.Row, len(columns))
		for j, c := range columns {
			v, _ := t.Get(i, c)
			row[j] = flatten.FormatValue(v)
		}
		out.AppendRow(row)
	}
	return out
}

// Render writes the table to w in the given format.
func Render(w io.Writer, t *flatten.Table, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(t)
	case FormatCSV:
		return renderCSV(w, t)
	}

	out := newWriter(w, t)
	switch format {
	case FormatTable:
		out.Render()
	case FormatMarkdown:
		out.RenderMarkdown()
	case FormatHTML:
		out.RenderHTML()
	default:
		return fmt.Errorf("unknown output format '%s'", format)
	}
	return nil
}

func renderCSV(w io.Writer, t *flatten.Table) error {
	out := csv.NewWriter(w)
	columns := t.Columns()
	err := out.Write(columns)
	if err != nil {
		return err
	}
	record := make([]string, len(columns))
	for i := 0; i < t.Len(); i++ {
		for j, c := range columns {
			v, _ := t.Get(i, c)
			record[j] = flatten.FormatValue(v)
		}
		err = out.Write(record)
		if err != nil {
			return err
		}
	}
	out.Flush()
	return out.Error()
}

// Package render turns analysis results into terminal tables, Markdown, CSV
// or JSON.
package render

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/seascope/internal/errs"
	"github.com/jedib0t/go-pretty/v6/table"
)

// Format is an output encoding.
type Format string

const (
	FormatTable    Format = "table"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
)

// ParseFormat accepts table, markdown (or md), csv and json.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "table":
		return FormatTable, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	}
	return "", errs.Newf(errs.InvalidParameter, errs.StageConfig, "unsupported --format %q (use table, markdown, csv or json)", s)
}

// Table is a titled grid of cells. Cells may be strings, numbers, times or
// anything with a String method.
type Table struct {
	Title  string
	Header []string
	Rows   [][]any
	// Precision is the number of decimals for floats; 0 means 3.
	Precision int
}

// Append adds a row.
func (t *Table) Append(cells ...any) { t.Rows = append(t.Rows, cells) }

// Write renders t to w in format f.
func (t *Table) Write(w io.Writer, f Format) error {
	if f == FormatJSON {
		return t.writeJSON(w)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	header := make(table.Row, len(t.Header))
	for i, h := range t.Header {
		header[i] = h
	}
	tw.AppendHeader(header)
	for _, r := range t.Rows {
		row := make(table.Row, len(r))
		for i, c := range r {
			row[i] = t.cell(c)
		}
		tw.AppendRow(row)
	}
	switch f {
	case FormatMarkdown:
		if t.Title != "" {
			fmt.Fprintf(w, "### %s\n\n", t.Title)
		}
		tw.RenderMarkdown()
	case FormatCSV:
		tw.RenderCSV()
	case FormatTable, "":
		if t.Title != "" {
			tw.SetTitle(t.Title)
		}
		tw.Render()
		fmt.Fprintf(w, "(%d rows)\n", len(t.Rows))
	default:
		return errs.Newf(errs.InvalidParameter, errs.StageConfig, "unsupported format %q", f)
	}
	return nil
}

func (t *Table) writeJSON(w io.Writer) error {
	rows := make([]object, len(t.Rows))
	for i, r := range t.Rows {
		obj := make(object, 0, len(t.Header))
		for j, h := range t.Header {
			var v any
			if j < len(r) {
				v = sanitize(r[j])
			}
			obj = append(obj, field{Key: h, Value: v})
		}
		rows[i] = obj
	}
	var doc any = rows
	if t.Title != "" {
		doc = object{{Key: "title", Value: t.Title}, {Key: "rows", Value: rows}}
	}
	return JSON(w, doc)
}

func (t *Table) cell(c any) string {
	prec := t.Precision
	if prec == 0 {
		prec = 3
	}
	return Cell(c, prec)
}

// Cell formats one value for text output. Missing numbers render as "n/a".
func Cell(c any, prec int) string {
	switch v := c.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "n/a"
		}
		return strconv.FormatFloat(v, 'f', prec, 64)
	case float32:
		return Cell(float64(v), prec)
	case int:
		return strconv.Itoa(v)
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.Format("2006-01-02")
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

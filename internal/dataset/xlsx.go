package dataset

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/seascope/internal/errs"
)

// ReadXLSX reads one worksheet of an Office Open XML workbook (opt.Sheet, or
// the first sheet) and types it like delimited text. Date cells stored as
// serial day numbers are converted.
func ReadXLSX(r io.Reader, name string, opt Options) (*Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errs.Wrap(err, errs.SourceUnavailable, errs.StageLoad, "read "+name)
	}
	wb, err := openWorkbook(data)
	if err != nil {
		return nil, errs.Wrap(err, errs.SourceUnavailable, errs.StageLoad, "open workbook "+name)
	}
	rows, err := wb.rows(opt.Sheet)
	if err != nil {
		return nil, errs.Wrap(err, errs.SchemaMismatch, errs.StageLoad, name)
	}
	if len(rows) == 0 {
		return nil, errs.Newf(errs.SchemaMismatch, errs.StageLoad, "%s: no header row", name)
	}
	return fromRecords(name, rows[0], rows[1:], opt, true)
}

// excelSerialDate converts a spreadsheet serial day number (1900 date system).
func excelSerialDate(s string) (time.Time, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 1 || f > 2958465 {
		return time.Time{}, false
	}
	days := math.Floor(f)
	secs := math.Round((f - days) * 86400)
	base := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, int(days)).Add(time.Duration(secs) * time.Second), true
}

type sheetRef struct {
	name string
	id   int
	rid  string
}

type workbook struct {
	zr     *zip.Reader
	sheets []sheetRef
	rels   map[string]string
	shared []string
}

func openWorkbook(data []byte) (*workbook, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	wb := &workbook{zr: zr, rels: map[string]string{}}
	if err := wb.scan("xl/workbook.xml", func(se xml.StartElement, _ *xml.Decoder) {
		if se.Name.Local != "sheet" {
			return
		}
		var s sheetRef
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "name":
				s.name = a.Value
			case "sheetId":
				s.id, _ = strconv.Atoi(a.Value)
			case "id":
				s.rid = a.Value
			}
		}
		wb.sheets = append(wb.sheets, s)
	}); err != nil {
		return nil, err
	}
	if err := wb.scan("xl/_rels/workbook.xml.rels", func(se xml.StartElement, _ *xml.Decoder) {
		if se.Name.Local != "Relationship" {
			return
		}
		var id, target string
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "Id":
				id = a.Value
			case "Target":
				target = a.Value
			}
		}
		if id != "" && target != "" {
			wb.rels[id] = target
		}
	}); err != nil {
		return nil, err
	}
	if err := wb.scan("xl/sharedStrings.xml", func(se xml.StartElement, dec *xml.Decoder) {
		if se.Name.Local == "si" {
			wb.shared = append(wb.shared, innerText(dec, "si"))
		}
	}); err != nil {
		return nil, err
	}
	return wb, nil
}

// scan walks the start elements of a workbook part. Absent parts are skipped.
func (wb *workbook) scan(name string, fn func(xml.StartElement, *xml.Decoder)) error {
	f := wb.file(name)
	if f == nil {
		return nil
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("parse %s: %w", name, err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			fn(se, dec)
		}
	}
}

func (wb *workbook) file(name string) *zip.File {
	for _, f := range wb.zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// sheetPath resolves a sheet name (empty = first sheet) to its part path.
func (wb *workbook) sheetPath(sheet string) (string, error) {
	if len(wb.sheets) == 0 {
		if sheet != "" {
			return "", fmt.Errorf("sheet %q not found: workbook lists no sheets", sheet)
		}
		return "xl/worksheets/sheet1.xml", nil
	}
	target := wb.sheets[0]
	if sheet != "" {
		found := false
		names := make([]string, 0, len(wb.sheets))
		for _, s := range wb.sheets {
			names = append(names, s.name)
			if strings.EqualFold(s.name, sheet) {
				target, found = s, true
			}
		}
		if !found {
			return "", fmt.Errorf("sheet %q not found (available: %s)", sheet, strings.Join(names, ", "))
		}
	}
	if rel, ok := wb.rels[target.rid]; ok {
		rel = strings.TrimPrefix(rel, "/")
		if strings.HasPrefix(rel, "xl/") {
			return rel, nil
		}
		return path.Join("xl", rel), nil
	}
	return fmt.Sprintf("xl/worksheets/sheet%d.xml", target.id), nil
}

// rows returns the cell text of every row; gaps before a referenced cell are blank.
func (wb *workbook) rows(sheet string) ([][]string, error) {
	p, err := wb.sheetPath(sheet)
	if err != nil {
		return nil, err
	}
	if wb.file(p) == nil {
		return nil, fmt.Errorf("worksheet part %s missing", p)
	}
	var out [][]string
	var cur []string
	err = wb.scan(p, func(se xml.StartElement, dec *xml.Decoder) {
		switch se.Name.Local {
		case "row":
			if cur != nil {
				out = append(out, cur)
			}
			cur = []string{}
		case "c":
			var ref, typ string
			for _, a := range se.Attr {
				switch a.Name.Local {
				case "r":
					ref = a.Value
				case "t":
					typ = a.Value
				}
			}
			idx := columnIndex(ref)
			if idx < 0 {
				idx = len(cur)
			}
			for len(cur) <= idx {
				cur = append(cur, "")
			}
			cur[idx] = wb.cellValue(dec, typ)
		}
	})
	if err != nil {
		return nil, err
	}
	if cur != nil {
		out = append(out, cur)
	}
	return out, nil
}

// cellValue consumes a <c> element and returns its text.
func (wb *workbook) cellValue(dec *xml.Decoder, typ string) string {
	v := innerText(dec, "c")
	if typ == "s" {
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || i < 0 || i >= len(wb.shared) {
			return ""
		}
		return wb.shared[i]
	}
	return v
}

// innerText collects the character data of <v> and <t> descendants up to the
// end of the element named end. Formulas and run properties are skipped.
func innerText(dec *xml.Decoder, end string) string {
	var sb strings.Builder
	in := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return sb.String()
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "v" || t.Name.Local == "t" {
				in++
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "v", "t":
				in--
			case end:
				return sb.String()
			}
		case xml.CharData:
			if in > 0 {
				sb.Write(t)
			}
		}
	}
}

// columnIndex maps a cell reference like "C12" to 2.
func columnIndex(ref string) int {
	idx := 0
	n := 0
	for _, c := range strings.ToUpper(ref) {
		if c < 'A' || c > 'Z' {
			break
		}
		idx = idx*26 + int(c-'A'+1)
		n++
	}
	if n == 0 {
		return -1
	}
	return idx - 1
}

package dataset

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/KaramelBytes/seascope/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildWorkbook(t *testing.T) []byte {
	t.Helper()
	parts := map[string]string{
		"xl/workbook.xml": `<?xml version="1.0"?>
<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
<sheets><sheet name="Notes" sheetId="1" r:id="rId1"/><sheet name="Casts" sheetId="2" r:id="rId2"/></sheets></workbook>`,
		"xl/_rels/workbook.xml.rels": `<?xml version="1.0"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Target="worksheets/sheet1.xml"/><Relationship Id="rId2" Target="/xl/worksheets/sheet2.xml"/></Relationships>`,
		"xl/sharedStrings.xml": `<?xml version="1.0"?>
<sst><si><t>DATE</t></si><si><t>VESSEL</t></si><si><t>SAL</t></si><si><r><rPr><b/></rPr><t>Sar</t></r><r><t>miento</t></r></si><si><t>readme</t></si></sst>`,
		"xl/worksheets/sheet1.xml": `<worksheet><sheetData><row r="1"><c r="A1" t="s"><v>4</v></c></row></sheetData></worksheet>`,
		"xl/worksheets/sheet2.xml": `<worksheet><sheetData>
<row r="1"><c r="A1" t="s"><v>0</v></c><c r="B1" t="s"><v>1</v></c><c r="C1" t="s"><v>2</v></c></row>
<row r="2"><c r="A2"><v>43538</v></c><c r="B2" t="s"><v>3</v></c><c r="C2"><f>36+0.4</f><v>36.4</v></c></row>
<row r="3"><c r="A3" t="inlineStr"><is><t>2020-01-20</t></is></c><c r="C3"><v>38.1</v></c></row>
</sheetData></worksheet>`,
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range parts {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestReadXLSXSelectsSheet(t *testing.T) {
	d, err := ReadXLSX(bytes.NewReader(buildWorkbook(t)), "casts.xlsx", Options{DateColumn: "DATE", Sheet: "casts"})
	require.NoError(t, err)
	require.Equal(t, 2, d.Len())

	dates, err := d.Times("DATE")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2019, 3, 14, 0, 0, 0, 0, time.UTC), dates[0], "serial day number")
	assert.Equal(t, 2020, dates[1].Year())

	vessels, err := d.Text("VESSEL")
	require.NoError(t, err)
	assert.Equal(t, []string{"Sarmiento", ""}, vessels)

	sal, err := d.Float("SAL")
	require.NoError(t, err)
	assert.Equal(t, []float64{36.4, 38.1}, sal)
	assert.True(t, d.Has(ColYear))
}

func TestReadXLSXUnknownSheet(t *testing.T) {
	_, err := ReadXLSX(bytes.NewReader(buildWorkbook(t)), "casts.xlsx", Options{Sheet: "Bottles"})
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.SchemaMismatch))
	assert.Contains(t, err.Error(), "Casts")
}

func TestLoaderDispatchesXLSX(t *testing.T) {
	p := filepath.Join(t.TempDir(), "casts.xlsx")
	require.NoError(t, os.WriteFile(p, buildWorkbook(t), 0o644))
	l := NewLoader(Options{DateColumn: "DATE"}, DefaultRegistry(SourceOptions{}), nil)
	d, err := l.Load(context.Background(), p)
	require.NoError(t, err)
	// first sheet by default
	assert.Equal(t, []string{"readme"}, d.Columns())
	assert.Equal(t, 0, d.Len())
}

func TestColumnIndex(t *testing.T) {
	assert.Equal(t, 0, columnIndex("A1"))
	assert.Equal(t, 2, columnIndex("C12"))
	assert.Equal(t, 27, columnIndex("AB3"))
	assert.Equal(t, -1, columnIndex(""))
}

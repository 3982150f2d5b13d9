// Package dataset holds the in-memory survey table and everything needed to load it.
package dataset

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/KaramelBytes/seascope/internal/errs"
	"github.com/google/uuid"
)

// Kind is the storage type of a column.
type Kind int

const (
	KindNumeric Kind = iota
	KindText
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindText:
		return "text"
	case KindTime:
		return "datetime"
	default:
		return "unknown"
	}
}

// Dataset is an immutable column-oriented table. Numeric missing values are NaN,
// text missing values are "", time missing values are the zero time.
type Dataset struct {
	ID     string
	Source string

	cols  []string
	kinds map[string]Kind
	num   map[string][]float64
	text  map[string][]string
	times map[string][]time.Time
	rows  []int
}

// Column is a named column used to build a Dataset directly.
type Column struct {
	Name   string
	Kind   Kind
	Floats []float64
	Texts  []string
	Times  []time.Time
}

// Floats builds a numeric column.
func Floats(name string, vals ...float64) Column {
	return Column{Name: name, Kind: KindNumeric, Floats: vals}
}

// Texts builds a text column.
func Texts(name string, vals ...string) Column {
	return Column{Name: name, Kind: KindText, Texts: vals}
}

// Times builds a datetime column.
func Times(name string, vals ...time.Time) Column {
	return Column{Name: name, Kind: KindTime, Times: vals}
}

func (c Column) length() int {
	switch c.Kind {
	case KindNumeric:
		return len(c.Floats)
	case KindText:
		return len(c.Texts)
	default:
		return len(c.Times)
	}
}

// New builds a Dataset from columns of equal length. Row IDs are 0..n-1.
func New(source string, columns ...Column) (*Dataset, error) {
	d := empty(source)
	n := -1
	for _, c := range columns {
		if n >= 0 && c.length() != n {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", c.Name, c.length(), n)
		}
		n = c.length()
		if _, dup := d.kinds[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		d.cols = append(d.cols, c.Name)
		d.kinds[c.Name] = c.Kind
		switch c.Kind {
		case KindNumeric:
			d.num[c.Name] = slices.Clone(c.Floats)
		case KindText:
			d.text[c.Name] = slices.Clone(c.Texts)
		default:
			d.times[c.Name] = slices.Clone(c.Times)
		}
	}
	if n < 0 {
		n = 0
	}
	d.rows = make([]int, n)
	for i := range d.rows {
		d.rows[i] = i
	}
	return d, nil
}

// MustNew is New that panics; intended for fixtures.
func MustNew(source string, columns ...Column) *Dataset {
	d, err := New(source, columns...)
	if err != nil {
		panic(err)
	}
	return d
}

func empty(source string) *Dataset {
	return &Dataset{
		ID:     uuid.NewString(),
		Source: source,
		kinds:  map[string]Kind{},
		num:    map[string][]float64{},
		text:   map[string][]string{},
		times:  map[string][]time.Time{},
	}
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.rows) }

// IsEmpty reports whether the dataset has no rows. Filters return an empty
// dataset rather than an error so callers can show a "no data" state.
func (d *Dataset) IsEmpty() bool { return d == nil || len(d.rows) == 0 }

// Columns returns the column names in source order.
func (d *Dataset) Columns() []string { return slices.Clone(d.cols) }

// Has reports whether the column exists.
func (d *Dataset) Has(name string) bool {
	_, ok := d.kinds[name]
	return ok
}

// KindOf returns the storage kind of a column.
func (d *Dataset) KindOf(name string) (Kind, bool) {
	k, ok := d.kinds[name]
	return k, ok
}

// RowIDs returns the source row identifiers of each row.
func (d *Dataset) RowIDs() []int { return slices.Clone(d.rows) }

// Float returns a copy of a numeric column.
func (d *Dataset) Float(name string) ([]float64, error) {
	if err := d.expect(name, KindNumeric); err != nil {
		return nil, err
	}
	return slices.Clone(d.num[name]), nil
}

// Text returns a copy of a text column.
func (d *Dataset) Text(name string) ([]string, error) {
	if err := d.expect(name, KindText); err != nil {
		return nil, err
	}
	return slices.Clone(d.text[name]), nil
}

// Times returns a copy of a datetime column.
func (d *Dataset) Times(name string) ([]time.Time, error) {
	if err := d.expect(name, KindTime); err != nil {
		return nil, err
	}
	return slices.Clone(d.times[name]), nil
}

func (d *Dataset) expect(name string, kind Kind) error {
	k, ok := d.kinds[name]
	if !ok {
		return errs.Newf(errs.SchemaMismatch, errs.StageAnalysis, "column %q not found", name).WithDetail("column", name)
	}
	if k != kind {
		return errs.Newf(errs.SchemaMismatch, errs.StageAnalysis, "column %q is %s, not %s", name, k, kind)
	}
	return nil
}

// NumericColumns lists numeric columns in source order, minus any in exclude.
func (d *Dataset) NumericColumns(exclude ...string) []string {
	var out []string
	for _, c := range d.cols {
		if d.kinds[c] == KindNumeric && !slices.Contains(exclude, c) {
			out = append(out, c)
		}
	}
	return out
}

// Valid reports whether row i holds a usable value in column name.
// Absent columns are never valid.
func (d *Dataset) Valid(name string, i int) bool {
	switch d.kinds[name] {
	case KindNumeric:
		if v, ok := d.num[name]; ok {
			x := v[i]
			return !math.IsNaN(x) && !math.IsInf(x, 0)
		}
	case KindText:
		if v, ok := d.text[name]; ok {
			return strings.TrimSpace(v[i]) != ""
		}
	case KindTime:
		if v, ok := d.times[name]; ok {
			return !v[i].IsZero()
		}
	}
	return false
}

// Take returns a new dataset holding the rows at the given positions.
func (d *Dataset) Take(idx []int) *Dataset {
	out := d.shell()
	out.rows = make([]int, len(idx))
	for j, i := range idx {
		out.rows[j] = d.rows[i]
	}
	for name, v := range d.num {
		nv := make([]float64, len(idx))
		for j, i := range idx {
			nv[j] = v[i]
		}
		out.num[name] = nv
	}
	for name, v := range d.text {
		nv := make([]string, len(idx))
		for j, i := range idx {
			nv[j] = v[i]
		}
		out.text[name] = nv
	}
	for name, v := range d.times {
		nv := make([]time.Time, len(idx))
		for j, i := range idx {
			nv[j] = v[i]
		}
		out.times[name] = nv
	}
	return out
}

// shell copies schema and provenance but no data.
func (d *Dataset) shell() *Dataset {
	out := empty(d.Source)
	out.cols = slices.Clone(d.cols)
	for k, v := range d.kinds {
		out.kinds[k] = v
	}
	return out
}

// derive shares existing column slices; they are never written after construction.
func (d *Dataset) derive() *Dataset {
	out := d.shell()
	out.rows = d.rows
	for k, v := range d.num {
		out.num[k] = v
	}
	for k, v := range d.text {
		out.text[k] = v
	}
	for k, v := range d.times {
		out.times[k] = v
	}
	return out
}

func (d *Dataset) addColumn(name string, kind Kind, n int) (*Dataset, error) {
	if n != d.Len() {
		return nil, fmt.Errorf("column %q has %d rows, dataset has %d", name, n, d.Len())
	}
	out := d.derive()
	if old, ok := out.kinds[name]; ok {
		switch old {
		case KindNumeric:
			delete(out.num, name)
		case KindText:
			delete(out.text, name)
		case KindTime:
			delete(out.times, name)
		}
	} else {
		out.cols = append(out.cols, name)
	}
	out.kinds[name] = kind
	return out, nil
}

// WithFloat returns a new dataset with a numeric column added or replaced.
func (d *Dataset) WithFloat(name string, vals []float64) (*Dataset, error) {
	out, err := d.addColumn(name, KindNumeric, len(vals))
	if err != nil {
		return nil, err
	}
	out.num[name] = slices.Clone(vals)
	return out, nil
}

// WithText returns a new dataset with a text column added or replaced.
func (d *Dataset) WithText(name string, vals []string) (*Dataset, error) {
	out, err := d.addColumn(name, KindText, len(vals))
	if err != nil {
		return nil, err
	}
	out.text[name] = slices.Clone(vals)
	return out, nil
}

// WithTimes returns a new dataset with a datetime column added or replaced.
func (d *Dataset) WithTimes(name string, vals []time.Time) (*Dataset, error) {
	out, err := d.addColumn(name, KindTime, len(vals))
	if err != nil {
		return nil, err
	}
	out.times[name] = slices.Clone(vals)
	return out, nil
}

// Cell renders a single value as text; missing values render as "".
func (d *Dataset) Cell(name string, i int) string {
	if !d.Valid(name, i) {
		return ""
	}
	switch d.kinds[name] {
	case KindNumeric:
		return fmt.Sprintf("%g", d.num[name][i])
	case KindText:
		return d.text[name][i]
	default:
		return d.times[name][i].Format("2006-01-02")
	}
}

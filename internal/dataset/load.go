package dataset

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/seascope/internal/errs"
	"go.uber.org/zap"
)

// Derived column names added when a date column is present.
const (
	ColYear      = "YEAR"
	ColMonth     = "MONTH"
	ColMonthName = "MONTH_NAME"
)

// Options controls how delimited text becomes a Dataset.
type Options struct {
	// Delimiter; 0 sniffs from the file name and header line.
	Delimiter rune
	// DateColumn is parsed as a calendar date and drives YEAR/MONTH/MONTH_NAME.
	DateColumn string
	// NumericColumns are always coerced to float64, unparseable values become NaN.
	NumericColumns []string
	// TextColumns are kept as text even when their values look numeric.
	TextColumns []string
	// RequiredColumns must appear in the header; otherwise SchemaMismatch.
	RequiredColumns []string
	// Numeric locale. Zero values auto-detect per value.
	DecimalSeparator   rune
	ThousandsSeparator rune
	// Sheet selects the worksheet of .xlsx sources by name; empty means the first.
	Sheet string
}

// ReadCSV parses delimited text into a Dataset. Columns not named in opt are
// numeric when most of their non-missing values parse as numbers.
func ReadCSV(r io.Reader, name string, opt Options) (*Dataset, error) {
	br := bufio.NewReader(r)
	delim := opt.Delimiter
	if delim == 0 {
		peek, _ := br.Peek(4096)
		line := string(peek)
		if i := strings.IndexByte(line, '\n'); i >= 0 {
			line = line[:i]
		}
		delim = sniffDelimiter(trimCompressionSuffix(name), line)
	}

	cr := csv.NewReader(br)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errs.Newf(errs.SchemaMismatch, errs.StageLoad, "%s: no header row", name)
		}
		return nil, errs.Wrap(err, errs.SourceUnavailable, errs.StageLoad, "read header of "+name)
	}
	var records [][]string
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, errs.Wrap(err, errs.SourceUnavailable, errs.StageLoad, fmt.Sprintf("read row %d of %s", len(records)+1, name))
		}
		records = append(records, rec)
	}
	return fromRecords(name, header, records, opt, false)
}

// fromRecords types raw string records into a Dataset. excelDates accepts
// spreadsheet serial day numbers in the date column.
func fromRecords(name string, header []string, rows [][]string, opt Options, excelDates bool) (*Dataset, error) {
	header = normalizeHeader(header)
	if missing := absent(header, opt.RequiredColumns); len(missing) > 0 {
		return nil, errs.Newf(errs.SchemaMismatch, errs.StageLoad, "%s: required columns absent: %s", name, strings.Join(missing, ", ")).
			WithDetail("columns", missing)
	}
	records := make([][]string, 0, len(rows))
	for _, rec := range rows {
		if blankRecord(rec) {
			continue
		}
		row := make([]string, len(header))
		copy(row, rec)
		records = append(records, row)
	}

	d := empty(name)
	n := len(records)
	d.rows = make([]int, n)
	for i := range d.rows {
		d.rows[i] = i
	}
	cell := func(j int) []string {
		out := make([]string, n)
		for i, rec := range records {
			out[i] = strings.TrimSpace(rec[j])
		}
		return out
	}

	for j, col := range header {
		raw := cell(j)
		d.cols = append(d.cols, col)
		switch {
		case col == opt.DateColumn && col != "":
			ts := make([]time.Time, n)
			for i, v := range raw {
				ts[i], _ = parseTime(v)
				if ts[i].IsZero() && excelDates {
					ts[i], _ = excelSerialDate(v)
				}
			}
			d.kinds[col] = KindTime
			d.times[col] = ts
		case slices.Contains(opt.TextColumns, col):
			d.kinds[col] = KindText
			d.text[col] = blankMissing(raw)
		case slices.Contains(opt.NumericColumns, col) || mostlyNumeric(raw, opt):
			vals := make([]float64, n)
			for i, v := range raw {
				vals[i], _ = parseNumber(v, opt.DecimalSeparator, opt.ThousandsSeparator)
			}
			d.kinds[col] = KindNumeric
			d.num[col] = vals
		default:
			d.kinds[col] = KindText
			d.text[col] = blankMissing(raw)
		}
	}

	if opt.DateColumn != "" && d.kinds[opt.DateColumn] == KindTime && d.Has(opt.DateColumn) {
		return withCalendar(d, opt.DateColumn)
	}
	return d, nil
}

// withCalendar derives YEAR, MONTH and MONTH_NAME from the date column.
func withCalendar(d *Dataset, dateCol string) (*Dataset, error) {
	ts := d.times[dateCol]
	years := make([]float64, len(ts))
	months := make([]float64, len(ts))
	names := make([]string, len(ts))
	for i, t := range ts {
		if t.IsZero() {
			years[i], months[i] = math.NaN(), math.NaN()
			continue
		}
		years[i] = float64(t.Year())
		months[i] = float64(t.Month())
		names[i] = t.Month().String()
	}
	out, err := d.WithFloat(ColYear, years)
	if err != nil {
		return nil, err
	}
	if out, err = out.WithFloat(ColMonth, months); err != nil {
		return nil, err
	}
	return out.WithText(ColMonthName, names)
}

func blankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func mostlyNumeric(vals []string, opt Options) bool {
	var num, other int
	for _, v := range vals {
		if isMissingToken(v) {
			continue
		}
		if _, ok := parseNumber(v, opt.DecimalSeparator, opt.ThousandsSeparator); ok {
			num++
		} else {
			other++
		}
	}
	return num > 0 && num >= other
}

func blankMissing(vals []string) []string {
	for i, v := range vals {
		if isMissingToken(v) {
			vals[i] = ""
		}
	}
	return vals
}

// normalizeHeader trims names, strips a BOM and de-duplicates repeated names
// with a ".N" suffix.
func normalizeHeader(h []string) []string {
	out := make([]string, len(h))
	seen := map[string]int{}
	for i, name := range h {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if name == "" {
			name = "column_" + strconv.Itoa(i+1)
		}
		if n, ok := seen[name]; ok {
			seen[name] = n + 1
			name = name + "." + strconv.Itoa(n+1)
		} else {
			seen[name] = 0
		}
		out[i] = name
	}
	return out
}

func absent(header, required []string) []string {
	var missing []string
	for _, r := range required {
		if !slices.Contains(header, r) {
			missing = append(missing, r)
		}
	}
	return missing
}

// Recorder receives load and cache events; the prometheus collectors implement it.
type Recorder interface {
	CacheHit(location string)
	CacheMiss(location string)
	ObserveLoad(location string, took time.Duration, err error)
}

// Loader reads datasets through a source registry and caches them.
type Loader struct {
	opts     Options
	sources  *Registry
	cache    *Cache
	recorder Recorder
	log      *zap.Logger
}

// LoaderOption customizes a Loader.
type LoaderOption func(*Loader)

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) LoaderOption { return func(l *Loader) { l.recorder = r } }

// WithLogger attaches a logger.
func WithLogger(log *zap.Logger) LoaderOption { return func(l *Loader) { l.log = log } }

// NewLoader builds a Loader. A nil cache disables caching.
func NewLoader(opts Options, sources *Registry, cache *Cache, options ...LoaderOption) *Loader {
	l := &Loader{opts: opts, sources: sources, cache: cache, log: zap.NewNop()}
	for _, o := range options {
		o(l)
	}
	return l
}

// Cache returns the loader's cache (may be nil).
func (l *Loader) Cache() *Cache { return l.cache }

// Load returns the dataset at location, from cache when the source signature
// is unchanged.
func (l *Loader) Load(ctx context.Context, location string) (*Dataset, error) {
	start := time.Now()
	d, err := l.load(ctx, location)
	if l.recorder != nil {
		l.recorder.ObserveLoad(location, time.Since(start), err)
	}
	return d, err
}

func (l *Loader) load(ctx context.Context, location string) (*Dataset, error) {
	if strings.TrimSpace(location) == "" {
		return nil, errs.New(errs.SourceUnavailable, errs.StageLoad, "no data location configured")
	}
	src, err := l.sources.Lookup(location)
	if err != nil {
		return nil, err
	}
	sig, err := src.Stat(ctx, location)
	if err != nil {
		return nil, asUnavailable(err, "stat "+location)
	}
	key := Key{Location: location, Signature: sig}
	cacheable := l.cache != nil && sig != ""
	if cacheable {
		if d, ok := l.cache.Get(key); ok {
			l.log.Debug("dataset cache hit", zap.String("location", location), zap.String("signature", sig))
			return d, nil
		}
	}

	rc, err := l.sources.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	var d *Dataset
	if strings.HasSuffix(trimCompressionSuffix(location), ".xlsx") {
		d, err = ReadXLSX(rc, location, l.opts)
	} else {
		d, err = ReadCSV(rc, location, l.opts)
	}
	if err != nil {
		return nil, err
	}
	l.log.Info("dataset loaded",
		zap.String("location", location),
		zap.String("signature", sig),
		zap.Int("rows", d.Len()),
		zap.Int("columns", len(d.cols)),
		zap.String("dataset_id", d.ID))
	if cacheable {
		l.cache.Put(key, d)
	} else if l.cache != nil {
		l.cache.Invalidate(location)
		l.log.Debug("dataset not cached: source has no version signature", zap.String("location", redact(location)))
	}
	return d, nil
}

// Reload drops any cached copy of location and loads it again.
func (l *Loader) Reload(ctx context.Context, location string) (*Dataset, error) {
	if l.cache != nil {
		l.cache.Invalidate(location)
	}
	return l.Load(ctx, location)
}

func asUnavailable(err error, msg string) error {
	if _, ok := errs.KindOf(err); ok {
		return err
	}
	return errs.Wrap(err, errs.SourceUnavailable, errs.StageLoad, msg)
}

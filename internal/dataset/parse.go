package dataset

import (
	"math"
	"strconv"
	"strings"
	"time"
)

var missingTokens = map[string]bool{
	"": true, "na": true, "n/a": true, "#n/a": true, "nan": true, "-nan": true,
	"null": true, "none": true, "nd": true, "-": true, "--": true,
}

func isMissingToken(s string) bool {
	return missingTokens[strings.ToLower(strings.TrimSpace(s))]
}

var dateLayouts = []string{
	time.RFC3339, "2006-01-02", "2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02T15:04:05",
	"2006/01/02", "01/02/2006", "02/01/2006", "1/2/2006", "01/02/2006 15:04", "1/2/2006 15:04",
	"1/2/2006 15:04:05", "02.01.2006", "2006-01",
}

// parseTime tries the known layouts in order; month-first wins over day-first
// when both parse.
func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if isMissingToken(s) {
		return time.Time{}, false
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseNumber converts s to float64. Unparseable input yields NaN and false.
// When dec is 0 the decimal separator is guessed per value: the last of ','
// and '.' is the decimal mark and the other a thousands separator.
func parseNumber(s string, dec, thou rune) (float64, bool) {
	raw := strings.TrimSpace(s)
	if isMissingToken(raw) {
		return math.NaN(), false
	}
	raw = strings.ReplaceAll(raw, "\u00A0", " ")
	raw = strings.TrimSpace(raw)
	if dec == 0 {
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		switch {
		case cpos >= 0 && dpos >= 0:
			if cpos > dpos {
				dec, thou = ',', '.'
			} else {
				dec, thou = '.', ','
			}
		case cpos >= 0:
			dec = ','
		default:
			dec = '.'
		}
	}
	if thou == 0 {
		for _, sep := range []rune{',', '.', ' '} {
			if sep != dec {
				raw = strings.ReplaceAll(raw, string(sep), "")
			}
		}
	} else if thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return math.NaN(), false
	}
	return f, true
}

// sniffDelimiter picks tab for .tsv names and otherwise the most frequent of
// ',', ';', '\t' and '|' in the header line.
func sniffDelimiter(name, headerLine string) rune {
	if strings.HasSuffix(strings.ToLower(name), ".tsv") {
		return '\t'
	}
	best, bestN := ',', 0
	for _, r := range []rune{',', ';', '\t', '|'} {
		if n := strings.Count(headerLine, string(r)); n > bestN {
			best, bestN = r, n
		}
	}
	return best
}

// ParseDelimiter maps a configured delimiter name to a rune; "" means sniff.
func ParseDelimiter(s string) rune {
	switch s {
	case ",":
		return ','
	case ";":
		return ';'
	case "|":
		return '|'
	case "tab", "\t":
		return '\t'
	default:
		return 0
	}
}

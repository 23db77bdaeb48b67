package normalize

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"fundamentals/internal/fetcher"
)

type valueType int

const (
	typeText valueType = iota
	typeNumber
	typeDate
)

// column describes how to locate and validate one output column in a raw record
type column struct {
	name       string
	candidates []string
	exclude    []string
	typ        valueType
	required   bool
}

var (
	nonAlnum  = regexp.MustCompile(`[^a-z0-9]+`)
	timeOfDay = regexp.MustCompile(`T\d{2}:.*$`)
)

// placeholders are values upstream uses for "no data"
var placeholders = map[string]struct{}{
	"":     {},
	"-":    {},
	"--":   {},
	"none": {},
	"n/a":  {},
	"na":   {},
	"nan":  {},
	"null": {},
}

// magnitude maps abbreviated suffixes to powers of ten
var magnitude = map[byte]int32{
	'T': 12,
	'B': 9,
	'M': 6,
	'K': 3,
	'k': 3,
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"Jan 2, 2006",
	"Jan 02, 2006",
	"2006-01",
}

// normalizeKey lower-cases a key and drops everything but letters and digits
func normalizeKey(key string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(key), "")
}

// lookup finds the value of col in obj. Exact key matches win over substring matches.
func lookup(obj gjson.Result, col column) (gjson.Result, bool) {
	type field struct {
		key   string
		value gjson.Result
	}
	var fields []field
	obj.ForEach(func(key, value gjson.Result) bool {
		fields = append(fields, field{key: normalizeKey(key.String()), value: value})
		return true
	})

	for _, cand := range col.candidates {
		for _, f := range fields {
			if f.key == cand {
				return f.value, true
			}
		}
	}
	for _, cand := range col.candidates {
		for _, f := range fields {
			if strings.Contains(f.key, cand) && !excluded(f.key, col.exclude) {
				return f.value, true
			}
		}
	}
	return gjson.Result{}, false
}

func excluded(key string, exclude []string) bool {
	for _, e := range exclude {
		if strings.Contains(key, e) {
			return true
		}
	}
	return false
}

// findArray returns the first array in obj whose key matches one of candidates.
// A top-level array is returned as is.
func findArray(doc gjson.Result, candidates ...string) gjson.Result {
	if doc.IsArray() {
		return doc
	}
	v, ok := lookup(doc, column{candidates: candidates})
	if ok && v.IsArray() {
		return v
	}
	return gjson.Result{}
}

// isPlaceholder reports whether s stands for a missing value
func isPlaceholder(s string) bool {
	_, ok := placeholders[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// ParseNumber parses upstream numeric text. It strips thousands separators,
// currency and percent signs, and expands T/B/M/K magnitude suffixes.
func ParseNumber(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if isPlaceholder(s) {
		return decimal.Zero, false
	}
	s = strings.NewReplacer(",", "", "$", "", "%", "").Replace(s)
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}

	var shift int32
	if exp, ok := magnitude[s[len(s)-1]]; ok {
		shift = exp
		s = s[:len(s)-1]
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d.Shift(shift), true
}

// ParseDate parses a date-like value into YYYY-MM-DD, ignoring any time of day
func ParseDate(s string) (string, bool) {
	s = strings.TrimSpace(timeOfDay.ReplaceAllString(strings.TrimSpace(s), ""))
	if isPlaceholder(s) {
		return "", false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(time.DateOnly), true
		}
	}
	return "", false
}

// canonical validates raw against typ and returns its canonical text
func canonical(raw gjson.Result, typ valueType) (string, bool) {
	text := raw.String()
	switch typ {
	case typeNumber:
		d, ok := ParseNumber(text)
		if !ok {
			return "", false
		}
		return d.String(), true
	case typeDate:
		return ParseDate(text)
	default:
		if isPlaceholder(text) {
			return "", false
		}
		return strings.TrimSpace(text), true
	}
}

// extract builds the values of one record. Optional columns that are missing
// or invalid become empty strings; a missing required column fails the record.
// seen collects the names of columns that were located in the record.
func extract(obj gjson.Result, cols []column, seen map[string]bool) ([]string, error) {
	values := make([]string, len(cols))
	var err error
	for i, col := range cols {
		raw, ok := lookup(obj, col)
		if ok {
			seen[col.name] = true
		}
		var v string
		if ok {
			v, ok = canonical(raw, col.typ)
		}
		if !ok && col.required && err == nil {
			err = fetcher.NewMalformedRecordError(col.name)
		}
		values[i] = v
	}
	if err != nil {
		return nil, err
	}
	return values, nil
}

// unmatched lists the required columns never located in any record
func unmatched(cols []column, seen map[string]bool) []string {
	var out []string
	for _, col := range cols {
		if col.required && !seen[col.name] {
			out = append(out, col.name)
		}
	}
	return out
}

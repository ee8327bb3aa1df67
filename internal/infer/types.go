package infer

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/sadopc/chatsheet/internal/schema"
)

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"2006/01/02",
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// family groups the per-value classifications.
type family int

const (
	famText family = iota
	famBool
	famInt
	famReal
	famDate
	famTimestamp
)

func classify(v string) family {
	switch {
	case isBool(v):
		return famBool
	case isInt(v):
		return famInt
	case isReal(v):
		return famReal
	}
	if _, ok := parseLayouts(v, dateLayouts); ok {
		return famDate
	}
	if _, ok := parseLayouts(v, timestampLayouts); ok {
		return famTimestamp
	}
	return famText
}

// Infer returns the type shared by every value. Values are expected to be
// trimmed and non-empty. No values, or a mix of non-text families that do not
// widen into each other (numbers and dates, booleans and numbers), give
// TypeAmbiguous. Any free text makes the column TEXT.
func Infer(values []string) schema.DataType {
	if len(values) == 0 {
		return schema.TypeAmbiguous
	}

	seen := make(map[family]bool)
	for _, v := range values {
		f := classify(v)
		if f == famText {
			return schema.TypeText
		}
		seen[f] = true
	}

	only := func(fams ...family) bool {
		allowed := make(map[family]bool, len(fams))
		for _, f := range fams {
			allowed[f] = true
		}
		for f := range seen {
			if !allowed[f] {
				return false
			}
		}
		return true
	}

	switch {
	case only(famBool):
		return schema.TypeBoolean
	case only(famInt):
		return schema.TypeInteger
	case only(famInt, famReal):
		return schema.TypeReal
	case only(famDate):
		return schema.TypeDate
	case only(famDate, famTimestamp):
		return schema.TypeTimestamp
	}
	return schema.TypeAmbiguous
}

// Convert turns a raw CSV value into the Go value stored in a column of type
// t. Empty values become nil.
func Convert(t schema.DataType, raw string) (any, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil, nil
	}
	switch t {
	case schema.TypeInteger:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			if f, ferr := strconv.ParseFloat(v, 64); ferr == nil && f == float64(int64(f)) {
				return int64(f), nil
			}
			return nil, errors.Errorf("%q is not an integer", raw)
		}
		return n, nil
	case schema.TypeReal:
		if !isReal(v) && !isInt(v) {
			return nil, errors.Errorf("%q is not a number", raw)
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, errors.Errorf("%q is not a number", raw)
		}
		return f, nil
	case schema.TypeBoolean:
		b, err := strconv.ParseBool(strings.ToLower(v))
		if err != nil {
			return nil, errors.Errorf("%q is not a boolean", raw)
		}
		return b, nil
	case schema.TypeDate:
		ts, ok := parseLayouts(v, dateLayouts)
		if !ok {
			return nil, errors.Errorf("%q is not a date", raw)
		}
		return ts, nil
	case schema.TypeTimestamp:
		if ts, ok := parseLayouts(v, timestampLayouts); ok {
			return ts, nil
		}
		if ts, ok := parseLayouts(v, dateLayouts); ok {
			return ts, nil
		}
		return nil, errors.Errorf("%q is not a timestamp", raw)
	default:
		return raw, nil
	}
}

func isBool(v string) bool {
	l := strings.ToLower(v)
	return l == "true" || l == "false"
}

func isInt(v string) bool {
	_, err := strconv.ParseInt(v, 10, 64)
	return err == nil
}

// isReal accepts decimal and exponent notation but not Inf or NaN.
func isReal(v string) bool {
	s := strings.TrimLeft(v, "+-")
	if s == "" || !(s[0] == '.' || (s[0] >= '0' && s[0] <= '9')) {
		return false
	}
	_, err := strconv.ParseFloat(v, 64)
	return err == nil
}

func parseLayouts(v string, layouts []string) (time.Time, bool) {
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, v); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

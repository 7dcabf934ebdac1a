package kalshi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Record is one resource entry as returned by the server. The field set is
// open: trades, markets and series all carry different keys. Numbers are
// kept as json.Number so integer fields survive unchanged.
type Record map[string]any

// Page is a single server response unit. An empty Cursor marks the final page.
type Page struct {
	Records []Record
	Cursor  string
}

// String returns the field rendered as a string, or "" when absent or null.
func (r Record) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// Has reports whether key is present with a non-null value.
func (r Record) Has(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}

// Decimal parses a numeric field. ok is false for absent, null or
// non-numeric values.
func (r Record) Decimal(key string) (decimal.Decimal, bool) {
	switch v := r[key].(type) {
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(v)
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(v), true
	case float32:
		return decimal.NewFromFloat32(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	default:
		return decimal.Zero, false
	}
}

// Strings returns a list field (e.g. series tags) as strings, skipping
// non-string elements.
func (r Record) Strings(key string) []string {
	switch v := r[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	out := make(Record, len(r)+6)
	for k, v := range r {
		out[k] = v
	}
	return out
}

// decodePage extracts the named records field and the optional cursor.
func decodePage(body []byte, field string) (*Page, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &ResponseParseError{Field: field, Body: body, Err: err}
	}
	raw, ok := envelope[field]
	if !ok {
		return nil, &ResponseParseError{Field: field, Body: body, Err: errMissingField}
	}

	page := &Page{Records: []Record{}}
	if !isNull(raw) {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&page.Records); err != nil {
			return nil, &ResponseParseError{Field: field, Body: body, Err: err}
		}
	}
	if rawCursor, ok := envelope["cursor"]; ok && !isNull(rawCursor) {
		if err := json.Unmarshal(rawCursor, &page.Cursor); err != nil {
			return nil, &ResponseParseError{Field: "cursor", Body: body, Err: err}
		}
	}
	return page, nil
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

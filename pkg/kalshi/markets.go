package kalshi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"sort"
	"strings"
)

const (
	MarketsPath  = "/trade-api/v2/markets"
	marketsField = "markets"

	// UnknownGroup collects records whose grouping field is missing or empty.
	UnknownGroup = "Unknown"
)

// MarketsFilter selects markets. Zero values mean "not set".
type MarketsFilter struct {
	EventTicker  string
	SeriesTicker string
	MinCloseTS   int64
	MaxCloseTS   int64
	Status       string
	Tickers      []string
	Limit        int
	MaxPages     int
}

// Query renders the filter as request parameters. Markets default to the
// largest page size.
func (f MarketsFilter) Query(maxLimit int) url.Values {
	limit := f.Limit
	if limit <= 0 || (maxLimit > 0 && limit > maxLimit) {
		limit = maxLimit
	}
	tickers := make([]string, 0, len(f.Tickers))
	for _, t := range f.Tickers {
		if t = strings.TrimSpace(t); t != "" {
			tickers = append(tickers, t)
		}
	}
	return Params{}.
		SetInt("limit", int64(limit)).
		Set("event_ticker", f.EventTicker).
		Set("series_ticker", f.SeriesTicker).
		SetInt("min_close_ts", f.MinCloseTS).
		SetInt("max_close_ts", f.MaxCloseTS).
		Set("status", f.Status).
		Set("tickers", strings.Join(tickers, ",")).
		Values()
}

// FetchMarkets pages through markets. A page with no records ends the scan
// even if a cursor came back.
func (c *Client) FetchMarkets(ctx context.Context, filter MarketsFilter) (*Result, error) {
	maxPages := filter.MaxPages
	if maxPages <= 0 {
		maxPages = c.marketsMaxPages
	}
	return c.paginate(ctx, MarketsPath, marketsField, filter.Query(c.maxPageSize), PaginateOptions{
		MaxPages:        maxPages,
		StopOnEmptyPage: true,
		Label:           marketsField,
	})
}

// Groups is an insertion-ordered partition of records by a string key.
type Groups struct {
	keys  []string
	items map[string][]Record
}

func newGroups() *Groups {
	return &Groups{items: make(map[string][]Record)}
}

func (g *Groups) add(key string, r Record) {
	if _, ok := g.items[key]; !ok {
		g.keys = append(g.keys, key)
	}
	g.items[key] = append(g.items[key], r)
}

// Keys returns group keys in first-seen order.
func (g *Groups) Keys() []string {
	return append([]string(nil), g.keys...)
}

// Get returns the records of one group in input order.
func (g *Groups) Get(key string) []Record {
	return g.items[key]
}

// Len returns the number of groups.
func (g *Groups) Len() int {
	return len(g.keys)
}

// MarshalJSON renders the groups as an object preserving key order.
func (g *Groups) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range g.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(g.items[key])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func groupBy(records []Record, field string) *Groups {
	groups := newGroups()
	for _, r := range records {
		key := r.String(field)
		if key == "" {
			key = UnknownGroup
		}
		groups.add(key, r)
	}
	return groups
}

// GroupByEventTicker partitions markets by event_ticker. Every input record
// lands in exactly one group.
func GroupByEventTicker(markets []Record) *Groups {
	return groupBy(markets, "event_ticker")
}

// UniqueEventTickers returns the sorted distinct non-empty event tickers.
func UniqueEventTickers(markets []Record) []string {
	return uniqueSorted(markets, "event_ticker")
}

// FilterByStatus keeps markets whose status equals status exactly.
func FilterByStatus(markets []Record, status string) []Record {
	return filterEq(markets, "status", status)
}

// MarketsForEvent keeps markets belonging to eventTicker.
func MarketsForEvent(markets []Record, eventTicker string) []Record {
	return filterEq(markets, "event_ticker", eventTicker)
}

func filterEq(records []Record, field, value string) []Record {
	out := make([]Record, 0)
	for _, r := range records {
		if r.String(field) == value {
			out = append(out, r)
		}
	}
	return out
}

func uniqueSorted(records []Record, field string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, r := range records {
		v := r.String(field)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

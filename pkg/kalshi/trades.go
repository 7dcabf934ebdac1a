package kalshi

import (
	"context"
	"net/url"
)

const (
	TradesPath  = "/trade-api/v2/markets/trades"
	tradesField = "trades"
)

// TradesFilter selects trades. Zero values mean "not set".
type TradesFilter struct {
	Ticker string
	MinTS  int64
	MaxTS  int64
	Limit  int
	// FetchAll requests the largest page size and ignores the time window.
	FetchAll bool
	MaxPages int
}

// Query renders the filter as request parameters. defaultLimit applies when
// Limit is unset; maxLimit caps the page size and is used for FetchAll.
func (f TradesFilter) Query(defaultLimit, maxLimit int) url.Values {
	p := Params{}
	p.Set("ticker", f.Ticker)
	if f.FetchAll {
		return p.SetInt("limit", int64(maxLimit)).Values()
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	return p.SetInt("limit", int64(limit)).
		SetInt("min_ts", f.MinTS).
		SetInt("max_ts", f.MaxTS).
		Values()
}

// FetchTrades pages through executed trades. Pagination ends only when the
// server stops returning a cursor, or at the page ceiling.
func (c *Client) FetchTrades(ctx context.Context, filter TradesFilter) (*Result, error) {
	maxPages := filter.MaxPages
	if maxPages <= 0 {
		maxPages = c.maxPages
	}
	return c.paginate(ctx, TradesPath, tradesField, filter.Query(c.pageSize, c.maxPageSize), PaginateOptions{
		MaxPages: maxPages,
		Label:    tradesField,
	})
}

package kalshi

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/mr"
)

const (
	StatusActive   = "active"
	StatusOpen     = "open"
	StatusClosed   = "closed"
	StatusSettled  = "settled"
	StatusUnopened = "unopened"
	StatusUnknown  = "unknown"
)

// FetchSeriesWithMarketData fetches the series of category and the market
// catalog concurrently, then summarises each series' markets onto it.
// A failure of either fetch is returned; there is no fallback to bare series.
func (c *Client) FetchSeriesWithMarketData(ctx context.Context, category string) ([]Record, error) {
	var series, markets *Result
	err := mr.Finish(func() error {
		res, err := c.FetchSeriesByCategory(ctx, category)
		series = res
		return err
	}, func() error {
		res, err := c.FetchMarkets(ctx, MarketsFilter{})
		markets = res
		return err
	})
	if err != nil {
		return nil, err
	}
	return EnrichSeries(series.Records, markets.Records), nil
}

// EnrichSeries joins markets onto series by series_ticker == ticker. Each
// output record is a copy of the series with volume, last_price, open_time,
// close_time, market_count and status derived from its markets. Series
// without markets are kept with zero volume and unknown status.
func EnrichSeries(series, markets []Record) []Record {
	bySeries := make(map[string][]Record)
	for _, m := range markets {
		if key := m.String("series_ticker"); key != "" {
			bySeries[key] = append(bySeries[key], m)
		}
	}

	out := make([]Record, 0, len(series))
	for _, s := range series {
		related := bySeries[s.String("ticker")]
		enriched := s.Clone()

		volume := decimal.Zero
		statuses := make([]string, 0, len(related))
		var openTime, closeTime string
		for _, m := range related {
			if v, ok := m.Decimal("volume"); ok {
				volume = volume.Add(v)
			}
			if st := m.String("status"); st != "" {
				statuses = append(statuses, st)
			}
			if t := m.String("open_time"); t != "" && (openTime == "" || timeBefore(t, openTime)) {
				openTime = t
			}
			if t := m.String("close_time"); t != "" && (closeTime == "" || timeBefore(closeTime, t)) {
				closeTime = t
			}
		}

		enriched["volume"] = json.Number(volume.String())
		enriched["last_price"] = lastPrice(related)
		enriched["open_time"] = nilIfEmpty(openTime)
		enriched["close_time"] = nilIfEmpty(closeTime)
		enriched["market_count"] = len(related)
		enriched["status"] = OverallStatus(statuses)
		out = append(out, enriched)
	}
	return out
}

// OverallStatus reduces market statuses to one series status. Precedence:
// active or open, then closed, settled, unopened; anything else is unknown.
func OverallStatus(statuses []string) string {
	has := make(map[string]bool, len(statuses))
	for _, s := range statuses {
		has[s] = true
	}
	switch {
	case has[StatusActive] || has[StatusOpen]:
		return StatusActive
	case has[StatusClosed]:
		return StatusClosed
	case has[StatusSettled]:
		return StatusSettled
	case has[StatusUnopened]:
		return StatusUnopened
	default:
		return StatusUnknown
	}
}

// lastPrice prefers the first non-zero price of a live market, then any
// market. Returns nil when no market has one.
func lastPrice(markets []Record) any {
	for _, m := range markets {
		st := m.String("status")
		if (st == StatusActive || st == StatusOpen) && hasPrice(m) {
			return m["last_price"]
		}
	}
	for _, m := range markets {
		if hasPrice(m) {
			return m["last_price"]
		}
	}
	return nil
}

func hasPrice(m Record) bool {
	if d, ok := m.Decimal("last_price"); ok {
		return !d.IsZero()
	}
	return m.String("last_price") != ""
}

// timeBefore compares RFC 3339 timestamps, falling back to string order.
func timeBefore(a, b string) bool {
	ta, errA := time.Parse(time.RFC3339, a)
	tb, errB := time.Parse(time.RFC3339, b)
	if errA != nil || errB != nil {
		return a < b
	}
	return ta.Before(tb)
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

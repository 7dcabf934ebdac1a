package kalshi

import (
	"context"
	"net/url"
	"sort"
	"strings"
)

const (
	SeriesPath  = "/trade-api/v2/series"
	seriesField = "series"
)

// SeriesFilter selects series. Zero values mean "not set".
type SeriesFilter struct {
	Category               string
	IncludeProductMetadata bool
	MaxPages               int
}

// Query renders the filter as request parameters.
func (f SeriesFilter) Query() url.Values {
	return Params{}.
		Set("category", f.Category).
		SetBool("include_product_metadata", f.IncludeProductMetadata).
		Values()
}

// FetchSeries pages through the series catalog.
func (c *Client) FetchSeries(ctx context.Context, filter SeriesFilter) (*Result, error) {
	maxPages := filter.MaxPages
	if maxPages <= 0 {
		maxPages = c.maxPages
	}
	return c.paginate(ctx, SeriesPath, seriesField, filter.Query(), PaginateOptions{
		MaxPages: maxPages,
		Label:    seriesField,
	})
}

// FetchSeriesByCategory fetches the series of one category.
func (c *Client) FetchSeriesByCategory(ctx context.Context, category string) (*Result, error) {
	return c.FetchSeries(ctx, SeriesFilter{Category: category})
}

// FetchSeriesCategories returns the sorted distinct categories across all
// series. Categories seen before a failure are still returned with the error.
func (c *Client) FetchSeriesCategories(ctx context.Context) ([]string, error) {
	res, err := c.FetchSeries(ctx, SeriesFilter{})
	return uniqueSorted(res.Records, "category"), err
}

// FetchSeriesByTag returns the series carrying tag, compared case-insensitively.
// The Result's Records are replaced by the matches; State and Err are kept.
func (c *Client) FetchSeriesByTag(ctx context.Context, tag string) (*Result, error) {
	res, err := c.FetchSeries(ctx, SeriesFilter{})
	res.Records = FilterByTag(res.Records, tag)
	return res, err
}

// FilterByTag keeps series whose tags include tag, ignoring case.
func FilterByTag(series []Record, tag string) []Record {
	out := make([]Record, 0)
	for _, r := range series {
		for _, t := range r.Strings("tags") {
			if strings.EqualFold(t, tag) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// GroupByCategory partitions series by category in first-seen order. A
// missing, null or empty category lands in UnknownGroup.
func GroupByCategory(series []Record) *Groups {
	return groupBy(series, "category")
}

// UniqueTags returns the sorted distinct tags across series.
func UniqueTags(series []Record) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, r := range series {
		for _, t := range r.Strings("tags") {
			if t == "" {
				continue
			}
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

package kalshi

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"
)

// State is the pagination state machine position.
type State int

const (
	StateFetching State = iota
	StateDone
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// AbortReason explains a StateAborted result.
type AbortReason int

const (
	ReasonNone AbortReason = iota
	// ReasonMaxPages means the page ceiling was hit before the server signalled
	// the end. Not an error, but the result may be incomplete.
	ReasonMaxPages
	// ReasonFailure means a page fetch failed; Result.Err holds the cause.
	ReasonFailure
)

func (r AbortReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonMaxPages:
		return "max_pages"
	case ReasonFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// PageFunc fetches the page at cursor; cursor is "" for the first page.
type PageFunc func(ctx context.Context, cursor string) (*Page, error)

// PaginateOptions tunes a single pagination run.
type PaginateOptions struct {
	// MaxPages bounds the number of fetches. Values <= 0 use DefaultMaxPages.
	MaxPages int
	// StopOnEmptyPage ends pagination on a zero-record page even if a cursor
	// was returned.
	StopOnEmptyPage bool
	// OnTruncated is called when MaxPages is reached without a final page.
	OnTruncated func(res *Result)
	// Label names the run in logs.
	Label string
}

// Result is the accumulated outcome of a pagination run. Records holds every
// record from every successfully fetched page in server order, including
// when the run aborted.
type Result struct {
	Records []Record
	State   State
	Reason  AbortReason
	Pages   int
	Err     error
}

// Complete reports whether the server signalled the final page.
func (r *Result) Complete() bool {
	return r != nil && r.State == StateDone
}

// Truncated reports whether the run stopped at the page ceiling.
func (r *Result) Truncated() bool {
	return r != nil && r.State == StateAborted && r.Reason == ReasonMaxPages
}

// Len returns the number of accumulated records.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Records)
}

// Paginate repeatedly calls fetch, following cursors until the server
// signals the end, MaxPages is reached, or a fetch fails. It never retries.
func Paginate(ctx context.Context, fetch PageFunc, opts PaginateOptions) *Result {
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	label := opts.Label
	if label == "" {
		label = "records"
	}
	logger := logx.WithContext(ctx)

	res := &Result{Records: []Record{}, State: StateFetching}
	cursor := ""
	for res.State == StateFetching {
		if res.Pages >= maxPages {
			res.State, res.Reason = StateAborted, ReasonMaxPages
			logger.Infof("kalshi: %s stopped at max pages=%d records=%d, result may be incomplete", label, maxPages, len(res.Records))
			if opts.OnTruncated != nil {
				opts.OnTruncated(res)
			}
			break
		}
		if err := ctx.Err(); err != nil {
			res.State, res.Reason, res.Err = StateAborted, ReasonFailure, err
			break
		}

		page, err := fetch(ctx, cursor)
		if err != nil {
			res.State, res.Reason, res.Err = StateAborted, ReasonFailure, err
			logger.Errorf("kalshi: %s page=%d failed after %d records: %v", label, res.Pages+1, len(res.Records), err)
			break
		}
		res.Pages++
		if page == nil {
			page = &Page{}
		}
		logger.Debugf("kalshi: %s page=%d records=%d more=%t", label, res.Pages, len(page.Records), page.Cursor != "")

		if opts.StopOnEmptyPage && len(page.Records) == 0 {
			res.State = StateDone
			break
		}
		res.Records = append(res.Records, page.Records...)
		if page.Cursor == "" {
			res.State = StateDone
			break
		}
		cursor = page.Cursor
	}
	return res
}

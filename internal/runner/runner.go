package runner

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"kalshi-explorer/internal/persistence/archive"
	"kalshi-explorer/pkg/journal"
	"kalshi-explorer/pkg/kalshi"
)

// FetchFunc runs one paginated fetch.
type FetchFunc func(ctx context.Context, client *kalshi.Client) (*kalshi.Result, error)

// Job describes a single fetch run.
type Job struct {
	Resource string
	Filters  map[string]string
	Fetch    FetchFunc
	// Archive stores the fetched records when an archive is configured.
	Archive bool
}

// Outcome is what a run produced. Result is never nil when Fetch ran.
type Outcome struct {
	RunID       string
	Result      *kalshi.Result
	Archived    int
	Duration    time.Duration
	JournalPath string
}

// Runner executes jobs against one client, archiving and journalling them.
// Archive and journal are optional.
type Runner struct {
	client  *kalshi.Client
	archive *archive.Service
	journal *journal.Writer
	nowFn   func() time.Time
}

// New constructs a Runner.
func New(client *kalshi.Client, archiveSvc *archive.Service, journalWriter *journal.Writer) *Runner {
	return &Runner{client: client, archive: archiveSvc, journal: journalWriter, nowFn: time.Now}
}

// Run executes job. Partial records survive a failed fetch and are still
// archived; the fetch error is returned after journalling.
func (r *Runner) Run(ctx context.Context, job Job) (*Outcome, error) {
	if job.Fetch == nil {
		return nil, errors.New("runner: job has no fetch function")
	}
	logger := logx.WithContext(ctx)
	out := &Outcome{RunID: archive.NewRunID()}
	start := r.nowFn()

	res, fetchErr := job.Fetch(ctx, r.client)
	if res == nil {
		res = &kalshi.Result{State: kalshi.StateAborted, Reason: kalshi.ReasonFailure, Err: fetchErr}
	}
	out.Result = res

	var archiveErr error
	if job.Archive && r.archive != nil && len(res.Records) > 0 {
		out.Archived, archiveErr = r.archive.Store(ctx, job.Resource, out.RunID, res.Records)
		if archiveErr != nil {
			logger.Errorf("runner: %s run=%s archive failed: %v", job.Resource, out.RunID, archiveErr)
		}
	}
	out.Duration = r.nowFn().Sub(start)

	if r.journal != nil {
		rec := &journal.RunRecord{
			Timestamp:  start,
			RunID:      out.RunID,
			Resource:   job.Resource,
			Filters:    job.Filters,
			State:      res.State.String(),
			Pages:      res.Pages,
			Records:    len(res.Records),
			Archived:   out.Archived,
			DurationMS: out.Duration.Milliseconds(),
		}
		if res.Reason != kalshi.ReasonNone {
			rec.Reason = res.Reason.String()
		}
		if err := errors.Join(fetchErr, archiveErr); err != nil {
			rec.Error = err.Error()
		}
		path, err := r.journal.WriteRun(rec)
		if err != nil {
			logger.Errorf("runner: %s run=%s journal failed: %v", job.Resource, out.RunID, err)
		}
		out.JournalPath = path
	}

	switch {
	case fetchErr != nil:
		logger.Errorf("runner: %s run=%s aborted after %d pages, %d records kept: %v", job.Resource, out.RunID, res.Pages, len(res.Records), fetchErr)
	case res.Truncated():
		logger.Infof("runner: %s run=%s truncated at %d pages, %d records", job.Resource, out.RunID, res.Pages, len(res.Records))
	default:
		logger.Infof("runner: %s run=%s done pages=%d records=%d archived=%d took=%s", job.Resource, out.RunID, res.Pages, len(res.Records), out.Archived, out.Duration)
	}
	if fetchErr != nil {
		return out, fetchErr
	}
	return out, archiveErr
}

// TradesJob fetches trades matching filter.
func TradesJob(filter kalshi.TradesFilter) Job {
	return Job{
		Resource: archive.ResourceTrades,
		Filters: compact(map[string]string{
			"ticker":    filter.Ticker,
			"min_ts":    formatInt(filter.MinTS),
			"max_ts":    formatInt(filter.MaxTS),
			"limit":     formatInt(int64(filter.Limit)),
			"fetch_all": formatBool(filter.FetchAll),
			"max_pages": formatInt(int64(filter.MaxPages)),
		}),
		Fetch: func(ctx context.Context, c *kalshi.Client) (*kalshi.Result, error) {
			return c.FetchTrades(ctx, filter)
		},
	}
}

// MarketsJob fetches markets matching filter.
func MarketsJob(filter kalshi.MarketsFilter) Job {
	return Job{
		Resource: archive.ResourceMarkets,
		Filters: compact(map[string]string{
			"event_ticker":  filter.EventTicker,
			"series_ticker": filter.SeriesTicker,
			"status":        filter.Status,
			"tickers":       strings.Join(filter.Tickers, ","),
			"min_close_ts":  formatInt(filter.MinCloseTS),
			"max_close_ts":  formatInt(filter.MaxCloseTS),
			"max_pages":     formatInt(int64(filter.MaxPages)),
		}),
		Fetch: func(ctx context.Context, c *kalshi.Client) (*kalshi.Result, error) {
			return c.FetchMarkets(ctx, filter)
		},
	}
}

// SeriesJob fetches series matching filter.
func SeriesJob(filter kalshi.SeriesFilter) Job {
	return Job{
		Resource: archive.ResourceSeries,
		Filters: compact(map[string]string{
			"category":                 filter.Category,
			"include_product_metadata": formatBool(filter.IncludeProductMetadata),
			"max_pages":                formatInt(int64(filter.MaxPages)),
		}),
		Fetch: func(ctx context.Context, c *kalshi.Client) (*kalshi.Result, error) {
			return c.FetchSeries(ctx, filter)
		},
	}
}

func compact(m map[string]string) map[string]string {
	for k, v := range m {
		if v == "" {
			delete(m, k)
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

func formatInt(v int64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatInt(v, 10)
}

func formatBool(v bool) string {
	if !v {
		return ""
	}
	return "true"
}

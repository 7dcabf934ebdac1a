package kalshi

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scriptedPages(pages ...*Page) (PageFunc, *[]string) {
	var cursors []string
	return func(_ context.Context, cursor string) (*Page, error) {
		cursors = append(cursors, cursor)
		i := len(cursors) - 1
		if i >= len(pages) {
			return nil, fmt.Errorf("unexpected fetch %d", i)
		}
		return pages[i], nil
	}, &cursors
}

func ids(values ...string) []Record {
	out := make([]Record, 0, len(values))
	for _, v := range values {
		out = append(out, Record{"id": v})
	}
	return out
}

func TestPaginateAccumulatesInServerOrder(t *testing.T) {
	fetch, cursors := scriptedPages(
		&Page{Records: ids("A", "B"), Cursor: "c1"},
		&Page{Records: ids("C"), Cursor: ""},
	)

	res := Paginate(context.Background(), fetch, PaginateOptions{})
	require.NoError(t, res.Err)
	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, ReasonNone, res.Reason)
	assert.Equal(t, []string{"A", "B", "C"}, recordIDs(res.Records, "id"))
	assert.Equal(t, []string{"", "c1"}, *cursors)
}

func TestPaginateDoneWithZeroRecords(t *testing.T) {
	fetch, _ := scriptedPages(&Page{})

	res := Paginate(context.Background(), fetch, PaginateOptions{})
	assert.True(t, res.Complete())
	assert.NotNil(t, res.Records)
	assert.Empty(t, res.Records)
}

func TestPaginateMaxPages(t *testing.T) {
	var truncated *Result
	calls := 0
	fetch := func(_ context.Context, cursor string) (*Page, error) {
		calls++
		return &Page{Records: ids(fmt.Sprintf("%d-a", calls), fmt.Sprintf("%d-b", calls)), Cursor: "more"}, nil
	}

	res := Paginate(context.Background(), fetch, PaginateOptions{
		MaxPages:    3,
		OnTruncated: func(r *Result) { truncated = r },
	})
	require.NoError(t, res.Err)
	assert.Equal(t, 3, calls)
	assert.Len(t, res.Records, 6)
	assert.Equal(t, StateAborted, res.State)
	assert.Equal(t, ReasonMaxPages, res.Reason)
	assert.Same(t, res, truncated)
}

func TestPaginateDefaultMaxPages(t *testing.T) {
	calls := 0
	fetch := func(_ context.Context, cursor string) (*Page, error) {
		calls++
		return &Page{Records: ids("x"), Cursor: "more"}, nil
	}

	res := Paginate(context.Background(), fetch, PaginateOptions{MaxPages: -1})
	assert.Equal(t, DefaultMaxPages, calls)
	assert.True(t, res.Truncated())
}

func TestPaginateLastPageAtCeilingIsDone(t *testing.T) {
	fetch, _ := scriptedPages(
		&Page{Records: ids("A"), Cursor: "c1"},
		&Page{Records: ids("B")},
	)

	res := Paginate(context.Background(), fetch, PaginateOptions{MaxPages: 2})
	assert.Equal(t, StateDone, res.State)
	assert.False(t, res.Truncated())
}

func TestPaginateStopOnEmptyPage(t *testing.T) {
	fetch, cursors := scriptedPages(
		&Page{Records: ids("A"), Cursor: "c1"},
		&Page{Cursor: "c2"},
	)

	res := Paginate(context.Background(), fetch, PaginateOptions{StopOnEmptyPage: true})
	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, []string{"A"}, recordIDs(res.Records, "id"))
	assert.Len(t, *cursors, 2)
}

func TestPaginateFailureKeepsPartialRecords(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	fetch := func(_ context.Context, cursor string) (*Page, error) {
		calls++
		if calls == 2 {
			return nil, boom
		}
		return &Page{Records: ids("A", "B"), Cursor: "c1"}, nil
	}

	res := Paginate(context.Background(), fetch, PaginateOptions{})
	assert.ErrorIs(t, res.Err, boom)
	assert.Equal(t, StateAborted, res.State)
	assert.Equal(t, ReasonFailure, res.Reason)
	assert.Equal(t, 1, res.Pages)
	assert.Equal(t, []string{"A", "B"}, recordIDs(res.Records, "id"))
}

func TestPaginateFailureOnFirstPage(t *testing.T) {
	fetch := func(context.Context, string) (*Page, error) { return nil, errors.New("down") }

	res := Paginate(context.Background(), fetch, PaginateOptions{})
	assert.Equal(t, StateAborted, res.State)
	assert.False(t, res.Complete())
	assert.Empty(t, res.Records)
}

func TestPaginateHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	fetch := func(context.Context, string) (*Page, error) {
		calls++
		return &Page{}, nil
	}

	res := Paginate(ctx, fetch, PaginateOptions{})
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Zero(t, calls)
}

func TestPaginateNilPageIsEmpty(t *testing.T) {
	fetch := func(context.Context, string) (*Page, error) { return nil, nil }

	res := Paginate(context.Background(), fetch, PaginateOptions{})
	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, 1, res.Pages)
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "fetching", StateFetching.String())
	assert.Equal(t, "done", StateDone.String())
	assert.Equal(t, "aborted", StateAborted.String())
	assert.Equal(t, "max_pages", ReasonMaxPages.String())
	assert.Equal(t, "failure", ReasonFailure.String())
}

func TestDecodePage(t *testing.T) {
	page, err := decodePage([]byte(`{"markets":[{"ticker":"A","volume":12345678901234567890}],"cursor":"abc"}`), "markets")
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "abc", page.Cursor)
	assert.Equal(t, "12345678901234567890", page.Records[0].String("volume"))

	page, err = decodePage([]byte(`{"markets":null,"cursor":null}`), "markets")
	require.NoError(t, err)
	assert.Empty(t, page.Records)
	assert.Empty(t, page.Cursor)

	_, err = decodePage([]byte(`{"cursor":"x"}`), "markets")
	var parseErr *ResponseParseError
	require.ErrorAs(t, err, &parseErr)
	assert.ErrorIs(t, err, errMissingField)

	_, err = decodePage([]byte(`{"markets":{}}`), "markets")
	require.ErrorAs(t, err, &parseErr)
}

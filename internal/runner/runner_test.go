package runner

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kalshi-explorer/internal/model"
	"kalshi-explorer/internal/persistence/archive"
	"kalshi-explorer/pkg/journal"
	"kalshi-explorer/pkg/kalshi"
)

type memoryRecords struct {
	rows []model.KalshiRecord
}

func (m *memoryRecords) EnsureSchema(context.Context) error { return nil }

func (m *memoryRecords) Insert(_ context.Context, rec *model.KalshiRecord) (bool, error) {
	for _, r := range m.rows {
		if r.Resource == rec.Resource && r.Digest == rec.Digest {
			return false, nil
		}
	}
	m.rows = append(m.rows, *rec)
	return true, nil
}

func (m *memoryRecords) LatestByResource(context.Context, string, int) ([]model.KalshiRecord, error) {
	return m.rows, nil
}

func (m *memoryRecords) CountByRun(context.Context, string) (int64, error) {
	return int64(len(m.rows)), nil
}

func newClient(t *testing.T, handler http.HandlerFunc) *kalshi.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	cred, err := kalshi.NewCredential(key, "ak")
	require.NoError(t, err)
	client, err := kalshi.NewClient(cred, kalshi.WithBaseURL(server.URL))
	require.NoError(t, err)
	return client
}

func readRun(t *testing.T, path string) journal.RunRecord {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var rec journal.RunRecord
	require.NoError(t, json.Unmarshal(data, &rec))
	return rec
}

func TestRunArchivesAndJournals(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"markets": []map[string]any{{"ticker": "M1"}, {"ticker": "M2"}},
		})
	})
	store := &memoryRecords{}
	r := New(client, archive.NewService(archive.Config{RecordsModel: store}), journal.NewWriter(t.TempDir()))

	job := MarketsJob(kalshi.MarketsFilter{Status: "open"})
	job.Archive = true
	out, err := r.Run(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Archived)
	assert.Len(t, store.rows, 2)
	assert.Equal(t, out.RunID, store.rows[0].RunID)

	rec := readRun(t, out.JournalPath)
	assert.Equal(t, "markets", rec.Resource)
	assert.Equal(t, "done", rec.State)
	assert.Equal(t, 2, rec.Records)
	assert.Equal(t, 2, rec.Archived)
	assert.Equal(t, map[string]string{"status": "open"}, rec.Filters)
	assert.Empty(t, rec.Error)
}

func TestRunKeepsPartialRecordsOnFailure(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("cursor") == "" {
			_ = json.NewEncoder(w).Encode(map[string]any{"trades": []map[string]any{{"trade_id": "A"}}, "cursor": "c1"})
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	})
	store := &memoryRecords{}
	r := New(client, archive.NewService(archive.Config{RecordsModel: store}), journal.NewWriter(t.TempDir()))

	job := TradesJob(kalshi.TradesFilter{Ticker: "KXABC"})
	job.Archive = true
	out, err := r.Run(context.Background(), job)
	var apiErr *kalshi.APIError
	require.ErrorAs(t, err, &apiErr)
	require.NotNil(t, out)
	assert.Equal(t, 1, out.Result.Len())
	assert.Equal(t, 1, out.Archived)

	rec := readRun(t, out.JournalPath)
	assert.Equal(t, "aborted", rec.State)
	assert.Equal(t, "failure", rec.Reason)
	assert.Contains(t, rec.Error, "500")
}

func TestRunWithoutArchiveOrJournal(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"series": []map[string]any{{"ticker": "S1"}}})
	})
	r := New(client, nil, nil)

	job := SeriesJob(kalshi.SeriesFilter{Category: "Economics"})
	job.Archive = true
	out, err := r.Run(context.Background(), job)
	require.NoError(t, err)
	assert.Zero(t, out.Archived)
	assert.Empty(t, out.JournalPath)
	assert.Equal(t, "S1", out.Result.Records[0].String("ticker"))
}

func TestRunRejectsEmptyJob(t *testing.T) {
	_, err := New(nil, nil, nil).Run(context.Background(), Job{Resource: "x"})
	require.Error(t, err)
}

func TestJobFilters(t *testing.T) {
	job := TradesJob(kalshi.TradesFilter{Ticker: "KXABC", FetchAll: true})
	assert.Equal(t, map[string]string{"ticker": "KXABC", "fetch_all": "true"}, job.Filters)
	assert.Nil(t, SeriesJob(kalshi.SeriesFilter{}).Filters)
}

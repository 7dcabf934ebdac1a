package archive

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kalshi-explorer/internal/model"
	"kalshi-explorer/pkg/kalshi"
)

type fakeRecordsModel struct {
	rows    []model.KalshiRecord
	seen    map[string]bool
	failOn  int
	schemas int
}

func (f *fakeRecordsModel) EnsureSchema(context.Context) error {
	f.schemas++
	return nil
}

func (f *fakeRecordsModel) Insert(_ context.Context, rec *model.KalshiRecord) (bool, error) {
	if f.failOn > 0 && len(f.rows)+1 == f.failOn {
		return false, errors.New("db down")
	}
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	key := rec.Resource + "|" + rec.Digest
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	f.rows = append(f.rows, *rec)
	return true, nil
}

func (f *fakeRecordsModel) LatestByResource(context.Context, string, int) ([]model.KalshiRecord, error) {
	return f.rows, nil
}

func (f *fakeRecordsModel) CountByRun(_ context.Context, runID string) (int64, error) {
	var n int64
	for _, r := range f.rows {
		if r.RunID == runID {
			n++
		}
	}
	return n, nil
}

func TestDigestIgnoresFieldOrder(t *testing.T) {
	var a, b kalshi.Record
	require.NoError(t, json.Unmarshal([]byte(`{"ticker":"M1","volume":10,"tags":["x"]}`), &a))
	require.NoError(t, json.Unmarshal([]byte(`{"tags":["x"],"volume":10,"ticker":"M1"}`), &b))

	da, err := Digest(a)
	require.NoError(t, err)
	db, err := Digest(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)
	assert.True(t, strings.HasPrefix(da, "0x"))
	assert.Len(t, da, 66)

	dc, err := Digest(kalshi.Record{"ticker": "M1", "volume": 11})
	require.NoError(t, err)
	assert.NotEqual(t, da, dc)
}

func TestNaturalKey(t *testing.T) {
	assert.Equal(t, "T-1", NaturalKey(ResourceTrades, kalshi.Record{"trade_id": "T-1", "ticker": "M1"}))
	assert.Equal(t, "M1", NaturalKey(ResourceTrades, kalshi.Record{"ticker": "M1"}))
	assert.Equal(t, "M1", NaturalKey(ResourceMarkets, kalshi.Record{"ticker": "M1", "trade_id": "T-1"}))
	assert.Equal(t, "", NaturalKey(ResourceSeries, kalshi.Record{}))
}

func TestStoreSkipsDuplicates(t *testing.T) {
	fake := &fakeRecordsModel{}
	svc := NewService(Config{RecordsModel: fake})
	require.NotNil(t, svc)
	require.NoError(t, svc.EnsureSchema(context.Background()))
	assert.Equal(t, 1, fake.schemas)

	records := []kalshi.Record{
		{"trade_id": "T-1", "ticker": "M1", "count": 3},
		{"trade_id": "T-2", "ticker": "M1", "count": 1},
		{"trade_id": "T-1", "ticker": "M1", "count": 3},
	}
	runID := NewRunID()
	n, err := svc.Store(context.Background(), ResourceTrades, runID, records)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := fake.CountByRun(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, "T-1", fake.rows[0].NaturalKey)
	assert.JSONEq(t, `{"trade_id":"T-1","ticker":"M1","count":3}`, fake.rows[0].Payload)

	n, err = svc.Store(context.Background(), ResourceTrades, NewRunID(), records[:1])
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStorePropagatesInsertErrors(t *testing.T) {
	svc := NewService(Config{RecordsModel: &fakeRecordsModel{failOn: 2}})
	n, err := svc.Store(context.Background(), ResourceMarkets, "run", []kalshi.Record{{"ticker": "A"}, {"ticker": "B"}})
	require.Error(t, err)
	assert.Equal(t, 1, n)
}

func TestNilServiceIsNoop(t *testing.T) {
	svc := NewService(Config{})
	assert.Nil(t, svc)
	require.NoError(t, svc.EnsureSchema(context.Background()))
	n, err := svc.Store(context.Background(), ResourceMarkets, "run", []kalshi.Record{{"ticker": "A"}})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNewRunIDUnique(t *testing.T) {
	assert.NotEqual(t, NewRunID(), NewRunID())
}

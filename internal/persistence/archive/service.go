package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeromicro/go-zero/core/logx"

	"kalshi-explorer/internal/model"
	"kalshi-explorer/pkg/kalshi"
)

// Resource names used as the archive partition key.
const (
	ResourceTrades  = "trades"
	ResourceMarkets = "markets"
	ResourceSeries  = "series"
)

// Service archives fetched records into Postgres, skipping records whose
// content was already stored for the same resource.
type Service struct {
	records model.KalshiRecordsModel
	nowFn   func() time.Time
}

// Config enumerates dependencies required to archive records.
type Config struct {
	RecordsModel model.KalshiRecordsModel
}

// NewService wires an archive service. Returns nil when dependencies missing;
// a nil *Service accepts every call and stores nothing.
func NewService(cfg Config) *Service {
	if cfg.RecordsModel == nil {
		return nil
	}
	return &Service{records: cfg.RecordsModel, nowFn: time.Now}
}

// NewRunID returns a fresh identifier tying archived rows to one fetch run.
func NewRunID() string {
	return uuid.NewString()
}

// EnsureSchema creates the archive table when absent.
func (s *Service) EnsureSchema(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.records.EnsureSchema(ctx)
}

// Store archives records and returns how many were new.
func (s *Service) Store(ctx context.Context, resource, runID string, records []kalshi.Record) (int, error) {
	if s == nil || len(records) == 0 {
		return 0, nil
	}
	fetchedAt := s.nowFn().UTC()
	inserted := 0
	for i, rec := range records {
		digest, err := Digest(rec)
		if err != nil {
			return inserted, fmt.Errorf("archive: digest %s record %d: %w", resource, i, err)
		}
		payload, err := json.Marshal(rec)
		if err != nil {
			return inserted, fmt.Errorf("archive: encode %s record %d: %w", resource, i, err)
		}
		ok, err := s.records.Insert(ctx, &model.KalshiRecord{
			Resource:   resource,
			NaturalKey: NaturalKey(resource, rec),
			Digest:     digest,
			RunID:      runID,
			Payload:    string(payload),
			FetchedAt:  fetchedAt,
		})
		if err != nil {
			return inserted, fmt.Errorf("archive: insert %s record %d: %w", resource, i, err)
		}
		if ok {
			inserted++
		}
	}
	logx.WithContext(ctx).Infof("archive: %s run=%s stored=%d duplicates=%d", resource, runID, inserted, len(records)-inserted)
	return inserted, nil
}

// Digest is the Keccak-256 hash of the record's msgpack encoding with map
// keys sorted, so equal records hash equally regardless of field order.
func Digest(rec kalshi.Record) (string, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(map[string]any(rec)); err != nil {
		return "", err
	}
	return crypto.Keccak256Hash(buf.Bytes()).Hex(), nil
}

// NaturalKey picks the identifying field of a record for its resource.
func NaturalKey(resource string, rec kalshi.Record) string {
	switch resource {
	case ResourceTrades:
		if id := rec.String("trade_id"); id != "" {
			return id
		}
	}
	return rec.String("ticker")
}

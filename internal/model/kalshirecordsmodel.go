package model

import (
	"context"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ KalshiRecordsModel = (*defaultKalshiRecordsModel)(nil)

var kalshiRecordsSchema = []string{`
CREATE TABLE IF NOT EXISTS public.kalshi_records (
    id          BIGSERIAL PRIMARY KEY,
    resource    TEXT        NOT NULL,
    natural_key TEXT        NOT NULL DEFAULT '',
    digest      TEXT        NOT NULL,
    run_id      TEXT        NOT NULL,
    payload     JSONB       NOT NULL,
    fetched_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (resource, digest)
)`,
	`CREATE INDEX IF NOT EXISTS kalshi_records_resource_fetched_idx ON public.kalshi_records (resource, fetched_at DESC)`,
	`CREATE INDEX IF NOT EXISTS kalshi_records_run_idx ON public.kalshi_records (run_id)`,
}

// KalshiRecord is one archived API record. Payload holds the record as JSON.
type KalshiRecord struct {
	ID         int64     `db:"id"`
	Resource   string    `db:"resource"`
	NaturalKey string    `db:"natural_key"`
	Digest     string    `db:"digest"`
	RunID      string    `db:"run_id"`
	Payload    string    `db:"payload"`
	FetchedAt  time.Time `db:"fetched_at"`
}

type (
	KalshiRecordsModel interface {
		EnsureSchema(ctx context.Context) error
		// Insert stores rec unless a row with the same resource and digest
		// exists; inserted reports which happened.
		Insert(ctx context.Context, rec *KalshiRecord) (inserted bool, err error)
		LatestByResource(ctx context.Context, resource string, limit int) ([]KalshiRecord, error)
		CountByRun(ctx context.Context, runID string) (int64, error)
	}

	defaultKalshiRecordsModel struct {
		conn  sqlx.SqlConn
		table string
	}
)

// NewKalshiRecordsModel returns a model for the kalshi_records table.
func NewKalshiRecordsModel(conn sqlx.SqlConn) KalshiRecordsModel {
	return &defaultKalshiRecordsModel{
		conn:  conn,
		table: `"public"."kalshi_records"`,
	}
}

func (m *defaultKalshiRecordsModel) EnsureSchema(ctx context.Context) error {
	for _, stmt := range kalshiRecordsSchema {
		if _, err := m.conn.ExecCtx(ctx, stmt); err != nil {
			return fmt.Errorf("ensure kalshi_records schema: %w", err)
		}
	}
	return nil
}

func (m *defaultKalshiRecordsModel) Insert(ctx context.Context, rec *KalshiRecord) (bool, error) {
	if rec == nil {
		return false, nil
	}
	query := fmt.Sprintf(`
INSERT INTO %s (resource, natural_key, digest, run_id, payload, fetched_at)
VALUES ($1, $2, $3, $4, $5::jsonb, $6)
ON CONFLICT (resource, digest) DO NOTHING`, m.table)
	fetchedAt := rec.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}
	res, err := m.conn.ExecCtx(ctx, query, rec.Resource, rec.NaturalKey, rec.Digest, rec.RunID, rec.Payload, fetchedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// LatestByResource returns the most recently fetched rows for resource.
// Limit defaults to 100 when non-positive.
func (m *defaultKalshiRecordsModel) LatestByResource(ctx context.Context, resource string, limit int) ([]KalshiRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`
SELECT id, resource, natural_key, digest, run_id, payload::text AS payload, fetched_at
FROM %s
WHERE resource = $1
ORDER BY fetched_at DESC, id DESC
LIMIT $2`, m.table)
	var rows []KalshiRecord
	if err := m.conn.QueryRowsCtx(ctx, &rows, query, resource, limit); err != nil {
		return nil, err
	}
	return rows, nil
}

func (m *defaultKalshiRecordsModel) CountByRun(ctx context.Context, runID string) (int64, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE run_id = $1`, m.table)
	var count int64
	if err := m.conn.QueryRowCtx(ctx, &count, query, runID); err != nil {
		return 0, err
	}
	return count, nil
}

package svc

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"kalshi-explorer/internal/config"
	"kalshi-explorer/internal/model"
	"kalshi-explorer/internal/persistence/archive"
	"kalshi-explorer/pkg/journal"
	kalshipkg "kalshi-explorer/pkg/kalshi"
)

type ServiceContext struct {
	Config config.Config

	KalshiConfig *kalshipkg.Config
	Kalshi       *kalshipkg.Client
	Journal      *journal.Writer

	// Optional DB wiring, only present when a DSN is configured.
	DBConn             sqlx.SqlConn
	KalshiRecordsModel model.KalshiRecordsModel
	Archive            *archive.Service
}

// Option customises service construction.
type Option func(*options)

type options struct {
	passphrase    kalshipkg.PassphraseFunc
	clientOptions []kalshipkg.ClientOption
}

// WithPassphrase supplies the key passphrase source, e.g. an interactive prompt.
func WithPassphrase(fn kalshipkg.PassphraseFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.passphrase = fn
		}
	}
}

// WithClientOptions appends extra client options (test servers, http clients).
func WithClientOptions(opts ...kalshipkg.ClientOption) Option {
	return func(o *options) {
		o.clientOptions = append(o.clientOptions, opts...)
	}
}

func NewServiceContext(c config.Config, opts ...Option) (*ServiceContext, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	kcfg := c.Kalshi.Value
	if kcfg == nil {
		return nil, errors.New("svc: kalshi config section is required")
	}
	client, err := kcfg.BuildClient(o.passphrase, o.clientOptions...)
	if err != nil {
		return nil, fmt.Errorf("svc: build kalshi client: %w", err)
	}

	svc := &ServiceContext{
		Config:       c,
		KalshiConfig: kcfg,
		Kalshi:       client,
	}
	if dir := c.JournalDir(); dir != "" {
		svc.Journal = journal.NewWriter(dir)
	}

	// Only inject DB models when DSN provided; fetching works without storage.
	if c.Postgres.DSN != "" {
		conn, err := openPostgres(c.Postgres)
		if err != nil {
			return nil, err
		}
		svc.DBConn = conn
		svc.KalshiRecordsModel = model.NewKalshiRecordsModel(conn)
		svc.Archive = archive.NewService(archive.Config{RecordsModel: svc.KalshiRecordsModel})
	}
	return svc, nil
}

// openPostgres opens a sized connection pool through the pgx driver. No
// connection is dialled until the first query.
func openPostgres(pg config.PostgresConf) (sqlx.SqlConn, error) {
	db, err := sql.Open("pgx", pg.DSN)
	if err != nil {
		return nil, fmt.Errorf("svc: open postgres: %w", err)
	}
	if pg.MaxOpen > 0 {
		db.SetMaxOpenConns(pg.MaxOpen)
	}
	if pg.MaxIdle > 0 {
		db.SetMaxIdleConns(pg.MaxIdle)
	}
	return sqlx.NewSqlConnFromDB(db), nil
}

// MustNewServiceContext is NewServiceContext that panics on error.
func MustNewServiceContext(c config.Config, opts ...Option) *ServiceContext {
	svc, err := NewServiceContext(c, opts...)
	if err != nil {
		panic(err)
	}
	return svc
}

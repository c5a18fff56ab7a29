package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/schemaproof/internal/db"
	"github.com/sells-group/schemaproof/internal/drift"
	"github.com/sells-group/schemaproof/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	pgCurrent = `SELECT ` + recordColumns + ` FROM drift_records WHERE source_id = $1 AND is_current`
	pgInsert  = `INSERT INTO drift_records (` + recordColumns + `) VALUES ($1, $2, $3, $4, $5, $6, true)`
	pgTouch   = `UPDATE drift_records SET last_seen = GREATEST(last_seen, $1) WHERE id = $2 AND is_current`
	pgRetire  = `UPDATE drift_records SET is_current = false WHERE id = $1 AND source_id = $2 AND is_current`
	pgHistory = `SELECT ` + recordColumns + ` FROM drift_records WHERE source_id = $1 ORDER BY first_seen DESC, is_current DESC`
)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS drift_records (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source_id      TEXT NOT NULL,
	signature_hash TEXT NOT NULL,
	components     JSONB NOT NULL,
	first_seen     TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_seen      TIMESTAMPTZ NOT NULL DEFAULT now(),
	is_current     BOOLEAN NOT NULL DEFAULT true
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_drift_records_current ON drift_records(source_id) WHERE is_current;
CREATE INDEX IF NOT EXISTS idx_drift_records_source_seen ON drift_records(source_id, first_seen DESC);
CREATE INDEX IF NOT EXISTS idx_drift_records_hash ON drift_records(signature_hash);
`

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

// Migrate creates the drift_records table and its indexes if missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Current returns the current record for sourceID, or nil if there is none.
func (s *PostgresStore) Current(ctx context.Context, sourceID string) (*model.DriftRecord, error) {
	rec, err := scanPgRecord(s.pool.QueryRow(ctx, pgCurrent, sourceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: current record for %s", sourceID)
	}
	return rec, nil
}

type pgExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Insert stores rec as the current record of its source.
func (s *PostgresStore) Insert(ctx context.Context, rec *model.DriftRecord) error {
	return insertPg(ctx, s.pool, rec)
}

func insertPg(ctx context.Context, ex pgExecer, rec *model.DriftRecord) error {
	comps, err := marshalComponents(rec.Components)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, pgInsert,
		rec.ID, rec.SourceID, rec.SignatureHash, comps, rec.FirstSeen.UTC(), rec.LastSeen.UTC(),
	)
	if isPgUniqueViolation(err) {
		return eris.Wrapf(drift.ErrCurrentExists, "postgres: insert %s", rec.SourceID)
	}
	return eris.Wrapf(err, "postgres: insert record for %s", rec.SourceID)
}

// Touch updates last_seen of the current record id.
func (s *PostgresStore) Touch(ctx context.Context, id string, seen time.Time) error {
	tag, err := s.pool.Exec(ctx, pgTouch, seen.UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "postgres: touch %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(drift.ErrStale, "record %s", id)
	}
	return nil
}

// Supersede flips prevID to non-current and inserts next in one transaction.
func (s *PostgresStore) Supersede(ctx context.Context, prevID string, next *model.DriftRecord) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, pgRetire, prevID, next.SourceID)
		if err != nil {
			return eris.Wrapf(err, "postgres: retire %s", prevID)
		}
		if tag.RowsAffected() == 0 {
			return eris.Wrapf(drift.ErrStale, "record %s", prevID)
		}
		return insertPg(ctx, tx, next)
	})
}

// History lists the records of sourceID, newest first.
func (s *PostgresStore) History(ctx context.Context, sourceID string) ([]model.DriftRecord, error) {
	rows, err := s.pool.Query(ctx, pgHistory, sourceID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: history for %s", sourceID)
	}
	defer rows.Close()

	out := []model.DriftRecord{}
	for rows.Next() {
		rec, err := scanPgRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate history")
}

// Import bulk-loads records, for example a history exported from SQLite.
// Current flags are copied as-is, so the import fails if a source would end
// up with two current records.
func (s *PostgresStore) Import(ctx context.Context, recs []model.DriftRecord) (int64, error) {
	rows := make([][]any, len(recs))
	for i, r := range recs {
		comps, err := marshalComponents(r.Components)
		if err != nil {
			return 0, err
		}
		rows[i] = []any{r.ID, r.SourceID, r.SignatureHash, comps, r.FirstSeen.UTC(), r.LastSeen.UTC(), r.IsCurrent}
	}
	return db.CopyFrom(ctx, s.pool, "drift_records",
		[]string{"id", "source_id", "signature_hash", "components", "first_seen", "last_seen", "is_current"}, rows)
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func scanPgRecord(row pgx.Row) (*model.DriftRecord, error) {
	var rec model.DriftRecord
	var comps []byte
	if err := row.Scan(&rec.ID, &rec.SourceID, &rec.SignatureHash, &comps, &rec.FirstSeen, &rec.LastSeen, &rec.IsCurrent); err != nil {
		return nil, err
	}
	if err := unmarshalComponents(comps, &rec.Components); err != nil {
		return nil, err
	}
	return &rec, nil
}

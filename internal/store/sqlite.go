package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/schemaproof/internal/drift"
	"github.com/sells-group/schemaproof/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One writer at a time; also keeps a :memory: database alive between calls.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS drift_records (
	id             TEXT PRIMARY KEY,
	source_id      TEXT NOT NULL,
	signature_hash TEXT NOT NULL,
	components     TEXT NOT NULL,
	first_seen     DATETIME NOT NULL,
	last_seen      DATETIME NOT NULL,
	is_current     INTEGER NOT NULL DEFAULT 1
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_drift_records_current ON drift_records(source_id) WHERE is_current = 1;
CREATE INDEX IF NOT EXISTS idx_drift_records_source ON drift_records(source_id);
CREATE INDEX IF NOT EXISTS idx_drift_records_hash ON drift_records(signature_hash);
`

// Migrate creates the drift_records table and its indexes if missing.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Current returns the current record for sourceID, or nil if there is none.
func (s *SQLiteStore) Current(ctx context.Context, sourceID string) (*model.DriftRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM drift_records WHERE source_id = ? AND is_current = 1`,
		sourceID,
	)
	rec, err := scanRecord(row)
	if eris.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: current record for %s", sourceID)
	}
	return rec, nil
}

// Insert stores rec as the current record of its source.
func (s *SQLiteStore) Insert(ctx context.Context, rec *model.DriftRecord) error {
	return s.insert(ctx, s.db, rec)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) insert(ctx context.Context, ex execer, rec *model.DriftRecord) error {
	comps, err := marshalComponents(rec.Components)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx,
		`INSERT INTO drift_records (`+recordColumns+`) VALUES (?, ?, ?, ?, ?, ?, 1)`,
		rec.ID, rec.SourceID, rec.SignatureHash, string(comps), rec.FirstSeen.UTC(), rec.LastSeen.UTC(),
	)
	if isUniqueViolation(err) {
		return eris.Wrapf(drift.ErrCurrentExists, "sqlite: insert %s", rec.SourceID)
	}
	return eris.Wrapf(err, "sqlite: insert record for %s", rec.SourceID)
}

// Touch updates last_seen of the current record id.
func (s *SQLiteStore) Touch(ctx context.Context, id string, seen time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE drift_records SET last_seen = ? WHERE id = ? AND is_current = 1`,
		seen.UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: touch %s", id)
	}
	return checkRowsAffected(res, id)
}

// Supersede flips prevID to non-current and inserts next in one transaction.
func (s *SQLiteStore) Supersede(ctx context.Context, prevID string, next *model.DriftRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin supersede")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE drift_records SET is_current = 0 WHERE id = ? AND source_id = ? AND is_current = 1`,
		prevID, next.SourceID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: retire %s", prevID)
	}
	if err := checkRowsAffected(res, prevID); err != nil {
		return err
	}
	if err := s.insert(ctx, tx, next); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit supersede")
}

// History lists the records of sourceID, newest first.
func (s *SQLiteStore) History(ctx context.Context, sourceID string) ([]model.DriftRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM drift_records WHERE source_id = ? ORDER BY rowid DESC`,
		sourceID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: history for %s", sourceID)
	}
	return collect(rows)
}

// Records returns every stored record in insertion order.
func (s *SQLiteStore) Records(ctx context.Context) ([]model.DriftRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM drift_records ORDER BY rowid`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	return collect(rows)
}

// helpers

func collect(rows *sql.Rows) ([]model.DriftRecord, error) {
	defer rows.Close() //nolint:errcheck

	out := []model.DriftRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate records")
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(drift.ErrStale, "record %s", id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (*model.DriftRecord, error) {
	var rec model.DriftRecord
	var comps string
	var current int

	err := row.Scan(&rec.ID, &rec.SourceID, &rec.SignatureHash, &comps, &rec.FirstSeen, &rec.LastSeen, &current)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(err, "sqlite: record not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan record")
	}
	if err := unmarshalComponents([]byte(comps), &rec.Components); err != nil {
		return nil, err
	}
	rec.IsCurrent = current == 1
	return &rec, nil
}

//go:build sqlite

package store

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/inovacc/trafficr/internal/model"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS traffic_records (
	repository TEXT    NOT NULL,
	date       TEXT    NOT NULL,
	clones     INTEGER NOT NULL,
	uniques    INTEGER NOT NULL,
	synced     INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (repository, date)
);`

// SQLiteStore keeps all repositories in a single SQLite database under the
// storage root. Durability comes from SQLite's WAL journal; every mutation
// commits before the call returns.
type SQLiteStore struct {
	db *sql.DB
}

// New opens (and when needed bootstraps) the SQLite store under the given
// storage root.
func New(root string) (Store, error) {
	if err := ensureRoot(root); err != nil {
		return nil, err
	}

	// Single writer: the reconciliation loop accesses the store strictly
	// sequentially and SQLite does not handle multiple writers well.
	db, err := sql.Open("sqlite", sqlitePath(root)+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, &PersistenceError{Op: "init", Err: err}
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()

		return nil, &PersistenceError{Op: "init", Err: err}
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Ping() error {
	if err := s.db.Ping(); err != nil {
		return &PersistenceError{Op: "ping", Err: err}
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Load(repository string) ([]model.TrafficRecord, error) {
	return s.query(repository, false)
}

func (s *SQLiteStore) Pending(repository string) ([]model.TrafficRecord, error) {
	return s.query(repository, true)
}

func (s *SQLiteStore) query(repository string, pendingOnly bool) ([]model.TrafficRecord, error) {
	q := `SELECT date, clones, uniques, synced FROM traffic_records WHERE repository = ?`
	if pendingOnly {
		q += ` AND synced = 0`
	}
	q += ` ORDER BY date ASC`

	rows, err := s.db.Query(q, repository)
	if err != nil {
		return nil, &PersistenceError{Repository: repository, Op: "read", Err: err}
	}
	defer func() { _ = rows.Close() }()

	var out []model.TrafficRecord

	for rows.Next() {
		var (
			rec    model.TrafficRecord
			rawDay string
			synced int
		)

		if err := rows.Scan(&rawDay, &rec.Clones, &rec.Uniques, &synced); err != nil {
			return nil, &PersistenceError{Repository: repository, Op: "read", Err: err}
		}

		date, err := time.ParseInLocation(model.DayFormat, rawDay, time.UTC)
		if err != nil {
			return nil, &PersistenceError{Repository: repository, Op: "decode", Err: err}
		}

		rec.Repository = repository
		rec.Date = date
		rec.Synced = synced != 0
		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Repository: repository, Op: "read", Err: err}
	}

	return out, nil
}

func (s *SQLiteStore) Merge(repository string, records []model.TrafficRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return &PersistenceError{Repository: repository, Op: "merge", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	for _, incoming := range records {
		key := day(incoming.Date).Format(model.DayFormat)

		var clones, uniques int

		err := tx.QueryRow(
			`SELECT clones, uniques FROM traffic_records WHERE repository = ? AND date = ?`,
			repository, key,
		).Scan(&clones, &uniques)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			if _, err := tx.Exec(
				`INSERT INTO traffic_records (repository, date, clones, uniques, synced) VALUES (?, ?, ?, ?, 0)`,
				repository, key, incoming.Clones, incoming.Uniques,
			); err != nil {
				return &PersistenceError{Repository: repository, Op: "merge", Err: err}
			}
		case err != nil:
			return &PersistenceError{Repository: repository, Op: "merge", Err: err}
		case clones == incoming.Clones && uniques == incoming.Uniques:
			// Unchanged counts keep their sync state.
		default:
			if _, err := tx.Exec(
				`UPDATE traffic_records SET clones = ?, uniques = ?, synced = 0 WHERE repository = ? AND date = ?`,
				incoming.Clones, incoming.Uniques, repository, key,
			); err != nil {
				return &PersistenceError{Repository: repository, Op: "merge", Err: err}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return &PersistenceError{Repository: repository, Op: "merge", Err: err}
	}

	return nil
}

func (s *SQLiteStore) MarkSynced(repository string, date time.Time) error {
	// A missing key is a no-op by construction: UPDATE matches zero rows.
	if _, err := s.db.Exec(
		`UPDATE traffic_records SET synced = 1 WHERE repository = ? AND date = ?`,
		repository, day(date).Format(model.DayFormat),
	); err != nil {
		return &PersistenceError{Repository: repository, Op: "mark_synced", Err: err}
	}

	return nil
}

func ensureRoot(root string) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return &PersistenceError{Op: "init", Err: err}
	}

	return nil
}

func sqlitePath(root string) string {
	return filepath.Join(root, "traffic.db")
}

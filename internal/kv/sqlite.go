package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLite stores the keyspace in a single table. BLOB keys compare with
// memcmp, which gives the same ordering as Key.Bytes.
type SQLite struct {
	db *sqlx.DB
}

var _ Store = (*SQLite)(nil)

type row struct {
	Key     []byte `db:"key"`
	Value   []byte `db:"value"`
	Version int64  `db:"version"`
}

// OpenSQLite opens (creating if needed) the database file at path.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// one connection serializes commits, so a check and its writes cannot
	// interleave with another commit
	db.SetMaxOpenConns(1)
	return NewSQLite(db)
}

// NewSQLite wraps an already opened handle and applies the schema.
func NewSQLite(db *sqlx.DB) (*SQLite, error) {
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key BLOB PRIMARY KEY,
			value BLOB NOT NULL,
			version INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS kv_meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			version INTEGER NOT NULL
		)`,
		`INSERT OR IGNORE INTO kv_meta (id, version) VALUES (1, 0)`,
	}
	for _, m := range stmts {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, key Key) (*Entry, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	var r row
	err := s.db.GetContext(ctx, &r, `SELECT key, value, version FROM kv WHERE key = ?`, key.Bytes())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Entry{Key: key, Value: r.Value, Version: strconv.FormatInt(r.Version, 10)}, nil
}

// Scan loads the whole range before yielding. With a single connection,
// holding rows open would block any write made while ranging.
func (s *SQLite) Scan(ctx context.Context, prefix Key) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		var rows []row
		var err error
		if err := prefix.Validate(); err != nil {
			yield(Entry{}, err)
			return
		}
		start, end := prefixRange(prefix)
		if start == nil {
			err = s.db.SelectContext(ctx, &rows, `SELECT key, value, version FROM kv ORDER BY key`)
		} else {
			err = s.db.SelectContext(ctx, &rows,
				`SELECT key, value, version FROM kv WHERE key >= ? AND key < ? ORDER BY key`, start, end)
		}
		if err != nil {
			yield(Entry{}, err)
			return
		}
		for _, r := range rows {
			e := Entry{Key: DecodeKey(r.Key), Value: r.Value, Version: strconv.FormatInt(r.Version, 10)}
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (s *SQLite) Set(ctx context.Context, key Key, value []byte) error {
	return s.Commit(ctx, NewAtomic().Set(key, value))
}

func (s *SQLite) Delete(ctx context.Context, key Key) error {
	return s.Commit(ctx, NewAtomic().Delete(key))
}

func (s *SQLite) Commit(ctx context.Context, op *Atomic) error {
	if err := op.validate(); err != nil {
		return err
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, c := range op.Checks {
		var v int64
		err := tx.GetContext(ctx, &v, `SELECT version FROM kv WHERE key = ?`, c.Key.Bytes())
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if c.Version != "" {
				return ErrCheckFailed
			}
		case err != nil:
			return err
		default:
			if c.Version == "" || strconv.FormatInt(v, 10) != c.Version {
				return ErrCheckFailed
			}
		}
	}

	var version int64
	if err := tx.GetContext(ctx, &version,
		`UPDATE kv_meta SET version = version + 1 WHERE id = 1 RETURNING version`); err != nil {
		return err
	}

	for _, m := range op.Mutations {
		if m.Delete {
			if _, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, m.Key.Bytes()); err != nil {
				return err
			}
			continue
		}
		if m.Value == nil {
			m.Value = []byte{}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO kv (key, value, version) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, version = excluded.version`,
			m.Key.Bytes(), m.Value, version)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLite) Close() error { return s.db.Close() }

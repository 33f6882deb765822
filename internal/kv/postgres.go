package kv

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgSchema = `
CREATE SEQUENCE IF NOT EXISTS kv_version_seq;
CREATE TABLE IF NOT EXISTS kv (
	key     BYTEA PRIMARY KEY,
	value   BYTEA NOT NULL,
	version BIGINT NOT NULL
);`

// Postgres stores the keyspace in one table. BYTEA compares bytewise, matching
// Key.Bytes ordering.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

// OpenPostgres connects, pings and applies the schema.
func OpenPostgres(ctx context.Context, url string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Get(ctx context.Context, key Key) (*Entry, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	var value []byte
	var version int64
	err := p.pool.QueryRow(ctx, `SELECT value, version FROM kv WHERE key = $1`, key.Bytes()).
		Scan(&value, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Entry{Key: key, Value: value, Version: strconv.FormatInt(version, 10)}, nil
}

func (p *Postgres) Scan(ctx context.Context, prefix Key) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		var rows pgx.Rows
		var err error
		if err := prefix.Validate(); err != nil {
			yield(Entry{}, err)
			return
		}
		start, end := prefixRange(prefix)
		if start == nil {
			rows, err = p.pool.Query(ctx, `SELECT key, value, version FROM kv ORDER BY key`)
		} else {
			rows, err = p.pool.Query(ctx,
				`SELECT key, value, version FROM kv WHERE key >= $1 AND key < $2 ORDER BY key`, start, end)
		}
		if err != nil {
			yield(Entry{}, err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			var k, v []byte
			var version int64
			if err := rows.Scan(&k, &v, &version); err != nil {
				yield(Entry{}, err)
				return
			}
			if !yield(Entry{Key: DecodeKey(k), Value: v, Version: strconv.FormatInt(version, 10)}, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(Entry{}, err)
		}
	}
}

func (p *Postgres) Set(ctx context.Context, key Key, value []byte) error {
	return p.Commit(ctx, NewAtomic().Set(key, value))
}

func (p *Postgres) Delete(ctx context.Context, key Key) error {
	return p.Commit(ctx, NewAtomic().Delete(key))
}

func (p *Postgres) Commit(ctx context.Context, op *Atomic) error {
	if err := op.validate(); err != nil {
		return err
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// FOR UPDATE holds existing rows until commit. Absent keys have no row to
	// lock, so sets guarded by an absent check use a plain INSERT and let the
	// primary key reject the loser of a race.
	for _, c := range op.Checks {
		var v int64
		err := tx.QueryRow(ctx, `SELECT version FROM kv WHERE key = $1 FOR UPDATE`, c.Key.Bytes()).Scan(&v)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
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
	if err := tx.QueryRow(ctx, `SELECT nextval('kv_version_seq')`).Scan(&version); err != nil {
		return err
	}

	absent := op.mustBeAbsent()
	for _, m := range op.Mutations {
		k := m.Key.Bytes()
		if m.Value == nil {
			m.Value = []byte{}
		}
		switch {
		case m.Delete:
			_, err = tx.Exec(ctx, `DELETE FROM kv WHERE key = $1`, k)
		case absent[string(k)]:
			_, err = tx.Exec(ctx, `INSERT INTO kv (key, value, version) VALUES ($1, $2, $3)`, k, m.Value, version)
		default:
			_, err = tx.Exec(ctx,
				`INSERT INTO kv (key, value, version) VALUES ($1, $2, $3)
				 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, version = EXCLUDED.version`,
				k, m.Value, version)
		}
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrCheckFailed
			}
			return err
		}
	}

	return tx.Commit(ctx)
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

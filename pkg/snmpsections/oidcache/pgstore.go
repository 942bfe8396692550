package oidcache

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS snmp_oid_cache (
	host_id TEXT    NOT NULL,
	context TEXT    NOT NULL DEFAULT '',
	oid     TEXT    NOT NULL,
	value   TEXT    NOT NULL DEFAULT '',
	found   BOOLEAN NOT NULL,
	PRIMARY KEY (host_id, context, oid)
)`

// PostgresStore persists cache contents in the snmp_oid_cache table so that
// several scanner instances share the last-seen values.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and creates the table if missing.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("oidcache: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("oidcache: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("oidcache: create schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Load implements Store.
func (s *PostgresStore) Load(ctx context.Context, id string) (map[Key]Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT context, oid, value, found FROM snmp_oid_cache WHERE host_id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[Key]Entry)
	for rows.Next() {
		var (
			k Key
			e Entry
		)
		if err := rows.Scan(&k.Context, &k.OID, &e.Value, &e.Found); err != nil {
			return nil, err
		}
		out[k] = e
	}
	return out, rows.Err()
}

// Save implements Store. The previous contents for id are replaced in one
// transaction.
func (s *PostgresStore) Save(ctx context.Context, id string, entries map[Key]Entry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	// Rollback after Commit is a no-op returning pgx.ErrTxClosed.
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM snmp_oid_cache WHERE host_id = $1`, id); err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	rows := make([][]any, 0, len(entries))
	for k, e := range entries {
		rows = append(rows, []any{id, k.Context, k.OID, e.Value, e.Found})
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"snmp_oid_cache"},
		[]string{"host_id", "context", "oid", "value", "found"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	return tx.Commit(ctx)
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

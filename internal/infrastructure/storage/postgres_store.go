package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/kunju1991/NSExchangefilings/internal/domain"
	"github.com/kunju1991/NSExchangefilings/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    user_id    TEXT PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS watchlists (
    user_id  TEXT NOT NULL REFERENCES users(user_id),
    symbol   TEXT NOT NULL,
    added_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, symbol)
);

CREATE TABLE IF NOT EXISTS seen_filings (
    user_id      TEXT NOT NULL,
    symbol       TEXT NOT NULL,
    filing_id    TEXT NOT NULL,
    delivered_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, symbol, filing_id)
);

CREATE TABLE IF NOT EXISTS fetched_pairs (
    user_id    TEXT NOT NULL,
    symbol     TEXT NOT NULL,
    first_seen TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, symbol)
);
`

// PostgresStore persists watchlists and seen-state in Postgres. Commit
// idempotency comes from ON CONFLICT DO NOTHING upserts, which also makes
// interleaved commits for the same user order-insensitive.
type PostgresStore struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var (
	_ ports.WatchlistStore = (*PostgresStore)(nil)
	_ ports.SeenStore      = (*PostgresStore)(nil)
)

// NewPostgresStore wires a sql.DB implementation.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Migrate creates the tables when absent.
func (r *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: migrate: %v", domain.ErrStorageFailure, err)
	}
	return nil
}

// Users lists every known user id.
func (r *PostgresStore) Users(ctx context.Context) ([]string, error) {
	query, args, err := r.sb.Select("user_id").From("users").OrderBy("user_id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: build users query: %v", domain.ErrStorageFailure, err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query users: %v", domain.ErrStorageFailure, err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan user: %v", domain.ErrStorageFailure, err)
		}
		users = append(users, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate users: %v", domain.ErrStorageFailure, err)
	}
	return users, nil
}

// EnsureUser creates the user row and seeds the watchlist on first contact.
func (r *PostgresStore) EnsureUser(ctx context.Context, userID string, seed []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", domain.ErrStorageFailure, err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := r.sb.Insert("users").Columns("user_id").Values(userID).
		Suffix("ON CONFLICT (user_id) DO NOTHING").ToSql()
	if err != nil {
		return fmt.Errorf("%w: build ensure user: %v", domain.ErrStorageFailure, err)
	}
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: ensure user: %v", domain.ErrStorageFailure, err)
	}

	created, err := result.RowsAffected()
	if err == nil && created > 0 {
		for _, symbol := range seed {
			if err := r.insertSymbol(ctx, tx, userID, symbol); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit ensure user: %v", domain.ErrStorageFailure, err)
	}
	return nil
}

// Symbols returns the user's tracked symbols.
func (r *PostgresStore) Symbols(ctx context.Context, userID string) ([]string, error) {
	query, args, err := r.sb.Select("symbol").From("watchlists").
		Where(sq.Eq{"user_id": userID}).OrderBy("added_at", "symbol").ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: build symbols query: %v", domain.ErrStorageFailure, err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query symbols: %v", domain.ErrStorageFailure, err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("%w: scan symbol: %v", domain.ErrStorageFailure, err)
		}
		symbols = append(symbols, symbol)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate symbols: %v", domain.ErrStorageFailure, err)
	}
	return symbols, nil
}

// AddSymbol upserts the symbol; the upsert's affected-row count reports
// whether it was new.
func (r *PostgresStore) AddSymbol(ctx context.Context, userID, symbol string) (bool, error) {
	if err := r.EnsureUser(ctx, userID, nil); err != nil {
		return false, err
	}

	query, args, err := r.sb.Insert("watchlists").Columns("user_id", "symbol").
		Values(userID, symbol).
		Suffix("ON CONFLICT (user_id, symbol) DO NOTHING").ToSql()
	if err != nil {
		return false, fmt.Errorf("%w: build add symbol: %v", domain.ErrStorageFailure, err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%w: add symbol: %v", domain.ErrStorageFailure, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: add symbol result: %v", domain.ErrStorageFailure, err)
	}
	return affected > 0, nil
}

// RemoveSymbol deletes the symbol and its seen-state; absent symbols are a
// no-op.
func (r *PostgresStore) RemoveSymbol(ctx context.Context, userID, symbol string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", domain.ErrStorageFailure, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"watchlists", "seen_filings", "fetched_pairs"} {
		query, args, err := r.sb.Delete(table).
			Where(sq.Eq{"user_id": userID, "symbol": symbol}).ToSql()
		if err != nil {
			return fmt.Errorf("%w: build remove symbol: %v", domain.ErrStorageFailure, err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("%w: remove symbol from %s: %v", domain.ErrStorageFailure, table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit remove symbol: %v", domain.ErrStorageFailure, err)
	}
	return nil
}

// FirstContact reports whether the pair has never been committed.
func (r *PostgresStore) FirstContact(ctx context.Context, userID, symbol string) (bool, error) {
	query, args, err := r.sb.Select("1").From("fetched_pairs").
		Where(sq.Eq{"user_id": userID, "symbol": symbol}).Limit(1).ToSql()
	if err != nil {
		return false, fmt.Errorf("%w: build first contact query: %v", domain.ErrStorageFailure, err)
	}

	var one int
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return true, nil
	case err != nil:
		return false, fmt.Errorf("%w: first contact: %v", domain.ErrStorageFailure, err)
	default:
		return false, nil
	}
}

// Seen returns which of the given ids are already recorded for the pair.
func (r *PostgresStore) Seen(ctx context.Context, userID, symbol string, ids []string) (map[string]bool, error) {
	result := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query, args, err := r.sb.Select("filing_id").From("seen_filings").
		Where(sq.Eq{"user_id": userID, "symbol": symbol}).
		Where("filing_id = ANY(?)", pq.StringArray(ids)).ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: build seen query: %v", domain.ErrStorageFailure, err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query seen: %v", domain.ErrStorageFailure, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan seen id: %v", domain.ErrStorageFailure, err)
		}
		result[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate seen: %v", domain.ErrStorageFailure, err)
	}
	return result, nil
}

// CommitSeen records the ids and the fetched-pair marker in one
// transaction.
func (r *PostgresStore) CommitSeen(ctx context.Context, userID, symbol string, ids []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", domain.ErrStorageFailure, err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := r.sb.Insert("fetched_pairs").Columns("user_id", "symbol").
		Values(userID, symbol).
		Suffix("ON CONFLICT (user_id, symbol) DO NOTHING").ToSql()
	if err != nil {
		return fmt.Errorf("%w: build pair marker: %v", domain.ErrStorageFailure, err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: record pair marker: %v", domain.ErrStorageFailure, err)
	}

	for _, id := range ids {
		query, args, err := r.sb.Insert("seen_filings").
			Columns("user_id", "symbol", "filing_id").
			Values(userID, symbol, id).
			Suffix("ON CONFLICT (user_id, symbol, filing_id) DO NOTHING").ToSql()
		if err != nil {
			return fmt.Errorf("%w: build commit seen: %v", domain.ErrStorageFailure, err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("%w: commit seen %s: %v", domain.ErrStorageFailure, id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit seen tx: %v", domain.ErrStorageFailure, err)
	}
	return nil
}

func (r *PostgresStore) insertSymbol(ctx context.Context, tx *sql.Tx, userID, symbol string) error {
	query, args, err := r.sb.Insert("watchlists").Columns("user_id", "symbol").
		Values(userID, symbol).
		Suffix("ON CONFLICT (user_id, symbol) DO NOTHING").ToSql()
	if err != nil {
		return fmt.Errorf("%w: build seed symbol: %v", domain.ErrStorageFailure, err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: seed symbol %s: %v", domain.ErrStorageFailure, symbol, err)
	}
	return nil
}

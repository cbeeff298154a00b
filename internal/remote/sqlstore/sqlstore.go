// Package sqlstore is a SQLite-backed remote store. It stands in for a hosted
// Postgres-style table when the cloud backend is self-hosted.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"subledger/internal/remote"
	"subledger/internal/storage"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const columns = `id, user_id, service_id, name_custom, price, currency, cycle, category,
	is_active, custom_icon, renewal_date, memo, sort_order, updated_at`

type Store struct {
	db *sql.DB
}

var _ remote.Store = (*Store)(nil)

func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if err := storage.Migrate(dbPath, migrationsFS, "migrations", "remote_schema_migrations"); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertRows writes all rows in one transaction. A row id owned by another
// user is left untouched.
func (s *Store) UpsertRows(ctx context.Context, userID string, rows []remote.Row) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO user_subscriptions (`+columns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			service_id = excluded.service_id,
			name_custom = excluded.name_custom,
			price = excluded.price,
			currency = excluded.currency,
			cycle = excluded.cycle,
			category = excluded.category,
			is_active = excluded.is_active,
			custom_icon = excluded.custom_icon,
			renewal_date = excluded.renewal_date,
			memo = excluded.memo,
			sort_order = excluded.sort_order,
			updated_at = excluded.updated_at
		WHERE user_subscriptions.user_id = excluded.user_id`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		updated := r.UpdatedAt
		if updated.IsZero() {
			updated = time.Now()
		}
		_, err := stmt.ExecContext(ctx,
			r.ID, userID, r.ServiceID, r.NameCustom, r.Price.String(), r.Currency, r.Cycle, r.Category,
			r.IsActive, r.CustomIcon, r.RenewalDate, r.Memo, r.SortOrder, updated.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("upsert row %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	slog.DebugContext(ctx, "Remote rows upserted", "user_id", userID, "count", len(rows))
	return nil
}

func (s *Store) ListRows(ctx context.Context, userID string) ([]remote.Row, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+columns+` FROM user_subscriptions WHERE user_id = ? ORDER BY sort_order, rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("list rows: %w", err)
	}
	defer rows.Close()

	out := []remote.Row{}
	for rows.Next() {
		var (
			r       remote.Row
			price   string
			updated string
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.ServiceID, &r.NameCustom, &price, &r.Currency, &r.Cycle,
			&r.Category, &r.IsActive, &r.CustomIcon, &r.RenewalDate, &r.Memo, &r.SortOrder, &updated); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if r.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse price of %s: %w", r.ID, err)
		}
		if t, err := time.Parse(time.RFC3339Nano, updated); err == nil {
			r.UpdatedAt = t
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

func (s *Store) ListIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM user_subscriptions WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("list ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) DeleteRows(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM user_subscriptions WHERE user_id = ? AND id IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("delete rows: %w", err)
	}
	n, _ := res.RowsAffected()
	slog.DebugContext(ctx, "Remote rows deleted", "user_id", userID, "requested", len(ids), "deleted", n)
	return nil
}

func (s *Store) DeleteAllRows(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM user_subscriptions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete all rows: %w", err)
	}
	return nil
}

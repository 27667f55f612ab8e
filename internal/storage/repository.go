package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"kakeibo/internal/core"
	"kakeibo/internal/log"

	_ "modernc.org/sqlite"
)

// DefaultCategories seeds the category set on first run and after a
// full reset.
var DefaultCategories = []string{"食費", "交通", "光熱費", "その他"}

// SQLiteRepository is the authoritative local store: records,
// categories, the active filter, and the sync configuration. Every
// mutation commits here before any remote mirroring is attempted.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{db: db}

	if err := repo.seed(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed defaults: %w", err)
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// seed installs first-run defaults where nothing is persisted yet:
// the starter category set, an all-matching filter, and a disabled
// sync configuration.
func (r *SQLiteRepository) seed(ctx context.Context) error {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&count); err != nil {
		return fmt.Errorf("count categories: %w", err)
	}
	if count == 0 {
		for _, name := range DefaultCategories {
			if _, err := r.db.ExecContext(ctx, `INSERT INTO categories (name) VALUES (?)`, name); err != nil {
				return fmt.Errorf("seed category %q: %w", name, err)
			}
		}
		slog.InfoContext(ctx, "Seeded default categories",
			log.FieldComponent, log.ComponentStorage,
			log.FieldCount, len(DefaultCategories))
	}

	if _, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO filter_state (id, category, payment_method) VALUES (1, ?, ?)`,
		core.FilterAll, core.FilterAll); err != nil {
		return fmt.Errorf("seed filter state: %w", err)
	}

	if _, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sync_config (id, endpoint, enabled) VALUES (1, '', 0)`); err != nil {
		return fmt.Errorf("seed sync config: %w", err)
	}

	return nil
}

// AddRecord persists a new record at the end of the stored sequence.
// The id must already be assigned by the caller.
func (r *SQLiteRepository) AddRecord(ctx context.Context, rec core.Record) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO records (id, date, category, payment_method, amount, memo, seq)
		 VALUES (?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM records))`,
		rec.ID, rec.Date, rec.Category, rec.PaymentMethod, rec.Amount, rec.Memo)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	slog.InfoContext(ctx, "Record saved",
		log.FieldComponent, log.ComponentStorage,
		log.FieldRecordID, rec.ID,
		"date", rec.Date,
		"category", rec.Category,
		"amount", rec.Amount)

	return nil
}

// UpdateRecord replaces every mutable field of the record with the
// matching id. Returns core.ErrNotFound if no such record exists.
func (r *SQLiteRepository) UpdateRecord(ctx context.Context, rec core.Record) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE records SET date = ?, category = ?, payment_method = ?, amount = ?, memo = ? WHERE id = ?`,
		rec.Date, rec.Category, rec.PaymentMethod, rec.Amount, rec.Memo, rec.ID)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update record rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update record %s: %w", rec.ID, core.ErrNotFound)
	}
	return nil
}

// DeleteRecord removes exactly one record by id, or reports
// core.ErrNotFound.
func (r *SQLiteRepository) DeleteRecord(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete record rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete record %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// GetRecord fetches a single record by id.
func (r *SQLiteRepository) GetRecord(ctx context.Context, id string) (core.Record, error) {
	var rec core.Record
	err := r.db.QueryRowContext(ctx,
		`SELECT id, date, category, payment_method, amount, memo FROM records WHERE id = ?`, id).
		Scan(&rec.ID, &rec.Date, &rec.Category, &rec.PaymentMethod, &rec.Amount, &rec.Memo)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Record{}, fmt.Errorf("get record %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Record{}, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// ReplaceAllRecords discards the current sequence and installs the
// given one verbatim, in a single transaction. An empty input clears
// the store.
func (r *SQLiteRepository) ReplaceAllRecords(ctx context.Context, records []core.Record) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace-all: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	for i, rec := range records {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO records (id, date, category, payment_method, amount, memo, seq)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.Date, rec.Category, rec.PaymentMethod, rec.Amount, rec.Memo, i+1); err != nil {
			return fmt.Errorf("install record %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace-all: %w", err)
	}

	slog.InfoContext(ctx, "Replaced record store",
		log.FieldComponent, log.ComponentStorage,
		log.FieldCount, len(records))
	return nil
}

// ListRecords returns the records matching the filter, newest first
// (date descending, id descending for equal dates). An empty or
// ALL-valued criterion is skipped.
func (r *SQLiteRepository) ListRecords(ctx context.Context, f core.Filter) ([]core.Record, error) {
	var (
		where []string
		args  []any
	)
	if f.From != "" {
		where = append(where, "date >= ?")
		args = append(args, f.From)
	}
	if f.To != "" {
		where = append(where, "date <= ?")
		args = append(args, f.To)
	}
	if f.Category != "" && f.Category != core.FilterAll {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if f.PaymentMethod != "" && f.PaymentMethod != core.FilterAll {
		where = append(where, "payment_method = ?")
		args = append(args, f.PaymentMethod)
	}

	query := `SELECT id, date, category, payment_method, amount, memo FROM records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date DESC, id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []core.Record
	for rows.Next() {
		var rec core.Record
		if err := rows.Scan(&rec.ID, &rec.Date, &rec.Category, &rec.PaymentMethod, &rec.Amount, &rec.Memo); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// ListAllRecords returns every record regardless of the active filter.
func (r *SQLiteRepository) ListAllRecords(ctx context.Context) ([]core.Record, error) {
	return r.ListRecords(ctx, core.Filter{})
}

// CountRecordsWithCategory reports how many records reference the
// given category name.
func (r *SQLiteRepository) CountRecordsWithCategory(ctx context.Context, name string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE category = ?`, name).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count records with category: %w", err)
	}
	return count, nil
}

// AddCategory appends a category name, preserving insertion order.
// Names are trimmed; empty names and exact duplicates are rejected.
func (r *SQLiteRepository) AddCategory(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.ErrEmptyCategoryName
	}

	var exists int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories WHERE name = ?`, name).Scan(&exists); err != nil {
		return fmt.Errorf("check category: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("category %q: %w", name, core.ErrDuplicateCategory)
	}

	if _, err := r.db.ExecContext(ctx, `INSERT INTO categories (name) VALUES (?)`, name); err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

// RemoveCategory deletes the category name. Whether an in-use name may
// be removed is the caller's decision; the store does not check
// references.
func (r *SQLiteRepository) RemoveCategory(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete category rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete category %q: %w", name, core.ErrNotFound)
	}
	return nil
}

// ListCategories returns category names in insertion order.
func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM categories ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}

// GetFilter loads the single persisted filter.
func (r *SQLiteRepository) GetFilter(ctx context.Context) (core.Filter, error) {
	var f core.Filter
	err := r.db.QueryRowContext(ctx,
		`SELECT date_from, date_to, category, payment_method FROM filter_state WHERE id = 1`).
		Scan(&f.From, &f.To, &f.Category, &f.PaymentMethod)
	if err != nil {
		return core.Filter{}, fmt.Errorf("get filter state: %w", err)
	}
	return f, nil
}

// SaveFilter persists the filter as the single active one.
func (r *SQLiteRepository) SaveFilter(ctx context.Context, f core.Filter) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE filter_state SET date_from = ?, date_to = ?, category = ?, payment_method = ? WHERE id = 1`,
		f.From, f.To, f.Category, f.PaymentMethod)
	if err != nil {
		return fmt.Errorf("save filter state: %w", err)
	}
	return nil
}

// SyncConfig is the persisted remote-mirroring configuration. An empty
// endpoint or a false enabled flag keeps every bridge operation a
// no-op.
type SyncConfig struct {
	Endpoint string `json:"endpoint"`
	Enabled  bool   `json:"enabled"`
}

// GetSyncConfig loads the persisted sync configuration.
func (r *SQLiteRepository) GetSyncConfig(ctx context.Context) (SyncConfig, error) {
	var (
		cfg     SyncConfig
		enabled int
	)
	err := r.db.QueryRowContext(ctx, `SELECT endpoint, enabled FROM sync_config WHERE id = 1`).
		Scan(&cfg.Endpoint, &enabled)
	if err != nil {
		return SyncConfig{}, fmt.Errorf("get sync config: %w", err)
	}
	cfg.Enabled = enabled != 0
	return cfg, nil
}

// SaveSyncConfig persists the sync configuration.
func (r *SQLiteRepository) SaveSyncConfig(ctx context.Context, cfg SyncConfig) error {
	enabled := 0
	if cfg.Enabled {
		enabled = 1
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE sync_config SET endpoint = ?, enabled = ? WHERE id = 1`, cfg.Endpoint, enabled)
	if err != nil {
		return fmt.Errorf("save sync config: %w", err)
	}
	return nil
}

// Reset wipes all four namespaces and reinstalls first-run defaults.
func (r *SQLiteRepository) Reset(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM records`,
		`DELETE FROM categories`,
		`DELETE FROM filter_state`,
		`DELETE FROM sync_config`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("reset (%s): %w", stmt, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}

	if err := r.seed(ctx); err != nil {
		return fmt.Errorf("reseed after reset: %w", err)
	}

	slog.InfoContext(ctx, "Store reset to defaults",
		log.FieldComponent, log.ComponentStorage)
	return nil
}

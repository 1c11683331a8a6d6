package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/hana/fieldmate/internal/setting/entity"
)

// Repo is the settings repository. Queries are written with '?' and rebound
// so the same code runs on PostgreSQL and SQLite.
type Repo struct {
	db *sqlx.DB
}

// NewRepo constructs a new Repo with an existing connection.
func NewRepo(db *sqlx.DB) *Repo {
	return &Repo{db: db}
}

// EnsureTable ensures the settings table and its index exist.
// Fields:
// - id varchar(64) PRIMARY KEY
// - category varchar(32) (indexed)
// - value text
// - updated_at bigint, epoch millis
func (r *Repo) EnsureTable(ctx context.Context) error {
	const createTable = `CREATE TABLE IF NOT EXISTS settings (
		id varchar(64) PRIMARY KEY,
		category varchar(32) NOT NULL DEFAULT '',
		value text NOT NULL DEFAULT '',
		updated_at bigint NOT NULL DEFAULT 0
	)`
	if _, err := r.db.ExecContext(ctx, createTable); err != nil {
		return err
	}
	const createIndex = `CREATE INDEX IF NOT EXISTS idx_settings_category ON settings (category)`
	_, err := r.db.ExecContext(ctx, createIndex)
	return err
}

// Get returns the setting with id or sql.ErrNoRows.
func (r *Repo) Get(ctx context.Context, id string) (*entity.Setting, error) {
	var st entity.Setting
	q := r.db.Rebind(`SELECT id, category, value, updated_at FROM settings WHERE id = ?`)
	if err := r.db.GetContext(ctx, &st, q, id); err != nil {
		return nil, err
	}
	return &st, nil
}

// Put inserts or replaces a setting.
func (r *Repo) Put(ctx context.Context, st *entity.Setting) error {
	q := r.db.Rebind(`INSERT INTO settings (id, category, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET category = excluded.category, value = excluded.value, updated_at = excluded.updated_at`)
	_, err := r.db.ExecContext(ctx, q, st.ID, st.Category, st.Value, st.UpdatedAt)
	return err
}

// Delete removes a setting and reports how many rows went away.
func (r *Repo) Delete(ctx context.Context, id string) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM settings WHERE id = ?`), id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteCategory removes every setting in category.
func (r *Repo) DeleteCategory(ctx context.Context, category string) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM settings WHERE category = ?`), category)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// List returns settings in category ordered by id.
func (r *Repo) List(ctx context.Context, category string) ([]*entity.Setting, error) {
	var out []*entity.Setting
	q := r.db.Rebind(`SELECT id, category, value, updated_at FROM settings WHERE category = ? ORDER BY id`)
	if err := r.db.SelectContext(ctx, &out, q, category); err != nil {
		return nil, err
	}
	return out, nil
}

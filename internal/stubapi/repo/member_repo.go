package repo

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/hana/fieldmate/internal/stubapi/entity"
)

// MemberRepo provides data access for the members table using sqlx.
type MemberRepo struct {
	db *sqlx.DB
}

func NewMemberRepo(db *sqlx.DB) *MemberRepo { return &MemberRepo{db: db} }

// EnsureTable creates the members table if not exists (idempotent).
func (r *MemberRepo) EnsureTable(ctx context.Context) error {
	idCol := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if r.db.DriverName() == "postgres" {
		idCol = "id BIGSERIAL PRIMARY KEY"
	}
	ddl := `CREATE TABLE IF NOT EXISTS members (
  ` + idCol + `,
  name TEXT NOT NULL,
  phone_number TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  password_algo TEXT NOT NULL,
  company_id BIGINT NOT NULL DEFAULT 0,
  company_name TEXT NOT NULL DEFAULT '',
  join_company_status TEXT NOT NULL DEFAULT 'NONE',
  role TEXT NOT NULL DEFAULT 'MEMBER',
  version BIGINT NOT NULL DEFAULT 1,
  created_at BIGINT NOT NULL
)`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Create inserts a new member row. Returns new ID.
func (r *MemberRepo) Create(ctx context.Context, m *entity.Member) (int64, error) {
	q := `INSERT INTO members (name, phone_number, password_hash, password_algo, company_id, company_name, join_company_status, role, version, created_at)
		  VALUES (:name, :phone_number, :password_hash, :password_algo, :company_id, :company_name, :join_company_status, :role, :version, :created_at) RETURNING id`
	rows, err := r.db.NamedQueryContext(ctx, q, m)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&m.ID); err != nil {
			return 0, err
		}
		return m.ID, nil
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	return 0, errors.New("no id returned")
}

const memberColumns = `id, name, phone_number, password_hash, password_algo, company_id, company_name, join_company_status, role, version, created_at`

// GetByPhone returns the member registered with phone or sql.ErrNoRows.
func (r *MemberRepo) GetByPhone(ctx context.Context, phone string) (*entity.Member, error) {
	var m entity.Member
	q := r.db.Rebind(`SELECT ` + memberColumns + ` FROM members WHERE phone_number = ?`)
	if err := r.db.GetContext(ctx, &m, q, phone); err != nil {
		return nil, err
	}
	return &m, nil
}

// GetByID fetches a full member row.
func (r *MemberRepo) GetByID(ctx context.Context, id int64) (*entity.Member, error) {
	var m entity.Member
	q := r.db.Rebind(`SELECT ` + memberColumns + ` FROM members WHERE id = ?`)
	if err := r.db.GetContext(ctx, &m, q, id); err != nil {
		return nil, err
	}
	return &m, nil
}

// Delete removes a member and reports whether a row existed.
func (r *MemberRepo) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM members WHERE id = ?`), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

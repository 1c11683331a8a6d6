package repo

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// RefreshRepo stores issued refresh tokens so they can be revoked when the
// member leaves.
type RefreshRepo struct {
	db *sqlx.DB
}

func NewRefreshRepo(db *sqlx.DB) *RefreshRepo {
	return &RefreshRepo{db: db}
}

func (r *RefreshRepo) EnsureTable(ctx context.Context) error {
	const tbl = `CREATE TABLE IF NOT EXISTS refresh_sessions (
  token TEXT PRIMARY KEY,
  member_id BIGINT NOT NULL,
  expires_at BIGINT NOT NULL
)`
	if _, err := r.db.ExecContext(ctx, tbl); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_refresh_sessions_member ON refresh_sessions (member_id)`)
	return err
}

// Save records token for memberID; expiresAt is epoch millis.
func (r *RefreshRepo) Save(ctx context.Context, token string, memberID, expiresAt int64) error {
	q := r.db.Rebind(`INSERT INTO refresh_sessions (token, member_id, expires_at) VALUES (?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, q, token, memberID, expiresAt)
	return err
}

// Get returns the owner and expiry of token, or sql.ErrNoRows.
func (r *RefreshRepo) Get(ctx context.Context, token string) (memberID, expiresAt int64, err error) {
	q := r.db.Rebind(`SELECT member_id, expires_at FROM refresh_sessions WHERE token = ?`)
	row := r.db.QueryRowxContext(ctx, q, token)
	err = row.Scan(&memberID, &expiresAt)
	return memberID, expiresAt, err
}

// DeleteByMember revokes every refresh token of memberID.
func (r *RefreshRepo) DeleteByMember(ctx context.Context, memberID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM refresh_sessions WHERE member_id = ?`), memberID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

package entity

// Member is a row in the `members` table.
type Member struct {
	ID                int64  `db:"id"`
	Name              string `db:"name"`
	PhoneNumber       string `db:"phone_number"` // digits only
	PasswordHash      string `db:"password_hash"`
	PasswordAlgo      string `db:"password_algo"`
	CompanyID         int64  `db:"company_id"`
	CompanyName       string `db:"company_name"`
	JoinCompanyStatus string `db:"join_company_status"`
	Role              string `db:"role"`
	Version           int64  `db:"version"`
	CreatedAt         int64  `db:"created_at"` // epoch millis
}

// Join statuses and roles.
const (
	StatusNone    = "NONE"
	StatusPending = "PENDING"
	StatusJoined  = "JOINED"

	RoleLeader = "LEADER"
	RoleMember = "MEMBER"
)

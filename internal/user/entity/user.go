package entity

// UserInfo is the signed-in member's profile as returned by the API and
// cached locally after sign-up or sign-in.
type UserInfo struct {
	CompanyID         int64  `json:"companyId"`
	MemberID          int64  `json:"memberId"`
	CompanyName       string `json:"companyName"`
	JoinCompanyStatus string `json:"joinCompanyStatus"` // PENDING / JOINED / NONE
	Name              string `json:"name"`
	Role              string `json:"role"` // LEADER / MEMBER
}

// Tokens is the session credential pair.
type Tokens struct {
	Access  string
	Refresh string
}

package entity

// Categories group keys so a whole family can be cleared at once.
const (
	CategorySession = "session"
	CategoryProfile = "profile"
	CategoryAttempt = "attempt"
)

// Setting is one persisted key/value record.
type Setting struct {
	ID        string `db:"id" json:"id"`
	Category  string `db:"category" json:"category,omitempty"`
	Value     string `db:"value" json:"value"`
	UpdatedAt int64  `db:"updated_at" json:"updated_at"` // epoch millis
}

// NewSetting creates a new Setting.
func NewSetting(id, category, value string, updatedAt int64) *Setting {
	return &Setting{ID: id, Category: category, Value: value, UpdatedAt: updatedAt}
}

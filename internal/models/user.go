package models

import "time"

// SessionUser is the current-user record of the active session.
// It is cleared on logout together with other session-scoped rows.
type SessionUser struct {
	Username  string     `gorm:"primaryKey;size:100" json:"username"`
	Name      string     `gorm:"size:255" json:"name,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	LoginAt   time.Time  `gorm:"not null" json:"login_at"`
}

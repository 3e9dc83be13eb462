package models

import (
	"fmt"
	"time"
)

// User is a chat identity. LinkedIdentity and ActivationCode are never set at
// the same time: a user is fresh (neither), pending (code only) or activated
// (identity only).
type User struct {
	TelegramID     int64   `gorm:"primaryKey;autoIncrement:false"`
	LinkedIdentity *string `gorm:"index"`
	ActivationCode *string `gorm:"index"`
	Banned         bool    `gorm:"not null;default:false"`

	JoinedAt  time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (u *User) IsActivated() bool {
	return u.LinkedIdentity != nil && *u.LinkedIdentity != ""
}

func (u *User) IsPending() bool {
	return u.ActivationCode != nil && *u.ActivationCode != ""
}

func (u *User) String() string {
	identity := "-"
	if u.LinkedIdentity != nil {
		identity = *u.LinkedIdentity
	}
	return fmt.Sprintf("User(%d, linked=%s, pending=%v, banned=%v)", u.TelegramID, identity, u.IsPending(), u.Banned)
}

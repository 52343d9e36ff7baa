package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the dog owner profile. The profile screens own this table;
// the chat subsystem only reads names from it.
type User struct {
	ID          string `gorm:"primaryKey" json:"id"`
	Nickname    string `gorm:"type:text" json:"nickname"`     // Owner nickname shown on walk posts
	DisplayName string `gorm:"type:text" json:"display_name"` // Account display name
}

// BeforeCreate generates a UUID for the user if the ID is not set yet.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}

// AnonymousName is shown when a profile exists but carries no name at all.
const AnonymousName = "anonymous"

// ResolvedName walks the fallback chain nickname -> display name -> "anonymous".
func (u *User) ResolvedName() string {
	if u.Nickname != "" {
		return u.Nickname
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return AnonymousName
}

package model

import "time"

// Role is the access level of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User stores identity-provider account metadata.
type User struct {
	ID             uint      `gorm:"column:id;primaryKey" json:"id"`
	OpenID         string    `gorm:"column:openId;size:64;not null;uniqueIndex" json:"openId"`
	Name           *string   `gorm:"column:name;type:text" json:"name"`
	Email          *string   `gorm:"column:email;size:320" json:"email"`
	LoginMethod    *string   `gorm:"column:loginMethod;size:64" json:"loginMethod"`
	Role           Role      `gorm:"column:role;size:16;not null;default:user" json:"role"`
	TelegramChatID *int64    `gorm:"column:telegramChatId" json:"-"`
	CreatedAt      time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt      time.Time `gorm:"column:updatedAt" json:"updatedAt"`
	LastSignedIn   time.Time `gorm:"column:lastSignedIn;not null" json:"lastSignedIn"`
}

func (User) TableName() string {
	return "users"
}

// DisplayName falls back to the subject id when the provider sent no name.
func (u User) DisplayName() string {
	if u.Name != nil && *u.Name != "" {
		return *u.Name
	}
	return u.OpenID
}

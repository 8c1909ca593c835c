package model

import "time"

// Feedback is a star rating left by a user. Rows are never read back by the app.
type Feedback struct {
	ID        uint      `gorm:"column:id;primaryKey" json:"id"`
	UserID    uint      `gorm:"column:userId;not null" json:"userId"`
	Rating    int       `gorm:"column:rating;not null" json:"rating"`
	Comment   *string   `gorm:"column:comment;type:text" json:"comment"`
	CreatedAt time.Time `gorm:"column:createdAt" json:"createdAt"`
}

func (Feedback) TableName() string {
	return "user_feedback"
}

package model

import "time"

// Date and time layouts used for the due columns. Values are compared as strings.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Task represents a single dated item in the calendar.
type Task struct {
	ID               uint      `gorm:"column:id;primaryKey" json:"id"`
	UserID           uint      `gorm:"column:userId;not null;index" json:"userId"`
	Name             string    `gorm:"column:name;size:255;not null" json:"name"`
	Description      *string   `gorm:"column:description;type:text" json:"description"`
	DueDate          string    `gorm:"column:dueDate;size:10;not null;index" json:"dueDate"`
	DueTime          string    `gorm:"column:dueTime;size:8;not null" json:"dueTime"`
	Completed        int       `gorm:"column:completed;not null;default:0" json:"completed"`
	NotificationSent int       `gorm:"column:notificationSent;not null;default:0" json:"notificationSent"`
	CreatedAt        time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt        time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Task) TableName() string {
	return "tasks"
}

func (t Task) IsCompleted() bool {
	return t.Completed == 1
}

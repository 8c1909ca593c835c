package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"todo-calendar/internal/model"
)

// FeedbackRepository stores ratings. There is no read path.
type FeedbackRepository struct {
	db *gorm.DB
}

func NewFeedbackRepository(db *gorm.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

func (r *FeedbackRepository) Create(ctx context.Context, fb *model.Feedback) error {
	db, err := session(ctx, r.db)
	if err != nil {
		return err
	}
	if err := db.Create(fb).Error; err != nil {
		return fmt.Errorf("create feedback: %w", err)
	}
	return nil
}

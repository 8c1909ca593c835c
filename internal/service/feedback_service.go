package service

import (
	"context"

	"todo-calendar/internal/model"
	"todo-calendar/internal/repository"
)

const (
	MinRating = 1
	MaxRating = 5
)

type FeedbackService struct {
	repo *repository.FeedbackRepository
}

func NewFeedbackService(repo *repository.FeedbackRepository) *FeedbackService {
	return &FeedbackService{repo: repo}
}

// Submit stores a rating attributed to the caller. An empty comment is stored as NULL.
func (s *FeedbackService) Submit(ctx context.Context, user *model.User, rating int, comment string) (*model.Feedback, error) {
	if rating < MinRating || rating > MaxRating {
		return nil, invalid("rating", "rating must be between 1 and 5")
	}
	fb := model.Feedback{UserID: user.ID, Rating: rating}
	if comment != "" {
		fb.Comment = &comment
	}
	if err := s.repo.Create(ctx, &fb); err != nil {
		return nil, err
	}
	return &fb, nil
}

package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"todo-calendar/internal/model"
	"todo-calendar/internal/repository"
)

var clockPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// TaskInput represents data required to create a task.
type TaskInput struct {
	Name        string
	Description string
	DueDate     string
	DueTime     string
}

// TaskService wraps task-related business logic.
type TaskService struct {
	taskRepo *repository.TaskRepository
}

func NewTaskService(taskRepo *repository.TaskRepository) *TaskService {
	return &TaskService{taskRepo: taskRepo}
}

func (s *TaskService) CreateTask(ctx context.Context, user *model.User, input TaskInput) (*model.Task, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, invalid("name", "Task name is required")
	}
	if !ValidDate(input.DueDate) {
		return nil, invalid("dueDate", "expected YYYY-MM-DD")
	}
	if !ValidClock(input.DueTime) {
		return nil, invalid("dueTime", "expected HH:MM")
	}

	task := model.Task{
		UserID:           user.ID,
		Name:             input.Name,
		DueDate:          input.DueDate,
		DueTime:          input.DueTime,
		Completed:        0,
		NotificationSent: 0,
	}
	if input.Description != "" {
		desc := input.Description
		task.Description = &desc
	}

	if err := s.taskRepo.Create(ctx, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *TaskService) ListByDate(ctx context.Context, user *model.User, date string) ([]model.Task, error) {
	return s.taskRepo.ListByUserAndDate(ctx, user.ID, date)
}

func (s *TaskService) ListAll(ctx context.Context, user *model.User) ([]model.Task, error) {
	return s.taskRepo.ListByUser(ctx, user.ID)
}

// UpdateTask applies the supplied flags to one of the caller's tasks and returns the
// updated row. A missing id is a no-op and yields a nil task.
func (s *TaskService) UpdateTask(ctx context.Context, user *model.User, taskID uint, upd repository.TaskUpdate) (*model.Task, error) {
	if err := checkFlag("completed", upd.Completed); err != nil {
		return nil, err
	}
	if err := checkFlag("notificationSent", upd.NotificationSent); err != nil {
		return nil, err
	}

	task, err := s.owned(ctx, user, taskID)
	if err != nil || task == nil {
		return nil, err
	}
	if err := s.taskRepo.Update(ctx, taskID, upd); err != nil {
		return nil, err
	}
	return s.taskRepo.FindByID(ctx, taskID)
}

// DeleteTask removes one of the caller's tasks. A missing id is a no-op.
func (s *TaskService) DeleteTask(ctx context.Context, user *model.User, taskID uint) error {
	task, err := s.owned(ctx, user, taskID)
	if err != nil || task == nil {
		return err
	}
	return s.taskRepo.Delete(ctx, taskID)
}

// owned loads the task and checks the caller owns it. (nil, nil) means no such task.
func (s *TaskService) owned(ctx context.Context, user *model.User, taskID uint) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if task.UserID != user.ID {
		return nil, ErrForbidden
	}
	return task, nil
}

func checkFlag(field string, v *int) error {
	if v != nil && *v != 0 && *v != 1 {
		return invalid(field, "must be 0 or 1")
	}
	return nil
}

// ValidDate reports whether s is a YYYY-MM-DD calendar date.
func ValidDate(s string) bool {
	if len(s) != len(model.DateLayout) {
		return false
	}
	_, err := time.Parse(model.DateLayout, s)
	return err == nil
}

// ValidClock reports whether s is a 24-hour HH:MM time.
func ValidClock(s string) bool {
	return clockPattern.MatchString(s)
}

package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"todo-calendar/internal/model"
)

// TaskUpdate lists the flags a partial update may change. Nil fields are skipped.
type TaskUpdate struct {
	Completed        *int
	NotificationSent *int
}

func (u TaskUpdate) columns() map[string]interface{} {
	cols := make(map[string]interface{}, 2)
	if u.Completed != nil {
		cols["completed"] = *u.Completed
	}
	if u.NotificationSent != nil {
		cols["notificationSent"] = *u.NotificationSent
	}
	return cols
}

// TaskRepository handles CRUD for tasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	db, err := session(ctx, r.db)
	if err != nil {
		return err
	}
	if err := db.Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// ListByUserAndDate returns the user's tasks due on date, in insertion order.
func (r *TaskRepository) ListByUserAndDate(ctx context.Context, userID uint, date string) ([]model.Task, error) {
	return r.list(ctx, map[string]interface{}{"userId": userID, "dueDate": date})
}

func (r *TaskRepository) ListByUser(ctx context.Context, userID uint) ([]model.Task, error) {
	return r.list(ctx, map[string]interface{}{"userId": userID})
}

// ListForNotification returns open, not yet notified tasks due exactly at date and time.
func (r *TaskRepository) ListForNotification(ctx context.Context, date, hhmm string) ([]model.Task, error) {
	return r.list(ctx, map[string]interface{}{
		"dueDate":          date,
		"dueTime":          hhmm,
		"completed":        0,
		"notificationSent": 0,
	})
}

func (r *TaskRepository) list(ctx context.Context, where map[string]interface{}) ([]model.Task, error) {
	db, err := session(ctx, r.db)
	if err != nil {
		return nil, err
	}
	tasks := make([]model.Task, 0)
	if err := db.Where(where).Order("id ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepository) FindByID(ctx context.Context, taskID uint) (*model.Task, error) {
	db, err := session(ctx, r.db)
	if err != nil {
		return nil, err
	}
	var task model.Task
	if err := db.First(&task, taskID).Error; err != nil {
		return nil, notFound(err)
	}
	return &task, nil
}

// Update applies the supplied flags. An empty update or a missing id is a no-op.
func (r *TaskRepository) Update(ctx context.Context, taskID uint, upd TaskUpdate) error {
	db, err := session(ctx, r.db)
	if err != nil {
		return err
	}
	cols := upd.columns()
	if len(cols) == 0 {
		return nil
	}
	if err := db.Model(&model.Task{}).Where("id = ?", taskID).Updates(cols).Error; err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

func (r *TaskRepository) MarkNotificationSent(ctx context.Context, taskID uint) error {
	sent := 1
	return r.Update(ctx, taskID, TaskUpdate{NotificationSent: &sent})
}

// Delete removes a task by id. Deleting a missing id is not an error.
func (r *TaskRepository) Delete(ctx context.Context, taskID uint) error {
	db, err := session(ctx, r.db)
	if err != nil {
		return err
	}
	if err := db.Where("id = ?", taskID).Delete(&model.Task{}).Error; err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"todo-calendar/internal/logger"
	"todo-calendar/internal/metrics"
	"todo-calendar/internal/model"
	"todo-calendar/internal/reminder"
	"todo-calendar/internal/repository"
)

// NotifierFactory picks the delivery channel for a user.
type NotifierFactory func(user model.User) reminder.Notifier

// ReminderService sends due-time reminders and daily summaries.
type ReminderService struct {
	taskRepo  *repository.TaskRepository
	userRepo  *repository.UserRepository
	notifiers NotifierFactory
	clock     reminder.Clock
	metrics   *metrics.Metrics
	log       *zap.Logger
}

func NewReminderService(taskRepo *repository.TaskRepository, userRepo *repository.UserRepository, notifiers NotifierFactory, clock reminder.Clock, m *metrics.Metrics, log *zap.Logger) *ReminderService {
	return &ReminderService{
		taskRepo:  taskRepo,
		userRepo:  userRepo,
		notifiers: notifiers,
		clock:     clock,
		metrics:   m,
		log:       log,
	}
}

// Sweep notifies every task due at the current minute. Each owner gets a poller bound
// to their own channel. Returns the number of reminders sent.
func (s *ReminderService) Sweep(ctx context.Context) (int, error) {
	now := s.clock.Now()
	tasks, err := s.taskRepo.ListForNotification(ctx, now.Format(model.DateLayout), now.Format(model.TimeLayout))
	if err != nil {
		return 0, fmt.Errorf("load due tasks: %w", err)
	}

	byUser := make(map[uint][]model.Task)
	var owners []uint
	for _, task := range tasks {
		if _, ok := byUser[task.UserID]; !ok {
			owners = append(owners, task.UserID)
		}
		byUser[task.UserID] = append(byUser[task.UserID], task)
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i] < owners[j] })

	frozen := reminder.ClockFunc(func() time.Time { return now })
	marker := reminder.MarkerFunc(s.taskRepo.MarkNotificationSent)

	sent := 0
	for _, userID := range owners {
		user, err := s.userRepo.GetByID(ctx, userID)
		if err != nil {
			s.log.Warn("reminder owner lookup", logger.WithUserID(userID), zap.Error(err))
			continue
		}
		poller := reminder.NewPoller(frozen, s.notifiers(*user), marker, s.log)
		sent += len(poller.Check(ctx, byUser[userID]))
	}

	if sent > 0 {
		s.metrics.RemindersSent.Add(float64(sent))
		s.log.Info("reminders sent", zap.Int("count", sent), zap.String("at", now.Format(model.TimeLayout)))
	}
	return sent, nil
}

// DailySummary lists the user's open tasks for the day of now.
func (s *ReminderService) DailySummary(ctx context.Context, user model.User, now time.Time) (string, error) {
	tasks, err := s.taskRepo.ListByUserAndDate(ctx, user.ID, now.Format(model.DateLayout))
	if err != nil {
		return "", err
	}

	var pending []model.Task
	for _, task := range tasks {
		if !task.IsCompleted() {
			pending = append(pending, task)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].DueTime < pending[j].DueTime
	})

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Tasks for %s\n", now.Format("Monday, January 2")))
	if len(pending) == 0 {
		builder.WriteString("- nothing open today\n")
	}
	for _, task := range pending {
		builder.WriteString(formatTask(task))
	}
	return strings.TrimSpace(builder.String()), nil
}

// SendDigests delivers DailySummary to every user with a linked channel.
func (s *ReminderService) SendDigests(ctx context.Context) error {
	users, err := s.userRepo.ListLinked(ctx)
	if err != nil {
		return fmt.Errorf("list linked users: %w", err)
	}

	now := s.clock.Now()
	for _, user := range users {
		notifier := s.notifiers(user)
		if notifier.Permission() != reminder.PermissionGranted {
			continue
		}
		text, err := s.DailySummary(ctx, user, now)
		if err != nil {
			s.log.Warn("build digest", logger.WithUserID(user.ID), zap.Error(err))
			continue
		}
		if err := notifier.Notify(ctx, "Daily summary", text); err != nil {
			s.log.Warn("send digest", logger.WithUserID(user.ID), zap.Error(err))
			continue
		}
		s.metrics.DigestsSent.Inc()
	}
	return nil
}

func formatTask(task model.Task) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s %s", task.DueTime, strings.TrimSpace(task.Name)))
	if task.Description != nil {
		if desc := strings.TrimSpace(*task.Description); desc != "" {
			sb.WriteString(fmt.Sprintf("\n   %s", desc))
		}
	}
	sb.WriteByte('\n')
	return sb.String()
}

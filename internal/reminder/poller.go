// Package reminder fires task notifications when the wall clock reaches a task's due time.
//
// The poller compares HH:MM strings only. It has no catch-up: a minute that is never
// checked (process asleep, page closed) never fires.
package reminder

import (
	"context"
	"time"

	"go.uber.org/zap"

	"todo-calendar/internal/logger"
	"todo-calendar/internal/model"
)

// Title is the heading of every task reminder.
const Title = "Task Reminder"

// DefaultInterval is how often Run checks the loaded tasks.
const DefaultInterval = time.Minute

// Permission mirrors the grant state of a notification channel.
type Permission int

const (
	PermissionDefault Permission = iota
	PermissionGranted
	PermissionDenied
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock in Location (time.Local when nil).
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// Notifier delivers a reminder to one recipient.
type Notifier interface {
	Permission() Permission
	Notify(ctx context.Context, title, body string) error
}

// Denied is a Notifier that never has permission.
var Denied Notifier = denied{}

type denied struct{}

func (denied) Permission() Permission { return PermissionDenied }
func (denied) Notify(context.Context, string, string) error { return nil }

// Marker records that a task's reminder went out.
type Marker interface {
	MarkNotified(ctx context.Context, taskID uint) error
}

// MarkerFunc adapts a function to Marker.
type MarkerFunc func(ctx context.Context, taskID uint) error

func (f MarkerFunc) MarkNotified(ctx context.Context, taskID uint) error { return f(ctx, taskID) }

type Poller struct {
	clock    Clock
	notifier Notifier
	marker   Marker
	interval time.Duration
	log      *zap.Logger
}

func NewPoller(clock Clock, notifier Notifier, marker Marker, log *zap.Logger) *Poller {
	return &Poller{
		clock:    clock,
		notifier: notifier,
		marker:   marker,
		interval: DefaultInterval,
		log:      log,
	}
}

// WithInterval overrides the Run period.
func (p *Poller) WithInterval(d time.Duration) *Poller {
	if d > 0 {
		p.interval = d
	}
	return p
}

// Check notifies every task due at the current minute whose reminder has not been
// sent, then marks it. It returns the ids it fired for.
func (p *Poller) Check(ctx context.Context, tasks []model.Task) []uint {
	if p.notifier.Permission() != PermissionGranted {
		return nil
	}
	now := p.clock.Now().Format(model.TimeLayout)

	var fired []uint
	for _, task := range tasks {
		if task.DueTime != now || task.NotificationSent != 0 {
			continue
		}
		if err := p.notifier.Notify(ctx, Title, "Time for: "+task.Name); err != nil {
			p.log.Warn("notify task", logger.WithTaskID(task.ID), zap.Error(err))
			continue
		}
		if err := p.marker.MarkNotified(ctx, task.ID); err != nil {
			p.log.Warn("mark task notified", logger.WithTaskID(task.ID), zap.Error(err))
		}
		fired = append(fired, task.ID)
	}
	return fired
}

// Run calls load and Check once per interval until ctx is cancelled.
func (p *Poller) Run(ctx context.Context, load func(context.Context) ([]model.Task, error)) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			tasks, err := load(ctx)
			if err != nil {
				p.log.Warn("load tasks for reminders", zap.Error(err))
				continue
			}
			p.Check(ctx, tasks)
		}
	}
}

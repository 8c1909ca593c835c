// Package view holds the client-side state of the calendar page and the
// transitions that user actions trigger on it.
package view

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"todo-calendar/internal/model"
	"todo-calendar/internal/reminder"
	"todo-calendar/internal/service"
)

// DefaultTaskTime pre-fills the time field of the create form.
const DefaultTaskTime = "09:00"

// DefaultRating pre-fills the feedback form.
const DefaultRating = 5

// Procedures is the subset of the procedure API the page calls on behalf of
// the signed-in user.
type Procedures interface {
	ListByDate(ctx context.Context, date string) ([]model.Task, error)
	CreateTask(ctx context.Context, in service.TaskInput) (*model.Task, error)
	UpdateTask(ctx context.Context, id uint, completed, notificationSent *int) (*model.Task, error)
	DeleteTask(ctx context.Context, id uint) error
	SubmitFeedback(ctx context.Context, rating int, comment string) error
}

type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
	NoticeInfo    NoticeKind = "info"
)

// Notice is a transient message shown after an action.
type Notice struct {
	Kind NoticeKind
	Text string
}

type CreateForm struct {
	Name        string
	Description string
	Time        string
}

type FeedbackForm struct {
	Rating  int
	Comment string
}

// State is everything the page renders.
type State struct {
	SelectedDate  string
	Month         time.Time
	CreateOpen    bool
	FeedbackOpen  bool
	PendingDelete uint
	Create        CreateForm
	Feedback      FeedbackForm
	Tasks         []model.Task
	Notice        *Notice
}

// NewState starts on today with empty forms.
func NewState(today time.Time) State {
	return State{
		SelectedDate: today.Format(model.DateLayout),
		Month:        firstOfMonth(today),
		Create:       CreateForm{Time: DefaultTaskTime},
		Feedback:     FeedbackForm{Rating: DefaultRating},
		Tasks:        []model.Task{},
	}
}

// Controller applies user actions to a State through Procedures.
type Controller struct {
	State State

	procs Procedures
	clock reminder.Clock
	log   *zap.Logger
}

func NewController(procs Procedures, clock reminder.Clock, log *zap.Logger) *Controller {
	return &Controller{
		State: NewState(clock.Now()),
		procs: procs,
		clock: clock,
		log:   log,
	}
}

// Refresh reloads the tasks of the selected date.
func (c *Controller) Refresh(ctx context.Context) error {
	tasks, err := c.procs.ListByDate(ctx, c.State.SelectedDate)
	if err != nil {
		c.fail("Failed to load tasks", err)
		return err
	}
	c.State.Tasks = tasks
	return nil
}

// SelectDate switches the task list to date (YYYY-MM-DD) and refetches.
func (c *Controller) SelectDate(ctx context.Context, date string) error {
	if !service.ValidDate(date) {
		c.fail("Invalid date", nil)
		return errors.New("invalid date " + date)
	}
	c.State.SelectedDate = date
	return c.Refresh(ctx)
}

// ShowMonth displays the month containing t.
func (c *Controller) ShowMonth(t time.Time) {
	c.State.Month = firstOfMonth(t)
}

func (c *Controller) PrevMonth() {
	c.State.Month = c.State.Month.AddDate(0, -1, 0)
}

func (c *Controller) NextMonth() {
	c.State.Month = c.State.Month.AddDate(0, 1, 0)
}

func (c *Controller) OpenCreate() { c.State.CreateOpen = true }
func (c *Controller) CloseCreate() { c.State.CreateOpen = false }
func (c *Controller) OpenFeedback() { c.State.FeedbackOpen = true }
func (c *Controller) CloseFeedback() { c.State.FeedbackOpen = false }

// CreateTask submits the create form for the selected date. It reports whether
// the task was created; on failure the form stays open with its values.
func (c *Controller) CreateTask(ctx context.Context) bool {
	form := c.State.Create
	if strings.TrimSpace(form.Name) == "" {
		c.State.CreateOpen = true
		c.State.Notice = &Notice{Kind: NoticeError, Text: "Task name is required"}
		return false
	}

	_, err := c.procs.CreateTask(ctx, service.TaskInput{
		Name:        form.Name,
		Description: form.Description,
		DueDate:     c.State.SelectedDate,
		DueTime:     form.Time,
	})
	if err != nil {
		c.State.CreateOpen = true
		c.fail("Failed to create task", err)
		return false
	}

	c.State.Create = CreateForm{Time: DefaultTaskTime}
	c.State.CreateOpen = false
	c.State.Notice = &Notice{Kind: NoticeSuccess, Text: "Task created successfully!"}
	_ = c.Refresh(ctx)
	return true
}

// ToggleTask flips the completed flag of task id, given its current value.
func (c *Controller) ToggleTask(ctx context.Context, id uint, completed int) bool {
	next := 1
	if completed == 1 {
		next = 0
	}
	if _, err := c.procs.UpdateTask(ctx, id, &next, nil); err != nil {
		c.fail("Failed to update task", err)
		return false
	}
	_ = c.Refresh(ctx)
	return true
}

// RequestDelete opens the confirmation for task id.
func (c *Controller) RequestDelete(id uint) {
	c.State.PendingDelete = id
}

func (c *Controller) CancelDelete() {
	c.State.PendingDelete = 0
}

// ConfirmDelete deletes the task awaiting confirmation.
func (c *Controller) ConfirmDelete(ctx context.Context) bool {
	id := c.State.PendingDelete
	if id == 0 {
		return false
	}
	if err := c.procs.DeleteTask(ctx, id); err != nil {
		c.fail("Failed to delete task", err)
		return false
	}
	c.State.PendingDelete = 0
	c.State.Notice = &Notice{Kind: NoticeSuccess, Text: "Task deleted"}
	_ = c.Refresh(ctx)
	return true
}

// SubmitFeedback sends the feedback form and resets it on success.
func (c *Controller) SubmitFeedback(ctx context.Context) bool {
	form := c.State.Feedback
	if err := c.procs.SubmitFeedback(ctx, form.Rating, form.Comment); err != nil {
		c.State.FeedbackOpen = true
		c.fail("Failed to submit feedback", err)
		return false
	}
	c.State.Feedback = FeedbackForm{Rating: DefaultRating}
	c.State.FeedbackOpen = false
	c.State.Notice = &Notice{Kind: NoticeSuccess, Text: "Thank you for your feedback!"}
	return true
}

// Tick runs one reminder check over the loaded tasks and returns the ids that fired.
func (c *Controller) Tick(ctx context.Context, notifier reminder.Notifier) []uint {
	one := 1
	marker := reminder.MarkerFunc(func(ctx context.Context, id uint) error {
		_, err := c.procs.UpdateTask(ctx, id, nil, &one)
		return err
	})
	fired := reminder.NewPoller(c.clock, notifier, marker, c.log).Check(ctx, c.State.Tasks)
	if len(fired) > 0 {
		_ = c.Refresh(ctx)
	}
	return fired
}

// fail sets an error notice. The procedure's own message wins over fallback
// when it has one.
func (c *Controller) fail(fallback string, err error) {
	text := fallback
	if msg := Message(err); msg != "" {
		text = msg
	}
	if err != nil {
		c.log.Debug("view action failed", zap.String("notice", text), zap.Error(err))
	}
	c.State.Notice = &Notice{Kind: NoticeError, Text: text}
}

// Message extracts a user-facing message from a procedure error, or "".
func Message(err error) string {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	if errors.Is(err, service.ErrForbidden) {
		return "You do not own this task"
	}
	return ""
}

func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"todo-calendar/internal/metrics"
	"todo-calendar/internal/model"
	"todo-calendar/internal/reminder"
	"todo-calendar/internal/repository"
	"todo-calendar/internal/repository/repotest"
)

type fixture struct {
	db       *gorm.DB
	users    *repository.UserRepository
	tasks    *repository.TaskRepository
	userSvc  *UserService
	taskSvc  *TaskService
	feedback *FeedbackService
}

func newFixture(t *testing.T) fixture {
	db := repotest.Open(t)
	users := repository.NewUserRepository(db)
	tasks := repository.NewTaskRepository(db)
	return fixture{
		db:       db,
		users:    users,
		tasks:    tasks,
		userSvc:  NewUserService(users, "owner-sub", zap.NewNop()),
		taskSvc:  NewTaskService(tasks),
		feedback: NewFeedbackService(repository.NewFeedbackRepository(db)),
	}
}

func (f fixture) user(t *testing.T, sub string) *model.User {
	u, err := f.userSvc.Provision(context.Background(), Identity{OpenID: sub, Name: sub, LoginMethod: "google"}, time.Now())
	require.NoError(t, err)
	return u
}

func intPtr(v int) *int { return &v }

func TestProvisionOwnerBecomesAdmin(t *testing.T) {
	f := newFixture(t)

	owner := f.user(t, "owner-sub")
	assert.Equal(t, model.RoleAdmin, owner.Role)

	regular := f.user(t, "someone")
	assert.Equal(t, model.RoleUser, regular.Role)
	assert.Equal(t, "google", *regular.LoginMethod)
	assert.Nil(t, regular.Email, "empty email is not written")
}

func TestOwnerRoleIsOnlyGrantedOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.user(t, "owner-sub")
	require.Equal(t, model.RoleAdmin, owner.Role)

	demoted := model.RoleUser
	_, err := f.users.Upsert(ctx, repository.UserUpsert{OpenID: "owner-sub", Role: &demoted})
	require.NoError(t, err)

	again := f.user(t, "owner-sub")
	assert.Equal(t, model.RoleUser, again.Role)
	assert.Equal(t, owner.ID, again.ID)
}

func TestProvisionOnUnavailableStore(t *testing.T) {
	svc := NewUserService(repository.NewUserRepository(nil), "owner-sub", zap.NewNop())
	_, err := svc.Provision(context.Background(), Identity{OpenID: "owner-sub"}, time.Now())
	assert.ErrorIs(t, err, repository.ErrUnavailable)
}

func TestCreateTaskAppearsInBothLists(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "alice")

	task, err := f.taskSvc.CreateTask(ctx, u, TaskInput{Name: "Pay rent", DueDate: "2025-12-28", DueTime: "14:30"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, task.UserID)
	assert.Equal(t, 0, task.Completed)
	assert.Equal(t, 0, task.NotificationSent)
	assert.Nil(t, task.Description)

	byDate, err := f.taskSvc.ListByDate(ctx, u, "2025-12-28")
	require.NoError(t, err)
	require.Len(t, byDate, 1)
	assert.Equal(t, "Pay rent", byDate[0].Name)

	all, err := f.taskSvc.ListAll(ctx, u)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, task.ID, all[0].ID)
}

func TestCreateTaskRejectsBadInputBeforeWriting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "alice")

	cases := []struct {
		in    TaskInput
		field string
	}{
		{TaskInput{Name: "", DueDate: "2025-12-28", DueTime: "14:30"}, "name"},
		{TaskInput{Name: "   ", DueDate: "2025-12-28", DueTime: "14:30"}, "name"},
		{TaskInput{Name: "x", DueDate: "28/12/2025", DueTime: "14:30"}, "dueDate"},
		{TaskInput{Name: "x", DueDate: "2025-12-28", DueTime: "2:30pm"}, "dueTime"},
		{TaskInput{Name: "x", DueDate: "2025-12-28", DueTime: "24:00"}, "dueTime"},
	}
	for _, tc := range cases {
		_, err := f.taskSvc.CreateTask(ctx, u, tc.in)
		var verr *ValidationError
		require.True(t, errors.As(err, &verr), "%+v", tc.in)
		assert.Equal(t, tc.field, verr.Field)
	}

	all, err := f.taskSvc.ListAll(ctx, u)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestToggleCompletedRoundTrips(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "alice")

	orig, err := f.taskSvc.CreateTask(ctx, u, TaskInput{Name: "Walk", Description: "dog", DueDate: "2025-12-28", DueTime: "07:00"})
	require.NoError(t, err)

	on, err := f.taskSvc.UpdateTask(ctx, u, orig.ID, repository.TaskUpdate{Completed: intPtr(1)})
	require.NoError(t, err)
	assert.Equal(t, 1, on.Completed)

	off, err := f.taskSvc.UpdateTask(ctx, u, orig.ID, repository.TaskUpdate{Completed: intPtr(0)})
	require.NoError(t, err)
	assert.Equal(t, orig.Completed, off.Completed)
	assert.Equal(t, orig.Name, off.Name)
	assert.Equal(t, *orig.Description, *off.Description)
	assert.Equal(t, orig.DueDate, off.DueDate)
	assert.Equal(t, orig.DueTime, off.DueTime)
	assert.Equal(t, orig.NotificationSent, off.NotificationSent)
}

func TestUpdateRejectsNonBinaryFlag(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "alice")
	_, err := f.taskSvc.UpdateTask(context.Background(), u, 1, repository.TaskUpdate{Completed: intPtr(2)})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "completed", verr.Field)
}

func TestMutationsCheckOwnership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice")
	mallory := f.user(t, "mallory")

	task, err := f.taskSvc.CreateTask(ctx, alice, TaskInput{Name: "Secret", DueDate: "2025-12-28", DueTime: "10:00"})
	require.NoError(t, err)

	_, err = f.taskSvc.UpdateTask(ctx, mallory, task.ID, repository.TaskUpdate{Completed: intPtr(1)})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, f.taskSvc.DeleteTask(ctx, mallory, task.ID), ErrForbidden)

	still, err := f.tasks.FindByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, still.Completed)
}

func TestDeleteRemovesAndMissingIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "alice")

	task, err := f.taskSvc.CreateTask(ctx, u, TaskInput{Name: "Gone", DueDate: "2025-12-28", DueTime: "10:00"})
	require.NoError(t, err)

	require.NoError(t, f.taskSvc.DeleteTask(ctx, u, task.ID))
	byDate, err := f.taskSvc.ListByDate(ctx, u, "2025-12-28")
	require.NoError(t, err)
	assert.Empty(t, byDate)
	all, err := f.taskSvc.ListAll(ctx, u)
	require.NoError(t, err)
	assert.Empty(t, all)

	assert.NoError(t, f.taskSvc.DeleteTask(ctx, u, task.ID))
	updated, err := f.taskSvc.UpdateTask(ctx, u, task.ID, repository.TaskUpdate{Completed: intPtr(1)})
	assert.NoError(t, err)
	assert.Nil(t, updated)
}

func TestFeedbackRatingBounds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "alice")

	for _, bad := range []int{0, 6, -1} {
		_, err := f.feedback.Submit(ctx, u, bad, "")
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, "rating %d", bad)
		assert.Equal(t, "rating", verr.Field)
	}

	low, err := f.feedback.Submit(ctx, u, 1, "")
	require.NoError(t, err)
	assert.Nil(t, low.Comment)

	high, err := f.feedback.Submit(ctx, u, 5, "Great app!")
	require.NoError(t, err)
	assert.Equal(t, "Great app!", *high.Comment)
	assert.Equal(t, u.ID, high.UserID)
}

func TestLinkTelegram(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "alice")

	zero := int64(0)
	assert.Error(t, f.userSvc.LinkTelegram(ctx, u, &zero))

	chat := int64(99)
	require.NoError(t, f.userSvc.LinkTelegram(ctx, u, &chat))
	got, err := f.userSvc.ByOpenID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, chat, *got.TelegramChatID)
}

type recordingNotifier struct {
	permission reminder.Permission
	messages   []string
}

func (r *recordingNotifier) Permission() reminder.Permission { return r.permission }

func (r *recordingNotifier) Notify(_ context.Context, title, body string) error {
	r.messages = append(r.messages, title+": "+body)
	return nil
}

func TestReminderSweep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	for _, in := range []struct {
		owner *model.User
		name  string
		time  string
	}{
		{alice, "Pay rent", "14:30"},
		{alice, "Later", "15:00"},
		{bob, "Call mom", "14:30"},
	} {
		_, err := f.taskSvc.CreateTask(ctx, in.owner, TaskInput{Name: in.name, DueDate: "2025-12-28", DueTime: in.time})
		require.NoError(t, err)
	}

	aliceNotifier := &recordingNotifier{permission: reminder.PermissionGranted}
	factory := func(u model.User) reminder.Notifier {
		if u.ID == alice.ID {
			return aliceNotifier
		}
		return reminder.Denied
	}
	now := time.Date(2025, 12, 28, 14, 30, 5, 0, time.UTC)
	svc := NewReminderService(f.tasks, f.users, factory, reminder.ClockFunc(func() time.Time { return now }), metrics.New(nil), zap.NewNop())

	sent, err := svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{"Task Reminder: Time for: Pay rent"}, aliceNotifier.messages)

	sent, err = svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent, "already notified")

	pending, err := f.tasks.ListForNotification(ctx, "2025-12-28", "14:30")
	require.NoError(t, err)
	require.Len(t, pending, 1, "bob has no channel so his task stays pending")
	assert.Equal(t, "Call mom", pending[0].Name)
}

func TestDailySummaryAndDigest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice")

	_, err := f.taskSvc.CreateTask(ctx, alice, TaskInput{Name: "Lunch", Description: "with Sam", DueDate: "2025-12-28", DueTime: "12:00"})
	require.NoError(t, err)
	early, err := f.taskSvc.CreateTask(ctx, alice, TaskInput{Name: "Gym", DueDate: "2025-12-28", DueTime: "07:00"})
	require.NoError(t, err)
	done, err := f.taskSvc.CreateTask(ctx, alice, TaskInput{Name: "Done already", DueDate: "2025-12-28", DueTime: "06:00"})
	require.NoError(t, err)
	_, err = f.taskSvc.UpdateTask(ctx, alice, done.ID, repository.TaskUpdate{Completed: intPtr(1)})
	require.NoError(t, err)
	require.NotNil(t, early)

	now := time.Date(2025, 12, 28, 8, 0, 0, 0, time.UTC)
	notifier := &recordingNotifier{permission: reminder.PermissionGranted}
	svc := NewReminderService(f.tasks, f.users, func(model.User) reminder.Notifier { return notifier },
		reminder.ClockFunc(func() time.Time { return now }), metrics.New(nil), zap.NewNop())

	text, err := svc.DailySummary(ctx, *alice, now)
	require.NoError(t, err)
	assert.Equal(t, "Tasks for Sunday, December 28\n07:00 Gym\n12:00 Lunch\n   with Sam", text)

	chat := int64(5)
	require.NoError(t, f.userSvc.LinkTelegram(ctx, alice, &chat))
	require.NoError(t, svc.SendDigests(ctx))
	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "Daily summary: Tasks for Sunday")
}

func TestBuildSpecs(t *testing.T) {
	spec, err := buildDailySpec("08:05")
	require.NoError(t, err)
	assert.Equal(t, "0 5 8 * * *", spec)

	_, err = buildDailySpec("25:00")
	assert.Error(t, err)
	_, err = buildDailySpec("0800")
	assert.Error(t, err)

	spec, err = buildIntervalSpec(time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "0 * * * * *", spec)

	spec, err = buildIntervalSpec(30 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "@every 30s", spec)

	_, err = buildIntervalSpec(0)
	assert.Error(t, err)
}

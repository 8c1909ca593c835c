package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"todo-calendar/internal/api"
	"todo-calendar/internal/model"
	"todo-calendar/internal/reminder"
	"todo-calendar/internal/repository"
	"todo-calendar/internal/repository/repotest"
	"todo-calendar/internal/service"
	"todo-calendar/internal/session"
)

type env struct {
	db      *gorm.DB
	handler http.Handler
	cookie  *http.Cookie
	user    *model.User
}

func newEnv(t *testing.T, now time.Time) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := repotest.Open(t)
	users := service.NewUserService(repository.NewUserRepository(db), "", zap.NewNop())
	tasks := service.NewTaskService(repository.NewTaskRepository(db))
	feedback := service.NewFeedbackService(repository.NewFeedbackRepository(db))
	sessions := session.NewManager("test-secret", nil)

	srv, err := api.NewServer(api.Options{
		Users:    users,
		Tasks:    tasks,
		Feedback: feedback,
		Sessions: sessions,
		Log:      zap.NewNop(),
	})
	require.NoError(t, err)

	clock := reminder.ClockFunc(func() time.Time { return now })
	require.NoError(t, NewHandler(tasks, feedback, clock, zap.NewNop()).Mount(srv.Engine()))

	user, err := users.Provision(context.Background(), service.Identity{OpenID: "alice", Name: "Alice"}, now)
	require.NoError(t, err)
	token, err := sessions.Issue(user.OpenID)
	require.NoError(t, err)

	return &env{
		db:      db,
		handler: srv.Handler(),
		cookie:  &http.Cookie{Name: session.CookieName, Value: token},
		user:    user,
	}
}

func (e *env) get(target string, signedIn bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if signedIn {
		req.AddCookie(e.cookie)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *env) post(target string, form url.Values, signedIn bool) *httptest.ResponseRecorder {
	return e.postWith(target, form, signedIn, nil)
}

func (e *env) postWith(target string, form url.Values, signedIn bool, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if signedIn {
		req.AddCookie(e.cookie)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// follow loads the redirect target of rec with the cookies it set.
func (e *env) follow(t *testing.T, rec *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	t.Helper()
	require.Equal(t, http.StatusSeeOther, rec.Code)
	req := httptest.NewRequest(http.MethodGet, rec.Header().Get("Location"), nil)
	req.AddCookie(e.cookie)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	out := httptest.NewRecorder()
	e.handler.ServeHTTP(out, req)
	return out
}

func flashOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == FlashCookie {
			v, err := url.QueryUnescape(c.Value)
			require.NoError(t, err)
			return v
		}
	}
	return ""
}

func (e *env) tasks(t *testing.T) []model.Task {
	var tasks []model.Task
	require.NoError(t, e.db.Order("id ASC").Find(&tasks).Error)
	return tasks
}

var noon = time.Date(2025, 12, 28, 12, 0, 0, 0, time.UTC)

func TestAnonymousVisitorSeesSignIn(t *testing.T) {
	e := newEnv(t, noon)

	rec := e.get("/", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Welcome to Todo Calendar")
	assert.Contains(t, rec.Body.String(), LoginPath)

	rec = e.post("/tasks", url.Values{"name": {"x"}}, false)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Empty(t, e.tasks(t))
}

func TestCalendarPage(t *testing.T) {
	e := newEnv(t, noon)

	rec := e.get("/", true)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Tasks for Sunday, December 28, 2025")
	assert.Contains(t, body, "December 2025")
	assert.Contains(t, body, "No tasks for this date")
	assert.Contains(t, body, "Alice")

	rec = e.get("/?date=2026-01-05&month=2026-02", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Tasks for Monday, January 5, 2026")
	assert.Contains(t, rec.Body.String(), "February 2026")

	rec = e.get("/?dialog=create", true)
	assert.Contains(t, rec.Body.String(), "Create New Task")
	assert.Contains(t, rec.Body.String(), `value="09:00"`)

	rec = e.get("/?dialog=feedback", true)
	assert.Contains(t, rec.Body.String(), "Submit Feedback")
}

func TestCreateToggleDeleteThroughForms(t *testing.T) {
	e := newEnv(t, noon)

	rec := e.post("/tasks", url.Values{"date": {"2025-12-28"}, "name": {"Pay rent"}, "time": {"14:30"}}, true)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "2025-12-28", location.Query().Get("date"))
	assert.Empty(t, location.Query().Get("notice"))
	assert.Equal(t, "success:Task created successfully!", flashOf(t, rec))

	page := e.follow(t, rec)
	assert.Contains(t, page.Body.String(), "Pay rent")
	assert.Contains(t, page.Body.String(), "14:30")
	assert.Contains(t, page.Body.String(), "Task created successfully!")
	cleared := page.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, FlashCookie, cleared[0].Name)
	assert.Less(t, cleared[0].MaxAge, 0)

	tasks := e.tasks(t)
	require.Len(t, tasks, 1)
	assert.Equal(t, e.user.ID, tasks[0].UserID)
	assert.Nil(t, tasks[0].Description)
	id := tasks[0].ID
	idStr := strconv.FormatUint(uint64(id), 10)

	rec = e.post("/tasks/"+idStr+"/toggle", url.Values{"date": {"2025-12-28"}, "completed": {"0"}}, true)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, 1, e.tasks(t)[0].Completed)

	rec = e.get("/?date=2025-12-28&confirm="+idStr, true)
	assert.Contains(t, rec.Body.String(), "Delete Task?")

	rec = e.post("/tasks/"+idStr+"/delete", url.Values{"date": {"2025-12-28"}}, true)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "success:Task deleted", flashOf(t, rec))
	assert.Empty(t, e.tasks(t))
}

func TestCreateWithBlankNameKeepsForm(t *testing.T) {
	e := newEnv(t, noon)

	rec := e.post("/tasks", url.Values{"date": {"2025-12-28"}, "name": {"  "}, "description": {"keep me"}, "time": {"08:15"}}, true)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Task name is required")
	assert.Contains(t, body, "Create New Task")
	assert.Contains(t, body, "keep me")
	assert.Contains(t, body, `value="08:15"`)
	assert.Empty(t, e.tasks(t))
}

func TestCreateWithInvalidDateKeepsForm(t *testing.T) {
	e := newEnv(t, noon)

	rec := e.post("/tasks", url.Values{"date": {"someday"}, "name": {"Pay rent"}, "description": {"keep me"}, "time": {"08:15"}}, true)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Invalid date")
	assert.Contains(t, body, "Create New Task")
	assert.Contains(t, body, `value="Pay rent"`)
	assert.Contains(t, body, "keep me")
	assert.Contains(t, body, `value="08:15"`)
	assert.Empty(t, e.tasks(t))
}

func TestCrossSiteFormPostsAreRejected(t *testing.T) {
	e := newEnv(t, noon)
	form := url.Values{"date": {"2025-12-28"}, "name": {"Pay rent"}, "time": {"14:30"}}

	rec := e.postWith("/tasks", form, true, map[string]string{"Origin": "https://elsewhere.example"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = e.postWith("/tasks", form, true, map[string]string{"Origin": "null"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = e.postWith("/tasks", form, true, map[string]string{"Sec-Fetch-Site": "cross-site"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, e.tasks(t))

	rec = e.postWith("/tasks", form, true, map[string]string{"Origin": "http://example.com", "Sec-Fetch-Site": "same-origin"})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Len(t, e.tasks(t), 1)
}

func TestNoticeComesOnlyFromFlash(t *testing.T) {
	e := newEnv(t, noon)

	rec := e.get("/?notice=Account+closed&kind=error", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "Account closed")
}

func TestFeedbackForm(t *testing.T) {
	e := newEnv(t, noon)

	rec := e.post("/feedback", url.Values{"rating": {"6"}, "comment": {"too many stars"}}, true)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "rating must be between 1 and 5")
	assert.Contains(t, rec.Body.String(), "too many stars")

	rec = e.post("/feedback", url.Values{"rating": {"4"}}, true)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "success:Thank you for your feedback!", flashOf(t, rec))

	var stored []model.Feedback
	require.NoError(t, e.db.Find(&stored).Error)
	require.Len(t, stored, 1)
	assert.Equal(t, 4, stored[0].Rating)
	assert.Nil(t, stored[0].Comment)
}

func TestPageShowsDueReminderOnce(t *testing.T) {
	e := newEnv(t, time.Date(2025, 12, 28, 14, 30, 20, 0, time.UTC))
	require.NoError(t, e.db.Create(&model.Task{UserID: e.user.ID, Name: "Pay rent", DueDate: "2025-12-28", DueTime: "14:30"}).Error)

	rec := e.get("/?date=2025-12-28", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Task Reminder: Time for: Pay rent")
	assert.Equal(t, 1, e.tasks(t)[0].NotificationSent)

	rec = e.get("/?date=2025-12-28", true)
	assert.NotContains(t, rec.Body.String(), "Task Reminder")
}

func TestOtherDatesDoNotFireReminders(t *testing.T) {
	e := newEnv(t, time.Date(2025, 12, 28, 14, 30, 20, 0, time.UTC))
	require.NoError(t, e.db.Create(&model.Task{UserID: e.user.ID, Name: "Tomorrow", DueDate: "2025-12-29", DueTime: "14:30"}).Error)

	rec := e.get("/?date=2025-12-29", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Tomorrow")
	assert.NotContains(t, rec.Body.String(), "Task Reminder")
	assert.Equal(t, 0, e.tasks(t)[0].NotificationSent)
}

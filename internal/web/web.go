// Package web renders the calendar page and handles its form posts.
package web

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"todo-calendar/internal/api"
	"todo-calendar/internal/model"
	"todo-calendar/internal/reminder"
	"todo-calendar/internal/repository"
	"todo-calendar/internal/service"
	"todo-calendar/internal/session"
	"todo-calendar/internal/view"
)

//go:embed templates/*.html
var templatesFS embed.FS

// LoginPath starts the sign-in flow.
const LoginPath = "/api/oauth/login"

// FlashCookie carries the notice of the last form post to the next page view.
const FlashCookie = "app_flash"

const flashTTL = 60 // seconds

// Handler serves the server-rendered calendar.
type Handler struct {
	tasks    *service.TaskService
	feedback *service.FeedbackService
	clock    reminder.Clock
	log      *zap.Logger
}

func NewHandler(tasks *service.TaskService, feedback *service.FeedbackService, clock reminder.Clock, log *zap.Logger) *Handler {
	return &Handler{tasks: tasks, feedback: feedback, clock: clock, log: log}
}

// Templates parses the embedded page templates.
func Templates() (*template.Template, error) {
	return template.ParseFS(templatesFS, "templates/*.html")
}

// Mount installs the templates and page routes on engine.
func (h *Handler) Mount(engine *gin.Engine) error {
	tmpl, err := Templates()
	if err != nil {
		return err
	}
	engine.SetHTMLTemplate(tmpl)

	engine.GET("/", h.index)

	forms := engine.Group("/", sameOrigin())
	forms.POST("/tasks", h.createTask)
	forms.POST("/tasks/:id/toggle", h.toggleTask)
	forms.POST("/tasks/:id/delete", h.deleteTask)
	forms.POST("/feedback", h.submitFeedback)
	return nil
}

// sameOrigin rejects form posts sent from another site.
func sameOrigin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Sec-Fetch-Site") == "cross-site" {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		if origin := c.GetHeader("Origin"); origin != "" {
			u, err := url.Parse(origin)
			if err != nil || u.Host != c.Request.Host {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
		}
		c.Next()
	}
}

type page struct {
	User          *model.User
	State         view.State
	Calendar      view.Calendar
	Weekdays      []string
	Ratings       []int
	SelectedLabel string
	RefreshURL    string
}

func (h *Handler) index(c *gin.Context) {
	user := api.CurrentUser(c)
	if user == nil {
		c.HTML(http.StatusOK, "signin.html", gin.H{"LoginURL": LoginPath})
		return
	}

	ctx := c.Request.Context()
	ctl := h.controller(user)

	date := c.Query("date")
	if date == "" {
		date = ctl.State.SelectedDate
	}
	if err := ctl.SelectDate(ctx, date); err != nil {
		h.log.Debug("select date", zap.String("date", date), zap.Error(err))
		_ = ctl.Refresh(ctx)
	}
	h.showMonth(ctl, c.Query("month"))

	switch c.Query("dialog") {
	case "create":
		ctl.OpenCreate()
	case "feedback":
		ctl.OpenFeedback()
	}
	if id, err := strconv.ParseUint(c.Query("confirm"), 10, 64); err == nil && id > 0 {
		ctl.RequestDelete(uint(id))
	}
	if notice := takeFlash(c); notice != nil && ctl.State.Notice == nil {
		ctl.State.Notice = notice
	}

	// Reloading the page once a minute makes this the reminder poller. Only today's
	// list can be due now.
	if ctl.State.SelectedDate == h.clock.Now().Format(model.DateLayout) {
		notifier := &pageNotifier{}
		if fired := ctl.Tick(ctx, notifier); len(fired) > 0 {
			ctl.State.Notice = &view.Notice{Kind: view.NoticeInfo, Text: reminder.Title + ": " + strings.Join(notifier.bodies, ", ")}
		}
	}

	h.render(c, http.StatusOK, user, ctl)
}

func (h *Handler) createTask(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	ctl := h.controller(user)
	ctl.OpenCreate()
	ctl.State.Create = view.CreateForm{
		Name:        c.PostForm("name"),
		Description: c.PostForm("description"),
		Time:        c.DefaultPostForm("time", view.DefaultTaskTime),
	}
	if err := ctl.SelectDate(ctx, c.PostForm("date")); err != nil {
		_ = ctl.Refresh(ctx)
		h.showMonth(ctl, "")
		h.render(c, http.StatusUnprocessableEntity, user, ctl)
		return
	}
	h.showMonth(ctl, "")

	if !ctl.CreateTask(ctx) {
		h.render(c, http.StatusUnprocessableEntity, user, ctl)
		return
	}
	h.redirect(c, ctl)
}

func (h *Handler) toggleTask(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	ctl := h.controller(user)
	ctl.State.SelectedDate = formDate(c, ctl.State.SelectedDate)

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		ctl.State.Notice = &view.Notice{Kind: view.NoticeError, Text: "Failed to update task"}
		h.redirect(c, ctl)
		return
	}
	completed, _ := strconv.Atoi(c.PostForm("completed"))
	ctl.ToggleTask(c.Request.Context(), uint(id), completed)
	h.redirect(c, ctl)
}

func (h *Handler) deleteTask(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	ctl := h.controller(user)
	ctl.State.SelectedDate = formDate(c, ctl.State.SelectedDate)

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		ctl.State.Notice = &view.Notice{Kind: view.NoticeError, Text: "Failed to delete task"}
		h.redirect(c, ctl)
		return
	}
	ctl.RequestDelete(uint(id))
	ctl.ConfirmDelete(c.Request.Context())
	h.redirect(c, ctl)
}

func (h *Handler) submitFeedback(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	ctl := h.controller(user)
	ctl.State.SelectedDate = formDate(c, ctl.State.SelectedDate)

	rating, err := strconv.Atoi(c.PostForm("rating"))
	if err != nil {
		rating = 0
	}
	ctl.State.Feedback = view.FeedbackForm{Rating: rating, Comment: c.PostForm("comment")}
	if !ctl.SubmitFeedback(ctx) {
		_ = ctl.Refresh(ctx)
		h.showMonth(ctl, "")
		h.render(c, http.StatusUnprocessableEntity, user, ctl)
		return
	}
	h.redirect(c, ctl)
}

func (h *Handler) controller(user *model.User) *view.Controller {
	procs := &userProcedures{tasks: h.tasks, feedback: h.feedback, user: user}
	return view.NewController(procs, h.clock, h.log)
}

func (h *Handler) requireUser(c *gin.Context) (*model.User, bool) {
	user := api.CurrentUser(c)
	if user == nil {
		c.Redirect(http.StatusSeeOther, "/")
		return nil, false
	}
	return user, true
}

// showMonth displays month (YYYY-MM), falling back to the selected date's month.
func (h *Handler) showMonth(ctl *view.Controller, month string) {
	if t, err := time.Parse("2006-01", month); err == nil {
		ctl.ShowMonth(t)
		return
	}
	if t, err := time.Parse(model.DateLayout, ctl.State.SelectedDate); err == nil {
		ctl.ShowMonth(t)
	}
}

func (h *Handler) render(c *gin.Context, status int, user *model.User, ctl *view.Controller) {
	selected := ctl.State.SelectedDate
	label := selected
	if t, err := time.Parse(model.DateLayout, selected); err == nil {
		label = t.Format("Monday, January 2, 2006")
	}
	c.HTML(status, "calendar.html", page{
		User:          user,
		State:         ctl.State,
		Calendar:      ctl.Calendar(h.clock.Now()),
		Weekdays:      view.Weekdays,
		Ratings:       []int{5, 4, 3, 2, 1},
		SelectedLabel: label,
		RefreshURL:    pageURL(selected, ctl.State.Month.Format("2006-01")),
	})
}

// redirect sends the browser back to the page, carrying the notice in a flash cookie.
func (h *Handler) redirect(c *gin.Context, ctl *view.Controller) {
	if n := ctl.State.Notice; n != nil {
		setFlash(c, string(n.Kind)+":"+n.Text, flashTTL)
	}
	c.Redirect(http.StatusSeeOther, pageURL(ctl.State.SelectedDate, ""))
}

func setFlash(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(FlashCookie, value, maxAge, "/", "", session.OptionsFor(c.Request).Secure, true)
}

// takeFlash reads and clears the pending notice.
func takeFlash(c *gin.Context) *view.Notice {
	raw, err := c.Cookie(FlashCookie)
	if err != nil || raw == "" {
		return nil
	}
	setFlash(c, "", -1)
	kind, text, _ := strings.Cut(raw, ":")
	if text == "" {
		return nil
	}
	return &view.Notice{Kind: noticeKind(kind), Text: text}
}

func pageURL(date, month string) string {
	v := url.Values{}
	if date != "" {
		v.Set("date", date)
	}
	if month != "" {
		v.Set("month", month)
	}
	return "/?" + v.Encode()
}

func formDate(c *gin.Context, fallback string) string {
	if d := c.PostForm("date"); service.ValidDate(d) {
		return d
	}
	return fallback
}

func noticeKind(raw string) view.NoticeKind {
	switch view.NoticeKind(raw) {
	case view.NoticeSuccess, view.NoticeError:
		return view.NoticeKind(raw)
	}
	return view.NoticeInfo
}

// pageNotifier shows reminders inline on the rendered page.
type pageNotifier struct {
	bodies []string
}

func (n *pageNotifier) Permission() reminder.Permission { return reminder.PermissionGranted }

func (n *pageNotifier) Notify(_ context.Context, _, body string) error {
	n.bodies = append(n.bodies, body)
	return nil
}

// userProcedures calls the task and feedback services as user.
type userProcedures struct {
	tasks    *service.TaskService
	feedback *service.FeedbackService
	user     *model.User
}

func (p *userProcedures) ListByDate(ctx context.Context, date string) ([]model.Task, error) {
	return p.tasks.ListByDate(ctx, p.user, date)
}

func (p *userProcedures) CreateTask(ctx context.Context, in service.TaskInput) (*model.Task, error) {
	return p.tasks.CreateTask(ctx, p.user, in)
}

func (p *userProcedures) UpdateTask(ctx context.Context, id uint, completed, notificationSent *int) (*model.Task, error) {
	return p.tasks.UpdateTask(ctx, p.user, id, repository.TaskUpdate{Completed: completed, NotificationSent: notificationSent})
}

func (p *userProcedures) DeleteTask(ctx context.Context, id uint) error {
	return p.tasks.DeleteTask(ctx, p.user, id)
}

func (p *userProcedures) SubmitFeedback(ctx context.Context, rating int, comment string) error {
	_, err := p.feedback.Submit(ctx, p.user, rating, comment)
	return err
}

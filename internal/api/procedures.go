package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"todo-calendar/internal/repository"
	"todo-calendar/internal/service"
	"todo-calendar/internal/session"
)

type createTaskInput struct {
	Name        string `json:"name" binding:"required,notblank,max=255"`
	Description string `json:"description" binding:"max=5000"`
	DueDate     string `json:"dueDate" binding:"required,datetime=2006-01-02"`
	DueTime     string `json:"dueTime" binding:"required,clock"`
}

type listByDateInput struct {
	Date string `json:"date" binding:"required,datetime=2006-01-02"`
}

type updateTaskInput struct {
	ID               uint `json:"id" binding:"required"`
	Completed        *int `json:"completed" binding:"omitempty,oneof=0 1"`
	NotificationSent *int `json:"notificationSent" binding:"omitempty,oneof=0 1"`
}

type deleteTaskInput struct {
	ID uint `json:"id" binding:"required"`
}

type feedbackInput struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment" binding:"max=2000"`
}

type linkTelegramInput struct {
	ChatID *int64 `json:"chatId"`
}

var success = gin.H{"success": true}

func (s *Server) registerProcedures() {
	s.publicQuery("auth.me", s.me)
	s.publicMutation("auth.logout", s.logout)

	s.protectedMutation("task.create", s.createTask)
	s.protectedQuery("task.listByDate", s.listByDate)
	s.protectedQuery("task.listAll", s.listAll)
	s.protectedMutation("task.update", s.updateTask)
	s.protectedMutation("task.delete", s.deleteTask)

	s.protectedMutation("feedback.submit", s.submitFeedback)

	s.protectedMutation("notification.linkTelegram", s.linkTelegram)
	s.protectedQuery("notification.status", s.notificationStatus)
}

func (s *Server) me(c *Call) (interface{}, error) {
	if c.User == nil {
		return nil, nil
	}
	return c.User, nil
}

func (s *Server) logout(c *Call) (interface{}, error) {
	if raw, err := c.gin.Cookie(session.CookieName); err == nil && raw != "" {
		if err := s.sessions.Revoke(c.Context, raw); err != nil {
			s.log.Warn("revoke session", zap.Error(err))
		}
	}
	opts := session.OptionsFor(c.gin.Request)
	http.SetCookie(c.gin.Writer, opts.Cookie("", -1))
	return success, nil
}

func (s *Server) createTask(c *Call) (interface{}, error) {
	var in createTaskInput
	if err := c.Bind(&in); err != nil {
		return nil, err
	}
	return s.tasks.CreateTask(c.Context, c.User, service.TaskInput{
		Name:        in.Name,
		Description: in.Description,
		DueDate:     in.DueDate,
		DueTime:     in.DueTime,
	})
}

func (s *Server) listByDate(c *Call) (interface{}, error) {
	var in listByDateInput
	if err := c.Bind(&in); err != nil {
		return nil, err
	}
	return s.tasks.ListByDate(c.Context, c.User, in.Date)
}

func (s *Server) listAll(c *Call) (interface{}, error) {
	return s.tasks.ListAll(c.Context, c.User)
}

func (s *Server) updateTask(c *Call) (interface{}, error) {
	var in updateTaskInput
	if err := c.Bind(&in); err != nil {
		return nil, err
	}
	task, err := s.tasks.UpdateTask(c.Context, c.User, in.ID, repository.TaskUpdate{
		Completed:        in.Completed,
		NotificationSent: in.NotificationSent,
	})
	if err != nil || task == nil {
		return nil, err
	}
	return task, nil
}

func (s *Server) deleteTask(c *Call) (interface{}, error) {
	var in deleteTaskInput
	if err := c.Bind(&in); err != nil {
		return nil, err
	}
	if err := s.tasks.DeleteTask(c.Context, c.User, in.ID); err != nil {
		return nil, err
	}
	return success, nil
}

func (s *Server) submitFeedback(c *Call) (interface{}, error) {
	var in feedbackInput
	if err := c.Bind(&in); err != nil {
		return nil, err
	}
	return s.feedback.Submit(c.Context, c.User, in.Rating, in.Comment)
}

func (s *Server) linkTelegram(c *Call) (interface{}, error) {
	var in linkTelegramInput
	if err := c.Bind(&in); err != nil {
		return nil, err
	}
	if err := s.users.LinkTelegram(c.Context, c.User, in.ChatID); err != nil {
		return nil, err
	}
	return gin.H{"linked": in.ChatID != nil}, nil
}

func (s *Server) notificationStatus(c *Call) (interface{}, error) {
	return gin.H{"linked": c.User.TelegramChatID != nil}, nil
}

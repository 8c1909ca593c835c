package api

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"todo-calendar/internal/logger"
	"todo-calendar/internal/model"
	"todo-calendar/internal/repository"
	"todo-calendar/internal/session"
)

const (
	userKey    = "user"
	authErrKey = "auth_error"
)

// CurrentUser returns the signed-in user resolved for this request, or nil.
func CurrentUser(c *gin.Context) *model.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	user, _ := v.(*model.User)
	return user
}

// authError is set when the session could not be resolved because a backing
// store failed, as opposed to a missing or invalid session.
func authError(c *gin.Context) error {
	v, ok := c.Get(authErrKey)
	if !ok {
		return nil
	}
	err, _ := v.(error)
	return err
}

// authenticate resolves the session cookie on every request. It never rejects;
// protected procedures and pages check CurrentUser themselves.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(session.CookieName)
		if err == nil && raw != "" {
			user, err := s.resolve(c.Request.Context(), raw)
			switch {
			case err != nil:
				s.log.Warn("resolve session", zap.Error(err))
				c.Set(authErrKey, err)
			case user != nil:
				c.Set(userKey, user)
			}
		}
		c.Next()
	}
}

func (s *Server) resolve(ctx context.Context, raw string) (*model.User, error) {
	claims, err := s.sessions.Parse(ctx, raw)
	if errors.Is(err, session.ErrInvalid) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	user, err := s.users.ByOpenID(ctx, claims.Subject)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return user, err
}

// requestLogger logs every request with structured fields.
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("status", status),
			zap.Int("response_size", c.Writer.Size()),
			zap.Duration("latency", time.Since(start)),
		}
		if user := CurrentUser(c); user != nil {
			fields = append(fields, logger.WithUserID(user.ID))
		}

		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Debug("HTTP request", fields...)
		}
	}
}

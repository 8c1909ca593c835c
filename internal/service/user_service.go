package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"todo-calendar/internal/logger"
	"todo-calendar/internal/model"
	"todo-calendar/internal/repository"
)

// Identity is what the identity provider tells us about a signed-in subject.
type Identity struct {
	OpenID      string
	Name        string
	Email       string
	LoginMethod string
}

// UserService provisions accounts at sign-in and resolves session subjects.
type UserService struct {
	repo        *repository.UserRepository
	ownerOpenID string
	log         *zap.Logger
}

func NewUserService(repo *repository.UserRepository, ownerOpenID string, log *zap.Logger) *UserService {
	return &UserService{repo: repo, ownerOpenID: ownerOpenID, log: log}
}

// Provision upserts the signed-in subject. The configured owner gets the admin role
// when the account is first created; later sign-ins leave the stored role alone.
func (s *UserService) Provision(ctx context.Context, id Identity, now time.Time) (*model.User, error) {
	in := repository.UserUpsert{
		OpenID:       id.OpenID,
		Name:         optional(id.Name),
		Email:        optional(id.Email),
		LoginMethod:  optional(id.LoginMethod),
		LastSignedIn: &now,
	}
	if s.ownerOpenID != "" && id.OpenID == s.ownerOpenID {
		_, err := s.repo.GetByOpenID(ctx, id.OpenID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			admin := model.RoleAdmin
			in.Role = &admin
		case err != nil:
			return nil, fmt.Errorf("provision user: %w", err)
		}
	}

	user, err := s.repo.Upsert(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("provision user: %w", err)
	}
	s.log.Info("user signed in", logger.WithUserID(user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// ByOpenID resolves a session subject. repository.ErrNotFound means the account is gone.
func (s *UserService) ByOpenID(ctx context.Context, openID string) (*model.User, error) {
	return s.repo.GetByOpenID(ctx, openID)
}

// LinkTelegram attaches (or with nil detaches) the chat reminders go to.
func (s *UserService) LinkTelegram(ctx context.Context, user *model.User, chatID *int64) error {
	if chatID != nil && *chatID == 0 {
		return invalid("chatId", "chat id must be non-zero")
	}
	return s.repo.SetTelegramChat(ctx, user.ID, chatID)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

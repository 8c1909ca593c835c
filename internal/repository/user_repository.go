package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"todo-calendar/internal/model"
)

// ErrOpenIDRequired is returned by Upsert when the subject id is empty.
var ErrOpenIDRequired = errors.New("user openId is required for upsert")

// UserUpsert carries the fields supplied at sign-in. Nil fields are left untouched
// on an existing row.
type UserUpsert struct {
	OpenID       string
	Name         *string
	Email        *string
	LoginMethod  *string
	Role         *model.Role
	LastSignedIn *time.Time
}

// UserRepository handles CRUD for users.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert inserts the user or, when the openId already exists, updates only the supplied
// fields. lastSignedIn is always refreshed, to now unless supplied.
func (r *UserRepository) Upsert(ctx context.Context, in UserUpsert) (*model.User, error) {
	if in.OpenID == "" {
		return nil, ErrOpenIDRequired
	}
	db, err := session(ctx, r.db)
	if err != nil {
		return nil, err
	}

	user := model.User{
		OpenID:       in.OpenID,
		Name:         in.Name,
		Email:        in.Email,
		LoginMethod:  in.LoginMethod,
		LastSignedIn: db.NowFunc(),
	}
	if in.LastSignedIn != nil {
		user.LastSignedIn = *in.LastSignedIn
	}

	columns := []string{"lastSignedIn", "updatedAt"}
	if in.Name != nil {
		columns = append(columns, "name")
	}
	if in.Email != nil {
		columns = append(columns, "email")
	}
	if in.LoginMethod != nil {
		columns = append(columns, "loginMethod")
	}
	if in.Role != nil {
		user.Role = *in.Role
		columns = append(columns, "role")
	}

	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "openId"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(&user).Error
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}

	return r.GetByOpenID(ctx, in.OpenID)
}

func (r *UserRepository) GetByOpenID(ctx context.Context, openID string) (*model.User, error) {
	db, err := session(ctx, r.db)
	if err != nil {
		return nil, err
	}
	var user model.User
	if err := db.Where(map[string]interface{}{"openId": openID}).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uint) (*model.User, error) {
	db, err := session(ctx, r.db)
	if err != nil {
		return nil, err
	}
	var user model.User
	if err := db.First(&user, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// GetByTelegramChat finds the user a chat is linked to.
func (r *UserRepository) GetByTelegramChat(ctx context.Context, chatID int64) (*model.User, error) {
	db, err := session(ctx, r.db)
	if err != nil {
		return nil, err
	}
	var user model.User
	if err := db.Where(map[string]interface{}{"telegramChatId": chatID}).Order("id ASC").First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// SetTelegramChat stores the chat id reminders are sent to; nil unlinks.
func (r *UserRepository) SetTelegramChat(ctx context.Context, id uint, chatID *int64) error {
	db, err := session(ctx, r.db)
	if err != nil {
		return err
	}
	if err := db.Model(&model.User{}).Where("id = ?", id).Update("telegramChatId", chatID).Error; err != nil {
		return fmt.Errorf("set telegram chat: %w", err)
	}
	return nil
}

// ListLinked returns users with a Telegram chat attached.
func (r *UserRepository) ListLinked(ctx context.Context) ([]model.User, error) {
	db, err := session(ctx, r.db)
	if err != nil {
		return nil, err
	}
	var users []model.User
	if err := db.Not(map[string]interface{}{"telegramChatId": nil}).Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"todo-calendar/internal/model"
	"todo-calendar/internal/reminder"
	"todo-calendar/internal/repository"
)

// sender is the part of the Telegram API the bot writes through.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Summarizer builds the daily digest text for a user.
type Summarizer interface {
	DailySummary(ctx context.Context, user model.User, now time.Time) (string, error)
}

// Bot answers chat commands and delivers reminders to linked chats.
type Bot struct {
	api       *tgbotapi.BotAPI
	send      sender
	users     *repository.UserRepository
	summaries Summarizer
	clock     reminder.Clock
	log       *zap.Logger
}

func New(token string, users *repository.UserRepository, clock reminder.Clock, log *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Info("bot authorized", zap.String("account", api.Self.UserName))

	return &Bot{
		api:   api,
		send:  api,
		users: users,
		clock: clock,
		log:   log,
	}, nil
}

// UseSummaries enables /today. The reminder service depends on the bot for delivery,
// so it is attached after construction.
func (b *Bot) UseSummaries(s Summarizer) {
	b.summaries = s
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		if update.Message == nil || update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			continue
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			b.log.Warn("handle message", zap.Int64("chat_id", update.Message.Chat.ID), zap.Error(err))
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if !msg.IsCommand() {
		return b.SendText(msg.Chat.ID, "Send /start to get the chat id for your reminders.")
	}

	b.log.Debug("command", zap.Int64("chat_id", msg.Chat.ID), zap.String("command", msg.Command()))

	switch msg.Command() {
	case "start":
		return b.handleStart(msg)
	case "help":
		return b.handleHelp(msg)
	case "today":
		return b.handleToday(ctx, msg)
	default:
		return b.SendText(msg.Chat.ID, "Unknown command. Try /help.")
	}
}

func (b *Bot) handleStart(msg *tgbotapi.Message) error {
	name := ""
	if msg.From != nil {
		name = strings.TrimSpace(msg.From.FirstName)
	}
	if name == "" {
		name = "there"
	}

	text := fmt.Sprintf(
		"Hi, %s!\nYour chat id is <code>%d</code>.\n"+
			"Paste it into the reminders box of the calendar to get task reminders here.",
		escape(name), msg.Chat.ID,
	)
	return b.SendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "<b>Commands</b>\n" +
		"• /start · show the chat id to link\n" +
		"• /today · open tasks for today\n" +
		"• /help · this message"
	return b.SendText(msg.Chat.ID, text)
}

func (b *Bot) handleToday(ctx context.Context, msg *tgbotapi.Message) error {
	if b.summaries == nil {
		return b.SendText(msg.Chat.ID, "Summaries are not available right now.")
	}
	user, err := b.users.GetByTelegramChat(ctx, msg.Chat.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return b.SendText(msg.Chat.ID, "This chat is not linked yet. Send /start for the id.")
	}
	if err != nil {
		return err
	}
	text, err := b.summaries.DailySummary(ctx, *user, b.clock.Now())
	if err != nil {
		return b.SendText(msg.Chat.ID, fmt.Sprintf("Could not build the summary: %s", escape(err.Error())))
	}
	return b.SendText(msg.Chat.ID, escape(text))
}

// SendText sends an HTML formatted message.
func (b *Bot) SendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.send.Send(msg)
	return err
}

// NotifierFor returns the reminder channel of user. Permission is granted only
// when the user linked a chat.
func (b *Bot) NotifierFor(user model.User) reminder.Notifier {
	return chatNotifier{bot: b, chatID: user.TelegramChatID}
}

type chatNotifier struct {
	bot    *Bot
	chatID *int64
}

func (n chatNotifier) Permission() reminder.Permission {
	if n.chatID == nil {
		return reminder.PermissionDenied
	}
	return reminder.PermissionGranted
}

func (n chatNotifier) Notify(_ context.Context, title, body string) error {
	if n.chatID == nil {
		return errors.New("no chat linked")
	}
	return n.bot.SendText(*n.chatID, fmt.Sprintf("<b>%s</b>\n%s", escape(title), escape(body)))
}

func escape(s string) string {
	return html.EscapeString(s)
}

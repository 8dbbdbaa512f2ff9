// Package telegram runs the Telegram bot and delivers admin messages.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/devilmonastery/studenthistory/internal/domain/entities"
	"github.com/devilmonastery/studenthistory/internal/pkg/metrics"
	"github.com/devilmonastery/studenthistory/internal/pkg/urlutil"
)

// ErrNoToken is returned when the bot is created without a token
var ErrNoToken = errors.New("telegram bot token not configured")

const pollTimeoutSeconds = 60

// ChatRegistrar stores the chat a Telegram account talks to the bot from
type ChatRegistrar interface {
	RegisterChat(ctx context.Context, profile entities.TelegramProfile, chatID string) (bool, error)
}

// botAPI is the subset of tgbotapi.BotAPI the bot uses
type botAPI interface {
	sender
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot answers /start and records chat IDs
type Bot struct {
	api      botAPI
	links    ChatRegistrar
	username string
	log      *slog.Logger
}

// New connects to the Bot API. username overrides the name reported by
// getMe when set.
func New(token, username string, links ChatRegistrar, logger *slog.Logger) (*Bot, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	if username == "" {
		username = api.Self.UserName
	}
	return newBot(api, username, links, logger), nil
}

func newBot(api botAPI, username string, links ChatRegistrar, logger *slog.Logger) *Bot {
	return &Bot{
		api:      api,
		links:    links,
		username: username,
		log:      logger.With(slog.String("component", "telegram_bot")),
	}
}

// Username returns the bot's username
func (b *Bot) Username() string {
	return b.username
}

// Messenger returns a messenger sharing the bot's API client
func (b *Bot) Messenger() *Messenger {
	return NewMessenger(b.api)
}

// Run long-polls for updates until ctx is cancelled
func (b *Bot) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeoutSeconds
	cfg.AllowedUpdates = []string{"message"}

	updates := b.api.GetUpdatesChan(cfg)
	b.log.Info("Telegram bot polling started", "username", b.username)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.log.Info("Telegram bot polling stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || !msg.IsCommand() || msg.From == nil {
		return
	}

	switch msg.Command() {
	case "start":
		b.handleStart(ctx, msg)
	default:
		metrics.TelegramCommands.WithLabelValues("unknown", "ignored").Inc()
	}
}

// handleStart records the chat and always answers with the launch link,
// even when storing the chat fails
func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	profile := entities.TelegramProfile{
		TelegramID: strconv.FormatInt(msg.From.ID, 10),
		Username:   msg.From.UserName,
		FirstName:  msg.From.FirstName,
		LastName:   msg.From.LastName,
	}
	chatID := strconv.FormatInt(msg.Chat.ID, 10)

	status := "success"
	linked, err := b.links.RegisterChat(ctx, profile, chatID)
	if err != nil {
		status = "error"
		b.log.Error("Failed to register chat",
			"telegram_id", profile.TelegramID,
			"error", err)
	} else {
		b.log.Info("Chat registered",
			"telegram_id", profile.TelegramID,
			"linked", linked)
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, FormatHTML(WelcomeMessage(b.username)))
	reply.ParseMode = tgbotapi.ModeHTML
	reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("Посмотреть уроки", LaunchURL(b.username)),
		),
	)
	if _, err := b.api.Send(reply); err != nil {
		status = "error"
		metrics.TelegramMessages.WithLabelValues("welcome", "failed").Inc()
		b.log.Warn("Failed to send welcome message",
			"telegram_id", profile.TelegramID,
			"error", err)
	} else {
		metrics.TelegramMessages.WithLabelValues("welcome", "sent").Inc()
	}
	metrics.TelegramCommands.WithLabelValues("start", status).Inc()
}

// LaunchURL opens the bot's Mini App
func LaunchURL(username string) string {
	return urlutil.TelegramLaunchURL(username)
}

// WelcomeMessage is the markdown reply to /start
func WelcomeMessage(username string) string {
	link := LaunchURL(username)
	return "👋 Привет! Я бот для отслеживания истории уроков.\n\n" +
		"Чтобы посмотреть свою историю уроков и баланс, просто нажми " +
		"[ЗАПУСТИТЬ / LAUNCH](" + link + ")\n\n" +
		"Или на кнопку в левом нижнем углу\n" +
		"👉 [посмотреть уроки](" + link + ")"
}

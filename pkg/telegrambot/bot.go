package telegrambot

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	telebot "gopkg.in/telebot.v3"

	"referral-tg-admin/internal/config"
	"referral-tg-admin/internal/handlers"
	"referral-tg-admin/internal/permissions"
	"referral-tg-admin/internal/services"
)

// Bot represents a Telegram bot
type Bot struct {
	bot          *telebot.Bot
	config       *config.Config
	handlers     map[permissions.AccessType]handlers.MessageHandler
	stateService *services.UserStateService
	permCtrl     *permissions.PermissionController
	logger       *logrus.Logger
	ctx          context.Context
}

// NewBot creates a new Telegram bot
func NewBot(
	cfg *config.Config,
	ledger *services.LedgerService,
	stateService *services.UserStateService,
	qrService *services.QRService,
	permCtrl *permissions.PermissionController,
	logger *logrus.Logger,
) (*Bot, error) {
	settings := telebot.Settings{
		URL:    cfg.Telegram.APIURL,
		Token:  cfg.Telegram.Token,
		Poller: &telebot.LongPoller{Timeout: cfg.Telegram.PollTimeout},
		OnError: func(err error, c telebot.Context) {
			logger.Errorf("Telegram bot error: %v", err)
			if c != nil && c.Callback() == nil {
				_ = c.Send("An error occurred. Please try again later.")
			}
		},
	}

	b, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	bot := &Bot{
		bot:          b,
		config:       cfg,
		handlers:     make(map[permissions.AccessType]handlers.MessageHandler),
		stateService: stateService,
		permCtrl:     permCtrl,
		logger:       logger,
		ctx:          context.Background(),
	}

	// The bot itself verifies channel membership
	factory := handlers.NewHandlerFactory(ledger, stateService, qrService, bot, permCtrl, cfg, logger)

	bot.handlers[permissions.Admin] = factory.CreateHandler(permissions.Admin)
	bot.handlers[permissions.Member] = factory.CreateHandler(permissions.Member)

	bot.setupMiddleware()

	logger.Infof("Authorized on Telegram account @%s", b.Me.Username)
	return bot, nil
}

// Username returns the bot's Telegram username
func (b *Bot) Username() string {
	return b.bot.Me.Username
}

// Start starts the bot and blocks until ctx is cancelled
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("Starting Telegram bot")
	b.ctx = ctx

	err := b.bot.SetCommands([]telebot.Command{
		{Text: "start", Description: "Open the main menu"},
		{Text: "help", Description: "How the rewards work"},
	})
	if err != nil {
		b.logger.Warnf("Failed to set bot commands: %v", err)
	}

	go func() {
		<-ctx.Done()
		b.logger.Info("Stopping Telegram bot")
		b.bot.Stop()
	}()

	b.bot.Start()
	return nil
}

// Notify sends a plain text message to a Telegram user
func (b *Bot) Notify(_ context.Context, telegramID int64, text string) error {
	_, err := b.bot.Send(telebot.ChatID(telegramID), text)
	if err != nil {
		return fmt.Errorf("failed to send message to %d: %w", telegramID, err)
	}
	return nil
}

// channel addresses a public channel or group by its username
type channel string

// Recipient returns the @username form expected by the Bot API
func (c channel) Recipient() string {
	return "@" + string(c)
}

// IsMember reports whether the user is a member of the public group
func (b *Bot) IsMember(_ context.Context, group string, telegramID int64) (bool, error) {
	member, err := b.bot.ChatMemberOf(channel(group), &telebot.User{ID: telegramID})
	if err != nil {
		return false, fmt.Errorf("failed to get membership in @%s: %w", group, err)
	}

	switch member.Role {
	case telebot.Left, telebot.Kicked:
		return false, nil
	default:
		return true, nil
	}
}

// setupMiddleware sets up the bot middleware
func (b *Bot) setupMiddleware() {
	b.bot.Use(func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			if c.Sender() == nil {
				return nil
			}

			if cb := c.Callback(); cb != nil {
				b.logger.Infof("Received callback from %d: %s", c.Sender().ID, cb.Data)
			} else {
				b.logger.Infof("Received message from %d: %s", c.Sender().ID, c.Text())
			}

			return next(c)
		}
	})

	b.bot.Handle(telebot.OnText, b.handleUpdate)
	b.bot.Handle(telebot.OnCallback, b.handleUpdate)
	b.bot.Handle("/start", b.handleUpdate)
	b.bot.Handle("/help", b.handleUpdate)
}

// handleUpdate handles an update from Telegram
func (b *Bot) handleUpdate(c telebot.Context) error {
	userID := c.Sender().ID

	accessType := b.permCtrl.GetAccessType(userID)

	handler, ok := b.handlers[accessType]
	if !ok {
		b.logger.Warnf("No handler for access type %d", accessType)
		return c.Send("You don't have permission to use this bot.")
	}

	return handler.Handle(b.ctx, c)
}

var (
	_ services.Notifier          = (*Bot)(nil)
	_ services.MembershipChecker = (*Bot)(nil)
)

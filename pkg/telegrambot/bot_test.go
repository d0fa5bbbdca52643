package telegrambot

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"referral-tg-admin/internal/commands"
	"referral-tg-admin/internal/config"
	"referral-tg-admin/internal/models"
	"referral-tg-admin/internal/permissions"
	"referral-tg-admin/internal/services"
	"referral-tg-admin/internal/storage"
	"referral-tg-admin/internal/telegramtest"
)

const adminID = 900

type botFixture struct {
	bot    *Bot
	api    *telegramtest.Server
	ledger *services.LedgerService
	store  storage.Store
}

func newBotFixture(t *testing.T) *botFixture {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	api := telegramtest.NewServer(t)
	cfg := &config.Config{
		Telegram: config.TelegramConfig{
			Token:       "test-token",
			AdminIDs:    []int64{adminID},
			PollTimeout: time.Second,
			APIURL:      api.URL,
		},
		Rewards: config.RewardsConfig{
			Currency:      "₦",
			ClaimBonus:    1000,
			ReferralBonus: 5000,
			MinWithdrawal: 20000,
			ClaimCooldown: time.Hour,
		},
		Community: config.CommunityConfig{RequiredGroups: []string{"newsroom"}},
	}

	store, err := storage.NewJSONStore("", logger)
	require.NoError(t, err)

	ledger := services.NewLedgerService(store, services.NewLogNotifier(logger), cfg, logger)
	permCtrl := permissions.NewController(cfg.Telegram.AdminIDs, logger)

	bot, err := NewBot(cfg, ledger, services.NewUserStateService(logger), services.NewQRService(logger), permCtrl, logger)
	require.NoError(t, err)
	ledger.SetNotifier(bot)

	return &botFixture{bot: bot, api: api, ledger: ledger, store: store}
}

func (f *botFixture) message(userID int64, text string) telebot.Context {
	return f.bot.bot.NewContext(telebot.Update{
		ID: 1,
		Message: &telebot.Message{
			ID:     1,
			Sender: &telebot.User{ID: userID, FirstName: "Ada"},
			Chat:   &telebot.Chat{ID: userID, Type: telebot.ChatPrivate},
			Text:   text,
		},
	})
}

func (f *botFixture) lastText(t *testing.T, chatID int64) string {
	t.Helper()
	texts := f.api.Texts(chatID)
	require.NotEmpty(t, texts)
	return texts[len(texts)-1]
}

func TestNewBot_UsesConfiguredAPI(t *testing.T) {
	f := newBotFixture(t)

	assert.Equal(t, telegramtest.BotUsername, f.bot.Username())
	assert.Len(t, f.api.Requests("getMe"), 1)
}

func TestNotify(t *testing.T) {
	f := newBotFixture(t)

	require.NoError(t, f.bot.Notify(context.Background(), 42, "hello"))
	sent, ok := f.api.Last("sendMessage")
	require.True(t, ok)
	assert.Equal(t, "42", sent.Params["chat_id"])
	assert.Equal(t, "hello", sent.Params["text"])

	f.api.Fail("sendMessage")
	err := f.bot.Notify(context.Background(), 42, "again")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to send message to 42")
}

func TestIsMember(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.api.SetMemberStatus("@newsroom", 7, telebot.Left)
	f.api.SetMemberStatus("@newsroom", 8, telebot.Kicked)
	f.api.SetMemberStatus("@newsroom", 10, telebot.Administrator)

	tests := []struct {
		userID int64
		want   bool
	}{
		{7, false},
		{8, false},
		{9, true},
		{10, true},
	}
	for _, tt := range tests {
		got, err := f.bot.IsMember(ctx, "newsroom", tt.userID)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "user %d", tt.userID)
	}

	req, ok := f.api.Last("getChatMember")
	require.True(t, ok)
	assert.Equal(t, "@newsroom", req.Params["chat_id"])
	assert.Equal(t, "10", req.Params["user_id"])

	f.api.Fail("getChatMember")
	_, err := f.bot.IsMember(ctx, "newsroom", 7)
	assert.Error(t, err)
}

func TestHandleUpdate_RoutesByAccessType(t *testing.T) {
	f := newBotFixture(t)

	require.NoError(t, f.bot.handleUpdate(f.message(adminID, commands.Dashboard)))
	assert.Contains(t, f.lastText(t, adminID), "Dashboard:")

	require.NoError(t, f.bot.handleUpdate(f.message(100, commands.Dashboard)))
	assert.Equal(t, "Please start the bot with /start command first.", f.lastText(t, 100))
}

func TestJoinedChecksMembershipThroughBotAPI(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	_, _, err := f.ledger.Register(ctx, services.RegisterInput{TelegramID: 100, FirstName: "Ada"})
	require.NoError(t, err)

	f.api.SetMemberStatus("@newsroom", 100, telebot.Left)
	require.NoError(t, f.bot.handleUpdate(f.message(100, commands.Joined)))
	user, err := f.ledger.GetUser(ctx, 100)
	require.NoError(t, err)
	assert.False(t, user.HasJoinedGroups)

	f.api.SetMemberStatus("@newsroom", 100, telebot.Member)
	require.NoError(t, f.bot.handleUpdate(f.message(100, commands.Joined)))
	user, err = f.ledger.GetUser(ctx, 100)
	require.NoError(t, err)
	assert.True(t, user.HasJoinedGroups)
	assert.Equal(t, int64(1000), user.Balance)
}

func TestLedgerNotifiesThroughBot(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	_, _, err := f.ledger.Register(ctx, services.RegisterInput{TelegramID: 100, FirstName: "Ada"})
	require.NoError(t, err)
	_, err = f.ledger.MarkJoinedGroups(ctx, 100)
	require.NoError(t, err)
	user, err := f.ledger.SetBankDetails(ctx, 100, models.BankDetails{
		AccountNumber: "0123456789",
		BankName:      "Access Bank",
		AccountName:   "Ada Obi",
	})
	require.NoError(t, err)
	user.Balance = 30000
	require.NoError(t, f.store.UpdateTelegramUser(ctx, user))

	f.ledger.SetClock(func() time.Time { return time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC) })
	request, err := f.ledger.SubmitWithdrawal(ctx, 100, 20000)
	require.NoError(t, err)

	_, err = f.ledger.UpdateWithdrawalStatus(ctx, request.ID, models.WithdrawalApproved)
	require.NoError(t, err)
	assert.Contains(t, f.lastText(t, 100), "has been approved")
}

package handlers

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
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

const testAdminID = 900

// Saturday
var conversationNow = time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

type fakeMembership struct {
	mu     sync.Mutex
	joined map[int64]bool
}

func (m *fakeMembership) IsMember(_ context.Context, _ string, telegramID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.joined[telegramID], nil
}

func (m *fakeMembership) join(telegramID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.joined[telegramID] = true
}

type conversationFixture struct {
	api        *telegramtest.Server
	bot        *telebot.Bot
	store      storage.Store
	ledger     *services.LedgerService
	states     *services.UserStateService
	membership *fakeMembership
	permCtrl   *permissions.PermissionController
	factory    *HandlerFactory
}

func newConversationFixture(t *testing.T) *conversationFixture {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &config.Config{
		Telegram: config.TelegramConfig{AdminIDs: []int64{testAdminID}},
		Rewards: config.RewardsConfig{
			Currency:      "₦",
			ClaimBonus:    1000,
			ReferralBonus: 5000,
			WelcomeBonus:  500,
			MinWithdrawal: 20000,
			MaxWithdrawal: 100000,
			ClaimCooldown: time.Hour,
			WithdrawalDays: []time.Weekday{
				time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
				time.Thursday, time.Friday, time.Saturday,
			},
		},
		Community: config.CommunityConfig{RequiredGroups: []string{"newsroom"}},
	}

	store, err := storage.NewJSONStore("", logger)
	require.NoError(t, err)

	ledger := services.NewLedgerService(store, services.NewLogNotifier(logger), cfg, logger)
	ledger.SetClock(func() time.Time { return conversationNow })

	api := telegramtest.NewServer(t)
	f := &conversationFixture{
		api:        api,
		bot:        api.NewBot(t),
		store:      store,
		ledger:     ledger,
		states:     services.NewUserStateService(logger),
		membership: &fakeMembership{joined: make(map[int64]bool)},
		permCtrl:   permissions.NewController(cfg.Telegram.AdminIDs, logger),
	}
	f.factory = NewHandlerFactory(ledger, f.states, services.NewQRService(logger), f.membership, f.permCtrl, cfg, logger)
	return f
}

func (f *conversationFixture) handle(t *testing.T, userID int64, c telebot.Context) {
	t.Helper()
	handler := f.factory.CreateHandler(f.permCtrl.GetAccessType(userID))
	require.NoError(t, handler.Handle(context.Background(), c))
}

// send delivers a private text message from userID
func (f *conversationFixture) send(t *testing.T, userID int64, text string) {
	t.Helper()

	msg := &telebot.Message{
		ID:     1,
		Sender: &telebot.User{ID: userID, FirstName: "Ada", LastName: "Obi"},
		Chat:   &telebot.Chat{ID: userID, Type: telebot.ChatPrivate},
		Text:   text,
	}
	if strings.HasPrefix(text, "/") {
		_, msg.Payload, _ = strings.Cut(text, " ")
	}
	f.handle(t, userID, f.bot.NewContext(telebot.Update{ID: 1, Message: msg}))
}

// press delivers an inline button press by userID on message 42
func (f *conversationFixture) press(t *testing.T, userID int64, data string) {
	t.Helper()

	callback := &telebot.Callback{
		ID:     "cb-1",
		Sender: &telebot.User{ID: userID, FirstName: "Admin"},
		Message: &telebot.Message{
			ID:   42,
			Chat: &telebot.Chat{ID: userID, Type: telebot.ChatPrivate},
		},
		Data: data,
	}
	f.handle(t, userID, f.bot.NewContext(telebot.Update{ID: 2, Callback: callback}))
}

// lastText returns the latest message sent to chatID
func (f *conversationFixture) lastText(t *testing.T, chatID int64) string {
	t.Helper()
	texts := f.api.Texts(chatID)
	require.NotEmpty(t, texts)
	return texts[len(texts)-1]
}

func (f *conversationFixture) state(t *testing.T, userID int64) *models.UserState {
	t.Helper()
	state, err := f.states.GetState(userID)
	require.NoError(t, err)
	return state
}

func (f *conversationFixture) user(t *testing.T, userID int64) *models.TelegramUser {
	t.Helper()
	user, err := f.ledger.GetUser(context.Background(), userID)
	require.NoError(t, err)
	return user
}

// member registers a user who already joined the groups and sets its balance
func (f *conversationFixture) member(t *testing.T, userID, balance int64, withBank bool) {
	t.Helper()
	ctx := context.Background()

	_, _, err := f.ledger.Register(ctx, services.RegisterInput{TelegramID: userID, FirstName: "Ada", LastName: "Obi"})
	require.NoError(t, err)
	_, err = f.ledger.MarkJoinedGroups(ctx, userID)
	require.NoError(t, err)
	if withBank {
		_, err = f.ledger.SetBankDetails(ctx, userID, models.BankDetails{
			AccountNumber: "0123456789",
			BankName:      "Access Bank",
			AccountName:   "Ada Obi",
		})
		require.NoError(t, err)
	}

	user := f.user(t, userID)
	user.Balance = balance
	require.NoError(t, f.store.UpdateTelegramUser(ctx, user))
}

func TestConversation_StartWithReferral(t *testing.T) {
	f := newConversationFixture(t)

	f.send(t, 100, "/start")
	assert.Contains(t, f.lastText(t, 100), "@newsroom")

	f.send(t, 200, "/start ref_100")
	texts := f.api.Texts(200)
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "welcome bonus of ₦500")
	assert.Contains(t, texts[1], "Join Our Channel")

	referrer := f.user(t, 100)
	assert.Equal(t, int64(5000), referrer.Balance)
	assert.Equal(t, 1, referrer.ReferralCount)

	referred := f.user(t, 200)
	require.NotNil(t, referred.ReferrerID)
	assert.Equal(t, int64(100), *referred.ReferrerID)
	assert.Equal(t, int64(500), referred.Balance)

	// Starting again neither registers nor credits twice
	f.send(t, 200, "/start ref_100")
	assert.Equal(t, int64(5000), f.user(t, 100).Balance)
}

func TestConversation_UnknownUserIsAskedToStart(t *testing.T) {
	f := newConversationFixture(t)

	f.send(t, 555, commands.Balance)
	assert.Equal(t, "Please start the bot with /start command first.", f.lastText(t, 555))

	f.send(t, 555, commands.Joined)
	assert.Equal(t, "Please start the bot with /start command first.", f.lastText(t, 555))
}

func TestConversation_JoinedCreditsBonus(t *testing.T) {
	f := newConversationFixture(t)
	f.send(t, 100, "/start")

	f.send(t, 100, commands.Joined)
	texts := f.api.Texts(100)
	assert.Contains(t, texts[len(texts)-2], "You have not joined all required channels yet.")
	assert.False(t, f.user(t, 100).HasJoinedGroups)
	assert.Equal(t, int64(0), f.user(t, 100).Balance)

	f.membership.join(100)
	f.send(t, 100, commands.Joined)
	texts = f.api.Texts(100)
	bonus := texts[len(texts)-2]
	assert.Contains(t, bonus, "claimed your bonus of ₦1,000")
	assert.Contains(t, bonus, "New balance: ₦1,000")
	assert.Contains(t, f.lastText(t, 100), "Enter Bank Details")

	user := f.user(t, 100)
	assert.True(t, user.HasJoinedGroups)
	assert.Equal(t, int64(1000), user.Balance)
	require.NotNil(t, user.LastBonusClaim)

	state := f.state(t, 100)
	assert.Equal(t, models.AwaitingBankDetails, state.State)
	assert.Equal(t, models.Default, state.Resume)

	f.send(t, 100, commands.Joined)
	assert.Contains(t, f.lastText(t, 100), "already joined")
	assert.Equal(t, int64(1000), f.user(t, 100).Balance)
}

func TestConversation_BankDetails(t *testing.T) {
	f := newConversationFixture(t)
	f.member(t, 100, 0, false)

	f.send(t, 100, commands.AccountDetails)
	assert.Equal(t, models.AwaitingBankDetails, f.state(t, 100).State)

	f.send(t, 100, "not enough")
	assert.Contains(t, f.lastText(t, 100), "Please send your details as")
	assert.Equal(t, models.AwaitingBankDetails, f.state(t, 100).State)

	f.send(t, 100, "0123456789\nAccess Bank\nAda Obi")
	assert.Contains(t, f.lastText(t, 100), "Bank details saved!")
	assert.Equal(t, models.Default, f.state(t, 100).State)

	user := f.user(t, 100)
	assert.Equal(t, "0123456789", user.AccountNumber)
	assert.Equal(t, "Access Bank", user.BankName)
	assert.Equal(t, "Ada Obi", user.AccountName)
}

func TestConversation_WithdrawalSubmission(t *testing.T) {
	f := newConversationFixture(t)
	f.member(t, 100, 30000, true)

	f.send(t, 100, commands.Withdraw)
	assert.Contains(t, f.lastText(t, 100), "Enter the amount you want to withdraw")
	assert.Equal(t, models.AwaitingWithdrawalAmount, f.state(t, 100).State)

	f.send(t, 100, "500.00")
	assert.Equal(t, "❌ Please enter a valid amount, for example 20000.", f.lastText(t, 100))
	assert.Equal(t, models.AwaitingWithdrawalAmount, f.state(t, 100).State)

	f.send(t, 100, "1000")
	assert.Equal(t, "❌ Minimum withdrawal amount is ₦20,000.", f.lastText(t, 100))

	f.send(t, 100, "50,000")
	assert.Contains(t, f.lastText(t, 100), "enough balance")
	assert.Empty(t, f.api.Texts(testAdminID))

	f.send(t, 100, "₦25,000")
	assert.Contains(t, f.lastText(t, 100), "submitted successfully")
	assert.Equal(t, models.Default, f.state(t, 100).State)
	assert.Equal(t, int64(5000), f.user(t, 100).Balance)

	pending, err := f.ledger.ListWithdrawals(context.Background(), models.WithdrawalFilter{Status: models.WithdrawalPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(25000), pending[0].Amount)

	var notice telegramtest.Request
	for _, r := range f.api.Requests("sendMessage") {
		if r.Params["chat_id"] == fmt.Sprint(testAdminID) {
			notice = r
		}
	}
	assert.Contains(t, notice.Params["text"], "New withdrawal request")
	assert.Contains(t, notice.Params["reply_markup"], fmt.Sprintf("wd_approve_%d", pending[0].ID))
	assert.Contains(t, notice.Params["reply_markup"], fmt.Sprintf("wd_reject_%d", pending[0].ID))
}

func TestConversation_WithdrawResumesAfterBankDetails(t *testing.T) {
	f := newConversationFixture(t)
	f.member(t, 100, 30000, false)

	f.send(t, 100, commands.Withdraw)
	texts := f.api.Texts(100)
	assert.Contains(t, texts[len(texts)-2], "set up your bank details")
	state := f.state(t, 100)
	assert.Equal(t, models.AwaitingBankDetails, state.State)
	assert.Equal(t, models.AwaitingWithdrawalAmount, state.Resume)

	f.send(t, 100, "0123456789\nAccess Bank\nAda Obi")
	texts = f.api.Texts(100)
	assert.Contains(t, texts[len(texts)-2], "Bank details saved!")
	assert.Contains(t, f.lastText(t, 100), "Enter the amount you want to withdraw")
	assert.Equal(t, models.AwaitingWithdrawalAmount, f.state(t, 100).State)

	f.send(t, 100, "20000")
	assert.Contains(t, f.lastText(t, 100), "submitted successfully")
}

func TestConversation_CancelClearsPendingInput(t *testing.T) {
	f := newConversationFixture(t)
	f.member(t, 100, 30000, true)

	f.send(t, 100, commands.Withdraw)
	f.send(t, 100, commands.Cancel)

	texts := f.api.Texts(100)
	assert.Equal(t, "Withdrawal cancelled.", texts[len(texts)-2])
	assert.Contains(t, f.lastText(t, 100), "Welcome To Main Menu")
	assert.Equal(t, models.Default, f.state(t, 100).State)
	assert.Equal(t, int64(30000), f.user(t, 100).Balance)
}

func TestConversation_ClaimCooldown(t *testing.T) {
	f := newConversationFixture(t)
	f.member(t, 100, 0, true)

	f.send(t, 100, commands.Claim)
	assert.Contains(t, f.lastText(t, 100), "Congratulations")
	assert.Contains(t, f.lastText(t, 100), "+₦1,000")
	assert.Equal(t, int64(1000), f.user(t, 100).Balance)

	f.send(t, 100, commands.Claim)
	assert.Contains(t, f.lastText(t, 100), "Please wait 60 minute(s)")
	assert.Equal(t, int64(1000), f.user(t, 100).Balance)
}

func TestConversation_InviteSendsLinkAndQRCode(t *testing.T) {
	f := newConversationFixture(t)
	f.member(t, 100, 0, false)

	f.send(t, 100, commands.Invite)
	assert.Contains(t, f.lastText(t, 100), "https://t.me/rewards_bot?start=ref_100")

	photo, ok := f.api.Last("sendPhoto")
	require.True(t, ok)
	assert.Equal(t, "100", photo.Params["chat_id"])
	assert.NotEmpty(t, photo.Params["photo"])
}

func TestConversation_AdminReviewsWithdrawal(t *testing.T) {
	f := newConversationFixture(t)
	ctx := context.Background()
	f.member(t, 100, 30000, true)

	request, err := f.ledger.SubmitWithdrawal(ctx, 100, 25000)
	require.NoError(t, err)

	f.send(t, testAdminID, commands.PendingWithdrawals)
	listing := f.api.Requests("sendMessage")
	assert.Contains(t, listing[len(listing)-1].Params["reply_markup"], fmt.Sprintf("wd_reject_%d", request.ID))

	f.press(t, testAdminID, fmt.Sprintf("wd_reject_%d", request.ID))
	answer, ok := f.api.Last("answerCallbackQuery")
	require.True(t, ok)
	assert.Equal(t, fmt.Sprintf("Withdrawal #%d rejected", request.ID), answer.Params["text"])
	assert.Equal(t, "cb-1", answer.Params["callback_query_id"])
	assert.Equal(t, int64(30000), f.user(t, 100).Balance)

	edit, ok := f.api.Last("editMessageText")
	require.True(t, ok)
	assert.Equal(t, "42", edit.Params["message_id"])
	assert.Contains(t, edit.Params["text"], "(rejected)")
	assert.Contains(t, edit.Params["reply_markup"], fmt.Sprintf("wd_approve_%d", request.ID))
	assert.NotContains(t, edit.Params["reply_markup"], "wd_reject_")

	f.press(t, testAdminID, fmt.Sprintf("wd_approve_%d", request.ID))
	assert.Equal(t, int64(5000), f.user(t, 100).Balance)
	got, err := f.ledger.GetWithdrawal(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalApproved, got.Status)

	f.press(t, testAdminID, "wd_approve_99")
	answer, _ = f.api.Last("answerCallbackQuery")
	assert.Equal(t, "Withdrawal #99 not found", answer.Params["text"])
	assert.Equal(t, "true", answer.Params["show_alert"])

	f.send(t, testAdminID, commands.Dashboard)
	assert.Contains(t, f.lastText(t, testAdminID), "Dashboard:")
}

func TestConversation_MemberCannotReview(t *testing.T) {
	f := newConversationFixture(t)
	f.member(t, 100, 30000, true)

	request, err := f.ledger.SubmitWithdrawal(context.Background(), 100, 25000)
	require.NoError(t, err)

	f.press(t, 100, fmt.Sprintf("wd_approve_%d", request.ID))
	answer, ok := f.api.Last("answerCallbackQuery")
	require.True(t, ok)
	assert.Equal(t, "This action is only available to administrators.", answer.Params["text"])

	got, err := f.ledger.GetWithdrawal(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalPending, got.Status)

	f.send(t, 100, commands.Dashboard)
	assert.NotContains(t, f.lastText(t, 100), "Dashboard:")
}

package handlers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"
	telebot "gopkg.in/telebot.v3"

	"referral-tg-admin/internal/commands"
	"referral-tg-admin/internal/config"
	"referral-tg-admin/internal/constants"
	apperrors "referral-tg-admin/internal/errors"
	"referral-tg-admin/internal/helpers"
	"referral-tg-admin/internal/models"
	"referral-tg-admin/internal/permissions"
	"referral-tg-admin/internal/services"
	"referral-tg-admin/internal/validation"
)

type commandFunc func(context.Context, telebot.Context) error

// MemberHandler handles member commands
type MemberHandler struct {
	BaseHandler
	accessType      permissions.AccessType
	commandHandlers map[string]commandFunc
}

// NewMemberHandler creates a new member handler
func NewMemberHandler(
	ledger *services.LedgerService,
	stateService *services.UserStateService,
	qrService *services.QRService,
	membership services.MembershipChecker,
	permCtrl *permissions.PermissionController,
	config *config.Config,
	logger *logrus.Logger,
) *MemberHandler {
	handler := &MemberHandler{
		BaseHandler: NewBaseHandler(ledger, stateService, qrService, membership, permCtrl, config, logger),
		accessType:  permissions.Member,
	}

	handler.initializeCommands()
	return handler
}

// CanHandle checks if the handler can handle the given access type
func (h *MemberHandler) CanHandle(accessType permissions.AccessType) bool {
	return accessType == permissions.Member
}

// Handle handles a message from Telegram
func (h *MemberHandler) Handle(ctx context.Context, c telebot.Context) error {
	if c.Callback() != nil {
		return c.Respond(&telebot.CallbackResponse{Text: "This action is only available to administrators."})
	}

	userID := c.Sender().ID

	state, err := h.stateService.GetState(userID)
	if err != nil {
		h.logger.Errorf("Failed to get user state: %v", err)
		return err
	}

	// Buttons and commands always win over pending input
	if handler, ok := h.commandHandlers[commandOf(c.Text())]; ok {
		return handler(ctx, c)
	}

	switch state.State {
	case models.Default:
		return h.showMainMenu(ctx, c)
	case models.AwaitingBankDetails:
		return h.processBankDetails(ctx, c)
	case models.AwaitingWithdrawalAmount:
		return h.processWithdrawalAmount(ctx, c)
	default:
		h.logger.Warnf("Unknown state: %d", state.State)
		return h.showMainMenu(ctx, c)
	}
}

// initializeCommands initializes the command handlers
func (h *MemberHandler) initializeCommands() {
	h.commandHandlers = map[string]commandFunc{
		commands.Start:            h.handleStart,
		commands.Help:             h.handleHelp,
		commands.Cancel:           h.handleCancel,
		commands.Joined:           h.handleJoined,
		commands.ReturnToMainMenu: h.handleReturnToMainMenu,
		commands.Balance:          h.handleBalance,
		commands.Invite:           h.handleInvite,
		commands.Statistics:       h.handleStatistics,
		commands.AccountDetails:   h.handleAccountDetails,
		commands.Withdraw:         h.handleWithdraw,
		commands.Claim:            h.handleClaim,
	}
}

// commandOf strips arguments and the bot mention from slash commands
func commandOf(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return text
	}

	fields := strings.Fields(text)
	command, _, _ := strings.Cut(fields[0], "@")
	return command
}

// handleStart registers the user, crediting the referrer from the start payload
func (h *MemberHandler) handleStart(ctx context.Context, c telebot.Context) error {
	sender := c.Sender()

	if err := h.stateService.ClearState(sender.ID); err != nil {
		h.logger.Errorf("Failed to clear user state: %v", err)
		return err
	}

	input := services.RegisterInput{
		TelegramID: sender.ID,
		FirstName:  sender.FirstName,
		LastName:   sender.LastName,
		Username:   sender.Username,
	}
	if referrerID, ok := validation.ParseReferrerID(c.Data()); ok {
		input.ReferrerID = &referrerID
	}

	user, created, err := h.ledger.Register(ctx, input)
	if err != nil {
		return h.sendGenericError(c, "register user", err)
	}

	if created {
		h.logger.WithFields(logrus.Fields{
			"telegram_id": user.TelegramID,
			"referred":    user.ReferrerID != nil,
		}).Info("New user started the bot")

		if user.ReferrerID != nil && h.config.Rewards.WelcomeBonus > 0 {
			text := fmt.Sprintf("🎉 Welcome, %s! You received a welcome bonus of %s.",
				escape(helpers.DisplayName(user.FirstName, user.LastName)), h.currency(h.config.Rewards.WelcomeBonus))
			if err := h.sendTextMessage(c, text, nil); err != nil {
				return err
			}
		}
	}

	if h.ledger.RequiresGroups() && !user.HasJoinedGroups {
		return h.promptToJoinGroups(c, h.ledger.RequiredGroups())
	}

	return h.sendTextMessage(c, "🏠 <b>Welcome To Main Menu</b>", h.createMainKeyboard(h.accessType))
}

// showMainMenu shows the main menu to a known user
func (h *MemberHandler) showMainMenu(ctx context.Context, c telebot.Context) error {
	user, err := h.loadUser(ctx, c)
	if user == nil {
		return err
	}

	return h.sendTextMessage(c, "🏠 <b>Welcome To Main Menu</b>", h.createMainKeyboard(h.accessType))
}

// handleReturnToMainMenu drops any pending input and shows the main menu
func (h *MemberHandler) handleReturnToMainMenu(ctx context.Context, c telebot.Context) error {
	if err := h.stateService.ClearState(c.Sender().ID); err != nil {
		h.logger.Errorf("Failed to clear user state: %v", err)
		return err
	}
	return h.showMainMenu(ctx, c)
}

// handleHelp describes what the bot does
func (h *MemberHandler) handleHelp(ctx context.Context, c telebot.Context) error {
	var sb strings.Builder
	sb.WriteString("<b>How it works</b>\n\n")
	sb.WriteString(fmt.Sprintf("👥 Earn %s for every friend who starts the bot with your invite link.\n", h.currency(h.config.Rewards.ReferralBonus)))
	sb.WriteString(fmt.Sprintf("🎁 Claim %s every %s.\n", h.currency(h.config.Rewards.ClaimBonus), formatCooldown(h.config.Rewards.ClaimCooldown.Minutes())))
	sb.WriteString(fmt.Sprintf("💸 Withdraw from %s on %s.\n", h.currency(h.config.Rewards.MinWithdrawal), helpers.FormatWeekdays(h.config.Rewards.WithdrawalDays)))
	if h.config.Community.SupportChannel != "" {
		sb.WriteString(fmt.Sprintf("\nHelp: @%s", h.config.Community.SupportChannel))
	}

	return h.sendTextMessage(c, sb.String(), h.createReturnKeyboard())
}

// handleCancel cancels the pending input
func (h *MemberHandler) handleCancel(ctx context.Context, c telebot.Context) error {
	userID := c.Sender().ID

	state, err := h.stateService.GetState(userID)
	if err != nil {
		h.logger.Errorf("Failed to get user state: %v", err)
		return err
	}

	if err := h.stateService.ClearState(userID); err != nil {
		h.logger.Errorf("Failed to clear user state: %v", err)
		return err
	}

	text := "Returning to main menu..."
	switch state.State {
	case models.AwaitingBankDetails:
		text = "Bank details update cancelled."
	case models.AwaitingWithdrawalAmount:
		text = "Withdrawal cancelled."
	}

	if err := h.sendTextMessage(c, text, nil); err != nil {
		return err
	}
	return h.showMainMenu(ctx, c)
}

// handleJoined verifies the membership in every required group
func (h *MemberHandler) handleJoined(ctx context.Context, c telebot.Context) error {
	userID := c.Sender().ID

	user, err := h.ledger.GetUser(ctx, userID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return h.sendTextMessage(c, "Please start the bot with /start command first.", nil)
	}
	if err != nil {
		return h.sendGenericError(c, "load user", err)
	}

	if user.HasJoinedGroups || !h.ledger.RequiresGroups() {
		return h.sendTextMessage(c, "✅ You have already joined our channels. Thank you!", h.createMainKeyboard(h.accessType))
	}

	user, missing, err := h.ledger.ConfirmMembership(ctx, userID, h.membership)
	if errors.Is(err, apperrors.ErrGroupsNotJoined) {
		if err := h.sendTextMessage(c, "❌ You have not joined all required channels yet.", nil); err != nil {
			return err
		}
		return h.promptToJoinGroups(c, missing)
	}
	if err != nil {
		return h.sendGenericError(c, "confirm membership", err)
	}

	text := "✅ Thanks for joining!"
	if h.config.Rewards.ClaimBonus > 0 {
		claimed, err := h.ledger.ClaimBonus(ctx, userID)
		var cooldown *apperrors.CooldownError
		switch {
		case err == nil:
			user = claimed
			text = fmt.Sprintf("✅ You've successfully joined our community and claimed your bonus of %s!\n\nNew balance: %s",
				h.currency(h.config.Rewards.ClaimBonus), h.currency(user.Balance))
		case errors.As(err, &cooldown):
		default:
			h.logger.Errorf("Failed to credit join bonus to user %d: %v", userID, err)
		}
	}

	if !user.BankDetails.Complete() {
		if err := h.sendTextMessage(c, text, nil); err != nil {
			return err
		}
		return h.promptForBankDetails(c, models.Default)
	}

	return h.sendTextMessage(c, text+"\n\n🏠 <b>Welcome To Main Menu</b>", h.createMainKeyboard(h.accessType))
}

// handleBalance shows the balance, referral count and bank details
func (h *MemberHandler) handleBalance(ctx context.Context, c telebot.Context) error {
	user, err := h.loadUser(ctx, c)
	if user == nil {
		return err
	}

	text := fmt.Sprintf("💰 Your Current Balance: <b>%s</b>\n\n👥 Total Referrals: %d User(s)\n\n%s",
		h.currency(user.Balance), user.ReferralCount, formatBankDetails(user.BankDetails))
	return h.sendTextMessage(c, text, h.createMainKeyboard(h.accessType))
}

// handleInvite shows the referral link and its QR code
func (h *MemberHandler) handleInvite(ctx context.Context, c telebot.Context) error {
	user, err := h.loadUser(ctx, c)
	if user == nil {
		return err
	}

	link := helpers.ReferralLink(c.Bot().Me.Username, user.TelegramID)
	text := fmt.Sprintf("👥 Total Refers = %d User(s)\n\n📩 Invite To Earn %s Per Invite\n\n📲 Your invite link:\n%s",
		user.ReferralCount, h.currency(h.config.Rewards.ReferralBonus), link)
	if err := h.sendTextMessage(c, text, h.createMainKeyboard(h.accessType)); err != nil {
		return err
	}

	return h.sendQRCode(c, link)
}

// handleStatistics shows the public statistics
func (h *MemberHandler) handleStatistics(ctx context.Context, c telebot.Context) error {
	user, err := h.loadUser(ctx, c)
	if user == nil {
		return err
	}

	text := fmt.Sprintf("📊 <b>Live Statistics</b>\n\n💸 Total Payouts: %s\n\n👥 Total Users: %s User(s)",
		h.currency(h.config.Display.TotalPayouts), helpers.FormatAmount("", h.config.Display.TotalUsers))
	return h.sendTextMessage(c, text, h.createMainKeyboard(h.accessType))
}

// handleAccountDetails shows the bank details and asks for new ones
func (h *MemberHandler) handleAccountDetails(ctx context.Context, c telebot.Context) error {
	user, err := h.loadUser(ctx, c)
	if user == nil {
		return err
	}

	if user.BankDetails.Complete() {
		text := formatBankDetails(user.BankDetails) + "\n\nSend new details to update them, or press Cancel."
		if err := h.sendTextMessage(c, text, nil); err != nil {
			return err
		}
	}

	return h.promptForBankDetails(c, models.Default)
}

// handleWithdraw checks the eligibility and asks for the amount
func (h *MemberHandler) handleWithdraw(ctx context.Context, c telebot.Context) error {
	userID := c.Sender().ID

	user, err := h.ledger.CheckWithdrawalEligibility(ctx, userID)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return h.sendTextMessage(c, "Please start the bot with /start command first.", nil)
	case errors.Is(err, apperrors.ErrGroupsNotJoined):
		return h.promptToJoinGroups(c, h.ledger.RequiredGroups())
	case errors.Is(err, apperrors.ErrWithdrawalClosed):
		text := fmt.Sprintf("⚠️ Withdrawals are only available on %s.\n\nPlease come back then.",
			helpers.FormatWeekdays(h.config.Rewards.WithdrawalDays))
		return h.sendTextMessage(c, text, h.createMainKeyboard(h.accessType))
	case errors.Is(err, apperrors.ErrBelowMinimum):
		text := fmt.Sprintf("⚠️ Must Own Atleast %s To Make Withdrawal\n\n📩 Invite friends to earn more:\n%s",
			h.currency(h.config.Rewards.MinWithdrawal), helpers.ReferralLink(c.Bot().Me.Username, userID))
		return h.sendTextMessage(c, text, h.createMainKeyboard(h.accessType))
	case errors.Is(err, apperrors.ErrMissingBankDetails):
		if err := h.sendTextMessage(c, "⚠️ You need to set up your bank details before withdrawing.", nil); err != nil {
			return err
		}
		return h.promptForBankDetails(c, models.AwaitingWithdrawalAmount)
	case err != nil:
		return h.sendGenericError(c, "check withdrawal eligibility", err)
	}

	if err := h.stateService.AwaitWithdrawalAmount(userID); err != nil {
		h.logger.Errorf("Failed to set user state: %v", err)
		return err
	}

	var sb strings.Builder
	sb.WriteString("💸 <b>Enter the amount you want to withdraw</b>\n\n")
	sb.WriteString(fmt.Sprintf("Minimum: %s\n", h.currency(h.config.Rewards.MinWithdrawal)))
	if h.config.Rewards.MaxWithdrawal > 0 {
		sb.WriteString(fmt.Sprintf("Maximum: %s\n", h.currency(h.config.Rewards.MaxWithdrawal)))
	}
	sb.WriteString(fmt.Sprintf("Your balance: %s\n\n", h.currency(user.Balance)))
	sb.WriteString(fmt.Sprintf("🏦 %s, %s (%s)",
		escape(user.BankName), escape(user.AccountNumber), escape(user.AccountName)))

	return h.sendTextMessage(c, sb.String(), h.createCancelKeyboard())
}

// handleClaim credits the periodic bonus
func (h *MemberHandler) handleClaim(ctx context.Context, c telebot.Context) error {
	user, err := h.loadUser(ctx, c)
	if user == nil {
		return err
	}

	user, err = h.ledger.ClaimBonus(ctx, user.TelegramID)
	var cooldown *apperrors.CooldownError
	switch {
	case errors.As(err, &cooldown):
		text := fmt.Sprintf("⚠️ Please wait %s before claiming again.\n\nLast claimed: %s",
			formatCooldown(cooldown.Remaining.Minutes()), cooldown.LastClaim.Format(constants.TimestampFormat))
		return h.sendTextMessage(c, text, h.createMainKeyboard(h.accessType))
	case errors.Is(err, apperrors.ErrGroupsNotJoined):
		return h.promptToJoinGroups(c, h.ledger.RequiredGroups())
	case err != nil:
		return h.sendGenericError(c, "claim bonus", err)
	}

	var sb strings.Builder
	sb.WriteString("Congratulations 🎉🎉🎉\n\nYou Have Just Earned\n")
	sb.WriteString(fmt.Sprintf("<b>%s</b> 👈\n\n", helpers.FormatSignedAmount(h.config.Rewards.Currency, h.config.Rewards.ClaimBonus)))
	sb.WriteString(fmt.Sprintf("💰 Balance: %s", h.currency(user.Balance)))
	if h.config.Community.NewsChannel != "" {
		sb.WriteString(fmt.Sprintf("\n\nNews: @%s", h.config.Community.NewsChannel))
	}
	if h.config.Community.SupportChannel != "" {
		sb.WriteString(fmt.Sprintf("\nHelp: @%s", h.config.Community.SupportChannel))
	}

	return h.sendTextMessage(c, sb.String(), h.createMainKeyboard(h.accessType))
}

// processBankDetails stores the bank details typed by the user
func (h *MemberHandler) processBankDetails(ctx context.Context, c telebot.Context) error {
	user, err := h.loadUser(ctx, c)
	if user == nil {
		return err
	}

	details, err := validation.ParseBankDetails(c.Text(), user.FullName())
	if err == nil {
		_, err = h.ledger.SetBankDetails(ctx, user.TelegramID, details)
	}

	var validationErr *apperrors.ValidationError
	if errors.As(err, &validationErr) {
		text := fmt.Sprintf("❌ %s\n\nPlease send your details as:\nAccount Number\nBank Name\nAccount Name",
			escape(validationErr.Message))
		return h.sendTextMessage(c, text, h.createCancelKeyboard())
	}
	if err != nil {
		return h.sendGenericError(c, "save bank details", err)
	}

	resume, err := h.stateService.CompleteInput(user.TelegramID)
	if err != nil {
		h.logger.Errorf("Failed to clear user state: %v", err)
		return err
	}

	if resume == models.AwaitingWithdrawalAmount {
		if err := h.sendTextMessage(c, "✅ Bank details saved!\n\n"+formatBankDetails(details), nil); err != nil {
			return err
		}
		return h.handleWithdraw(ctx, c)
	}

	return h.sendTextMessage(c, "✅ Bank details saved!\n\n"+formatBankDetails(details), h.createMainKeyboard(h.accessType))
}

// processWithdrawalAmount submits a withdrawal for the amount typed by the user
func (h *MemberHandler) processWithdrawalAmount(ctx context.Context, c telebot.Context) error {
	userID := c.Sender().ID

	amount, err := validation.ParseAmount(c.Text())
	if err != nil {
		return h.sendTextMessage(c, "❌ Please enter a valid amount, for example 20000.", h.createCancelKeyboard())
	}

	request, err := h.ledger.SubmitWithdrawal(ctx, userID, amount)
	var validationErr *apperrors.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return h.sendTextMessage(c, "❌ "+escape(validationErr.Message), h.createCancelKeyboard())
	case errors.Is(err, apperrors.ErrBelowMinimum):
		return h.sendTextMessage(c, fmt.Sprintf("❌ Minimum withdrawal amount is %s.",
			h.currency(h.config.Rewards.MinWithdrawal)), h.createCancelKeyboard())
	case errors.Is(err, apperrors.ErrAboveMaximum):
		return h.sendTextMessage(c, fmt.Sprintf("❌ Maximum withdrawal amount is %s.",
			h.currency(h.config.Rewards.MaxWithdrawal)), h.createCancelKeyboard())
	case errors.Is(err, apperrors.ErrInsufficientFunds):
		return h.sendTextMessage(c, "❌ You don't have enough balance for this withdrawal.", h.createCancelKeyboard())
	case errors.Is(err, apperrors.ErrNotFound),
		errors.Is(err, apperrors.ErrGroupsNotJoined),
		errors.Is(err, apperrors.ErrWithdrawalClosed),
		errors.Is(err, apperrors.ErrMissingBankDetails):
		if err := h.stateService.ClearState(userID); err != nil {
			h.logger.Errorf("Failed to clear user state: %v", err)
			return err
		}
		return h.handleWithdraw(ctx, c)
	case err != nil:
		return h.sendGenericError(c, "submit withdrawal", err)
	}

	if err := h.stateService.ClearState(userID); err != nil {
		h.logger.Errorf("Failed to clear user state: %v", err)
	}

	text := fmt.Sprintf("✅ Your withdrawal request has been submitted successfully!\n\nAmount: %s\nDate: %s\nStatus: Pending",
		h.currency(request.Amount), request.CreatedAt.Format(constants.TimestampFormat))
	if err := h.sendTextMessage(c, text, h.createMainKeyboard(h.accessType)); err != nil {
		return err
	}

	h.notifyAdmins(ctx, c, request.ID)
	return nil
}

// notifyAdmins pushes a new withdrawal request with review buttons to every admin
func (h *MemberHandler) notifyAdmins(ctx context.Context, c telebot.Context, withdrawalID int64) {
	view, err := h.ledger.GetWithdrawal(ctx, withdrawalID)
	if err != nil {
		h.logger.Errorf("Failed to load withdrawal %d: %v", withdrawalID, err)
		return
	}

	text := "🆕 <b>New withdrawal request</b>\n\n" + helpers.FormatWithdrawal(view, h.config.Rewards.Currency)
	opts := &telebot.SendOptions{
		ParseMode:   telebot.ModeHTML,
		ReplyMarkup: h.createWithdrawalActionsKeyboard(view.ID, view.Status),
	}

	for _, adminID := range h.permCtrl.AdminIDs() {
		if _, err := c.Bot().Send(telebot.ChatID(adminID), text, opts); err != nil {
			h.logger.Warnf("Failed to notify admin %d about withdrawal %d: %v", adminID, withdrawalID, err)
		}
	}
}

// formatCooldown renders a duration in minutes as "N minute(s)"
func formatCooldown(minutes float64) string {
	return fmt.Sprintf("%d minute(s)", int(math.Ceil(minutes)))
}

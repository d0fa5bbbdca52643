package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/sirupsen/logrus"
	telebot "gopkg.in/telebot.v3"

	"referral-tg-admin/internal/commands"
	"referral-tg-admin/internal/config"
	apperrors "referral-tg-admin/internal/errors"
	"referral-tg-admin/internal/helpers"
	"referral-tg-admin/internal/models"
	"referral-tg-admin/internal/permissions"
	"referral-tg-admin/internal/services"
)

const genericErrorText = "Sorry, there was an error. Please try again later."

// BaseHandler provides common functionality for all handlers
type BaseHandler struct {
	ledger       *services.LedgerService
	stateService *services.UserStateService
	qrService    *services.QRService
	membership   services.MembershipChecker
	permCtrl     *permissions.PermissionController
	config       *config.Config
	logger       *logrus.Logger
}

// NewBaseHandler creates a new base handler
func NewBaseHandler(
	ledger *services.LedgerService,
	stateService *services.UserStateService,
	qrService *services.QRService,
	membership services.MembershipChecker,
	permCtrl *permissions.PermissionController,
	config *config.Config,
	logger *logrus.Logger,
) BaseHandler {
	return BaseHandler{
		ledger:       ledger,
		stateService: stateService,
		qrService:    qrService,
		membership:   membership,
		permCtrl:     permCtrl,
		config:       config,
		logger:       logger,
	}
}

// CanHandle checks if the handler can handle the given access type
func (h *BaseHandler) CanHandle(accessType permissions.AccessType) bool {
	// Base handler can't handle any access type directly
	return false
}

// sendTextMessage sends a text message with optional markup
func (h *BaseHandler) sendTextMessage(c telebot.Context, text string, markup *telebot.ReplyMarkup) error {
	opts := &telebot.SendOptions{
		ParseMode:             telebot.ModeHTML,
		DisableWebPagePreview: true,
	}

	if markup != nil {
		opts.ReplyMarkup = markup
	}

	_, err := c.Bot().Send(c.Recipient(), text, opts)
	if err != nil {
		h.logger.Errorf("Failed to send message: %v", err)
	}
	return err
}

// sendQRCode sends a QR code for the given URL
func (h *BaseHandler) sendQRCode(c telebot.Context, url string) error {
	qrBytes, err := h.qrService.GenerateQR(url)
	if err != nil {
		h.logger.Errorf("Failed to generate QR code: %v", err)
		return err
	}

	reader := bytes.NewReader(qrBytes)
	photo := &telebot.Photo{File: telebot.FromReader(reader)}

	_, err = c.Bot().Send(c.Recipient(), photo)
	if err != nil {
		h.logger.Errorf("Failed to send QR code: %v", err)
	}
	return err
}

// sendGenericError logs err and answers with a generic message
func (h *BaseHandler) sendGenericError(c telebot.Context, action string, err error) error {
	h.logger.Errorf("Failed to %s for user %d: %v", action, c.Sender().ID, err)
	return h.sendTextMessage(c, genericErrorText, nil)
}

// createMainKeyboard creates the main keyboard for the given access type
func (h *BaseHandler) createMainKeyboard(accessType permissions.AccessType) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{
		ResizeKeyboard: true,
	}

	rows := []telebot.Row{
		{
			telebot.Btn{Text: commands.Balance},
			telebot.Btn{Text: commands.Invite},
		},
		{
			telebot.Btn{Text: commands.Statistics},
			telebot.Btn{Text: commands.AccountDetails},
			telebot.Btn{Text: commands.Withdraw},
		},
		{
			telebot.Btn{Text: commands.Claim},
		},
	}

	if accessType == permissions.Admin {
		rows = append(rows, telebot.Row{
			telebot.Btn{Text: commands.PendingWithdrawals},
			telebot.Btn{Text: commands.Dashboard},
		})
	}

	markup.Reply(rows...)
	return markup
}

// createReturnKeyboard creates a keyboard with a return button
func (h *BaseHandler) createReturnKeyboard() *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{
		ResizeKeyboard: true,
	}

	markup.Reply(
		telebot.Row{
			telebot.Btn{Text: commands.ReturnToMainMenu},
		},
	)

	return markup
}

// createCancelKeyboard creates a keyboard with a cancel button
func (h *BaseHandler) createCancelKeyboard() *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{
		ResizeKeyboard: true,
	}

	markup.Reply(
		telebot.Row{
			telebot.Btn{Text: commands.Cancel},
		},
	)

	return markup
}

// createJoinedKeyboard creates the keyboard shown with the join prompt
func (h *BaseHandler) createJoinedKeyboard() *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{
		ResizeKeyboard: true,
	}

	markup.Reply(
		telebot.Row{
			telebot.Btn{Text: commands.Joined},
		},
	)

	return markup
}

// createWithdrawalActionsKeyboard creates the inline approve/reject buttons of a
// withdrawal request. Only the transitions away from status are offered.
func (h *BaseHandler) createWithdrawalActionsKeyboard(id int64, status models.WithdrawalStatus) *telebot.ReplyMarkup {
	var row []telebot.InlineButton
	if status != models.WithdrawalApproved {
		row = append(row, telebot.InlineButton{
			Text: "✅ Approve",
			Data: fmt.Sprintf("%s_%d", commands.ApproveWithdrawal, id),
		})
	}
	if status != models.WithdrawalRejected {
		row = append(row, telebot.InlineButton{
			Text: "❌ Reject",
			Data: fmt.Sprintf("%s_%d", commands.RejectWithdrawal, id),
		})
	}

	return &telebot.ReplyMarkup{InlineKeyboard: [][]telebot.InlineButton{row}}
}

// promptToJoinGroups lists the channels the user has to join
func (h *BaseHandler) promptToJoinGroups(c telebot.Context, groups []string) error {
	var sb strings.Builder
	sb.WriteString("🔴 <b>Join Our Channel To Proceed</b>\n\n")
	for _, group := range groups {
		sb.WriteString(fmt.Sprintf("@%s 👉 %s\n", group, helpers.ChannelLink(group)))
	}
	sb.WriteString("\n✅ After Joining, Click on <b>Joined</b>")

	return h.sendTextMessage(c, sb.String(), h.createJoinedKeyboard())
}

// promptForBankDetails asks the user to type their bank details. Once they
// are saved the conversation continues with resume.
func (h *BaseHandler) promptForBankDetails(c telebot.Context, resume models.ConversationState) error {
	if err := h.stateService.AwaitBankDetails(c.Sender().ID, resume); err != nil {
		h.logger.Errorf("Failed to set user state: %v", err)
		return err
	}

	text := "💎 <b>Enter Bank Details</b> 💎\n\n" +
		"Send your details in this format:\n\n" +
		"Account Number\nBank Name\nAccount Name\n\n" +
		"Example:\n<code>0123456789\nAccess Bank\nJohn Doe</code>"
	return h.sendTextMessage(c, text, h.createCancelKeyboard())
}

// loadUser fetches the sender's record. It answers the user itself and
// returns nil when the user is unknown or has not joined the required groups.
func (h *BaseHandler) loadUser(ctx context.Context, c telebot.Context) (*models.TelegramUser, error) {
	user, err := h.ledger.GetUser(ctx, c.Sender().ID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, h.sendTextMessage(c, "Please start the bot with /start command first.", nil)
	}
	if err != nil {
		return nil, h.sendGenericError(c, "load user", err)
	}

	if h.ledger.RequiresGroups() && !user.HasJoinedGroups {
		return nil, h.promptToJoinGroups(c, h.ledger.RequiredGroups())
	}
	return user, nil
}

// currency formats an amount in the configured currency
func (h *BaseHandler) currency(amount int64) string {
	return helpers.FormatAmount(h.config.Rewards.Currency, amount)
}

// formatBankDetails renders the bank details block of a user
func formatBankDetails(details models.BankDetails) string {
	if !details.Complete() {
		return "🏦 Bank Details: <i>not set</i>"
	}
	return fmt.Sprintf("🏦 Bank Details:\nAccount Number: %s\nBank Name: %s\nAccount Name: %s",
		escape(details.AccountNumber), escape(details.BankName), escape(details.AccountName))
}

func escape(s string) string {
	return html.EscapeString(s)
}

package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
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

// maxListedWithdrawals caps the pending requests sent in one listing
const maxListedWithdrawals = 20

// AdminHandler handles admin commands on top of the member ones
type AdminHandler struct {
	*MemberHandler
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(
	ledger *services.LedgerService,
	stateService *services.UserStateService,
	qrService *services.QRService,
	membership services.MembershipChecker,
	permCtrl *permissions.PermissionController,
	config *config.Config,
	logger *logrus.Logger,
) *AdminHandler {
	member := NewMemberHandler(ledger, stateService, qrService, membership, permCtrl, config, logger)
	member.accessType = permissions.Admin

	handler := &AdminHandler{MemberHandler: member}
	handler.initializeCommands()
	return handler
}

// CanHandle checks if the handler can handle the given access type
func (h *AdminHandler) CanHandle(accessType permissions.AccessType) bool {
	return accessType == permissions.Admin
}

// Handle handles a message from Telegram
func (h *AdminHandler) Handle(ctx context.Context, c telebot.Context) error {
	if c.Callback() != nil {
		return h.handleCallback(ctx, c)
	}
	return h.MemberHandler.Handle(ctx, c)
}

// initializeCommands adds the admin commands to the member ones
func (h *AdminHandler) initializeCommands() {
	h.commandHandlers[commands.PendingWithdrawals] = h.handlePendingWithdrawals
	h.commandHandlers[commands.Dashboard] = h.handleDashboard
}

// handlePendingWithdrawals lists pending requests with review buttons
func (h *AdminHandler) handlePendingWithdrawals(ctx context.Context, c telebot.Context) error {
	views, err := h.ledger.ListWithdrawals(ctx, models.WithdrawalFilter{Status: models.WithdrawalPending})
	if err != nil {
		return h.sendGenericError(c, "list withdrawals", err)
	}

	if len(views) == 0 {
		return h.sendTextMessage(c, "No pending withdrawal requests.", h.createMainKeyboard(permissions.Admin))
	}

	header := fmt.Sprintf("🧾 <b>%d pending withdrawal request(s)</b>", len(views))
	if len(views) > maxListedWithdrawals {
		header += fmt.Sprintf("\nShowing the latest %d.", maxListedWithdrawals)
		views = views[:maxListedWithdrawals]
	}
	if err := h.sendTextMessage(c, header, h.createMainKeyboard(permissions.Admin)); err != nil {
		return err
	}

	for i := range views {
		view := &views[i]
		text := helpers.FormatWithdrawal(view, h.config.Rewards.Currency)
		if err := h.sendTextMessage(c, text, h.createWithdrawalActionsKeyboard(view.ID, view.Status)); err != nil {
			return err
		}
	}
	return nil
}

// handleDashboard shows the dashboard figures
func (h *AdminHandler) handleDashboard(ctx context.Context, c telebot.Context) error {
	stats, err := h.ledger.Stats(ctx)
	if err != nil {
		return h.sendGenericError(c, "load stats", err)
	}

	report := helpers.FormatDashboardReport(stats, h.config.Rewards.Currency)
	return h.sendTextMessage(c, report, h.createMainKeyboard(permissions.Admin))
}

// handleCallback handles the inline approve/reject buttons
func (h *AdminHandler) handleCallback(ctx context.Context, c telebot.Context) error {
	data := c.Callback().Data

	status, id, ok := ParseWithdrawalCallback(data)
	if !ok {
		h.logger.Warnf("Unknown callback data: %q", data)
		return c.Respond()
	}

	request, err := h.ledger.UpdateWithdrawalStatus(ctx, id, status)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return c.Respond(&telebot.CallbackResponse{Text: fmt.Sprintf("Withdrawal #%d not found", id), ShowAlert: true})
	case errors.Is(err, apperrors.ErrInsufficientFunds):
		return c.Respond(&telebot.CallbackResponse{Text: "The user's balance no longer covers this withdrawal", ShowAlert: true})
	case err != nil:
		h.logger.Errorf("Failed to update withdrawal %d: %v", id, err)
		return c.Respond(&telebot.CallbackResponse{Text: genericErrorText, ShowAlert: true})
	}

	h.logger.WithFields(logrus.Fields{
		"admin_id":      c.Sender().ID,
		"withdrawal_id": id,
		"status":        request.Status,
	}).Info("Withdrawal reviewed from Telegram")

	view, err := h.ledger.GetWithdrawal(ctx, id)
	if err != nil {
		h.logger.Errorf("Failed to load withdrawal %d: %v", id, err)
	} else {
		text := helpers.FormatWithdrawal(view, h.config.Rewards.Currency)
		opts := &telebot.SendOptions{
			ParseMode:   telebot.ModeHTML,
			ReplyMarkup: h.createWithdrawalActionsKeyboard(view.ID, view.Status),
		}
		if err := c.Edit(text, opts); err != nil {
			h.logger.Warnf("Failed to edit withdrawal message: %v", err)
		}
	}

	return c.Respond(&telebot.CallbackResponse{Text: fmt.Sprintf("Withdrawal #%d %s", id, request.Status)})
}

// ParseWithdrawalCallback parses "wd_approve_<id>" and "wd_reject_<id>" callback data
func ParseWithdrawalCallback(data string) (models.WithdrawalStatus, int64, bool) {
	var status models.WithdrawalStatus
	var rest string

	switch {
	case strings.HasPrefix(data, commands.ApproveWithdrawal+"_"):
		status = models.WithdrawalApproved
		rest = strings.TrimPrefix(data, commands.ApproveWithdrawal+"_")
	case strings.HasPrefix(data, commands.RejectWithdrawal+"_"):
		status = models.WithdrawalRejected
		rest = strings.TrimPrefix(data, commands.RejectWithdrawal+"_")
	default:
		return "", 0, false
	}

	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return "", 0, false
	}
	return status, id, true
}

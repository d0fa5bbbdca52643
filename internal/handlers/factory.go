package handlers

import (
	"context"

	"github.com/sirupsen/logrus"
	telebot "gopkg.in/telebot.v3"

	"referral-tg-admin/internal/config"
	"referral-tg-admin/internal/permissions"
	"referral-tg-admin/internal/services"
)

// MessageHandler defines the interface for handling Telegram messages
type MessageHandler interface {
	Handle(ctx context.Context, c telebot.Context) error
	CanHandle(accessType permissions.AccessType) bool
}

// HandlerFactory creates message handlers
type HandlerFactory struct {
	ledger       *services.LedgerService
	stateService *services.UserStateService
	qrService    *services.QRService
	membership   services.MembershipChecker
	permCtrl     *permissions.PermissionController
	config       *config.Config
	logger       *logrus.Logger
}

// NewHandlerFactory creates a new handler factory
func NewHandlerFactory(
	ledger *services.LedgerService,
	stateService *services.UserStateService,
	qrService *services.QRService,
	membership services.MembershipChecker,
	permCtrl *permissions.PermissionController,
	config *config.Config,
	logger *logrus.Logger,
) *HandlerFactory {
	return &HandlerFactory{
		ledger:       ledger,
		stateService: stateService,
		qrService:    qrService,
		membership:   membership,
		permCtrl:     permCtrl,
		config:       config,
		logger:       logger,
	}
}

// CreateHandler creates a message handler for the given access type
func (f *HandlerFactory) CreateHandler(accessType permissions.AccessType) MessageHandler {
	switch accessType {
	case permissions.Admin:
		return NewAdminHandler(f.ledger, f.stateService, f.qrService, f.membership, f.permCtrl, f.config, f.logger)
	case permissions.Member:
		return NewMemberHandler(f.ledger, f.stateService, f.qrService, f.membership, f.permCtrl, f.config, f.logger)
	default:
		f.logger.Warnf("Unknown access type: %d", accessType)
		return NewMemberHandler(f.ledger, f.stateService, f.qrService, f.membership, f.permCtrl, f.config, f.logger)
	}
}

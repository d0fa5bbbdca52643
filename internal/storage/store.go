// Package storage provides the record stores backing the rewards ledger.
package storage

import (
	"context"

	"referral-tg-admin/internal/models"
)

// Store is the record store used by the services. Getters return
// errors.ErrNotFound for missing records and creators return
// errors.ErrAlreadyExists on unique key conflicts.
type Store interface {
	AdminByUsername(ctx context.Context, username string) (*models.AdminUser, error)
	AdminByID(ctx context.Context, id int64) (*models.AdminUser, error)
	CreateAdmin(ctx context.Context, admin *models.AdminUser) error

	CreateSession(ctx context.Context, session *models.Session) error
	SessionByTokenID(ctx context.Context, tokenID string) (*models.Session, error)
	DeleteSession(ctx context.Context, tokenID string) error

	TelegramUser(ctx context.Context, telegramID int64) (*models.TelegramUser, error)
	CreateTelegramUser(ctx context.Context, user *models.TelegramUser) error
	UpdateTelegramUser(ctx context.Context, user *models.TelegramUser) error
	// ListTelegramUsers returns all users, newest first
	ListTelegramUsers(ctx context.Context) ([]models.TelegramUser, error)

	CreateWithdrawal(ctx context.Context, w *models.WithdrawalRequest) error
	Withdrawal(ctx context.Context, id int64) (*models.WithdrawalRequest, error)
	UpdateWithdrawal(ctx context.Context, w *models.WithdrawalRequest) error
	// ListWithdrawals returns the matching requests, newest first
	ListWithdrawals(ctx context.Context, filter models.WithdrawalFilter) ([]models.WithdrawalRequest, error)
	DeleteWithdrawals(ctx context.Context) error

	AppendLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error
	// LedgerEntries returns the entries of a user in insertion order
	LedgerEntries(ctx context.Context, telegramID int64) ([]models.LedgerEntry, error)

	// ResetAll deletes Telegram users, withdrawal requests and ledger entries.
	// Admin users and sessions are kept.
	ResetAll(ctx context.Context) error

	// WithTx runs fn against a store whose writes are committed together
	// when fn returns nil and discarded otherwise.
	WithTx(ctx context.Context, fn func(tx Store) error) error

	Close() error
}

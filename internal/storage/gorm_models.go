package storage

import (
	"time"

	"referral-tg-admin/internal/models"
)

type adminModel struct {
	ID           int64  `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	IsAdmin      bool   `gorm:"not null"`
}

func (adminModel) TableName() string { return "admin_users" }

type sessionModel struct {
	ID        int64  `gorm:"primaryKey"`
	UserID    int64  `gorm:"index;not null"`
	TokenID   string `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time
	ExpiresAt time.Time `gorm:"not null"`
}

func (sessionModel) TableName() string { return "sessions" }

type telegramUserModel struct {
	ID                int64  `gorm:"primaryKey"`
	TelegramID        int64  `gorm:"uniqueIndex;not null"`
	FirstName         string `gorm:"not null"`
	LastName          string
	Username          string
	Balance           int64  `gorm:"not null;default:0"`
	ReferrerID        *int64 `gorm:"index"`
	ReferralCount     int    `gorm:"not null;default:0"`
	HasJoinedGroups   bool   `gorm:"not null;default:false"`
	LastBonusClaim    *time.Time
	BankAccountNumber string
	BankName          string
	BankAccountName   string
	CreatedAt         time.Time `gorm:"index"`
}

func (telegramUserModel) TableName() string { return "telegram_users" }

type withdrawalModel struct {
	ID                int64  `gorm:"primaryKey"`
	TelegramUserID    int64  `gorm:"index;not null"`
	Amount            int64  `gorm:"not null"`
	BankAccountNumber string `gorm:"not null"`
	BankName          string `gorm:"not null"`
	BankAccountName   string `gorm:"not null"`
	Status            string `gorm:"index;not null;default:pending"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (withdrawalModel) TableName() string { return "withdrawal_requests" }

type ledgerEntryModel struct {
	ID           int64  `gorm:"primaryKey"`
	TelegramID   int64  `gorm:"index;not null"`
	Kind         string `gorm:"not null"`
	Amount       int64  `gorm:"not null"`
	WithdrawalID *int64 `gorm:"index"`
	CreatedAt    time.Time
}

func (ledgerEntryModel) TableName() string { return "ledger_entries" }

func allModels() []interface{} {
	return []interface{}{
		&adminModel{},
		&sessionModel{},
		&telegramUserModel{},
		&withdrawalModel{},
		&ledgerEntryModel{},
	}
}

func mapAdminToDomain(m adminModel) *models.AdminUser {
	return &models.AdminUser{
		ID:           m.ID,
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		IsAdmin:      m.IsAdmin,
	}
}

func mapSessionToDomain(m sessionModel) *models.Session {
	return &models.Session{
		ID:        m.ID,
		UserID:    m.UserID,
		TokenID:   m.TokenID,
		CreatedAt: m.CreatedAt,
		ExpiresAt: m.ExpiresAt,
	}
}

func mapTelegramUserToDomain(m telegramUserModel) models.TelegramUser {
	return models.TelegramUser{
		ID:              m.ID,
		TelegramID:      m.TelegramID,
		FirstName:       m.FirstName,
		LastName:        m.LastName,
		Username:        m.Username,
		Balance:         m.Balance,
		ReferrerID:      m.ReferrerID,
		ReferralCount:   m.ReferralCount,
		HasJoinedGroups: m.HasJoinedGroups,
		LastBonusClaim:  m.LastBonusClaim,
		BankDetails: models.BankDetails{
			AccountNumber: m.BankAccountNumber,
			BankName:      m.BankName,
			AccountName:   m.BankAccountName,
		},
		CreatedAt: m.CreatedAt,
	}
}

func mapTelegramUserToModel(u models.TelegramUser) telegramUserModel {
	return telegramUserModel{
		ID:                u.ID,
		TelegramID:        u.TelegramID,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		Username:          u.Username,
		Balance:           u.Balance,
		ReferrerID:        u.ReferrerID,
		ReferralCount:     u.ReferralCount,
		HasJoinedGroups:   u.HasJoinedGroups,
		LastBonusClaim:    u.LastBonusClaim,
		BankAccountNumber: u.AccountNumber,
		BankName:          u.BankName,
		BankAccountName:   u.AccountName,
		CreatedAt:         u.CreatedAt,
	}
}

func mapWithdrawalToDomain(m withdrawalModel) models.WithdrawalRequest {
	return models.WithdrawalRequest{
		ID:             m.ID,
		TelegramUserID: m.TelegramUserID,
		Amount:         m.Amount,
		BankDetails: models.BankDetails{
			AccountNumber: m.BankAccountNumber,
			BankName:      m.BankName,
			AccountName:   m.BankAccountName,
		},
		Status:    models.WithdrawalStatus(m.Status),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func mapWithdrawalToModel(w models.WithdrawalRequest) withdrawalModel {
	return withdrawalModel{
		ID:                w.ID,
		TelegramUserID:    w.TelegramUserID,
		Amount:            w.Amount,
		BankAccountNumber: w.AccountNumber,
		BankName:          w.BankName,
		BankAccountName:   w.AccountName,
		Status:            string(w.Status),
		CreatedAt:         w.CreatedAt,
		UpdatedAt:         w.UpdatedAt,
	}
}

func mapLedgerEntryToDomain(m ledgerEntryModel) models.LedgerEntry {
	return models.LedgerEntry{
		ID:           m.ID,
		TelegramID:   m.TelegramID,
		Kind:         models.EntryKind(m.Kind),
		Amount:       m.Amount,
		WithdrawalID: m.WithdrawalID,
		CreatedAt:    m.CreatedAt,
	}
}

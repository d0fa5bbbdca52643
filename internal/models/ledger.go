package models

import "time"

// EntryKind classifies a balance movement
type EntryKind string

const (
	EntryWelcomeBonus      EntryKind = "welcome_bonus"
	EntryReferralBonus     EntryKind = "referral_bonus"
	EntryClaimBonus        EntryKind = "claim_bonus"
	EntryWithdrawalHold    EntryKind = "withdrawal_hold"
	EntryWithdrawalRelease EntryKind = "withdrawal_release"
)

// LedgerEntry records a single signed change of a user's balance
type LedgerEntry struct {
	ID           int64     `json:"id"`
	TelegramID   int64     `json:"telegramId"`
	Kind         EntryKind `json:"kind"`
	Amount       int64     `json:"amount"`
	WithdrawalID *int64    `json:"withdrawalId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// DashboardStats are the figures shown on the admin dashboard
type DashboardStats struct {
	TotalUsers         int64 `json:"totalUsers"`
	ActualUsers        int64 `json:"actualUsers"`
	TotalPayouts       int64 `json:"totalPayouts"`
	ActualPayouts      int64 `json:"actualPayouts"`
	PendingWithdrawals int64 `json:"pendingWithdrawals"`
	RecentUsers        int64 `json:"recentUsers"`
}

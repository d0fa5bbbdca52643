package models

import "time"

// WithdrawalStatus is the lifecycle state of a withdrawal request
type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "pending"
	WithdrawalApproved WithdrawalStatus = "approved"
	WithdrawalRejected WithdrawalStatus = "rejected"
)

// Valid reports whether s is a known status
func (s WithdrawalStatus) Valid() bool {
	switch s {
	case WithdrawalPending, WithdrawalApproved, WithdrawalRejected:
		return true
	}
	return false
}

// Holding reports whether a request in this status keeps its amount
// deducted from the owner's balance.
func (s WithdrawalStatus) Holding() bool {
	return s == WithdrawalPending || s == WithdrawalApproved
}

// WithdrawalRequest represents a payout request with a snapshot of the bank details
type WithdrawalRequest struct {
	ID             int64 `json:"id"`
	TelegramUserID int64 `json:"telegramUserId"`
	Amount         int64 `json:"amount"`
	BankDetails
	Status    WithdrawalStatus `json:"status"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// WithdrawalView is a withdrawal request enriched with its owner
type WithdrawalView struct {
	WithdrawalRequest
	User *UserSummary `json:"user"`
}

// WithdrawalFilter narrows withdrawal listings
type WithdrawalFilter struct {
	Status     WithdrawalStatus
	TelegramID int64
}

// Match reports whether w passes the filter
func (f WithdrawalFilter) Match(w *WithdrawalRequest) bool {
	if f.Status != "" && w.Status != f.Status {
		return false
	}
	if f.TelegramID != 0 && w.TelegramUserID != f.TelegramID {
		return false
	}
	return true
}

package models

import (
	"strings"
	"time"
)

// BankDetails holds the payout account of a Telegram user
type BankDetails struct {
	AccountNumber string `json:"bankAccountNumber"`
	BankName      string `json:"bankName"`
	AccountName   string `json:"bankAccountName"`
}

// Complete reports whether every bank field is filled in
func (b BankDetails) Complete() bool {
	return strings.TrimSpace(b.AccountNumber) != "" &&
		strings.TrimSpace(b.BankName) != "" &&
		strings.TrimSpace(b.AccountName) != ""
}

// TelegramUser represents a bot user and their rewards balance
type TelegramUser struct {
	ID              int64      `json:"id"`
	TelegramID      int64      `json:"telegramId"`
	FirstName       string     `json:"firstName"`
	LastName        string     `json:"lastName,omitempty"`
	Username        string     `json:"username,omitempty"`
	Balance         int64      `json:"balance"`
	ReferrerID      *int64     `json:"referrerId,omitempty"`
	ReferralCount   int        `json:"referralCount"`
	HasJoinedGroups bool       `json:"hasJoinedGroups"`
	LastBonusClaim  *time.Time `json:"lastBonusClaim,omitempty"`
	BankDetails
	CreatedAt time.Time `json:"createdAt"`
}

// FullName returns the first and last name joined by a space
func (u *TelegramUser) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// UserSummary is the owner information attached to withdrawal listings
type UserSummary struct {
	TelegramID int64  `json:"telegramId"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName,omitempty"`
	Username   string `json:"username,omitempty"`
	Balance    int64  `json:"balance"`
}

// Summary returns the owner summary of the user
func (u *TelegramUser) Summary() *UserSummary {
	return &UserSummary{
		TelegramID: u.TelegramID,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Username:   u.Username,
		Balance:    u.Balance,
	}
}

package models

// ConversationState represents the state of a conversation with a user
type ConversationState int

const (
	// Default is the initial state
	Default ConversationState = iota
	// AwaitingBankDetails is the state when the user is typing bank details
	AwaitingBankDetails
	// AwaitingWithdrawalAmount is the state when the user is typing the amount to withdraw
	AwaitingWithdrawalAmount
)

// String returns the state name used in logs
func (s ConversationState) String() string {
	switch s {
	case Default:
		return "default"
	case AwaitingBankDetails:
		return "awaiting_bank_details"
	case AwaitingWithdrawalAmount:
		return "awaiting_withdrawal_amount"
	default:
		return "unknown"
	}
}

// UserState represents the state of a user's conversation
type UserState struct {
	State ConversationState
	// Resume is the flow continued once the awaited input is accepted.
	// Bank details asked for by a withdrawal resume with the amount prompt.
	Resume ConversationState
}

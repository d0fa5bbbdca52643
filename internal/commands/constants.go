package commands

// TelegramCommands contains all commands for the Telegram bot
const (
	// Main commands
	Start  = "/start"
	Help   = "/help"
	Cancel = "Cancel"

	// Group membership
	Joined = "Joined"

	// Navigation commands
	ReturnToMainMenu = "Return to Main Menu"

	// Member commands
	Balance        = "💰 Balance"
	Invite         = "👥 Invite"
	Statistics     = "📊 Statistics"
	Withdraw       = "💸 Withdraw"
	AccountDetails = "📝 Account Details"
	Claim          = "🎁 Claim Bonus"

	// Administrator commands
	PendingWithdrawals = "🧾 Pending Withdrawals"
	Dashboard          = "📈 Dashboard"
)

// Inline callback identifiers
const (
	ApproveWithdrawal = "wd_approve"
	RejectWithdrawal  = "wd_reject"
)

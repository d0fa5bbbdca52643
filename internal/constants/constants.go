package constants

import "time"

const (
	// Rewards defaults
	DefaultCurrency       = "₦"
	DefaultClaimBonus     = 1000
	DefaultReferralBonus  = 5000
	DefaultMinWithdrawal  = 20000
	DefaultMaxWithdrawal  = 100000
	DefaultClaimCooldown  = time.Minute
	DefaultDisplayUsers   = 15463
	DefaultDisplayPayouts = 14198900

	// Referral payload prefix accepted in /start links
	ReferralPrefix = "ref_"

	// Dashboard window for "recent users"
	RecentUsersWindow = 30 * 24 * time.Hour

	// Network constants
	DefaultTimeout          = 30
	DefaultRetryCount       = 3
	DefaultRetryWaitTime    = 5
	DefaultRetryMaxWaitTime = 20

	// Cache constants
	CacheExpiration      = 30 // minutes
	CacheCleanupInterval = 10 // minutes

	// Shutdown grace period for the admin HTTP server
	ShutdownTimeout = 5 * time.Second

	// QR code
	QRCodeSize = 256

	// Display constants
	MaxNameDisplayLength = 32

	// Validation constants
	MinUsernameLength = 3
	MaxUsernameLength = 32

	// Formatting constants
	TimestampFormat = "2006-01-02 15:04:05"
	DateFormat      = "2006-01-02"
	TimeFormat      = "15:04:05"
)

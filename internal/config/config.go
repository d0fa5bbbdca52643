package config

import "time"

// Config represents the application configuration
type Config struct {
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Rewards   RewardsConfig   `mapstructure:"rewards"`
	Community CommunityConfig `mapstructure:"community"`
	Display   DisplayConfig   `mapstructure:"display"`
	LogLevel  string          `mapstructure:"log_level"`
}

// TelegramConfig holds the Telegram bot configuration
type TelegramConfig struct {
	Token       string        `mapstructure:"token"`
	AdminIDs    []int64       `mapstructure:"admin_ids"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
	// APIURL overrides the Bot API endpoint, e.g. a local Bot API server
	APIURL string `mapstructure:"api_url"`
}

// Enabled reports whether a bot token was provided
func (t TelegramConfig) Enabled() bool {
	return t.Token != ""
}

// HTTPConfig holds the admin API listener configuration
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// StorageConfig selects and configures the record store
type StorageConfig struct {
	Driver      string `mapstructure:"driver"`
	Path        string `mapstructure:"path"`
	DatabaseURL string `mapstructure:"database_url"`
}

// AuthConfig holds the admin panel authentication settings
type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	AdminUsername string        `mapstructure:"admin_username"`
	AdminPassword string        `mapstructure:"admin_password"`
}

// RewardsConfig holds the amounts and rules of the rewards program.
// Amounts are whole currency units.
type RewardsConfig struct {
	Currency       string         `mapstructure:"currency"`
	ClaimBonus     int64          `mapstructure:"claim_bonus"`
	ReferralBonus  int64          `mapstructure:"referral_bonus"`
	WelcomeBonus   int64          `mapstructure:"welcome_bonus"`
	MinWithdrawal  int64          `mapstructure:"min_withdrawal"`
	MaxWithdrawal  int64          `mapstructure:"max_withdrawal"`
	ClaimCooldown  time.Duration  `mapstructure:"claim_cooldown"`
	WithdrawalDays []time.Weekday `mapstructure:"withdrawal_days"`
}

// CommunityConfig holds the channels users must join and the support contacts
type CommunityConfig struct {
	RequiredGroups []string `mapstructure:"required_groups"`
	SupportChannel string   `mapstructure:"support_channel"`
	NewsChannel    string   `mapstructure:"news_channel"`
}

// DisplayConfig holds the public figures shown in the bot statistics
type DisplayConfig struct {
	TotalUsers   int64 `mapstructure:"total_users"`
	TotalPayouts int64 `mapstructure:"total_payouts"`
}

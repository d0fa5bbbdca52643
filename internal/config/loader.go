package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"referral-tg-admin/internal/constants"
	apperrors "referral-tg-admin/internal/errors"
)

// Storage drivers
const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// envBindings maps configuration keys to the environment variables they are read from
var envBindings = map[string][]string{
	"log_level":                 {"LOG_LEVEL"},
	"telegram.token":            {"TG_TOKEN", "TELEGRAM_BOT_TOKEN"},
	"telegram.admin_ids":        {"TG_ADMIN_IDS"},
	"telegram.poll_timeout":     {"TG_POLL_TIMEOUT"},
	"telegram.api_url":          {"TG_API_URL"},
	"http.addr":                 {"HTTP_ADDR"},
	"http.port":                 {"PORT"},
	"storage.driver":            {"STORAGE_DRIVER"},
	"storage.path":              {"STORAGE_PATH"},
	"storage.database_url":      {"DATABASE_URL"},
	"auth.jwt_secret":           {"JWT_SECRET"},
	"auth.session_ttl":          {"SESSION_TTL"},
	"auth.admin_username":       {"ADMIN_USERNAME"},
	"auth.admin_password":       {"ADMIN_PASSWORD"},
	"rewards.currency":          {"CURRENCY"},
	"rewards.claim_bonus":       {"CLAIM_BONUS_AMOUNT"},
	"rewards.referral_bonus":    {"REFERRAL_BONUS_AMOUNT"},
	"rewards.welcome_bonus":     {"WELCOME_BONUS_AMOUNT"},
	"rewards.min_withdrawal":    {"MIN_WITHDRAWAL_AMOUNT"},
	"rewards.max_withdrawal":    {"MAX_WITHDRAWAL_AMOUNT"},
	"rewards.claim_cooldown":    {"CLAIM_COOLDOWN"},
	"rewards.withdrawal_days":   {"WITHDRAWAL_DAYS"},
	"community.required_groups": {"REQUIRED_GROUPS"},
	"community.support_channel": {"SUPPORT_CHANNEL"},
	"community.news_channel":    {"NEWS_CHANNEL"},
	"display.total_users":       {"DISPLAY_TOTAL_USERS"},
	"display.total_payouts":     {"DISPLAY_TOTAL_PAYOUTS"},
}

// Load loads the configuration from environment variables.
// A .env file in the working directory is read first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, &apperrors.ConfigError{Section: "env", Message: err.Error()}
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	for key, envs := range envBindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return nil, &apperrors.ConfigError{Section: key, Message: err.Error()}
		}
	}

	return fromViper(v)
}

// setDefaults sets the default values
func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("telegram.poll_timeout", 10*time.Second)
	v.SetDefault("http.port", "5000")
	v.SetDefault("storage.driver", DriverFile)
	v.SetDefault("storage.path", "data.json")
	v.SetDefault("auth.session_ttl", 24*time.Hour)
	v.SetDefault("auth.admin_username", "admin")
	v.SetDefault("rewards.currency", constants.DefaultCurrency)
	v.SetDefault("rewards.claim_bonus", constants.DefaultClaimBonus)
	v.SetDefault("rewards.referral_bonus", constants.DefaultReferralBonus)
	v.SetDefault("rewards.welcome_bonus", 0)
	v.SetDefault("rewards.min_withdrawal", constants.DefaultMinWithdrawal)
	v.SetDefault("rewards.max_withdrawal", constants.DefaultMaxWithdrawal)
	v.SetDefault("rewards.claim_cooldown", constants.DefaultClaimCooldown)
	v.SetDefault("rewards.withdrawal_days", "saturday,sunday")
	v.SetDefault("community.required_groups", "")
	v.SetDefault("display.total_users", constants.DefaultDisplayUsers)
	v.SetDefault("display.total_payouts", constants.DefaultDisplayPayouts)
}

// fromViper builds and validates a Config from a populated viper instance
func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		LogLevel: v.GetString("log_level"),
		Telegram: TelegramConfig{
			Token:       strings.TrimSpace(v.GetString("telegram.token")),
			PollTimeout: v.GetDuration("telegram.poll_timeout"),
			APIURL:      strings.TrimRight(strings.TrimSpace(v.GetString("telegram.api_url")), "/"),
		},
		HTTP: HTTPConfig{
			Addr: strings.TrimSpace(v.GetString("http.addr")),
		},
		Storage: StorageConfig{
			Driver:      strings.ToLower(strings.TrimSpace(v.GetString("storage.driver"))),
			Path:        strings.TrimSpace(v.GetString("storage.path")),
			DatabaseURL: strings.TrimSpace(v.GetString("storage.database_url")),
		},
		Auth: AuthConfig{
			JWTSecret:     v.GetString("auth.jwt_secret"),
			SessionTTL:    v.GetDuration("auth.session_ttl"),
			AdminUsername: strings.ToLower(strings.TrimSpace(v.GetString("auth.admin_username"))),
			AdminPassword: v.GetString("auth.admin_password"),
		},
		Rewards: RewardsConfig{
			Currency:      v.GetString("rewards.currency"),
			ClaimBonus:    v.GetInt64("rewards.claim_bonus"),
			ReferralBonus: v.GetInt64("rewards.referral_bonus"),
			WelcomeBonus:  v.GetInt64("rewards.welcome_bonus"),
			MinWithdrawal: v.GetInt64("rewards.min_withdrawal"),
			MaxWithdrawal: v.GetInt64("rewards.max_withdrawal"),
			ClaimCooldown: v.GetDuration("rewards.claim_cooldown"),
		},
		Community: CommunityConfig{
			RequiredGroups: splitList(v.GetString("community.required_groups")),
			SupportChannel: strings.TrimPrefix(strings.TrimSpace(v.GetString("community.support_channel")), "@"),
			NewsChannel:    strings.TrimPrefix(strings.TrimSpace(v.GetString("community.news_channel")), "@"),
		},
		Display: DisplayConfig{
			TotalUsers:   v.GetInt64("display.total_users"),
			TotalPayouts: v.GetInt64("display.total_payouts"),
		},
	}

	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":" + strings.TrimSpace(v.GetString("http.port"))
	}

	// Parse admin IDs
	adminIDs, err := ParseAdminIDs(v.GetString("telegram.admin_ids"))
	if err != nil {
		return nil, &apperrors.ConfigError{Section: "telegram", Message: err.Error()}
	}
	cfg.Telegram.AdminIDs = adminIDs

	days, err := ParseWeekdays(v.GetString("rewards.withdrawal_days"))
	if err != nil {
		return nil, &apperrors.ConfigError{Section: "rewards", Message: err.Error()}
	}
	cfg.Rewards.WithdrawalDays = days

	for i, group := range cfg.Community.RequiredGroups {
		cfg.Community.RequiredGroups[i] = strings.TrimPrefix(group, "@")
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.Auth.JWTSecret == "" {
		return &apperrors.ConfigError{Section: "auth", Message: "JWT_SECRET is required"}
	}
	if cfg.Auth.SessionTTL <= 0 {
		return &apperrors.ConfigError{Section: "auth", Message: "SESSION_TTL must be positive"}
	}

	switch cfg.Storage.Driver {
	case DriverFile:
	case DriverPostgres, DriverSQLite:
		if cfg.Storage.DatabaseURL == "" {
			return &apperrors.ConfigError{Section: "storage", Message: "DATABASE_URL is required for driver " + cfg.Storage.Driver}
		}
	default:
		return &apperrors.ConfigError{Section: "storage", Message: "unknown driver " + cfg.Storage.Driver}
	}

	r := cfg.Rewards
	if r.ClaimBonus < 0 || r.ReferralBonus < 0 || r.WelcomeBonus < 0 {
		return &apperrors.ConfigError{Section: "rewards", Message: "bonus amounts cannot be negative"}
	}
	if r.MinWithdrawal <= 0 {
		return &apperrors.ConfigError{Section: "rewards", Message: "MIN_WITHDRAWAL_AMOUNT must be positive"}
	}
	if r.MaxWithdrawal != 0 && r.MaxWithdrawal < r.MinWithdrawal {
		return &apperrors.ConfigError{Section: "rewards", Message: "MAX_WITHDRAWAL_AMOUNT is below the minimum"}
	}
	if r.ClaimCooldown < 0 {
		return &apperrors.ConfigError{Section: "rewards", Message: "CLAIM_COOLDOWN cannot be negative"}
	}

	return nil
}

// ParseAdminIDs parses a comma separated list of Telegram user IDs
func ParseAdminIDs(s string) ([]int64, error) {
	parts := splitList(s)
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid admin id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// ParseWeekdays parses weekdays given as names ("saturday") or numbers (0 = Sunday).
// "any" or an empty string means every day.
func ParseWeekdays(s string) ([]time.Weekday, error) {
	parts := splitList(s)
	if len(parts) == 1 && strings.EqualFold(parts[0], "any") {
		return nil, nil
	}

	days := make([]time.Weekday, 0, len(parts))
	for _, part := range parts {
		if day, ok := weekdayNames[strings.ToLower(part)]; ok {
			days = append(days, day)
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 6 {
			return nil, fmt.Errorf("invalid weekday %q", part)
		}
		days = append(days, time.Weekday(n))
	}
	return days, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

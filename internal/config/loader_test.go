package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "referral-tg-admin/internal/errors"
)

func newTestViper(values map[string]interface{}) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.Set("auth.jwt_secret", "secret")
	for key, value := range values {
		v.Set(key, value)
	}
	return v
}

func TestFromViper_Defaults(t *testing.T) {
	cfg, err := fromViper(newTestViper(nil))
	require.NoError(t, err)

	assert.Equal(t, ":5000", cfg.HTTP.Addr)
	assert.Equal(t, DriverFile, cfg.Storage.Driver)
	assert.Equal(t, "data.json", cfg.Storage.Path)
	assert.Equal(t, 24*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, "admin", cfg.Auth.AdminUsername)
	assert.Equal(t, int64(1000), cfg.Rewards.ClaimBonus)
	assert.Equal(t, int64(5000), cfg.Rewards.ReferralBonus)
	assert.Equal(t, int64(0), cfg.Rewards.WelcomeBonus)
	assert.Equal(t, int64(20000), cfg.Rewards.MinWithdrawal)
	assert.Equal(t, int64(100000), cfg.Rewards.MaxWithdrawal)
	assert.Equal(t, time.Minute, cfg.Rewards.ClaimCooldown)
	assert.Equal(t, []time.Weekday{time.Saturday, time.Sunday}, cfg.Rewards.WithdrawalDays)
	assert.Empty(t, cfg.Community.RequiredGroups)
	assert.False(t, cfg.Telegram.Enabled())
	assert.Empty(t, cfg.Telegram.APIURL)
}

func TestFromViper_Overrides(t *testing.T) {
	cfg, err := fromViper(newTestViper(map[string]interface{}{
		"telegram.token":            "123:abc",
		"telegram.admin_ids":        "1, 2,3",
		"telegram.api_url":          " http://127.0.0.1:8081/ ",
		"http.addr":                 "127.0.0.1:8080",
		"rewards.claim_cooldown":    "90s",
		"rewards.withdrawal_days":   "any",
		"community.required_groups": "@news, community",
		"community.support_channel": "@help",
	}))
	require.NoError(t, err)

	assert.True(t, cfg.Telegram.Enabled())
	assert.Equal(t, []int64{1, 2, 3}, cfg.Telegram.AdminIDs)
	assert.Equal(t, "http://127.0.0.1:8081", cfg.Telegram.APIURL)
	assert.Equal(t, "127.0.0.1:8080", cfg.HTTP.Addr)
	assert.Equal(t, 90*time.Second, cfg.Rewards.ClaimCooldown)
	assert.Nil(t, cfg.Rewards.WithdrawalDays)
	assert.Equal(t, []string{"news", "community"}, cfg.Community.RequiredGroups)
	assert.Equal(t, "help", cfg.Community.SupportChannel)
}

func TestFromViper_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]interface{}
	}{
		{name: "missing secret", values: map[string]interface{}{"auth.jwt_secret": ""}},
		{name: "bad admin id", values: map[string]interface{}{"telegram.admin_ids": "1,abc"}},
		{name: "bad weekday", values: map[string]interface{}{"rewards.withdrawal_days": "funday"}},
		{name: "unknown driver", values: map[string]interface{}{"storage.driver": "mongo"}},
		{name: "postgres without url", values: map[string]interface{}{"storage.driver": "postgres"}},
		{name: "max below min", values: map[string]interface{}{"rewards.max_withdrawal": 100}},
		{name: "zero min", values: map[string]interface{}{"rewards.min_withdrawal": 0}},
		{name: "negative bonus", values: map[string]interface{}{"rewards.claim_bonus": -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fromViper(newTestViper(tt.values))
			var configErr *apperrors.ConfigError
			assert.ErrorAs(t, err, &configErr)
		})
	}
}

func TestParseWeekdays(t *testing.T) {
	days, err := ParseWeekdays("Sat, sunday, 3")
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Saturday, time.Sunday, time.Wednesday}, days)

	days, err = ParseWeekdays("")
	require.NoError(t, err)
	assert.Empty(t, days)

	_, err = ParseWeekdays("7")
	assert.Error(t, err)
}

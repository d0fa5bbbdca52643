package helpers

import (
	"fmt"

	"referral-tg-admin/internal/constants"
)

// ReferralPayload returns the /start payload that credits referrerID
// For example: ReferralPayload(42) -> "ref_42"
func ReferralPayload(referrerID int64) string {
	return fmt.Sprintf("%s%d", constants.ReferralPrefix, referrerID)
}

// ReferralLink returns the deep link inviting new users on behalf of referrerID
func ReferralLink(botUsername string, referrerID int64) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", botUsername, ReferralPayload(referrerID))
}

// ChannelLink returns the public link of a channel or group username
func ChannelLink(name string) string {
	return "https://t.me/" + name
}

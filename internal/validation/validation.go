package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"referral-tg-admin/internal/constants"
	apperrors "referral-tg-admin/internal/errors"
	"referral-tg-admin/internal/models"
)

// PlaceholderBankName is stored when only an account number was provided
const PlaceholderBankName = "Please specify your bank name"

var (
	singleLineBankPattern = regexp.MustCompile(`^\s*(\d+)\s+(.+)\s+(.+)\s*$`)
	accountNumberPattern  = regexp.MustCompile(`\b\d{10,11}\b`)
	amountPattern         = regexp.MustCompile(`^[^\d.\-]*?(\d{1,3}(?:[, ]\d{3})+|\d+)[^\d.\-]*$`)
)

// ValidateUsername validates an admin panel username
func ValidateUsername(username string) error {
	if len(username) < constants.MinUsernameLength || len(username) > constants.MaxUsernameLength {
		return fmt.Errorf("username must be between %d and %d characters",
			constants.MinUsernameLength, constants.MaxUsernameLength)
	}

	for _, r := range username {
		if !isValidUsernameChar(r) {
			return fmt.Errorf("username can only contain letters, numbers, and underscores")
		}
	}

	return nil
}

// ParseAmount reads a whole amount typed by a user. A currency sign, words
// and thousands separators around a single number are accepted ("₦20,000",
// "25 000 naira"); decimals, signs and several numbers are not.
func ParseAmount(text string) (int64, error) {
	match := amountPattern.FindStringSubmatch(text)
	if match == nil {
		return 0, &apperrors.ValidationError{Field: "amount", Message: "please enter a valid amount (numbers only)"}
	}

	digits := strings.NewReplacer(",", "", " ", "").Replace(match[1])
	amount, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, &apperrors.ValidationError{Field: "amount", Message: "amount is too large"}
	}

	return amount, nil
}

// ParseBankDetails parses bank details typed by a user. Accepted forms:
//
//	three lines: account number, bank name, account name
//	one line:    "<account number> <bank name> <account name>"
//	a 10-11 digit account number followed by the bank name and optionally the account name
//
// fallbackName is used when the account name is missing.
func ParseBankDetails(text string, fallbackName string) (models.BankDetails, error) {
	text = strings.TrimSpace(text)
	fallbackName = strings.TrimSpace(fallbackName)

	var details models.BankDetails
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}

	if len(lines) == 3 {
		details = models.BankDetails{AccountNumber: lines[0], BankName: lines[1], AccountName: lines[2]}
	} else if m := singleLineBankPattern.FindStringSubmatch(text); m != nil {
		details = models.BankDetails{AccountNumber: m[1], BankName: m[2], AccountName: m[3]}
	} else if account := accountNumberPattern.FindString(text); account != "" {
		details.AccountNumber = account
		remaining := strings.TrimSpace(strings.Replace(text, account, "", 1))

		switch {
		case remaining == "":
			details.BankName = PlaceholderBankName
			details.AccountName = fallbackName
		case strings.Contains(remaining, " "):
			idx := strings.Index(remaining, " ")
			details.BankName = remaining[:idx]
			details.AccountName = remaining[idx:]
		default:
			details.BankName = remaining
			details.AccountName = fallbackName
		}
	} else {
		return models.BankDetails{}, invalidBankDetails()
	}

	details = models.BankDetails{
		AccountNumber: strings.TrimSpace(details.AccountNumber),
		BankName:      strings.TrimSpace(details.BankName),
		AccountName:   strings.TrimSpace(details.AccountName),
	}
	if !details.Complete() {
		return models.BankDetails{}, invalidBankDetails()
	}

	return details, nil
}

// ParseReferrerID extracts the referrer from a /start payload.
// Both "123" and "ref_123" are accepted.
func ParseReferrerID(payload string) (int64, bool) {
	payload = strings.TrimSpace(payload)
	payload = strings.TrimPrefix(payload, constants.ReferralPrefix)
	if payload == "" {
		return 0, false
	}

	id, err := strconv.ParseInt(payload, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func invalidBankDetails() error {
	return &apperrors.ValidationError{Field: "bankDetails", Message: "invalid bank details format"}
}

// isValidUsernameChar checks if a character is valid for usernames
func isValidUsernameChar(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') ||
		r == '_'
}

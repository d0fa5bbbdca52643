package helpers

import (
	"fmt"
	"html"
	"strings"

	"referral-tg-admin/internal/constants"
	"referral-tg-admin/internal/models"
)

// FormatDashboardReport formats the admin dashboard figures as a table
func FormatDashboardReport(stats *models.DashboardStats, currency string) string {
	var sb strings.Builder
	sb.WriteString("<b>Dashboard:</b>\n")
	sb.WriteString("<pre>\n")
	sb.WriteString(FormatTableLine("Users", fmt.Sprintf("%d", stats.ActualUsers)))
	sb.WriteString(FormatTableLine("New (30 days)", fmt.Sprintf("%d", stats.RecentUsers)))
	sb.WriteString(FormatTableLine("Paid out", FormatAmount(currency, stats.ActualPayouts)))
	sb.WriteString(FormatTableLine("Pending", fmt.Sprintf("%d", stats.PendingWithdrawals)))
	sb.WriteString("-----------------------------\n")
	sb.WriteString(FormatTableLine("Shown users", fmt.Sprintf("%d", stats.TotalUsers)))
	sb.WriteString(FormatTableLine("Shown payouts", FormatAmount(currency, stats.TotalPayouts)))
	sb.WriteString("</pre>")

	return sb.String()
}

// FormatTableLine formats a single label/value line of a report table
func FormatTableLine(label string, value string) string {
	return fmt.Sprintf("%-15s | %s\n", label, value)
}

// FormatWithdrawal formats a withdrawal request for admin review.
// User supplied fields are HTML escaped.
func FormatWithdrawal(w *models.WithdrawalView, currency string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<b>Withdrawal #%d</b> (%s)\n", w.ID, w.Status))
	if w.User != nil {
		sb.WriteString(fmt.Sprintf("User: %s", html.EscapeString(DisplayName(w.User.FirstName, w.User.LastName))))
		if w.User.Username != "" {
			sb.WriteString(fmt.Sprintf(" @%s", html.EscapeString(w.User.Username)))
		}
		sb.WriteString(fmt.Sprintf(" (<code>%d</code>)\n", w.TelegramUserID))
	} else {
		sb.WriteString(fmt.Sprintf("User: <code>%d</code>\n", w.TelegramUserID))
	}
	sb.WriteString(fmt.Sprintf("Amount: %s\n", FormatAmount(currency, w.Amount)))
	sb.WriteString(fmt.Sprintf("Account Number: %s\n", html.EscapeString(w.AccountNumber)))
	sb.WriteString(fmt.Sprintf("Bank Name: %s\n", html.EscapeString(w.BankName)))
	sb.WriteString(fmt.Sprintf("Account Name: %s\n", html.EscapeString(w.AccountName)))
	sb.WriteString(fmt.Sprintf("Date: %s", w.CreatedAt.Format(constants.TimestampFormat)))

	return sb.String()
}

// DisplayName joins first and last name, truncating overly long names
func DisplayName(firstName, lastName string) string {
	name := strings.TrimSpace(firstName + " " + lastName)
	runes := []rune(name)
	if len(runes) > constants.MaxNameDisplayLength {
		return string(runes[:constants.MaxNameDisplayLength]) + "..."
	}
	return name
}

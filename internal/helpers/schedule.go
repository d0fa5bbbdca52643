package helpers

import (
	"strings"
	"time"
)

// FormatWeekdays lists weekdays in prose: "Saturday and Sunday"
func FormatWeekdays(days []time.Weekday) string {
	if len(days) == 0 {
		return "every day"
	}

	names := make([]string, len(days))
	for i, day := range days {
		names[i] = day.String()
	}
	if len(names) == 1 {
		return names[0]
	}
	return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
}

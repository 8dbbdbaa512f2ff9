package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// SheetDateLayout is how lesson dates are written in the worksheets (24-Jan-25)
const SheetDateLayout = "2-Jan-06"

var (
	russianWeekdays = [...]string{"Вс", "Пн", "Вт", "Ср", "Чт", "Пт", "Сб"}
	russianMonths   = [...]string{"янв", "фев", "мар", "апр", "май", "июн", "июл", "авг", "сен", "окт", "ноя", "дек"}
)

// ParseSheetDate parses a worksheet date cell
func ParseSheetDate(value string) (time.Time, error) {
	return time.Parse(SheetDateLayout, strings.TrimSpace(value))
}

// FormatRussian formats a date as "Пн 24-янв-2025"
func FormatRussian(t time.Time) string {
	return fmt.Sprintf("%s %02d-%s-%d",
		russianWeekdays[t.Weekday()],
		t.Day(),
		russianMonths[t.Month()-1],
		t.Year())
}

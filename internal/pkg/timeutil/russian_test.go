package timeutil

import (
	"testing"
	"time"
)

func TestFormatRussian(t *testing.T) {
	tests := []struct {
		date time.Time
		want string
	}{
		{time.Date(2025, 1, 24, 0, 0, 0, 0, time.UTC), "Пт 24-янв-2025"},
		{time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), "Вс 02-мар-2025"},
		{time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC), "Пн 30-дек-2024"},
		{time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), "Чт 01-май-2025"},
	}
	for _, tt := range tests {
		if got := FormatRussian(tt.date); got != tt.want {
			t.Errorf("expected %s, got %s", tt.want, got)
		}
	}
}

func TestParseSheetDate(t *testing.T) {
	tests := []struct {
		value   string
		want    time.Time
		wantErr bool
	}{
		{"24-Jan-25", time.Date(2025, 1, 24, 0, 0, 0, 0, time.UTC), false},
		{" 2-Mar-25 ", time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), false},
		{"2025-01-24", time.Time{}, true},
		{"", time.Time{}, true},
	}
	for _, tt := range tests {
		got, err := ParseSheetDate(tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("%q: unexpected error %v", tt.value, err)
			continue
		}
		if !tt.wantErr && !got.Equal(tt.want) {
			t.Errorf("%q: expected %v, got %v", tt.value, tt.want, got)
		}
	}
}

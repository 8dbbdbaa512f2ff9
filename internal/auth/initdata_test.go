package auth

import (
	"errors"
	"net/url"
	"testing"
	"time"
)

func TestInitDataValidator_Valid(t *testing.T) {
	v := fixedValidator(testBotToken)
	raw := SignInitData(testBotToken, initDataFields(555, testNow.Add(-10*time.Minute)))

	user, err := v.Validate(raw, time.Hour)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.TelegramID != "555" {
		t.Errorf("expected TelegramID=555, got %q", user.TelegramID)
	}
	if user.Username != "alice_s" || user.FirstName != "Alice" || user.LastName != "Smith" {
		t.Errorf("unexpected profile: %+v", user)
	}
	if !user.AuthDate.Equal(testNow.Add(-10 * time.Minute)) {
		t.Errorf("unexpected auth date %v", user.AuthDate)
	}
}

func TestInitDataValidator_FieldMutationInvalidates(t *testing.T) {
	v := fixedValidator(testBotToken)
	raw := SignInitData(testBotToken, initDataFields(555, testNow.Add(-time.Minute)))

	mutations := map[string]string{
		"query_id":  "AAHdF6IQAAAAAN0XohDhrOrd",
		"auth_date": "1737719941",
		"user":      `{"id":556,"first_name":"Alice"}`,
	}
	for field, value := range mutations {
		t.Run(field, func(t *testing.T) {
			values, err := url.ParseQuery(raw)
			if err != nil {
				t.Fatal(err)
			}
			values.Set(field, value)
			_, err = v.Validate(values.Encode(), time.Hour)
			if !errors.Is(err, ErrInvalidInitData) {
				t.Errorf("expected ErrInvalidInitData, got %v", err)
			}
		})
	}

	t.Run("added field", func(t *testing.T) {
		_, err := v.Validate(raw+"&extra=1", time.Hour)
		if !errors.Is(err, ErrInvalidInitData) {
			t.Errorf("expected ErrInvalidInitData, got %v", err)
		}
	})
}

func TestInitDataValidator_Rejects(t *testing.T) {
	v := fixedValidator(testBotToken)
	fresh := initDataFields(555, testNow.Add(-time.Minute))

	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"missing hash", fresh.Encode()},
		{"non hex hash", fresh.Encode() + "&hash=zzzz"},
		{"wrong bot token", SignInitData("999:other", fresh)},
		{"expired", SignInitData(testBotToken, initDataFields(555, testNow.Add(-2*time.Hour)))},
		{"from the future", SignInitData(testBotToken, initDataFields(555, testNow.Add(5*time.Minute)))},
		{"zero user id", SignInitData(testBotToken, initDataFields(0, testNow))},
		{"bad user json", SignInitData(testBotToken, url.Values{
			"auth_date": fresh["auth_date"],
			"user":      {"not json"},
		})},
		{"repeated field", SignInitData(testBotToken, fresh) + "&query_id=again"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := v.Validate(tt.raw, time.Hour)
			if !errors.Is(err, ErrInvalidInitData) {
				t.Errorf("expected ErrInvalidInitData, got %v", err)
			}
			if user != nil {
				t.Errorf("expected no user, got %+v", user)
			}
		})
	}
}

func TestInitDataValidator_ExpiredRegardlessOfSignature(t *testing.T) {
	v := fixedValidator(testBotToken)
	for _, age := range []time.Duration{61 * time.Minute, 24 * time.Hour, 30 * 24 * time.Hour} {
		raw := SignInitData(testBotToken, initDataFields(555, testNow.Add(-age)))
		if _, err := v.Validate(raw, time.Hour); !errors.Is(err, ErrInvalidInitData) {
			t.Errorf("age %v: expected ErrInvalidInitData, got %v", age, err)
		}
	}

	// within a wider window the same payload is fine
	raw := SignInitData(testBotToken, initDataFields(555, testNow.Add(-61*time.Minute)))
	if _, err := v.Validate(raw, 2*time.Hour); err != nil {
		t.Errorf("expected payload to validate with a 2h window, got %v", err)
	}
}

func TestInitDataValidator_NotConfigured(t *testing.T) {
	v := NewInitDataValidator("")
	if v.Configured() {
		t.Fatal("expected validator without bot token to be unconfigured")
	}
	_, err := v.Validate("auth_date=1&hash=00", time.Hour)
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

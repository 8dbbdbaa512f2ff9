package auth

import (
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"time"
)

const testBotToken = "123456:TEST-bot-token"

var testNow = time.Date(2025, 1, 24, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func initDataFields(telegramID int64, authDate time.Time) url.Values {
	return url.Values{
		"query_id":  {"AAHdF6IQAAAAAN0XohDhrOrc"},
		"auth_date": {strconv.FormatInt(authDate.Unix(), 10)},
		"user": {`{"id":` + strconv.FormatInt(telegramID, 10) +
			`,"first_name":"Alice","last_name":"Smith","username":"alice_s","language_code":"ru"}`},
	}
}

func fixedValidator(botToken string) *InitDataValidator {
	v := NewInitDataValidator(botToken)
	v.now = func() time.Time { return testNow }
	return v
}

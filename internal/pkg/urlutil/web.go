package urlutil

import (
	"net/url"
	"strconv"
	"strings"
)

// AccessURL builds the shareable link for an access token.
// Returns a URL like: {baseURL}/t/{token}
func AccessURL(baseURL, token string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return strings.TrimRight(baseURL, "/") + "/t/" + url.PathEscape(token)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/t/" + token
	u.RawPath = ""
	return u.String()
}

// StudentURL builds the history page path. A zero limit and an empty token
// are left out.
func StudentURL(limit int, token string) string {
	q := url.Values{}
	if limit > 0 {
		q.Set("query", strconv.Itoa(limit))
	}
	if token != "" {
		q.Set("token", token)
	}
	if len(q) == 0 {
		return "/student"
	}
	return "/student?" + q.Encode()
}

// TelegramLaunchURL opens the bot's Mini App directly
func TelegramLaunchURL(botUsername string) string {
	return "https://t.me/" + strings.TrimPrefix(botUsername, "@") + "?startapp"
}

package telegram

import (
	"regexp"
	"strings"
)

// tokenPattern matches the Telegram bot token format: <digits>:<alphanum+dash>.
var tokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

// ValidToken reports whether token looks like a Bot API token.
func ValidToken(token string) bool {
	return tokenPattern.MatchString(token)
}

// BotID returns the numeric bot id prefix of a token ("123" for
// "123:abc"). It returns "" when the token has no id prefix.
func BotID(token string) string {
	id, _, ok := strings.Cut(token, ":")
	if !ok {
		return ""
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return id
}

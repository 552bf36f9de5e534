// Package identity embeds a sender's chat id into the inline keyboard of a
// forwarded copy and recovers it from the owner's reply. Nothing is stored:
// the keyboard travels with the copy and comes back in reply_to_message.
package identity

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/flemzord/tgrelay/internal/telegram"
)

// URLMarker prefixes the sender id in the deep-link channel.
const URLMarker = "tg://user?id="

// MaxCallbackData is Telegram's byte limit for callback_data.
const MaxCallbackData = 64

// Channel selects where the sender id is carried.
type Channel int

const (
	// ChannelCallback carries the id in callback_data.
	ChannelCallback Channel = iota
	// ChannelURL carries the id as a tg://user deep link.
	ChannelURL
)

func (c Channel) String() string {
	switch c {
	case ChannelCallback:
		return "callback"
	case ChannelURL:
		return "url"
	default:
		return "unknown"
	}
}

// Status classifies a decode attempt.
type Status int

const (
	StatusOK Status = iota
	// StatusNoAffordance means the message carries no usable button.
	StatusNoAffordance
	// StatusUnparseable means a button exists but neither channel holds a
	// positive integer.
	StatusUnparseable
)

// Decode errors.
var (
	ErrNoAffordance = errors.New("identity: message has no sender button")
	ErrUnparseable  = errors.New("identity: sender button holds no valid id")
)

// Result is the tagged outcome of Decode.
type Result struct {
	ID      int64
	Status  Status
	Channel Channel
}

// OK reports whether a sender id was recovered.
func (r Result) OK() bool { return r.Status == StatusOK }

// Err returns nil for StatusOK and the matching decode error otherwise.
func (r Result) Err() error {
	switch r.Status {
	case StatusOK:
		return nil
	case StatusNoAffordance:
		return ErrNoAffordance
	default:
		return ErrUnparseable
	}
}

// Codec is the capability the relay depends on.
type Codec interface {
	Encode(senderID int64, displayName string, ch Channel) *telegram.InlineKeyboardMarkup
	Decode(markup *telegram.InlineKeyboardMarkup) Result
}

// DefaultCodec implements Codec with the package-level functions.
type DefaultCodec struct{}

var _ Codec = DefaultCodec{}

// Encode implements Codec.
func (DefaultCodec) Encode(senderID int64, displayName string, ch Channel) *telegram.InlineKeyboardMarkup {
	return Encode(senderID, displayName, ch)
}

// Decode implements Codec.
func (DefaultCodec) Decode(markup *telegram.InlineKeyboardMarkup) Result {
	return Decode(markup)
}

// Encode builds a one-button keyboard carrying senderID on the requested
// channel. A callback payload that would exceed MaxCallbackData is moved
// to the URL channel.
func Encode(senderID int64, displayName string, ch Channel) *telegram.InlineKeyboardMarkup {
	id := strconv.FormatInt(senderID, 10)
	if ch == ChannelCallback && len(id) > MaxCallbackData {
		ch = ChannelURL
	}

	btn := telegram.InlineKeyboardButton{}
	switch ch {
	case ChannelURL:
		btn.Text = Label("🔓", displayName, id)
		btn.URL = URLMarker + id
	default:
		btn.Text = Label("🔏", displayName, id)
		btn.CallbackData = id
	}

	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{{btn}},
	}
}

// Label renders the human-readable button text.
func Label(icon, displayName, id string) string {
	return fmt.Sprintf("%s From: %s (%s)", icon, displayName, id)
}

// Decode recovers the sender id from the first button of markup. The
// callback channel wins when non-empty; otherwise the URL suffix after
// URLMarker is parsed.
func Decode(markup *telegram.InlineKeyboardMarkup) Result {
	if markup == nil || len(markup.InlineKeyboard) == 0 || len(markup.InlineKeyboard[0]) == 0 {
		return Result{Status: StatusNoAffordance}
	}
	btn := markup.InlineKeyboard[0][0]

	if id, ok := parseID(btn.CallbackData); ok {
		return Result{ID: id, Status: StatusOK, Channel: ChannelCallback}
	}

	if _, suffix, found := strings.Cut(btn.URL, URLMarker); found {
		if id, ok := parseID(suffix); ok {
			return Result{ID: id, Status: StatusOK, Channel: ChannelURL}
		}
	}
	if btn.CallbackData == "" && btn.URL == "" {
		return Result{Status: StatusNoAffordance}
	}
	return Result{Status: StatusUnparseable}
}

// parseID accepts ASCII-digit strings holding a positive int64.
func parseID(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// DisplayName renders the sender's name: "@username" when set, otherwise
// first and last name joined by a space with empty parts omitted.
func DisplayName(chat telegram.Chat) string {
	if chat.Username != "" {
		return "@" + chat.Username
	}
	parts := make([]string, 0, 2)
	for _, p := range []string{chat.FirstName, chat.LastName} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

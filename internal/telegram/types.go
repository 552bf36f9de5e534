package telegram

import "fmt"

// Update represents an incoming update from the Telegram Bot API.
// Only the message variant is consumed by the relay; other update kinds
// decode to a nil Message.
type Update struct {
	UpdateID int      `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// Message represents a Telegram message.
type Message struct {
	MessageID      int                   `json:"message_id"`
	From           *User                 `json:"from,omitempty"`
	Chat           Chat                  `json:"chat"`
	Date           int                   `json:"date"`
	Text           string                `json:"text,omitempty"`
	Caption        string                `json:"caption,omitempty"`
	Photo          []PhotoSize           `json:"photo,omitempty"`
	Video          *FileRef              `json:"video,omitempty"`
	Animation      *FileRef              `json:"animation,omitempty"`
	Audio          *FileRef              `json:"audio,omitempty"`
	Voice          *FileRef              `json:"voice,omitempty"`
	Document       *FileRef              `json:"document,omitempty"`
	Sticker        *FileRef              `json:"sticker,omitempty"`
	Location       *Location             `json:"location,omitempty"`
	ReplyToMessage *Message              `json:"reply_to_message,omitempty"`
	ReplyMarkup    *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// HasMedia reports whether the message carries a media attachment.
func (m *Message) HasMedia() bool {
	return len(m.Photo) > 0 ||
		m.Video != nil ||
		m.Animation != nil ||
		m.Audio != nil ||
		m.Voice != nil ||
		m.Document != nil ||
		m.Sticker != nil ||
		m.Location != nil
}

// Chat represents a Telegram chat.
type Chat struct {
	ID        int64  `json:"id"`
	Type      string `json:"type,omitempty"`
	Title     string `json:"title,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// User represents a Telegram user or bot.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// PhotoSize represents one size of a photo.
type PhotoSize struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
}

// FileRef is the common subset of video, audio, voice, document,
// animation and sticker objects. The relay never downloads files, it only
// needs to know that one is attached.
type FileRef struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
}

// Location represents a point on the map.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// InlineKeyboardMarkup is an inline keyboard attached to a message.
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// InlineKeyboardButton is one button of an inline keyboard. Telegram
// requires exactly one of the optional action fields to be set.
type InlineKeyboardButton struct {
	Text         string `json:"text"`
	URL          string `json:"url,omitempty"`
	CallbackData string `json:"callback_data,omitempty"`
}

// MessageID is the result of copyMessage.
type MessageID struct {
	MessageID int `json:"message_id"`
}

// APIResponse is the generic wrapper returned by the Telegram Bot API.
type APIResponse[T any] struct {
	OK          bool                `json:"ok"`
	Result      T                   `json:"result"`
	Description string              `json:"description,omitempty"`
	ErrorCode   int                 `json:"error_code,omitempty"`
	Parameters  *ResponseParameters `json:"parameters,omitempty"`
}

// ResponseParameters contains information about why a request was unsuccessful.
type ResponseParameters struct {
	RetryAfter int `json:"retry_after,omitempty"`
}

// APIError is returned when the Bot API answers with ok=false.
type APIError struct {
	Method      string `json:"-"`
	Code        int    `json:"error_code"`
	Description string `json:"description"`
	RetryAfter  int    `json:"retry_after,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("telegram: %s: %d %s (retry after %ds)", e.Method, e.Code, e.Description, e.RetryAfter)
	}
	return fmt.Sprintf("telegram: %s: %d %s", e.Method, e.Code, e.Description)
}

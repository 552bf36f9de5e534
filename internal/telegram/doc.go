// Package telegram is a minimal Telegram Bot API client for tgrelay.
//
// It covers the four methods the relay needs:
//
//   - sendMessage for auto-replies and the owner help text
//   - copyMessage for user to owner forwards and owner to user replies
//   - setWebhook and deleteWebhook for webhook registration
//
// No external Telegram library is used. The client talks to the Bot API
// via raw net/http + encoding/json, performs a single round trip per call
// and reports platform rejections as *APIError.
package telegram

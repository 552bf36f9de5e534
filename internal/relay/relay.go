// Package relay routes Telegram updates between users and the bot owner.
//
// Each update takes exactly one branch: duplicate, owner help, owner
// reply, /start, or keyword/default auto-reply. Every non-owner message
// that is not a duplicate is then copied into the owner's chat with the
// sender's id embedded in an inline keyboard, so the owner's reply can
// be routed back without any session table.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/tgrelay/internal/dedup"
	"github.com/flemzord/tgrelay/internal/identity"
	"github.com/flemzord/tgrelay/internal/metrics"
	"github.com/flemzord/tgrelay/internal/replies"
	"github.com/flemzord/tgrelay/internal/telegram"
)

const tracerName = "github.com/flemzord/tgrelay/internal/relay"

// parseModeMarkdown is used for every auto-reply text.
const parseModeMarkdown = "Markdown"

// Route names the branch taken for an update.
type Route string

const (
	RouteIgnored           Route = "ignored"
	RouteDuplicate         Route = "duplicate"
	RouteOwnerHelp         Route = "owner_help"
	RouteOwnerReply        Route = "owner_reply"
	RouteOwnerReplyDropped Route = "owner_reply_dropped"
	RouteStart             Route = "start"
	RouteKeyword           Route = "keyword"
	RouteDefault           Route = "default"
)

// Bot is the subset of the Bot API the relay calls.
type Bot interface {
	SendMessage(ctx context.Context, req telegram.SendMessageRequest) (*telegram.Message, error)
	CopyMessage(ctx context.Context, req telegram.CopyMessageRequest) (*telegram.MessageID, error)
}

// BotFactory returns a Bot scoped to token.
type BotFactory func(token string) Bot

// Options configures a Relay. Bots and Replies are required.
type Options struct {
	Bots    BotFactory
	Replies *replies.Resolver
	// Dedup suppresses redelivered messages. Nil disables suppression.
	Dedup   dedup.Store
	Codec   identity.Codec
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Tracer  trace.Tracer
}

// Relay handles webhook updates. It is safe for concurrent use.
type Relay struct {
	bots    BotFactory
	replies atomic.Pointer[replies.Resolver]
	dedup   dedup.Store
	codec   identity.Codec
	metrics *metrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
}

// New creates a Relay.
func New(opts Options) *Relay {
	r := &Relay{
		bots:    opts.Bots,
		dedup:   opts.Dedup,
		codec:   opts.Codec,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		tracer:  opts.Tracer,
	}
	if opts.Replies == nil {
		opts.Replies = replies.NewResolver(replies.DefaultTable())
	}
	r.replies.Store(opts.Replies)
	if r.codec == nil {
		r.codec = identity.DefaultCodec{}
	}
	if r.metrics == nil {
		r.metrics = metrics.New()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer(tracerName)
	}
	return r
}

// SetReplies swaps the auto-reply table. Updates already in flight keep
// the table they started with.
func (r *Relay) SetReplies(res *replies.Resolver) {
	r.replies.Store(res)
}

// HandleUpdate routes one update for the bot identified by token, whose
// owner chat id is owner. A nil error means the webhook should answer OK.
func (r *Relay) HandleUpdate(ctx context.Context, owner, token string, update telegram.Update) (route Route, err error) {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "relay.update",
		trace.WithAttributes(attribute.Int("telegram.update_id", update.UpdateID)),
	)
	defer func() {
		span.SetAttributes(attribute.String("relay.route", string(route)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		r.metrics.ObserveUpdate(string(route), time.Since(start))
	}()

	msg := update.Message
	if msg == nil {
		return RouteIgnored, nil
	}

	botID := telegram.BotID(token)
	logger := r.logger.With(
		"bot_id", botID,
		"chat_id", msg.Chat.ID,
		"message_id", msg.MessageID,
	)

	key := dedup.Key(botID, msg.Chat.ID, msg.MessageID)
	dup, marked := r.duplicate(ctx, logger, key)
	if dup {
		logger.Debug("duplicate delivery suppressed")
		return RouteDuplicate, nil
	}
	if marked {
		// A failed update answers 500; its redelivery must be processed.
		defer func() {
			if err != nil {
				r.forget(ctx, logger, key)
			}
		}()
	}

	ownerID, err := strconv.ParseInt(owner, 10, 64)
	if err != nil {
		return "", fmt.Errorf("relay: invalid owner id %q: %w", owner, err)
	}

	bot := r.bots(token)
	table := r.replies.Load()
	fromOwner := strconv.FormatInt(msg.Chat.ID, 10) == owner

	// Owner branches are terminal.
	if fromOwner {
		if msg.ReplyToMessage == nil {
			return RouteOwnerHelp, r.reply(ctx, logger, bot, ownerID, table.OwnerHelp())
		}
		return r.ownerReply(ctx, logger, bot, msg)
	}

	if isStart(msg.Text) {
		route = RouteStart
		err = r.reply(ctx, logger, bot, msg.Chat.ID, table.Welcome())
	} else {
		text, kind := table.Resolve(msg)
		route = RouteDefault
		if kind == replies.KindKeyword {
			route = RouteKeyword
		}
		err = r.reply(ctx, logger, bot, msg.Chat.ID, text)
	}
	if err != nil {
		return route, err
	}

	return route, r.forward(ctx, logger, bot, ownerID, msg)
}

// duplicate reports whether key was already handled, recording it when
// not. marked is true when this call recorded the key. Store failures
// are logged and treated as first delivery.
func (r *Relay) duplicate(ctx context.Context, logger *slog.Logger, key string) (dup, marked bool) {
	if r.dedup == nil {
		return false, false
	}
	seen, err := r.dedup.Seen(ctx, key)
	if err != nil {
		r.metrics.DedupErrorsTotal.Inc()
		logger.Warn("dedup lookup failed", "error", err)
		return false, false
	}
	if seen {
		return true, false
	}
	fresh, err := r.dedup.MarkSeen(ctx, key)
	if err != nil {
		r.metrics.DedupErrorsTotal.Inc()
		logger.Warn("dedup record failed", "error", err)
		return false, false
	}
	// A concurrent delivery recorded the key between the two calls.
	return !fresh, fresh
}

// forget drops key after a failed update. It runs detached from ctx,
// which may already be cancelled by the failure.
func (r *Relay) forget(ctx context.Context, logger *slog.Logger, key string) {
	if err := r.dedup.Forget(context.WithoutCancel(ctx), key); err != nil {
		r.metrics.DedupErrorsTotal.Inc()
		logger.Warn("dedup forget failed", "error", err)
	}
}

func (r *Relay) ownerReply(ctx context.Context, logger *slog.Logger, bot Bot, msg *telegram.Message) (Route, error) {
	res := r.codec.Decode(msg.ReplyToMessage.ReplyMarkup)
	if !res.OK() {
		logger.Info("owner reply dropped", "reason", res.Err())
		return RouteOwnerReplyDropped, nil
	}

	_, err := bot.CopyMessage(ctx, telegram.CopyMessageRequest{
		ChatID:     res.ID,
		FromChatID: msg.Chat.ID,
		MessageID:  msg.MessageID,
	})
	if err != nil {
		if isRejection(err) {
			logger.Warn("owner reply rejected", "target_chat_id", res.ID, "error", err)
			return RouteOwnerReply, nil
		}
		return RouteOwnerReply, err
	}
	logger.Info("owner reply delivered", "target_chat_id", res.ID, "channel", res.Channel)
	return RouteOwnerReply, nil
}

// reply sends an auto-reply text. Platform rejections are absorbed.
func (r *Relay) reply(ctx context.Context, logger *slog.Logger, bot Bot, chatID int64, text string) error {
	_, err := bot.SendMessage(ctx, telegram.SendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		ParseMode:             parseModeMarkdown,
		DisableWebPagePreview: true,
	})
	if err != nil && isRejection(err) {
		logger.Warn("auto-reply rejected", "to", chatID, "error", err)
		return nil
	}
	return err
}

// forward copies msg into the owner's chat. The URL encoding is tried
// first; a platform rejection triggers exactly one retry with the
// callback_data encoding. Transport errors are returned unretried.
func (r *Relay) forward(ctx context.Context, logger *slog.Logger, bot Bot, ownerID int64, msg *telegram.Message) error {
	name := identity.DisplayName(msg.Chat)

	req := telegram.CopyMessageRequest{
		ChatID:      ownerID,
		FromChatID:  msg.Chat.ID,
		MessageID:   msg.MessageID,
		ReplyMarkup: r.codec.Encode(msg.Chat.ID, name, identity.ChannelURL),
	}
	_, err := bot.CopyMessage(ctx, req)
	if err == nil {
		logger.Info("message forwarded to owner", "channel", identity.ChannelURL)
		return nil
	}
	if !isRejection(err) {
		return err
	}

	r.metrics.ForwardFallbacksTotal.Inc()
	logger.Warn("forward rejected, retrying with callback encoding", "error", err)

	req.ReplyMarkup = r.codec.Encode(msg.Chat.ID, name, identity.ChannelCallback)
	_, err = bot.CopyMessage(ctx, req)
	if err == nil {
		logger.Info("message forwarded to owner", "channel", identity.ChannelCallback)
		return nil
	}
	if !isRejection(err) {
		return err
	}

	r.metrics.ForwardFailuresTotal.Inc()
	logger.Error("forward to owner failed", "error", err)
	return nil
}

func isStart(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), "/start")
}

func isRejection(err error) bool {
	var apiErr *telegram.APIError
	return errors.As(err, &apiErr)
}

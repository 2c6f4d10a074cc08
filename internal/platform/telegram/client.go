package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	apperrors "confession-bot-backend/internal/common/errors"
)

// MessageRef identifies a delivered message.
type MessageRef struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int   `json:"message_id"`
}

// Button is an inline keyboard button carrying either callback data or a URL.
type Button struct {
	Text string
	Data string
	URL  string
}

type ParseMode string

const (
	ParseNone     ParseMode = ""
	ParseMarkdown ParseMode = tgbotapi.ModeMarkdown
	ParseHTML     ParseMode = tgbotapi.ModeHTML
)

// SendOptions are passed through to the Bot API untouched. At most one of
// InlineKeyboard and ReplyKeyboard is used, inline wins.
type SendOptions struct {
	ParseMode      ParseMode
	InlineKeyboard [][]Button
	ReplyKeyboard  [][]string
	DisablePreview bool
}

type AnswerOptions struct {
	Text      string
	ShowAlert bool
}

// Transport is the outbound surface the bot needs.
type Transport interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts SendOptions) (MessageRef, error)
	AnswerInteraction(ctx context.Context, interactionID string, opts AnswerOptions) error
}

// Client talks to the Bot API through go-telegram-bot-api.
type Client struct {
	api *tgbotapi.BotAPI
}

func NewClient(token string, debug bool) (*Client, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("init bot api: %w", err)
	}
	api.Debug = debug
	log.Info().Str("bot", api.Self.UserName).Msg("Telegram client authorized")
	return &Client{api: api}, nil
}

// Username is the bot's own @name without the at sign.
func (c *Client) Username() string {
	return c.api.Self.UserName
}

// Updates starts long polling. It is the alternative to a webhook; Telegram
// refuses getUpdates while a webhook is set.
func (c *Client) Updates(timeout int) tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = timeout
	u.AllowedUpdates = []string{"message", "callback_query"}
	return c.api.GetUpdatesChan(u)
}

// StopUpdates ends long polling and closes the updates channel.
func (c *Client) StopUpdates() {
	c.api.StopReceivingUpdates()
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, opts SendOptions) (MessageRef, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	return c.send(ctx, msg, opts)
}

// SendText sends a Markdown message without keyboard.
func (c *Client) SendText(ctx context.Context, chatID int64, text string) error {
	_, err := c.SendMessage(ctx, chatID, text, SendOptions{ParseMode: ParseMarkdown})
	return err
}

// SendToChannel posts into a channel given as "@name" or a numeric id.
func (c *Client) SendToChannel(ctx context.Context, channel string, text string, opts SendOptions) (MessageRef, error) {
	if id, err := strconv.ParseInt(channel, 10, 64); err == nil {
		return c.SendMessage(ctx, id, text, opts)
	}
	if !strings.HasPrefix(channel, "@") {
		channel = "@" + channel
	}
	msg := tgbotapi.NewMessageToChannel(channel, text)
	return c.send(ctx, msg, opts)
}

func (c *Client) AnswerInteraction(ctx context.Context, interactionID string, opts AnswerOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cb := tgbotapi.NewCallback(interactionID, opts.Text)
	cb.ShowAlert = opts.ShowAlert
	if _, err := c.api.Request(cb); err != nil {
		return apperrors.NewTelegramAPIError("answerCallbackQuery", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, msg tgbotapi.MessageConfig, opts SendOptions) (MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return MessageRef{}, err
	}
	msg.ParseMode = string(opts.ParseMode)
	msg.DisableWebPagePreview = opts.DisablePreview
	if markup := replyMarkup(opts); markup != nil {
		msg.ReplyMarkup = markup
	}

	sent, err := c.api.Send(msg)
	if err != nil && msg.ParseMode != "" && isEntityError(err) {
		// user supplied text broke the markup; deliver it verbatim instead
		log.Debug().Err(err).Msg("Retrying message without parse mode")
		msg.ParseMode = ""
		sent, err = c.api.Send(msg)
	}
	if err != nil {
		return MessageRef{}, apperrors.NewTelegramAPIError("sendMessage", err)
	}
	return MessageRef{ChatID: sent.Chat.ID, MessageID: sent.MessageID}, nil
}

func isEntityError(err error) bool {
	return strings.Contains(err.Error(), "can't parse entities")
}

func replyMarkup(opts SendOptions) interface{} {
	if len(opts.InlineKeyboard) > 0 {
		return InlineMarkup(opts.InlineKeyboard)
	}
	if len(opts.ReplyKeyboard) > 0 {
		rows := make([][]tgbotapi.KeyboardButton, 0, len(opts.ReplyKeyboard))
		for _, row := range opts.ReplyKeyboard {
			buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
			for _, label := range row {
				buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
			}
			rows = append(rows, tgbotapi.NewKeyboardButtonRow(buttons...))
		}
		kb := tgbotapi.NewReplyKeyboard(rows...)
		kb.ResizeKeyboard = true
		return kb
	}
	return nil
}

// InlineMarkup converts rows of buttons into the Bot API representation.
func InlineMarkup(rows [][]Button) tgbotapi.InlineKeyboardMarkup {
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
				continue
			}
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		out = append(out, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(out...)
}

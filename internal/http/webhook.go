package http

import (
	"context"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"confession-bot-backend/internal/common/errors"
	"confession-bot-backend/internal/common/middleware"
	"confession-bot-backend/internal/features/bot"
)

// updateTimeout bounds the handling of a single update. It is detached from
// the webhook request so a dropped connection cannot cut a transaction short.
const updateTimeout = 30 * time.Second

// UpdateHandler consumes decoded inbound events.
type UpdateHandler interface {
	HandleText(ctx context.Context, ev bot.TextEvent) error
	HandleInteraction(ctx context.Context, ev bot.InteractionEvent) error
}

// DispatchUpdate turns one Bot API update into a dispatcher call. Updates
// that are neither private text messages nor button presses are ignored.
func DispatchUpdate(ctx context.Context, h UpdateHandler, upd tgbotapi.Update) error {
	switch {
	case upd.CallbackQuery != nil:
		cq := upd.CallbackQuery
		if cq.From == nil {
			return nil
		}
		chatID := cq.From.ID
		if cq.Message != nil && cq.Message.Chat != nil {
			chatID = cq.Message.Chat.ID
		}
		return h.HandleInteraction(ctx, bot.InteractionEvent{
			ID:     cq.ID,
			From:   sender(cq.From),
			ChatID: chatID,
			Data:   cq.Data,
		})

	case upd.Message != nil:
		msg := upd.Message
		if msg.From == nil || msg.Chat == nil || !msg.Chat.IsPrivate() || msg.Text == "" {
			return nil
		}
		return h.HandleText(ctx, bot.TextEvent{
			From:   sender(msg.From),
			ChatID: msg.Chat.ID,
			Text:   msg.Text,
		})
	}
	return nil
}

func sender(u *tgbotapi.User) bot.Sender {
	return bot.Sender{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName}
}

type WebhookHandler struct {
	handler UpdateHandler
	secret  string
}

func NewWebhookHandler(handler UpdateHandler, secret string) *WebhookHandler {
	return &WebhookHandler{handler: handler, secret: secret}
}

func (h *WebhookHandler) RegisterRoutes(router gin.IRoutes) {
	router.POST("/telegram/webhook", middleware.RequireWebhookSecret(h.secret), h.Receive)
}

// Receive accepts one update. Handling failures are logged and still answered
// with 200: a non-2xx makes Telegram redeliver the same update.
func (h *WebhookHandler) Receive(c *gin.Context) {
	var upd tgbotapi.Update
	if err := c.ShouldBindJSON(&upd); err != nil {
		_ = c.Error(errors.Wrap(err, errors.ErrCodeBadRequest, "malformed update"))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), updateTimeout)
	defer cancel()
	if err := DispatchUpdate(ctx, h.handler, upd); err != nil {
		log.Error().Err(err).Int("update_id", upd.UpdateID).Msg("Update handling failed")
	}
	c.Status(http.StatusOK)
}

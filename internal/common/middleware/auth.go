package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"confession-bot-backend/internal/common/config"
	"confession-bot-backend/internal/common/errors"
)

// WebhookSecretHeader is set by Telegram on every webhook delivery when the
// webhook was registered with a secret token.
const WebhookSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// RequireAuth rejects requests that did not pass TelegramInitData.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if getUserID(c) == 0 {
			Abort(c, errors.New(errors.ErrCodeUnauthorized, "Telegram init data required"))
			return
		}
		c.Next()
	}
}

// RequireAdmin lets through only ids currently in admins. The set is read per
// request so a reload takes effect immediately.
func RequireAdmin(admins *config.AdminSet) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := getUserID(c)
		if userID == 0 {
			Abort(c, errors.New(errors.ErrCodeUnauthorized, "Telegram init data required"))
			return
		}
		if !admins.IsAdmin(userID) {
			Abort(c, errors.NewForbiddenError("admin only").WithUserID(userID))
			return
		}
		c.Next()
	}
}

// RequireWebhookSecret checks the secret token header of webhook deliveries.
// An empty secret disables the check.
func RequireWebhookSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		got := c.GetHeader(WebhookSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			Abort(c, errors.New(errors.ErrCodeUnauthorized, "invalid webhook secret"))
			return
		}
		c.Next()
	}
}

package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	initdata "github.com/telegram-mini-apps/init-data-golang"

	"confession-bot-backend/internal/common/errors"
	"confession-bot-backend/internal/common/logger"
)

// Context keys filled from validated init data.
const (
	UserIDKey    = "user_id"
	FirstNameKey = "first_name"
	LastNameKey  = "last_name"
	UsernameKey  = "username"

	initDataHeader    = "X-Telegram-Init-Data"
	initDataHeaderOld = "init_data"
)

// TelegramInitData validates Mini App init data signed with token and stores
// the user fields in the context. expIn of zero disables the expiry check.
func TelegramInitData(token string, expIn time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			Abort(c, errors.New(errors.ErrCodeInternal, "init data validation is not configured"))
			return
		}

		raw := c.GetHeader(initDataHeader)
		if raw == "" {
			raw = c.GetHeader(initDataHeaderOld)
		}
		if raw == "" {
			Abort(c, errors.New(errors.ErrCodeUnauthorized, "Telegram init data required"))
			return
		}

		if err := initdata.Validate(raw, token, expIn); err != nil {
			logger.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("Init data rejected")
			Abort(c, errors.Wrap(err, errors.ErrCodeUnauthorized, "invalid init data"))
			return
		}
		parsed, err := initdata.Parse(raw)
		if err != nil {
			Abort(c, errors.Wrap(err, errors.ErrCodeBadRequest, "malformed init data"))
			return
		}
		if parsed.User.ID == 0 {
			Abort(c, errors.New(errors.ErrCodeUnauthorized, "init data carries no user"))
			return
		}

		c.Set(UserIDKey, parsed.User.ID)
		c.Set(FirstNameKey, parsed.User.FirstName)
		c.Set(LastNameKey, parsed.User.LastName)
		c.Set(UsernameKey, parsed.User.Username)
		c.Next()
	}
}

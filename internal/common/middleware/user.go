package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	usermodels "confession-bot-backend/internal/features/user/models"
)

// UserRegistry creates the profile of a first-time visitor.
type UserRegistry interface {
	GetOrCreate(ctx context.Context, id int64, firstName, lastName string) (*usermodels.User, error)
}

// AutoCreateUser makes sure the caller authenticated by TelegramInitData has
// a profile, the same one the bot would create on their first message.
func AutoCreateUser(users UserRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := getUserID(c)
		if userID == 0 {
			c.Next()
			return
		}
		if _, err := users.GetOrCreate(c.Request.Context(), userID, c.GetString(FirstNameKey), c.GetString(LastNameKey)); err != nil {
			Abort(c, err)
			return
		}
		c.Next()
	}
}

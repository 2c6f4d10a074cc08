package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"confession-bot-backend/internal/common/config"
	"confession-bot-backend/internal/common/errors"
	"confession-bot-backend/internal/common/middleware"
	"confession-bot-backend/internal/common/validation"
	"confession-bot-backend/internal/features/user/mapper"
	"confession-bot-backend/internal/features/user/models"
)

// UserService is the part of the user directory the API exposes.
type UserService interface {
	GetOrCreate(ctx context.Context, id int64, firstName, lastName string) (*models.User, error)
	Get(ctx context.Context, id int64) (*models.User, error)
	Rank(ctx context.Context, id int64) (*models.Rank, error)
	ToggleBlock(ctx context.Context, id int64) (bool, error)
}

// Invalidator drops cached views that depend on user status.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

type UserHandler struct {
	service UserService
	admins  *config.AdminSet
	cache   Invalidator
	cfg     *config.Config
}

// NewUserHandler builds the profile API. cache may be nil.
func NewUserHandler(service UserService, admins *config.AdminSet, cache Invalidator, cfg *config.Config) *UserHandler {
	return &UserHandler{
		service: service,
		admins:  admins,
		cache:   cache,
		cfg:     cfg,
	}
}

func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	auth := []gin.HandlerFunc{
		middleware.TelegramInitData(h.cfg.Telegram.BotToken, h.cfg.Telegram.InitDataTTL),
		middleware.AutoCreateUser(h.service),
	}

	users := router.Group("/users", auth...)
	{
		users.GET("/me", h.GetMe)
	}

	// Админские маршруты
	admin := router.Group("/admin/users", append(auth, middleware.RequireAdmin(h.admins))...)
	{
		admin.GET("/:id", h.GetUser)
		admin.PUT("/:id/status", h.UpdateUserStatus)
	}
}

// @Summary Get current user
// @Description Profile of the caller, created on first contact exactly like the bot does. Includes the comment leaderboard rank.
// @Tags users
// @Produce json
// @Security TelegramInitData
// @Success 200 {object} models.UserResponse "User data"
// @Failure 401 {object} middleware.ErrorResponse "Missing or invalid init data"
// @Failure 500 {object} middleware.ErrorResponse "Internal server error"
// @Router /users/me [get]
func (h *UserHandler) GetMe(c *gin.Context) {
	id := c.GetInt64(middleware.UserIDKey)
	if id == 0 {
		middleware.Abort(c, errors.New(errors.ErrCodeUnauthorized, "Telegram init data required"))
		return
	}

	user, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	resp := mapper.ToUserResponse(user, h.admins.IsAdmin(id))
	if rank, err := h.service.Rank(c.Request.Context(), id); err == nil {
		resp.Rank = rank
	} else {
		log.Warn().Err(err).Int64("user_id", id).Msg("Rank lookup failed")
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary Get user by ID
// @Description Full profile of any user, for moderation
// @Tags users
// @Produce json
// @Security TelegramInitData
// @Param id path int true "User ID"
// @Success 200 {object} models.UserResponse "User data"
// @Failure 400 {object} middleware.ErrorResponse "Invalid user id"
// @Failure 403 {object} middleware.ErrorResponse "Not an admin"
// @Failure 404 {object} middleware.ErrorResponse "User not found"
// @Router /admin/users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	user, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, mapper.ToUserResponse(user, h.admins.IsAdmin(id)))
}

// @Summary Update user status
// @Description Block or unblock a user. Blocked users cannot submit, comment or message; setting the current status again is a no-op.
// @Tags users
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param id path int true "User ID"
// @Param status body models.StatusUpdate true "New status"
// @Success 200 {object} models.UserResponse "Updated user data"
// @Failure 400 {object} middleware.ErrorResponse "Invalid request"
// @Failure 403 {object} middleware.ErrorResponse "Not an admin"
// @Failure 404 {object} middleware.ErrorResponse "User not found"
// @Router /admin/users/{id}/status [put]
func (h *UserHandler) UpdateUserStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var input models.StatusUpdate
	if err := c.ShouldBindJSON(&input); err != nil {
		middleware.Abort(c, errors.NewValidationError("status", "must be one of: active blocked"))
		return
	}
	if h.admins.IsAdmin(id) && input.Status == models.StatusBlocked {
		middleware.Abort(c, errors.NewForbiddenError("admins cannot be blocked"))
		return
	}

	ctx := c.Request.Context()
	user, err := h.service.Get(ctx, id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	wantActive := input.Status == models.StatusActive
	if user.IsActive != wantActive {
		if user.IsActive, err = h.service.ToggleBlock(ctx, id); err != nil {
			_ = c.Error(err)
			return
		}
		log.Info().
			Int64("user_id", id).
			Int64("admin_id", c.GetInt64(middleware.UserIDKey)).
			Str("status", input.Status).
			Msg("User status changed from dashboard")
		if h.cache != nil {
			if err := h.cache.Invalidate(ctx); err != nil {
				log.Warn().Err(err).Msg("Failed to invalidate dashboard cache")
			}
		}
	}
	c.JSON(http.StatusOK, mapper.ToUserResponse(user, h.admins.IsAdmin(id)))
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := validation.ParseUserID(c.Param("id"))
	if err != nil {
		middleware.Abort(c, errors.NewValidationError("id", "must be a positive user id"))
		return 0, false
	}
	return id, true
}

package http

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"confession-bot-backend/internal/common/cache"
	"confession-bot-backend/internal/common/config"
	"confession-bot-backend/internal/common/errors"
	"confession-bot-backend/internal/common/middleware"
	"confession-bot-backend/internal/features/admin/models"
	confmodels "confession-bot-backend/internal/features/confession/models"
	usermodels "confession-bot-backend/internal/features/user/models"
)

const (
	defaultLimit = 10

	// StatsCacheKey is dropped by writers that change dashboard counters.
	StatsCacheKey     = "admin:stats"
	leaderboardPrefix = "leaderboard:"
)

// ConfessionReader is the read side of the confession lifecycle.
type ConfessionReader interface {
	Stats(ctx context.Context) (*confmodels.Stats, error)
	ByStatus(ctx context.Context, status confmodels.Status, limit int64) ([]*confmodels.Confession, error)
	RecentEvents(ctx context.Context, limit int64) ([]confmodels.Event, error)
}

// UserReader is the read side of the user directory.
type UserReader interface {
	GetOrCreate(ctx context.Context, id int64, firstName, lastName string) (*usermodels.User, error)
	Stats(ctx context.Context) (*usermodels.DirectoryStats, error)
	TopCommenters(ctx context.Context, limit int64) ([]usermodels.RankedUser, error)
	TopByReputation(ctx context.Context, limit int64) ([]usermodels.RankedUser, error)
}

type AdminHandler struct {
	confessions ConfessionReader
	users       UserReader
	admins      *config.AdminSet
	cache       *cache.CacheService
	cfg         *config.Config
}

// NewAdminHandler builds the dashboard API. snapshots may be nil.
func NewAdminHandler(confessions ConfessionReader, users UserReader, admins *config.AdminSet, snapshots *cache.CacheService, cfg *config.Config) *AdminHandler {
	return &AdminHandler{
		confessions: confessions,
		users:       users,
		admins:      admins,
		cache:       snapshots,
		cfg:         cfg,
	}
}

func (h *AdminHandler) RegisterRoutes(router *gin.RouterGroup) {
	admin := router.Group("/admin")
	admin.Use(
		middleware.TelegramInitData(h.cfg.Telegram.BotToken, h.cfg.Telegram.InitDataTTL),
		middleware.AutoCreateUser(h.users),
		middleware.RequireAdmin(h.admins),
	)
	{
		admin.GET("/stats", h.GetStats)
		admin.GET("/confessions", h.ListConfessions)
		admin.GET("/leaderboard", h.GetLeaderboard)
		admin.GET("/events", h.ListEvents)
	}
}

// @Summary Dashboard statistics
// @Description User and confession counters shown on the admin dashboard
// @Tags admin
// @Produce json
// @Security TelegramInitData
// @Success 200 {object} models.StatsResponse
// @Failure 401 {object} middleware.ErrorResponse "Missing or invalid init data"
// @Failure 403 {object} middleware.ErrorResponse "Not an admin"
// @Failure 500 {object} middleware.ErrorResponse "Internal server error"
// @Router /admin/stats [get]
func (h *AdminHandler) GetStats(c *gin.Context) {
	var resp models.StatsResponse
	err := h.cache.GetOrSet(c.Request.Context(), StatsCacheKey, &resp, h.cfg.Server.StatsCacheTTL, func() (interface{}, error) {
		return h.loadStats(c.Request.Context())
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AdminHandler) loadStats(ctx context.Context) (*models.StatsResponse, error) {
	var (
		us *usermodels.DirectoryStats
		cs *confmodels.Stats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		us, err = h.users.Stats(gctx)
		return err
	})
	g.Go(func() (err error) {
		cs, err = h.confessions.Stats(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &models.StatsResponse{Users: *us, Confessions: *cs}, nil
}

// @Summary List confessions by status
// @Description Oldest first, so the pending queue reads in review order
// @Tags admin
// @Produce json
// @Security TelegramInitData
// @Param status query string false "Lifecycle status" Enums(pending, approved, posted, rejected) default(pending)
// @Param limit query int false "Maximum rows" minimum(1) maximum(100) default(10)
// @Success 200 {object} models.ConfessionsResponse
// @Failure 400 {object} middleware.ValidationErrorResponse "Invalid query"
// @Failure 401 {object} middleware.ErrorResponse "Missing or invalid init data"
// @Failure 403 {object} middleware.ErrorResponse "Not an admin"
// @Router /admin/confessions [get]
func (h *AdminHandler) ListConfessions(c *gin.Context) {
	var q models.ConfessionsQuery
	if !bindQuery(c, &q) {
		return
	}
	status := confmodels.StatusPending
	if q.Status != "" {
		status = confmodels.Status(q.Status)
	}

	list, err := h.confessions.ByStatus(c.Request.Context(), status, limitOrDefault(q.Limit))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if list == nil {
		list = []*confmodels.Confession{}
	}
	c.JSON(http.StatusOK, models.ConfessionsResponse{Status: status, Confessions: list})
}

// @Summary Leaderboard
// @Description Top users by authored comments or by reputation
// @Tags admin
// @Produce json
// @Security TelegramInitData
// @Param by query string false "Ranking" Enums(comments, reputation) default(comments)
// @Param limit query int false "Maximum rows" minimum(1) maximum(100) default(10)
// @Success 200 {object} models.LeaderboardResponse
// @Failure 400 {object} middleware.ValidationErrorResponse "Invalid query"
// @Failure 403 {object} middleware.ErrorResponse "Not an admin"
// @Router /admin/leaderboard [get]
func (h *AdminHandler) GetLeaderboard(c *gin.Context) {
	var q models.LeaderboardQuery
	if !bindQuery(c, &q) {
		return
	}
	by := q.By
	if by == "" {
		by = "comments"
	}

	limit := limitOrDefault(q.Limit)

	var users []usermodels.RankedUser
	key := fmt.Sprintf("%s%s:%d", leaderboardPrefix, by, limit)
	err := h.cache.GetOrSet(c.Request.Context(), key, &users, h.cfg.Server.StatsCacheTTL, func() (interface{}, error) {
		if by == "reputation" {
			return h.users.TopByReputation(c.Request.Context(), limit)
		}
		return h.users.TopCommenters(c.Request.Context(), limit)
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	if users == nil {
		users = []usermodels.RankedUser{}
	}
	c.JSON(http.StatusOK, models.LeaderboardResponse{By: by, Users: users})
}

// @Summary Moderation audit log
// @Description Lifecycle events, newest first
// @Tags admin
// @Produce json
// @Security TelegramInitData
// @Param limit query int false "Maximum rows" minimum(1) maximum(500) default(10)
// @Success 200 {object} models.EventsResponse
// @Failure 400 {object} middleware.ValidationErrorResponse "Invalid query"
// @Failure 403 {object} middleware.ErrorResponse "Not an admin"
// @Router /admin/events [get]
func (h *AdminHandler) ListEvents(c *gin.Context) {
	var q models.EventsQuery
	if !bindQuery(c, &q) {
		return
	}
	events, err := h.confessions.RecentEvents(c.Request.Context(), limitOrDefault(q.Limit))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if events == nil {
		events = []confmodels.Event{}
	}
	c.JSON(http.StatusOK, models.EventsResponse{Events: events})
}

// bindQuery binds and validates the query string. On failure the response is
// written and false is returned.
func bindQuery(c *gin.Context, dst interface{}) bool {
	err := c.ShouldBindQuery(dst)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) {
		out := make([]*errors.AppError, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, errors.NewValidationError(fe.Field(), fieldReason(fe)))
		}
		middleware.SendValidationErrors(c, out)
		return false
	}
	middleware.Abort(c, errors.NewValidationError("query", err.Error()))
	return false
}

func fieldReason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}

// Invalidate drops every dashboard snapshot.
func (h *AdminHandler) Invalidate(ctx context.Context) error {
	if err := h.cache.Delete(ctx, StatsCacheKey); err != nil {
		return err
	}
	return h.cache.DeletePrefix(ctx, leaderboardPrefix)
}

func limitOrDefault(limit int64) int64 {
	if limit <= 0 {
		return defaultLimit
	}
	return limit
}

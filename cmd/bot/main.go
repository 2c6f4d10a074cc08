package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"confession-bot-backend/internal/common/cache"
	"confession-bot-backend/internal/common/config"
	"confession-bot-backend/internal/common/logger"
	"confession-bot-backend/internal/features/abuse"
	adminhttp "confession-bot-backend/internal/features/admin/delivery/http"
	"confession-bot-backend/internal/features/bot"
	confredis "confession-bot-backend/internal/features/confession/repository/redis"
	confservice "confession-bot-backend/internal/features/confession/service"
	"confession-bot-backend/internal/features/conversation"
	"confession-bot-backend/internal/features/sequence"
	userhttp "confession-bot-backend/internal/features/user/delivery/http"
	userredis "confession-bot-backend/internal/features/user/repository/redis"
	userservice "confession-bot-backend/internal/features/user/service"
	apphttp "confession-bot-backend/internal/http"
	"confession-bot-backend/internal/platform/redis"
	"confession-bot-backend/internal/platform/telegram"
	"confession-bot-backend/internal/workers"
)

// @title           Confession Bot API
// @version         1.0
// @description     Mini-app API of the anonymous confession bot. Endpoints require Telegram init data; /admin routes require an admin.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey TelegramInitData
// @in header
// @name X-Telegram-Init-Data
// @description Telegram Mini App init data signed for the bot

// @tag.name admin
// @tag.description Moderation queue, statistics and audit log

// @tag.name users
// @tag.description Profiles and user moderation

const serviceName = "confession-bot-backend"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(serviceName, cfg.Debug, cfg.LogLevel)

	log.Info().
		Bool("debug", cfg.Debug).
		Str("update_mode", cfg.Telegram.UpdateMode).
		Int("admins", len(cfg.Telegram.AdminIDs)).
		Msg("Starting confession bot")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := redis.OpenFromConfig(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.RedisAddr()).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Str("addr", cfg.RedisAddr()).Msg("Redis connection established")

	tg, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.Debug)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Telegram client")
	}
	botUsername := cfg.Telegram.BotUsername
	if botUsername == "" {
		botUsername = tg.Username()
	}
	if cfg.Telegram.ChannelID == "" {
		log.Warn().Msg("CHANNEL_ID is empty, approvals will fail to publish")
	}

	admins := config.NewAdminSet(cfg.Telegram.AdminIDs)

	users := userservice.NewService(userredis.NewUserRepository(rdb), tg)
	lifecycle := confservice.NewLifecycle(
		confredis.NewConfessionRepository(rdb),
		users,
		abuse.NewGuard(rdb),
		sequence.NewAllocator(rdb),
		telegram.NewPublisher(tg, cfg.Telegram.ChannelID, botUsername),
		tg,
		admins,
		confservice.LimitsFromConfig(cfg),
	)
	dispatcher := bot.NewDispatcher(
		tg,
		conversation.NewStore(rdb, cfg.Limits.StateTTL),
		users,
		lifecycle,
		admins,
		bot.Options{
			BotUsername:          botUsername,
			Channel:              cfg.Telegram.ChannelID,
			BroadcastConcurrency: cfg.Limits.BroadcastConcurrency,
		},
	)
	log.Info().Str("bot", botUsername).Msg("Services initialized")

	if cfg.Worker.Enabled {
		worker := workers.NewRedisStreamWorker(rdb, lifecycle, users, botUsername, cfg.Worker.Consumer, cfg.Limits.BroadcastConcurrency)
		go func() {
			if err := worker.Start(ctx); err != nil {
				log.Error().Err(err).Msg("Redis stream worker stopped")
			}
		}()
	}

	adminHandler := adminhttp.NewAdminHandler(lifecycle, users, admins, cache.NewCacheService(rdb), cfg)
	deps := apphttp.Deps{
		Admin: adminHandler,
		Users: userhttp.NewUserHandler(users, admins, adminHandler, cfg),
		Store: rdb,
	}
	if cfg.Telegram.UpdateMode == config.UpdateModeWebhook {
		deps.Webhook = apphttp.NewWebhookHandler(dispatcher, cfg.Telegram.WebhookSecret)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      apphttp.NewRouter(cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	if cfg.Telegram.UpdateMode == config.UpdateModePolling {
		go poll(ctx, tg, dispatcher, cfg.Telegram.PollingTimeout)
	}

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}

// poll feeds long-polled updates to the dispatcher one at a time, so events of
// a user are handled in arrival order.
func poll(ctx context.Context, tg *telegram.Client, d *bot.Dispatcher, timeout int) {
	updates := tg.Updates(timeout)
	log.Info().Int("timeout", timeout).Msg("Long polling started")
	for {
		select {
		case <-ctx.Done():
			tg.StopUpdates()
			log.Info().Msg("Long polling stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			uctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			if err := apphttp.DispatchUpdate(uctx, d, update); err != nil {
				log.Error().Err(err).Int("update_id", update.UpdateID).Msg("Failed to handle update")
			}
			cancel()
		}
	}
}

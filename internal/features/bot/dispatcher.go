// Package bot turns inbound chat events into conversation-flow steps and
// commands against the confession lifecycle and the user directory.
package bot

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"confession-bot-backend/internal/common/config"
	apperrors "confession-bot-backend/internal/common/errors"
	"confession-bot-backend/internal/common/logger"
	confservice "confession-bot-backend/internal/features/confession/service"
	"confession-bot-backend/internal/features/conversation"
	userservice "confession-bot-backend/internal/features/user/service"
	"confession-bot-backend/internal/platform/telegram"
)

// Sender is the identity attached to an inbound event.
type Sender struct {
	ID        int64
	FirstName string
	LastName  string
}

// TextEvent is a plain text message.
type TextEvent struct {
	From   Sender
	ChatID int64
	Text   string
}

// InteractionEvent is an inline button press.
type InteractionEvent struct {
	ID     string
	From   Sender
	ChatID int64
	Data   string
}

type Options struct {
	BotUsername          string
	Channel              string
	BroadcastConcurrency int
}

type Dispatcher struct {
	tg          telegram.Transport
	flows       *conversation.Store
	users       *userservice.Service
	confessions *confservice.Lifecycle
	admins      *config.AdminSet
	opts        Options
}

func NewDispatcher(
	tg telegram.Transport,
	flows *conversation.Store,
	users *userservice.Service,
	confessions *confservice.Lifecycle,
	admins *config.AdminSet,
	opts Options,
) *Dispatcher {
	if opts.BroadcastConcurrency <= 0 {
		opts.BroadcastConcurrency = 1
	}
	return &Dispatcher{
		tg:          tg,
		flows:       flows,
		users:       users,
		confessions: confessions,
		admins:      admins,
		opts:        opts,
	}
}

// HandleText resolves a text message: bypass commands first, then the active
// flow, then the command and menu vocabulary. User-facing failures are
// reported in chat; only internal failures are returned.
func (d *Dispatcher) HandleText(ctx context.Context, ev TextEvent) error {
	if strings.TrimSpace(ev.Text) == "" {
		return nil
	}
	user, err := d.users.GetOrCreate(ctx, ev.From.ID, ev.From.FirstName, ev.From.LastName)
	if err != nil {
		return d.fail(ctx, ev.ChatID, err)
	}
	if err := d.users.TouchActivity(ctx, user.ID); err != nil {
		log.Warn().Err(err).Int64("user_id", user.ID).Msg("Failed to update streak")
	}

	cmd, arg := splitCommand(ev.Text)
	if cmd != "" && bypassFlow[cmd] {
		return d.report(ctx, ev.ChatID, d.command(ctx, ev, cmd, arg))
	}

	flow, err := d.flows.Get(ctx, ev.From.ID)
	if err != nil {
		return d.fail(ctx, ev.ChatID, err)
	}
	if flow != nil {
		if !user.IsActive {
			return d.settle(ctx, user.ID, ev.ChatID, flow, nil, apperrors.New(apperrors.ErrCodeUserBlocked, "account blocked"))
		}
		return d.continueFlow(ctx, ev, flow)
	}

	if cmd != "" {
		return d.report(ctx, ev.ChatID, d.command(ctx, ev, cmd, arg))
	}
	return d.report(ctx, ev.ChatID, d.menu(ctx, ev))
}

// HandleInteraction routes a button press and answers it exactly once,
// whatever the outcome.
func (d *Dispatcher) HandleInteraction(ctx context.Context, ev InteractionEvent) error {
	answer, err := d.route(ctx, ev)
	if ansErr := d.tg.AnswerInteraction(ctx, ev.ID, answer); ansErr != nil {
		log.Warn().Err(ansErr).Str("interaction_id", ev.ID).Msg("Failed to answer interaction")
	}
	return err
}

func (d *Dispatcher) route(ctx context.Context, ev InteractionEvent) (telegram.AnswerOptions, error) {
	a, err := ParseAction(ev.Data)
	if err != nil {
		log.Debug().Err(err).Int64("user_id", ev.From.ID).Msg("Ignoring interaction")
		return telegram.AnswerOptions{}, nil
	}
	lg := logger.ForUser(ev.From.ID).With().Str("action", string(a.Verb)).Logger()
	lg.Debug().Msg("Interaction received")

	user, err := d.users.GetOrCreate(ctx, ev.From.ID, ev.From.FirstName, ev.From.LastName)
	if err != nil {
		return d.answerError(ctx, ev.ChatID, err)
	}
	if a.Verb.AdminOnly() && !d.admins.IsAdmin(ev.From.ID) {
		return telegram.AnswerOptions{Text: "❌ Access denied", ShowAlert: true}, nil
	}
	if writeVerbs[a.Verb] && !user.IsActive {
		return telegram.AnswerOptions{Text: textBlocked, ShowAlert: true}, nil
	}

	answer, err := d.action(ctx, ev, a)
	if err != nil {
		return d.answerError(ctx, ev.ChatID, err)
	}
	return answer, nil
}

// settle finishes a flow step. Correctable input keeps the flow open and
// re-prompts; success replaces or clears it; anything else clears it.
func (d *Dispatcher) settle(ctx context.Context, userID, chatID int64, flow, next conversation.Flow, err error) error {
	switch {
	case err == nil:
		if next != nil {
			return d.storeFlow(ctx, userID, next)
		}
		return d.clearFlow(ctx, userID)
	case errors.Is(err, apperrors.ErrValidation), errors.Is(err, apperrors.ErrUsernameTaken):
		d.say(ctx, chatID, userMessage(err)+"\n\n"+promptFor(flow))
		return nil
	case temporary(err):
		d.say(ctx, chatID, userMessage(err))
		return nil
	default:
		if clearErr := d.clearFlow(ctx, userID); clearErr != nil {
			log.Error().Err(clearErr).Int64("user_id", userID).Msg("Failed to clear flow")
		}
		return d.fail(ctx, chatID, err)
	}
}

func (d *Dispatcher) report(ctx context.Context, chatID int64, err error) error {
	if err == nil {
		return nil
	}
	return d.fail(ctx, chatID, err)
}

// fail reports err in chat and returns it only when it is not the user's doing.
func (d *Dispatcher) fail(ctx context.Context, chatID int64, err error) error {
	d.say(ctx, chatID, userMessage(err))
	if internal(err) {
		return err
	}
	return nil
}

func (d *Dispatcher) answerError(ctx context.Context, chatID int64, err error) (telegram.AnswerOptions, error) {
	answer := telegram.AnswerOptions{Text: userMessage(err), ShowAlert: true}
	if internal(err) {
		d.say(ctx, chatID, textGenericFailure)
		return answer, err
	}
	return answer, nil
}

func internal(err error) bool {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		return true
	}
	return appErr.IsInternal()
}

// temporary reports errors that go away if the user waits, such as cooldowns.
func temporary(err error) bool {
	appErr, ok := apperrors.AsAppError(err)
	return ok && appErr.IsTemporary()
}

// userMessage maps an error to the text shown in chat.
func userMessage(err error) string {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		return textGenericFailure
	}
	switch appErr.Code {
	case apperrors.ErrCodeValidation:
		return "❌ " + capitalize(appErr.Message) + "."
	case apperrors.ErrCodeUsernameTaken:
		return "❌ Username already taken. Choose another one."
	case apperrors.ErrCodeNotFound:
		if appErr.Details["resource"] == "user" {
			return "❌ User not found."
		}
		return "❌ Confession not found or may have been deleted."
	case apperrors.ErrCodeForbidden:
		if reason, ok := appErr.Details["reason"].(string); ok && reason != "admin only" {
			return "❌ " + capitalize(reason) + "."
		}
		return "❌ Access denied."
	case apperrors.ErrCodeUserBlocked:
		return textBlocked
	case apperrors.ErrCodeCooldown:
		return cooldownText(apperrors.RetryAfter(err))
	case apperrors.ErrCodeRateLimit:
		return "❌ Too many comments. Please wait before adding another comment."
	case apperrors.ErrCodeSelfFollow:
		return "❌ You cannot follow yourself."
	case apperrors.ErrCodeAlreadyFollowing:
		return "❌ You are already following this user."
	case apperrors.ErrCodeInvalidTransition:
		return "ℹ️ This confession has already been moderated."
	case apperrors.ErrCodeConflict:
		return "❌ Comments are not open for this confession yet."
	}
	return textGenericFailure
}

func waitSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (d *Dispatcher) storeFlow(ctx context.Context, userID int64, f conversation.Flow) error {
	return d.flows.Set(ctx, userID, f)
}

func (d *Dispatcher) clearFlow(ctx context.Context, userID int64) error {
	return d.flows.Clear(ctx, userID)
}

// say sends a Markdown message; delivery failures are logged only.
func (d *Dispatcher) say(ctx context.Context, chatID int64, text string) {
	d.send(ctx, chatID, text, nil)
}

func (d *Dispatcher) send(ctx context.Context, chatID int64, text string, keyboard [][]telegram.Button) {
	opts := telegram.SendOptions{ParseMode: telegram.ParseMarkdown, InlineKeyboard: keyboard}
	if _, err := d.tg.SendMessage(ctx, chatID, text, opts); err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}

func (d *Dispatcher) sendMenu(ctx context.Context, chatID int64, text string, rows [][]string) {
	opts := telegram.SendOptions{ParseMode: telegram.ParseMarkdown, ReplyKeyboard: rows}
	if _, err := d.tg.SendMessage(ctx, chatID, text, opts); err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to send menu")
	}
}

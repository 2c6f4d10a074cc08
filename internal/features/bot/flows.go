package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	apperrors "confession-bot-backend/internal/common/errors"
	"confession-bot-backend/internal/common/logger"
	"confession-bot-backend/internal/common/validation"
	"confession-bot-backend/internal/features/conversation"
	"confession-bot-backend/internal/platform/telegram"
)

func promptFor(f conversation.Flow) string {
	switch f := f.(type) {
	case conversation.AwaitingUsername:
		return "📝 *Set Display Name*\n\nEnter your desired display name:\n\nMust be 3-20 characters, letters/numbers/underscores only."
	case conversation.AwaitingBio:
		return "📝 *Set Bio*\n\nEnter your bio (max 100 characters):"
	case conversation.AwaitingConfession:
		return "✍️ *Send Your Confession*\n\nType your confession below (max 1000 characters):\n\nYou can add hashtags like #love #study #funny"
	case conversation.AwaitingComment:
		return "📝 *Add Comment*\n\nType your comment for this confession:"
	case conversation.AwaitingRejectionReason:
		return "❌ *Rejecting Confession*\n\nPlease provide rejection reason:"
	case conversation.AwaitingBlockTarget:
		return "❌ *Block User*\n\nEnter user ID to block:"
	case conversation.AwaitingMessageTarget:
		return "✉️ *Message User*\n\nEnter user ID to message:"
	case conversation.AwaitingMessageBody:
		return fmt.Sprintf("✉️ Now enter your message for user %d:", f.TargetUserID)
	case conversation.AwaitingBroadcastBody:
		return "📢 *Broadcast Message*\n\nEnter your broadcast message:"
	}
	return ""
}

// startFlow replaces whatever flow the user had and sends its prompt.
func (d *Dispatcher) startFlow(ctx context.Context, userID, chatID int64, f conversation.Flow) error {
	if err := d.flows.Set(ctx, userID, f); err != nil {
		return err
	}
	d.say(ctx, chatID, promptFor(f))
	return nil
}

func (d *Dispatcher) continueFlow(ctx context.Context, ev TextEvent, flow conversation.Flow) error {
	userID := ev.From.ID
	lg := logger.ForUser(userID).With().Str("flow", string(flow.Kind())).Logger()

	if flow.AdminOnly() && !d.admins.IsAdmin(userID) {
		lg.Warn().Msg("Admin flow continued by a non-admin")
		return d.settle(ctx, userID, ev.ChatID, flow, nil, apperrors.NewForbiddenError("admin only"))
	}

	var (
		next conversation.Flow
		err  error
	)
	switch f := flow.(type) {
	case conversation.AwaitingUsername:
		err = d.finishUsername(ctx, ev, f)
	case conversation.AwaitingBio:
		err = d.finishBio(ctx, ev)
	case conversation.AwaitingConfession:
		err = d.finishConfession(ctx, ev)
	case conversation.AwaitingComment:
		err = d.finishComment(ctx, ev, f)
	case conversation.AwaitingRejectionReason:
		err = d.finishRejection(ctx, ev, f)
	case conversation.AwaitingBlockTarget:
		err = d.finishBlock(ctx, ev)
	case conversation.AwaitingMessageTarget:
		next, err = d.finishMessageTarget(ctx, ev)
	case conversation.AwaitingMessageBody:
		err = d.finishMessageBody(ctx, ev, f)
	case conversation.AwaitingBroadcastBody:
		err = d.finishBroadcast(ctx, ev)
	default:
		lg.Error().Msg("Unhandled flow kind")
		return d.clearFlow(ctx, userID)
	}
	if err == nil {
		lg.Debug().Msg("Flow step completed")
	}
	return d.settle(ctx, userID, ev.ChatID, flow, next, err)
}

func (d *Dispatcher) finishUsername(ctx context.Context, ev TextEvent, f conversation.AwaitingUsername) error {
	name := strings.TrimSpace(ev.Text)
	if err := d.users.SetUsername(ctx, ev.From.ID, name); err != nil {
		return err
	}
	chatID := ev.ChatID
	if f.OriginChatID != 0 {
		chatID = f.OriginChatID
	}
	d.say(ctx, chatID, fmt.Sprintf("✅ Display name updated to %s!", name))
	return d.showMainMenu(ctx, ev.From.ID, chatID)
}

func (d *Dispatcher) finishBio(ctx context.Context, ev TextEvent) error {
	if _, err := d.users.SetBio(ctx, ev.From.ID, ev.Text); err != nil {
		return err
	}
	d.send(ctx, ev.ChatID, "✅ Bio updated successfully!", [][]telegram.Button{
		{{Text: "🔙 Back to Profile", Data: key(VerbMyProfile)}},
	})
	return nil
}

func (d *Dispatcher) finishConfession(ctx context.Context, ev TextEvent) error {
	c, err := d.confessions.Submit(ctx, ev.From.ID, ev.Text)
	if err != nil {
		return err
	}
	d.send(ctx, ev.ChatID, fmt.Sprintf("✅ *Confession #%d Submitted!*\n\nYour confession is under review. You'll be notified when approved.", c.Number),
		[][]telegram.Button{
			{{Text: "📝 Send Another", Data: key(VerbSendConfession)}, {Text: "📢 Promote Bot", Data: key(VerbPromote)}},
			{{Text: "🔙 Back to Menu", Data: key(VerbMainMenu)}},
		})
	return nil
}

func (d *Dispatcher) finishComment(ctx context.Context, ev TextEvent, f conversation.AwaitingComment) error {
	if _, err := d.confessions.AddComment(ctx, ev.From.ID, f.ConfessionID, ev.Text); err != nil {
		return err
	}
	d.say(ctx, ev.ChatID, "✅ Comment added successfully!")
	return d.showComments(ctx, ev.From.ID, ev.ChatID, f.ConfessionID, 1)
}

func (d *Dispatcher) finishRejection(ctx context.Context, ev TextEvent, f conversation.AwaitingRejectionReason) error {
	c, err := d.confessions.Reject(ctx, ev.From.ID, f.ConfessionID, ev.Text)
	if err != nil {
		return err
	}
	d.say(ctx, ev.ChatID, fmt.Sprintf("✅ Confession #%d rejected.", c.Number))
	return nil
}

func parseUserID(text string) (int64, error) {
	id, err := validation.ParseUserID(text)
	if err != nil {
		return 0, apperrors.NewValidationError("user_id", "invalid user ID, please enter a numeric user ID")
	}
	return id, nil
}

func (d *Dispatcher) finishBlock(ctx context.Context, ev TextEvent) error {
	id, err := parseUserID(ev.Text)
	if err != nil {
		return err
	}
	u, err := d.users.Block(ctx, id)
	if err != nil {
		return err
	}
	d.say(ctx, ev.ChatID, fmt.Sprintf("✅ User %s has been blocked.", displayName(u.Username, id)))
	return nil
}

func (d *Dispatcher) finishMessageTarget(ctx context.Context, ev TextEvent) (conversation.Flow, error) {
	id, err := parseUserID(ev.Text)
	if err != nil {
		return nil, err
	}
	if _, err := d.users.Get(ctx, id); err != nil {
		return nil, err
	}
	next := conversation.AwaitingMessageBody{TargetUserID: id}
	d.say(ctx, ev.ChatID, promptFor(next))
	return next, nil
}

func (d *Dispatcher) finishMessageBody(ctx context.Context, ev TextEvent, f conversation.AwaitingMessageBody) error {
	body, err := validation.ValidateBroadcast(ev.Text)
	if err != nil {
		return apperrors.NewValidationError("message", err.Error())
	}
	_, err = d.tg.SendMessage(ctx, f.TargetUserID, "📨 *Message from Admin*\n\n"+body, telegram.SendOptions{ParseMode: telegram.ParseMarkdown})
	if err != nil {
		log.Warn().Err(err).Int64("target_id", f.TargetUserID).Msg("Direct message failed")
		d.say(ctx, ev.ChatID, fmt.Sprintf("❌ Failed to send message to user %d", f.TargetUserID))
		return nil
	}
	d.say(ctx, ev.ChatID, fmt.Sprintf("✅ Message sent to user %d", f.TargetUserID))
	return nil
}

func (d *Dispatcher) finishBroadcast(ctx context.Context, ev TextEvent) error {
	body, err := validation.ValidateBroadcast(ev.Text)
	if err != nil {
		return apperrors.NewValidationError("message", err.Error())
	}
	ids, err := d.users.ActiveIDs(ctx)
	if err != nil {
		return err
	}
	sent, failed := d.broadcast(ctx, ids, "📢 *Broadcast Message*\n\n"+body)
	log.Info().Int64("admin_id", ev.From.ID).Int64("sent", sent).Int64("failed", failed).Msg("Broadcast completed")
	d.say(ctx, ev.ChatID, fmt.Sprintf("✅ Broadcast completed!\n\n✅ Success: %d users\n❌ Failed: %d users", sent, failed))
	return nil
}

// broadcast fans text out to ids. Every recipient is attempted; failures are
// counted, never propagated.
func (d *Dispatcher) broadcast(ctx context.Context, ids []int64, text string) (sent, failed int64) {
	var ok, bad atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.BroadcastConcurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if _, err := d.tg.SendMessage(gctx, id, text, telegram.SendOptions{ParseMode: telegram.ParseMarkdown}); err != nil {
				log.Debug().Err(err).Int64("user_id", id).Msg("Broadcast delivery failed")
				bad.Add(1)
				return nil
			}
			ok.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return ok.Load(), bad.Load()
}

func displayName(name string, id int64) string {
	if validation.IsPlaceholderUsername(name) {
		return strconv.FormatInt(id, 10)
	}
	return name
}

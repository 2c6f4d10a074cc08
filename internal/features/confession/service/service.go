// Package service implements the confession lifecycle: submission,
// moderation, exactly-once publication and comment threads.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"confession-bot-backend/internal/common/config"
	apperrors "confession-bot-backend/internal/common/errors"
	"confession-bot-backend/internal/common/logger"
	"confession-bot-backend/internal/common/validation"
	"confession-bot-backend/internal/features/abuse"
	"confession-bot-backend/internal/features/confession/models"
	"confession-bot-backend/internal/features/confession/repository"
	"confession-bot-backend/internal/features/sequence"
	usermodels "confession-bot-backend/internal/features/user/models"
	"confession-bot-backend/internal/platform/telegram"
)

const (
	ReputationForApproval = 10
	ReputationForComment  = 5

	CommentsPageSize = 5
	previewLength    = 200
)

// Directory is the part of the user directory the lifecycle needs.
type Directory interface {
	RequireActive(ctx context.Context, id int64) (*usermodels.User, error)
	Get(ctx context.Context, id int64) (*usermodels.User, error)
	RecordConfession(ctx context.Context, id int64) error
	CreditReputation(ctx context.Context, id int64, delta int64) (int64, error)
	QueueCommentCredit(ctx context.Context, pipe redis.Pipeliner, id int64, reputation int64)
	IsFollowing(ctx context.Context, actorID, targetID int64) (bool, error)
	Notify(ctx context.Context, id int64, pref usermodels.Preference, text string) bool
	CheckAchievements(ctx context.Context, id int64) []string
}

type Publisher interface {
	Publish(ctx context.Context, text string, number int64, confessionID string) (telegram.MessageRef, error)
}

// Sender delivers direct messages to admins and authors.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts telegram.SendOptions) (telegram.MessageRef, error)
}

type Limits struct {
	ConfessionCooldown   time.Duration
	CommentWindow        time.Duration
	CommentMax           int
	BroadcastConcurrency int
}

// LimitsFromConfig picks the lifecycle limits out of the process config.
func LimitsFromConfig(cfg *config.Config) Limits {
	return Limits{
		ConfessionCooldown:   cfg.Limits.ConfessionCooldown,
		CommentWindow:        cfg.Limits.CommentWindow,
		CommentMax:           cfg.Limits.CommentMax,
		BroadcastConcurrency: cfg.Limits.BroadcastConcurrency,
	}
}

type Lifecycle struct {
	repo      repository.ConfessionRepository
	users     Directory
	guard     *abuse.Guard
	seq       *sequence.Allocator
	publisher Publisher
	sender    Sender
	admins    *config.AdminSet
	limits    Limits
	now       func() time.Time
}

type Option func(*Lifecycle)

func WithClock(now func() time.Time) Option {
	return func(l *Lifecycle) { l.now = now }
}

func NewLifecycle(
	repo repository.ConfessionRepository,
	users Directory,
	guard *abuse.Guard,
	seq *sequence.Allocator,
	publisher Publisher,
	sender Sender,
	admins *config.AdminSet,
	limits Limits,
	opts ...Option,
) *Lifecycle {
	if limits.BroadcastConcurrency <= 0 {
		limits.BroadcastConcurrency = 1
	}
	l := &Lifecycle{
		repo:      repo,
		users:     users,
		guard:     guard,
		seq:       seq,
		publisher: publisher,
		sender:    sender,
		admins:    admins,
		limits:    limits,
		now:       time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Submit validates and stores a new confession at pending and asks every
// admin to review it.
func (l *Lifecycle) Submit(ctx context.Context, userID int64, raw string) (*models.Confession, error) {
	if _, err := l.users.RequireActive(ctx, userID); err != nil {
		return nil, err
	}
	text, err := validation.PrepareConfession(raw)
	if err != nil {
		return nil, apperrors.NewValidationError("text", err.Error()).WithUserID(userID)
	}

	ok, err := l.guard.CheckCooldown(ctx, userID, abuse.ActionConfession, l.limits.ConfessionCooldown)
	if err != nil {
		return nil, apperrors.NewDatabaseError("check cooldown", err)
	}
	if !ok {
		remaining, _ := l.guard.CooldownRemaining(ctx, userID, abuse.ActionConfession, l.limits.ConfessionCooldown)
		return nil, apperrors.NewCooldownError(abuse.ActionConfession, remaining).WithUserID(userID)
	}

	number, err := l.seq.Next(ctx, sequence.ConfessionCounter)
	if err != nil {
		return nil, apperrors.NewDatabaseError("allocate number", err)
	}

	now := l.now()
	c := &models.Confession{
		ID:        models.NewConfessionID(userID, now),
		Number:    number,
		AuthorID:  userID,
		Text:      text,
		Status:    models.StatusPending,
		Hashtags:  validation.ExtractHashtags(text),
		CreatedAt: now,
	}
	if err := l.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	lg := logger.ForConfession(c.ID, userID)
	if err := l.users.RecordConfession(ctx, userID); err != nil {
		lg.Error().Err(err).Msg("Failed to bump confession counter")
	}
	if err := l.guard.SetCooldown(ctx, userID, abuse.ActionConfession); err != nil {
		lg.Error().Err(err).Msg("Failed to set cooldown")
	}

	delivered := l.notifyAdmins(ctx, c)
	lg.Info().Int64("number", number).Int("admins_notified", delivered).Msg("Confession submitted")
	return c, nil
}

// notifyAdmins fans the review request out to every admin. One failed send
// does not stop the others.
func (l *Lifecycle) notifyAdmins(ctx context.Context, c *models.Confession) int {
	ids := l.admins.IDs()
	if len(ids) == 0 {
		log.Warn().Str("confession_id", c.ID).Msg("No admin ids configured")
		return 0
	}

	text := fmt.Sprintf("🤫 *New Confession #%d*\n\n%s\n\n*Actions:*", c.Number, validation.Truncate(c.Text, previewLength))
	opts := telegram.SendOptions{
		ParseMode: telegram.ParseMarkdown,
		InlineKeyboard: [][]telegram.Button{{
			{Text: "✅ Approve", Data: "approve_" + c.ID},
			{Text: "❌ Reject", Data: "reject_" + c.ID},
		}},
	}

	var delivered atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.limits.BroadcastConcurrency)
	for _, adminID := range ids {
		adminID := adminID
		g.Go(func() error {
			if _, err := l.sender.SendMessage(gctx, adminID, text, opts); err != nil {
				log.Warn().Err(err).Int64("admin_id", adminID).Str("confession_id", c.ID).Msg("Admin notification failed")
				return nil
			}
			delivered.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(delivered.Load())
}

// SubmitCooldown returns how long userID still has to wait before the next
// submission; zero means a confession may be sent now.
func (l *Lifecycle) SubmitCooldown(ctx context.Context, userID int64) (time.Duration, error) {
	d, err := l.guard.CooldownRemaining(ctx, userID, abuse.ActionConfession, l.limits.ConfessionCooldown)
	if err != nil {
		return 0, apperrors.NewDatabaseError("check cooldown", err)
	}
	return d, nil
}

// ApproveResult reports the confession after approval and whether this call
// performed the publication.
type ApproveResult struct {
	Confession *models.Confession
	Published  bool
}

// Approve moves a pending confession to approved, credits the author once and
// publishes it exactly once. Approving a posted confession is a no-op; an
// approved one whose channel post failed earlier is published again. Once a
// post reaches the channel it is never sent a second time.
func (l *Lifecycle) Approve(ctx context.Context, adminID int64, confessionID string) (*ApproveResult, error) {
	if !l.admins.IsAdmin(adminID) {
		return nil, apperrors.NewForbiddenError("admin only").WithUserID(adminID)
	}
	c, err := l.repo.GetByID(ctx, confessionID)
	if err != nil {
		return nil, err
	}

	switch c.Status {
	case models.StatusPosted:
		return &ApproveResult{Confession: c}, nil
	case models.StatusRejected:
		return nil, apperrors.NewInvalidTransitionError(c.ID, string(c.Status), string(models.StatusApproved))
	case models.StatusPending:
		swapped, current, err := l.repo.Transition(ctx, repository.Transition{
			ID:      c.ID,
			From:    models.StatusPending,
			To:      models.StatusApproved,
			ActorID: adminID,
			Fields: map[string]interface{}{
				"moderated_by": adminID,
				"moderated_at": l.now().UnixMilli(),
			},
		})
		if err != nil {
			return nil, err
		}
		if swapped {
			if _, err := l.users.CreditReputation(ctx, c.AuthorID, ReputationForApproval); err != nil {
				log.Error().Err(err).Str("confession_id", c.ID).Msg("Failed to credit approval reputation")
			}
		} else {
			switch current {
			case models.StatusPosted:
				c.Status = current
				return &ApproveResult{Confession: c}, nil
			case models.StatusRejected:
				return nil, apperrors.NewInvalidTransitionError(c.ID, string(current), string(models.StatusApproved))
			}
		}
	}

	return l.publish(ctx, adminID, c.ID)
}

func (l *Lifecycle) publish(ctx context.Context, adminID int64, confessionID string) (*ApproveResult, error) {
	claimed, err := l.repo.ClaimPublish(ctx, confessionID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return l.resumePublish(ctx, adminID, confessionID)
	}

	// the status is re-read under the claim, right before the publisher call
	c, err := l.repo.GetByID(ctx, confessionID)
	if err != nil {
		_ = l.repo.ReleasePublish(ctx, confessionID)
		return nil, err
	}
	if c.Status == models.StatusPosted {
		return &ApproveResult{Confession: c}, nil
	}
	if c.Status != models.StatusApproved {
		_ = l.repo.ReleasePublish(ctx, confessionID)
		return nil, apperrors.NewInvalidTransitionError(c.ID, string(c.Status), string(models.StatusPosted))
	}
	if err := l.repo.HoldPublish(ctx, confessionID); err != nil {
		_ = l.repo.ReleasePublish(ctx, confessionID)
		return nil, err
	}

	ref, err := l.publisher.Publish(ctx, c.Text, c.Number, c.ID)
	if err != nil {
		if relErr := l.repo.ReleasePublish(ctx, confessionID); relErr != nil {
			log.Error().Err(relErr).Str("confession_id", c.ID).Msg("Failed to release publish claim")
		}
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperrors.NewTelegramAPIError("publish", err)
	}

	// from here on the claim is never released: the channel already has the post
	published := repository.PublishedRef{ChatID: ref.ChatID, MessageID: ref.MessageID}
	if err := l.repo.RecordPublished(ctx, c.ID, published); err != nil {
		log.Error().Err(err).Str("confession_id", c.ID).Int("message_id", ref.MessageID).Msg("Published but failed to record channel message")
	}
	return l.markPosted(ctx, adminID, c, published)
}

// resumePublish handles an Approve that found the publish slot taken. When the
// slot carries a channel message the confession is already out and only the
// posted transition is retried.
func (l *Lifecycle) resumePublish(ctx context.Context, adminID int64, confessionID string) (*ApproveResult, error) {
	c, err := l.repo.GetByID(ctx, confessionID)
	if err != nil {
		return nil, err
	}
	if c.Status != models.StatusApproved {
		return &ApproveResult{Confession: c}, nil
	}
	ref, err := l.repo.LookupPublished(ctx, confessionID)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		// another approval is publishing, or one stopped mid-post
		return &ApproveResult{Confession: c}, nil
	}
	log.Info().Str("confession_id", c.ID).Int("message_id", ref.MessageID).Msg("Finishing interrupted publish")
	return l.markPosted(ctx, adminID, c, *ref)
}

func (l *Lifecycle) markPosted(ctx context.Context, adminID int64, c *models.Confession, ref repository.PublishedRef) (*ApproveResult, error) {
	swapped, current, err := l.repo.Transition(ctx, repository.Transition{
		ID:      c.ID,
		From:    models.StatusApproved,
		To:      models.StatusPosted,
		ActorID: adminID,
		Fields: map[string]interface{}{
			"channel_chat_id":    ref.ChatID,
			"channel_message_id": ref.MessageID,
		},
		Extra: func(pipe redis.Pipeliner) {
			l.repo.QueueThreadInit(ctx, pipe, c, ref.MessageID)
		},
	})
	if err != nil {
		log.Error().Err(err).Str("confession_id", c.ID).Int("message_id", ref.MessageID).Msg("Published but failed to mark as posted")
		return nil, err
	}
	if !swapped {
		if current == models.StatusPosted {
			c.Status = current
			return &ApproveResult{Confession: c}, nil
		}
		return nil, apperrors.NewInvalidTransitionError(c.ID, string(current), string(models.StatusPosted))
	}

	c.Status = models.StatusPosted
	c.ChannelChatID = ref.ChatID
	c.ChannelMsgID = ref.MessageID

	l.tell(ctx, c.AuthorID, fmt.Sprintf("🎉 *Confession #%d Approved!*\n\nYour confession has been posted to the channel.", c.Number))
	log.Info().Str("confession_id", c.ID).Int64("number", c.Number).Int64("admin_id", adminID).Msg("Confession published")
	return &ApproveResult{Confession: c, Published: true}, nil
}

// Reject moves a pending confession to rejected and tells the author why.
func (l *Lifecycle) Reject(ctx context.Context, adminID int64, confessionID, rawReason string) (*models.Confession, error) {
	if !l.admins.IsAdmin(adminID) {
		return nil, apperrors.NewForbiddenError("admin only").WithUserID(adminID)
	}
	reason, err := validation.ValidateReason(rawReason)
	if err != nil {
		return nil, apperrors.NewValidationError("reason", err.Error())
	}
	c, err := l.repo.GetByID(ctx, confessionID)
	if err != nil {
		return nil, err
	}
	if c.Status != models.StatusPending {
		return nil, apperrors.NewInvalidTransitionError(c.ID, string(c.Status), string(models.StatusRejected))
	}

	now := l.now()
	swapped, current, err := l.repo.Transition(ctx, repository.Transition{
		ID:      c.ID,
		From:    models.StatusPending,
		To:      models.StatusRejected,
		ActorID: adminID,
		Fields: map[string]interface{}{
			"rejection_reason": reason,
			"moderated_by":     adminID,
			"moderated_at":     now.UnixMilli(),
		},
	})
	if err != nil {
		return nil, err
	}
	if !swapped {
		return nil, apperrors.NewInvalidTransitionError(c.ID, string(current), string(models.StatusRejected))
	}

	c.Status = models.StatusRejected
	c.RejectionReason = reason
	c.ModeratedBy = adminID
	c.ModeratedAt = now

	l.tell(ctx, c.AuthorID, fmt.Sprintf("❌ *Confession #%d Rejected*\n\n*Reason:* %s", c.Number, reason))
	log.Info().Str("confession_id", c.ID).Int64("admin_id", adminID).Msg("Confession rejected")
	return c, nil
}

// AddComment appends a comment to a posted confession.
func (l *Lifecycle) AddComment(ctx context.Context, userID int64, confessionID, raw string) (*models.Comment, error) {
	commenter, err := l.users.RequireActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	text, err := validation.PrepareComment(raw)
	if err != nil {
		return nil, apperrors.NewValidationError("text", err.Error()).WithUserID(userID)
	}

	c, err := l.repo.GetByID(ctx, confessionID)
	if err != nil {
		return nil, err
	}
	if c.Status != models.StatusPosted {
		return nil, apperrors.New(apperrors.ErrCodeConflict, "comments are not open for this confession").
			WithDetail("confession_id", c.ID).
			WithDetail("status", string(c.Status))
	}
	if err := l.checkCommentPolicy(ctx, userID, c); err != nil {
		return nil, err
	}

	ok, err := l.guard.CheckRateLimit(ctx, userID, abuse.ActionComment, l.limits.CommentWindow, l.limits.CommentMax)
	if err != nil {
		return nil, apperrors.NewDatabaseError("check rate limit", err)
	}
	if !ok {
		return nil, apperrors.NewRateLimitError(abuse.ActionComment, l.limits.CommentWindow).WithUserID(userID)
	}

	comment := &models.Comment{
		ID:           uuid.NewString(),
		ConfessionID: c.ID,
		AuthorID:     userID,
		AuthorName:   commenter.Username,
		Text:         text,
		CreatedAt:    l.now(),
	}
	_, err = l.repo.AppendComment(ctx, comment, func(pipe redis.Pipeliner) {
		l.users.QueueCommentCredit(ctx, pipe, userID, ReputationForComment)
	})
	if err != nil {
		return nil, err
	}

	if err := l.guard.RecordEvent(ctx, userID, abuse.ActionComment); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("Failed to record comment event")
	}
	l.users.CheckAchievements(ctx, userID)

	if c.AuthorID != userID {
		l.users.Notify(ctx, c.AuthorID, usermodels.PrefNewComment, fmt.Sprintf(
			"💬 *New Comment on Your Confession*\n\nConfession #%d has a new comment!\n\n\"%s\"",
			c.Number, validation.Truncate(text, 50)))
	}
	return comment, nil
}

// checkCommentPolicy applies the author's allowComments setting. Authors may
// always answer on their own confession.
func (l *Lifecycle) checkCommentPolicy(ctx context.Context, userID int64, c *models.Confession) error {
	if userID == c.AuthorID || l.admins.IsAdmin(userID) {
		return nil
	}
	author, err := l.users.Get(ctx, c.AuthorID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return err
	}
	switch author.CommentSettings.AllowComments {
	case usermodels.CommentAdmin:
		return apperrors.NewForbiddenError("the author only accepts comments from admins")
	case usermodels.CommentFollowers:
		following, err := l.users.IsFollowing(ctx, userID, c.AuthorID)
		if err != nil {
			return err
		}
		if !following {
			return apperrors.NewForbiddenError("the author only accepts comments from followers")
		}
	}
	return nil
}

// ListComments returns one page of the thread, oldest first. page is
// clamped to [1, total pages].
func (l *Lifecycle) ListComments(ctx context.Context, confessionID string, page int) (*models.Confession, *models.CommentPage, error) {
	c, err := l.repo.GetByID(ctx, confessionID)
	if err != nil {
		return nil, nil, err
	}
	total, err := l.repo.CommentTotal(ctx, confessionID)
	if err != nil {
		return nil, nil, err
	}

	totalPages := int((total + CommentsPageSize - 1) / CommentsPageSize)
	if page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * CommentsPageSize

	comments, err := l.repo.Comments(ctx, confessionID, int64(offset), int64(offset+CommentsPageSize-1))
	if err != nil {
		return nil, nil, err
	}
	return c, &models.CommentPage{
		Comments:   comments,
		Page:       page,
		TotalPages: totalPages,
		Total:      total,
		Offset:     offset,
	}, nil
}

// Preview returns the confession with its first n comments.
func (l *Lifecycle) Preview(ctx context.Context, confessionID string, n int) (*models.Confession, []models.Comment, int64, error) {
	c, err := l.repo.GetByID(ctx, confessionID)
	if err != nil {
		return nil, nil, 0, err
	}
	total, err := l.repo.CommentTotal(ctx, confessionID)
	if err != nil {
		return nil, nil, 0, err
	}
	comments, err := l.repo.Comments(ctx, confessionID, 0, int64(n-1))
	if err != nil {
		return nil, nil, 0, err
	}
	return c, comments, total, nil
}

func (l *Lifecycle) Get(ctx context.Context, confessionID string) (*models.Confession, error) {
	return l.repo.GetByID(ctx, confessionID)
}

// Pending returns the oldest confessions awaiting review.
func (l *Lifecycle) Pending(ctx context.Context, limit int64) ([]*models.Confession, error) {
	return l.repo.ListByStatus(ctx, models.StatusPending, limit, true)
}

// ByStatus lists confessions of one status, newest first except pending.
func (l *Lifecycle) ByStatus(ctx context.Context, status models.Status, limit int64) ([]*models.Confession, error) {
	if !status.Valid() {
		return nil, apperrors.NewValidationError("status", fmt.Sprintf("unknown status %q", status))
	}
	return l.repo.ListByStatus(ctx, status, limit, status == models.StatusPending)
}

func (l *Lifecycle) ByAuthor(ctx context.Context, authorID int64, limit int64) ([]*models.Confession, error) {
	return l.repo.ListByAuthor(ctx, authorID, limit)
}

func (l *Lifecycle) Trending(ctx context.Context, limit int64) ([]models.Trending, error) {
	return l.repo.Trending(ctx, limit)
}

func (l *Lifecycle) TopHashtags(ctx context.Context, limit int64) ([]models.HashtagCount, error) {
	return l.repo.TopHashtags(ctx, limit)
}

func (l *Lifecycle) RecentEvents(ctx context.Context, limit int64) ([]models.Event, error) {
	return l.repo.RecentEvents(ctx, limit)
}

func (l *Lifecycle) Stats(ctx context.Context) (*models.Stats, error) {
	return l.repo.Stats(ctx)
}

// tell sends a moderation outcome to the author; failures are only logged.
func (l *Lifecycle) tell(ctx context.Context, userID int64, text string) {
	if _, err := l.sender.SendMessage(ctx, userID, text, telegram.SendOptions{ParseMode: telegram.ParseMarkdown}); err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("Author notification failed")
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	apperrors "confession-bot-backend/internal/common/errors"
	"confession-bot-backend/internal/common/validation"
	"confession-bot-backend/internal/features/user/models"
	"confession-bot-backend/internal/features/user/repository"
)

// Messenger delivers a plain notification to a user's private chat.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// Service is the user directory: profiles, the follow graph, preferences and
// reputation. All profile mutations go through its narrow methods.
type Service struct {
	repo      repository.UserRepository
	messenger Messenger
	now       func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo repository.UserRepository, messenger Messenger, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		messenger: messenger,
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// GetOrCreate returns the profile, creating it with defaults on first contact.
func (s *Service) GetOrCreate(ctx context.Context, id int64, firstName, lastName string) (*models.User, error) {
	created, err := s.repo.Ensure(ctx, id, firstName, lastName)
	if err != nil {
		return nil, err
	}
	if created {
		log.Info().Int64("user_id", id).Msg("New user registered")
	}
	return s.repo.GetByID(ctx, id)
}

// Get returns the profile or a NOT_FOUND error.
func (s *Service) Get(ctx context.Context, id int64) (*models.User, error) {
	return s.repo.GetByID(ctx, id)
}

// RequireActive fails with USER_BLOCKED for a soft-blocked user.
func (s *Service) RequireActive(ctx context.Context, id int64) (*models.User, error) {
	u, err := s.GetOrCreate(ctx, id, "", "")
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, apperrors.New(apperrors.ErrCodeUserBlocked, "account blocked").WithUserID(id)
	}
	return u, nil
}

func (s *Service) SetUsername(ctx context.Context, id int64, raw string) error {
	name := strings.TrimSpace(raw)
	if err := validation.ValidateUsername(name); err != nil {
		return apperrors.NewValidationError("username", err.Error())
	}
	if validation.IsPlaceholderUsername(name) {
		return apperrors.NewValidationError("username", "this name is reserved, choose another one")
	}
	return s.repo.SetUsername(ctx, id, name)
}

func (s *Service) SetBio(ctx context.Context, id int64, raw string) (string, error) {
	bio, err := validation.ValidateBio(raw)
	if err != nil {
		return "", apperrors.NewValidationError("bio", err.Error())
	}
	if err := s.repo.SetBio(ctx, id, bio); err != nil {
		return "", err
	}
	return bio, nil
}

// TogglePreference flips one notification toggle and returns its new value.
func (s *Service) TogglePreference(ctx context.Context, id int64, pref models.Preference) (bool, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	next := !u.Notifications.Enabled(pref)
	if err := s.repo.SetPreference(ctx, id, pref, next); err != nil {
		return false, err
	}
	return next, nil
}

func (s *Service) SetCommentPolicy(ctx context.Context, id int64, policy models.CommentPolicy) error {
	if !policy.Valid() {
		return apperrors.NewValidationError("allow_comments", fmt.Sprintf("unknown policy %q", policy))
	}
	return s.updateCommentSettings(ctx, id, func(cs *models.CommentSettings) { cs.AllowComments = policy })
}

func (s *Service) ToggleAnonymousComments(ctx context.Context, id int64) error {
	return s.updateCommentSettings(ctx, id, func(cs *models.CommentSettings) { cs.AllowAnonymous = !cs.AllowAnonymous })
}

func (s *Service) ToggleCommentApproval(ctx context.Context, id int64) error {
	return s.updateCommentSettings(ctx, id, func(cs *models.CommentSettings) { cs.RequireApproval = !cs.RequireApproval })
}

func (s *Service) updateCommentSettings(ctx context.Context, id int64, fn func(*models.CommentSettings)) error {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	cs := u.CommentSettings
	fn(&cs)
	return s.repo.SetCommentSettings(ctx, id, cs)
}

// ToggleBlock flips the active flag of id and returns the new value.
func (s *Service) ToggleBlock(ctx context.Context, id int64) (bool, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	active := !u.IsActive
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return false, err
	}
	log.Info().Int64("user_id", id).Bool("active", active).Msg("User block toggled")
	return active, nil
}

// Block deactivates id. Blocking an already blocked user is a no-op.
func (s *Service) Block(ctx context.Context, id int64) (*models.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return u, nil
	}
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return nil, err
	}
	u.IsActive = false
	log.Info().Int64("user_id", id).Msg("User blocked")
	return u, nil
}

// Follow makes actor follow target and notifies target.
func (s *Service) Follow(ctx context.Context, actorID, targetID int64) error {
	if actorID == targetID {
		return apperrors.New(apperrors.ErrCodeSelfFollow, "you cannot follow yourself").WithUserID(actorID)
	}
	ok, err := s.repo.Exists(ctx, targetID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewNotFoundError("user", targetID)
	}
	if err := s.repo.Follow(ctx, actorID, targetID); err != nil {
		return err
	}

	name := validation.PlaceholderUsername
	if actor, err := s.repo.GetByID(ctx, actorID); err == nil {
		name = actor.Username
	}
	s.Notify(ctx, targetID, models.PrefNewFollower, fmt.Sprintf("👤 *New Follower*\n\n%s started following you!", name))
	s.CheckAchievements(ctx, targetID)
	return nil
}

// Unfollow removes the relation; an absent relation is not an error.
func (s *Service) Unfollow(ctx context.Context, actorID, targetID int64) error {
	return s.repo.Unfollow(ctx, actorID, targetID)
}

func (s *Service) IsFollowing(ctx context.Context, actorID, targetID int64) (bool, error) {
	return s.repo.IsFollowing(ctx, actorID, targetID)
}

// Followers returns up to limit follower profiles.
func (s *Service) Followers(ctx context.Context, id int64, limit int) ([]*models.User, error) {
	ids, err := s.repo.Followers(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.profiles(ctx, ids, limit)
}

// Following returns up to limit profiles followed by id.
func (s *Service) Following(ctx context.Context, id int64, limit int) ([]*models.User, error) {
	ids, err := s.repo.Following(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.profiles(ctx, ids, limit)
}

func (s *Service) profiles(ctx context.Context, ids []int64, limit int) ([]*models.User, error) {
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		u, err := s.repo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// CreditReputation adds delta points to id.
func (s *Service) CreditReputation(ctx context.Context, id int64, delta int64) (int64, error) {
	total, err := s.repo.IncrementReputation(ctx, id, delta)
	if err != nil {
		return 0, err
	}
	s.CheckAchievements(ctx, id)
	return total, nil
}

// RecordConfession bumps the author's submission counter.
func (s *Service) RecordConfession(ctx context.Context, id int64) error {
	if _, err := s.repo.IncrementConfessions(ctx, id); err != nil {
		return err
	}
	s.CheckAchievements(ctx, id)
	return nil
}

// QueueCommentCredit appends the commenter bookkeeping of a new comment to pipe.
func (s *Service) QueueCommentCredit(ctx context.Context, pipe redis.Pipeliner, id int64, reputation int64) {
	s.repo.QueueCommentCredit(ctx, pipe, id, reputation)
}

// Notify sends text to id unless the user switched pref off. Delivery
// failures are logged and reported as false; they never reach the caller's
// operation.
func (s *Service) Notify(ctx context.Context, id int64, pref models.Preference, text string) bool {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", id).Msg("Notification skipped: user lookup failed")
		return false
	}
	if !u.Notifications.Enabled(pref) {
		return false
	}
	if err := s.messenger.SendText(ctx, id, text); err != nil {
		log.Warn().Err(err).Int64("user_id", id).Str("preference", string(pref)).Msg("Notification failed")
		return false
	}
	return true
}

// TouchActivity advances the daily streak on the first event of a day.
func (s *Service) TouchActivity(ctx context.Context, id int64) error {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	today := now.Format(time.DateOnly)
	if u.LastCheckin == today {
		return nil
	}
	streak := int64(1)
	if u.LastCheckin == now.AddDate(0, 0, -1).Format(time.DateOnly) {
		streak = u.DailyStreak + 1
	}
	return s.repo.SetStreak(ctx, id, streak, today)
}

// CheckAchievements awards every achievement id qualifies for and returns
// the newly awarded ones.
func (s *Service) CheckAchievements(ctx context.Context, id int64) []string {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil
	}

	var tags []string
	add := func(cond bool, tag string) {
		if cond {
			tags = append(tags, tag)
		}
	}
	add(u.TotalConfessions >= 1, models.AchievementFirstConfession)
	add(u.TotalConfessions >= 10, models.AchievementStoryteller)
	add(u.TotalComments >= 1, models.AchievementFirstComment)
	add(u.TotalComments >= 50, models.AchievementChatterbox)
	add(u.Reputation >= 100, models.AchievementRisingStar)
	add(u.FollowerCount >= 10, models.AchievementPopular)
	add(u.Reputation >= 1000, models.AchievementLegend)

	added, err := s.repo.AddAchievements(ctx, id, tags...)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", id).Msg("Achievement update failed")
		return nil
	}
	for _, tag := range added {
		log.Info().Int64("user_id", id).Str("achievement", tag).Msg("Achievement unlocked")
	}
	return added
}

func (s *Service) Achievements(ctx context.Context, id int64) ([]string, error) {
	return s.repo.Achievements(ctx, id)
}

// TopCommenters is the Best Commenters leaderboard.
func (s *Service) TopCommenters(ctx context.Context, limit int64) ([]models.RankedUser, error) {
	return s.repo.TopByComments(ctx, limit)
}

// TopByReputation lists active users for browsing.
func (s *Service) TopByReputation(ctx context.Context, limit int64) ([]models.RankedUser, error) {
	return s.repo.TopByReputation(ctx, limit)
}

func (s *Service) Rank(ctx context.Context, id int64) (*models.Rank, error) {
	return s.repo.CommentRank(ctx, id)
}

// List pages over every known user in id order.
func (s *Service) List(ctx context.Context, offset, limit int64) ([]*models.User, error) {
	ids, err := s.repo.List(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	return s.profiles(ctx, ids, 0)
}

// ActiveIDs returns the broadcast audience.
func (s *Service) ActiveIDs(ctx context.Context) ([]int64, error) {
	return s.repo.ActiveIDs(ctx)
}

func (s *Service) Stats(ctx context.Context) (*models.DirectoryStats, error) {
	return s.repo.Stats(ctx)
}

package repository

import (
	"context"

	"github.com/redis/go-redis/v9"

	"confession-bot-backend/internal/features/user/models"
)

type UserRepository interface {
	// Ensure creates the profile with defaults unless it exists; created
	// reports whether this call made it.
	Ensure(ctx context.Context, id int64, firstName, lastName string) (created bool, err error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	Exists(ctx context.Context, id int64) (bool, error)

	SetUsername(ctx context.Context, id int64, username string) error
	FindByUsername(ctx context.Context, username string) (int64, error)
	SetBio(ctx context.Context, id int64, bio string) error
	SetPreference(ctx context.Context, id int64, pref models.Preference, enabled bool) error
	SetCommentSettings(ctx context.Context, id int64, settings models.CommentSettings) error
	SetActive(ctx context.Context, id int64, active bool) error
	SetStreak(ctx context.Context, id int64, streak int64, day string) error

	IncrementReputation(ctx context.Context, id int64, delta int64) (int64, error)
	IncrementConfessions(ctx context.Context, id int64) (int64, error)
	// QueueCommentCredit adds the commenter side effects of a new comment to
	// pipe so they commit together with the comment itself.
	QueueCommentCredit(ctx context.Context, pipe redis.Pipeliner, id int64, reputation int64)

	Follow(ctx context.Context, actorID, targetID int64) error
	Unfollow(ctx context.Context, actorID, targetID int64) error
	IsFollowing(ctx context.Context, actorID, targetID int64) (bool, error)
	Followers(ctx context.Context, id int64) ([]int64, error)
	Following(ctx context.Context, id int64) ([]int64, error)

	AddAchievements(ctx context.Context, id int64, tags ...string) ([]string, error)
	Achievements(ctx context.Context, id int64) ([]string, error)

	TopByReputation(ctx context.Context, limit int64) ([]models.RankedUser, error)
	TopByComments(ctx context.Context, limit int64) ([]models.RankedUser, error)
	CommentRank(ctx context.Context, id int64) (*models.Rank, error)
	List(ctx context.Context, offset, limit int64) ([]int64, error)
	ActiveIDs(ctx context.Context) ([]int64, error)
	Stats(ctx context.Context) (*models.DirectoryStats, error)
}

package repository

import (
	"context"

	"github.com/redis/go-redis/v9"

	"confession-bot-backend/internal/features/confession/models"
)

// Transition describes a compare-and-set status change. Fields are written
// together with the new status; Extra may queue more commands into the same
// transaction.
type Transition struct {
	ID      string
	From    models.Status
	To      models.Status
	ActorID int64
	Fields  map[string]interface{}
	Extra   func(pipe redis.Pipeliner)
}

// PublishedRef is the channel message a confession went out as.
type PublishedRef struct {
	ChatID    int64
	MessageID int
}

type ConfessionRepository interface {
	Create(ctx context.Context, c *models.Confession) error
	GetByID(ctx context.Context, id string) (*models.Confession, error)
	// Transition applies t only if the stored status equals t.From and
	// returns the status found in the store. swapped is false when another
	// writer got there first.
	Transition(ctx context.Context, t Transition) (swapped bool, current models.Status, err error)

	// ClaimPublish takes the single publish slot of id. A fresh claim expires
	// unless HoldPublish pins it.
	ClaimPublish(ctx context.Context, id string) (bool, error)
	// HoldPublish removes the expiry of a claim. Called right before the
	// channel post; a held claim is only freed by ReleasePublish.
	HoldPublish(ctx context.Context, id string) error
	ReleasePublish(ctx context.Context, id string) error
	// RecordPublished stores the channel message in the claim of id.
	RecordPublished(ctx context.Context, id string, ref PublishedRef) error
	// LookupPublished returns the message recorded for id, nil if none.
	LookupPublished(ctx context.Context, id string) (*PublishedRef, error)
	// QueueThreadInit opens the comment thread of a freshly posted confession.
	QueueThreadInit(ctx context.Context, pipe redis.Pipeliner, c *models.Confession, channelMsgID int)

	AppendComment(ctx context.Context, comment *models.Comment, extra func(pipe redis.Pipeliner)) (total int64, err error)
	Comments(ctx context.Context, confessionID string, start, stop int64) ([]models.Comment, error)
	CommentTotal(ctx context.Context, confessionID string) (int64, error)

	ListByStatus(ctx context.Context, status models.Status, limit int64, oldestFirst bool) ([]*models.Confession, error)
	ListByAuthor(ctx context.Context, authorID int64, limit int64) ([]*models.Confession, error)
	Trending(ctx context.Context, limit int64) ([]models.Trending, error)
	TopHashtags(ctx context.Context, limit int64) ([]models.HashtagCount, error)
	RecentEvents(ctx context.Context, limit int64) ([]models.Event, error)
	Stats(ctx context.Context) (*models.Stats, error)
}

package models

import (
	"fmt"
	"time"
)

// Status - состояние исповеди в жизненном цикле модерации
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusPosted   Status = "posted"
)

// Statuses in lifecycle order.
var Statuses = []Status{StatusPending, StatusApproved, StatusPosted, StatusRejected}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusPosted:
		return true
	}
	return false
}

// CanTransition reports whether the lifecycle allows moving from s to next:
// pending→approved→posted or pending→rejected.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusApproved || next == StatusRejected
	case StatusApproved:
		return next == StatusPosted
	}
	return false
}

// Terminal statuses accept no further transition.
func (s Status) Terminal() bool {
	return s == StatusPosted || s == StatusRejected
}

// Confession представляет анонимную исповедь
// @Description Исповедь и её состояние модерации
type Confession struct {
	ID              string    `json:"id" example:"confess_123456789_1767225600000"`
	Number          int64     `json:"number" example:"42"`
	AuthorID        int64     `json:"author_id" example:"123456789"`
	Text            string    `json:"text"`
	Status          Status    `json:"status" enums:"pending,approved,rejected,posted"`
	Hashtags        []string  `json:"hashtags,omitempty"`
	CommentCount    int64     `json:"comment_count"`
	LikeCount       int64     `json:"like_count"`
	RejectionReason string    `json:"rejection_reason,omitempty"`
	ModeratedBy     int64     `json:"moderated_by,omitempty"`
	ChannelChatID   int64     `json:"channel_chat_id,omitempty"`
	ChannelMsgID    int       `json:"channel_message_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	ModeratedAt     time.Time `json:"moderated_at,omitempty"`
}

// NewConfessionID derives the idempotency key from author and creation time.
func NewConfessionID(authorID int64, at time.Time) string {
	return fmt.Sprintf("confess_%d_%d", authorID, at.UnixMilli())
}

// Comment - комментарий к опубликованной исповеди
type Comment struct {
	ID           string    `json:"id"`
	ConfessionID string    `json:"confession_id"`
	AuthorID     int64     `json:"author_id"`
	AuthorName   string    `json:"author_name"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"created_at"`
}

// CommentPage is one page of a thread, oldest first.
type CommentPage struct {
	Comments   []Comment `json:"comments"`
	Page       int       `json:"page"`
	TotalPages int       `json:"total_pages"`
	Total      int64     `json:"total"`
	// Offset is the zero-based index of the first comment on the page.
	Offset int `json:"offset"`
}

// Event is one entry of the moderation audit log.
type Event struct {
	ID           string    `json:"id"`
	ConfessionID string    `json:"confession_id"`
	Type         string    `json:"type"`
	ActorID      int64     `json:"actor_id"`
	At           time.Time `json:"at"`
}

// Trending is a published confession ranked by comments.
type Trending struct {
	ID       string `json:"id"`
	Number   int64  `json:"number"`
	Text     string `json:"text"`
	Comments int64  `json:"comments"`
}

// HashtagCount is one row of the hashtag leaderboard.
type HashtagCount struct {
	Tag   string `json:"tag"`
	Count int64  `json:"count"`
}

// Stats are the confession-side counters of the admin dashboard.
type Stats struct {
	Total    int64 `json:"total"`
	Pending  int64 `json:"pending"`
	Approved int64 `json:"approved"`
	Posted   int64 `json:"posted"`
	Rejected int64 `json:"rejected"`
	Comments int64 `json:"comments"`
}

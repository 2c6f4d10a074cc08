package models

import "time"

// UserResponse is the profile as returned by the HTTP API.
// @Description Профиль пользователя
type UserResponse struct {
	ID               int64           `json:"id" example:"123456789"`
	Username         string          `json:"username" example:"night_owl"`
	FirstName        string          `json:"first_name,omitempty"`
	LastName         string          `json:"last_name,omitempty"`
	Bio              string          `json:"bio,omitempty"`
	Reputation       int64           `json:"reputation" example:"35"`
	Level            Level           `json:"level"`
	DailyStreak      int64           `json:"daily_streak"`
	TotalConfessions int64           `json:"total_confessions"`
	TotalComments    int64           `json:"total_comments"`
	FollowerCount    int64           `json:"follower_count"`
	FollowingCount   int64           `json:"following_count"`
	Status           string          `json:"status" enums:"active,blocked"`
	IsAdmin          bool            `json:"is_admin"`
	CommentSettings  CommentSettings `json:"comment_settings"`
	Rank             *Rank           `json:"rank,omitempty"`
	JoinedAt         time.Time       `json:"joined_at"`
}

const (
	StatusActive  = "active"
	StatusBlocked = "blocked"
)

// StatusUpdate is the body of the admin block/unblock call.
type StatusUpdate struct {
	Status string `json:"status" binding:"required,oneof=active blocked" example:"blocked"`
}

package models

import (
	"strconv"
	"time"
)

// CommentPolicy определяет, кто может комментировать исповеди пользователя
type CommentPolicy string

const (
	CommentEveryone  CommentPolicy = "everyone"
	CommentFollowers CommentPolicy = "followers"
	CommentAdmin     CommentPolicy = "admin"
)

func (p CommentPolicy) Valid() bool {
	switch p {
	case CommentEveryone, CommentFollowers, CommentAdmin:
		return true
	}
	return false
}

// Preference names one notification toggle.
type Preference string

const (
	PrefNewFollower   Preference = "newFollower"
	PrefNewComment    Preference = "newComment"
	PrefNewConfession Preference = "newConfession"
	PrefDirectMessage Preference = "directMessage"
)

// Preferences lists every toggle in display order.
var Preferences = []Preference{PrefNewFollower, PrefNewComment, PrefNewConfession, PrefDirectMessage}

// NotificationPrefs - настройки уведомлений, по умолчанию все включены
type NotificationPrefs struct {
	NewFollower   bool `json:"new_follower"`
	NewComment    bool `json:"new_comment"`
	NewConfession bool `json:"new_confession"`
	DirectMessage bool `json:"direct_message"`
}

// Enabled reports the value of toggle p. Unknown toggles count as enabled.
func (n NotificationPrefs) Enabled(p Preference) bool {
	switch p {
	case PrefNewFollower:
		return n.NewFollower
	case PrefNewComment:
		return n.NewComment
	case PrefNewConfession:
		return n.NewConfession
	case PrefDirectMessage:
		return n.DirectMessage
	}
	return true
}

type CommentSettings struct {
	AllowComments   CommentPolicy `json:"allow_comments"`
	AllowAnonymous  bool          `json:"allow_anonymous"`
	RequireApproval bool          `json:"require_approval"`
}

// User представляет профиль пользователя бота
// @Description Профиль пользователя
type User struct {
	ID               int64             `json:"id" example:"123456789"`
	Username         string            `json:"username" example:"night_owl"`
	FirstName        string            `json:"first_name,omitempty"`
	LastName         string            `json:"last_name,omitempty"`
	Bio              string            `json:"bio,omitempty"`
	Reputation       int64             `json:"reputation" example:"35"`
	DailyStreak      int64             `json:"daily_streak"`
	LastCheckin      string            `json:"last_checkin,omitempty" example:"2026-01-31"`
	TotalConfessions int64             `json:"total_confessions"`
	TotalComments    int64             `json:"total_comments"`
	IsActive         bool              `json:"is_active"`
	Notifications    NotificationPrefs `json:"notifications"`
	CommentSettings  CommentSettings   `json:"comment_settings"`
	FollowerCount    int64             `json:"follower_count"`
	FollowingCount   int64             `json:"following_count"`
	JoinedAt         time.Time         `json:"joined_at"`
}

// Level is a rank derived from the number of authored comments.
type Level struct {
	Number int    `json:"level"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

var levelLadder = []struct {
	min    int64
	symbol string
}{
	{1000, "👑"},
	{500, "🏅"},
	{200, "🥇"},
	{100, "🥈"},
	{50, "🥉"},
	{25, "🥈"},
	{0, "🥉"},
}

// LevelFor maps a comment count to its level, 1 through 7.
func LevelFor(comments int64) Level {
	for i, step := range levelLadder {
		if comments >= step.min {
			n := len(levelLadder) - i
			return Level{Number: n, Symbol: step.symbol, Name: "Level " + strconv.Itoa(n)}
		}
	}
	return Level{Number: 1, Symbol: "🥉", Name: "Level 1"}
}

package models

// Achievement tags awarded by the directory. Tags are stored as plain strings
// so new ones can be introduced without migrating old profiles.
const (
	AchievementFirstConfession = "📝 First Confession"
	AchievementStoryteller     = "📚 Storyteller"
	AchievementFirstComment    = "💬 First Comment"
	AchievementChatterbox      = "🗣️ Chatterbox"
	AchievementRisingStar      = "⭐ Rising Star"
	AchievementPopular         = "👥 Popular"
	AchievementLegend          = "👑 Legend"
)

// RankedUser is one row of a leaderboard.
type RankedUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Score    int64  `json:"score"`
	Level    Level  `json:"level"`
}

// Rank describes where a user stands on the comment leaderboard.
type Rank struct {
	Position int64 `json:"position"`
	Total    int64 `json:"total"`
	Comments int64 `json:"comments"`
	Level    Level `json:"level"`
}

// DirectoryStats are the user-side counters of the admin dashboard.
type DirectoryStats struct {
	TotalUsers  int64 `json:"total_users"`
	ActiveUsers int64 `json:"active_users"`
}

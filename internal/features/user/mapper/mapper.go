package mapper

import "confession-bot-backend/internal/features/user/models"

// ToUserResponse maps User model to UserResponse DTO
func ToUserResponse(user *models.User, isAdmin bool) *models.UserResponse {
	status := models.StatusActive
	if !user.IsActive {
		status = models.StatusBlocked
	}
	return &models.UserResponse{
		ID:               user.ID,
		Username:         user.Username,
		FirstName:        user.FirstName,
		LastName:         user.LastName,
		Bio:              user.Bio,
		Reputation:       user.Reputation,
		Level:            models.LevelFor(user.TotalComments),
		DailyStreak:      user.DailyStreak,
		TotalConfessions: user.TotalConfessions,
		TotalComments:    user.TotalComments,
		FollowerCount:    user.FollowerCount,
		FollowingCount:   user.FollowingCount,
		Status:           status,
		IsAdmin:          isAdmin,
		CommentSettings:  user.CommentSettings,
		JoinedAt:         user.JoinedAt,
	}
}

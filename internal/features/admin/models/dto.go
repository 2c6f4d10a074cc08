package models

import (
	confmodels "confession-bot-backend/internal/features/confession/models"
	usermodels "confession-bot-backend/internal/features/user/models"
)

// StatsResponse is the dashboard summary.
// @Description Счётчики пользователей и исповедей
type StatsResponse struct {
	Users       usermodels.DirectoryStats `json:"users"`
	Confessions confmodels.Stats          `json:"confessions"`
}

// ConfessionsQuery filters the moderation queue listing.
type ConfessionsQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=pending approved posted rejected" example:"pending"`
	Limit  int64  `form:"limit" binding:"omitempty,min=1,max=100" example:"10"`
}

// ConfessionsResponse is one status queue, oldest first.
type ConfessionsResponse struct {
	Status      confmodels.Status        `json:"status" example:"pending"`
	Confessions []*confmodels.Confession `json:"confessions"`
}

// LeaderboardQuery selects the ranking and its length.
type LeaderboardQuery struct {
	By    string `form:"by" binding:"omitempty,oneof=comments reputation" example:"comments"`
	Limit int64  `form:"limit" binding:"omitempty,min=1,max=100" example:"10"`
}

type LeaderboardResponse struct {
	By    string                  `json:"by" example:"comments"`
	Users []usermodels.RankedUser `json:"users"`
}

// EventsQuery bounds the audit log listing.
type EventsQuery struct {
	Limit int64 `form:"limit" binding:"omitempty,min=1,max=500" example:"50"`
}

type EventsResponse struct {
	Events []confmodels.Event `json:"events"`
}

package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bracketlab/pickem-api/internal/contests"
	"github.com/bracketlab/pickem-api/internal/votes"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type contestPayload struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Year    int    `json:"year"`
	Ongoing bool   `json:"ongoing"`
}

func (h *httpHandler) handleListContests(c *gin.Context) {
	listed, err := h.contests.ListContests(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list contests", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "contests_failed"})
		return
	}

	payload := make([]contestPayload, 0, len(listed))
	for _, contest := range listed {
		payload = append(payload, contestPayload{
			ID:      contest.ID,
			Name:    contest.Name,
			Kind:    contest.Kind,
			Year:    contest.Year,
			Ongoing: contest.Ongoing,
		})
	}
	c.JSON(http.StatusOK, gin.H{"contests": payload})
}

type matchPayload struct {
	ID           string    `json:"id"`
	ContestID    string    `json:"contest_id"`
	SubContestID string    `json:"sub_contest_id"`
	TeamAID      *string   `json:"team_a_id"`
	TeamBID      *string   `json:"team_b_id"`
	WinnerTeamID *string   `json:"winner_team_id"`
	ScheduledAt  time.Time `json:"scheduled_at"`
}

func (h *httpHandler) handleListMatches(c *gin.Context) {
	contestID := strings.TrimSpace(c.Param("id"))
	listed, err := h.contests.ListMatches(c.Request.Context(), contestID)
	if err != nil {
		h.logger.Error("failed to list matches", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "matches_failed"})
		return
	}

	payload := make([]matchPayload, 0, len(listed))
	for _, match := range listed {
		payload = append(payload, matchPayload{
			ID:           match.ID,
			ContestID:    match.ContestID,
			SubContestID: match.SubContestID,
			TeamAID:      match.TeamAID,
			TeamBID:      match.TeamBID,
			WinnerTeamID: match.WinnerTeamID,
			ScheduledAt:  match.ScheduledAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"matches": payload})
}

func (h *httpHandler) handleGetMatch(c *gin.Context) {
	matchID := strings.TrimSpace(c.Param("id"))
	match, err := h.contests.GetMatch(c.Request.Context(), matchID)
	if err != nil {
		if errors.Is(err, contests.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "match_not_found"})
			return
		}
		h.logger.Error("failed to load match", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "match_failed"})
		return
	}
	c.JSON(http.StatusOK, matchPayload{
		ID:           match.ID,
		ContestID:    match.ContestID,
		SubContestID: match.SubContestID,
		TeamAID:      match.TeamAID,
		TeamBID:      match.TeamBID,
		WinnerTeamID: match.WinnerTeamID,
		ScheduledAt:  match.ScheduledAt,
	})
}

type votePayload struct {
	UserID  string  `json:"user_id"`
	MatchID string  `json:"match_id"`
	TeamID  *string `json:"team_id"`
}

func (h *httpHandler) handleListVotes(c *gin.Context) {
	matchID := strings.TrimSpace(c.Param("id"))
	listed, err := h.votes.ListForMatch(c.Request.Context(), matchID)
	if err != nil {
		h.logger.Error("failed to list votes", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "votes_failed"})
		return
	}

	payload := make([]votePayload, 0, len(listed))
	for _, vote := range listed {
		payload = append(payload, votePayload{
			UserID:  vote.UserID,
			MatchID: vote.MatchID,
			TeamID:  vote.TeamID,
		})
	}
	c.JSON(http.StatusOK, gin.H{"votes": payload})
}

func (h *httpHandler) handleVoteStats(c *gin.Context) {
	matchID := strings.TrimSpace(c.Param("id"))
	stats, err := h.votes.Stats(c.Request.Context(), matchID)
	if err != nil {
		h.logger.Error("failed to compute vote stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

type castVotePayload struct {
	TeamID string `json:"team_id"`
}

func (h *httpHandler) handleCastVote(c *gin.Context) {
	userID, ok := h.actingUserID(c)
	if !ok {
		return
	}

	matchID := strings.TrimSpace(c.Param("id"))
	var request castVotePayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.TeamID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	if !h.ensureUnlocked(c, matchID) {
		return
	}

	err := h.votes.CastOrUpdate(c.Request.Context(), userID, matchID, request.TeamID)
	if err != nil {
		if errors.Is(err, votes.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		h.logger.Error("failed to cast vote", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "vote_failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleRetractVote(c *gin.Context) {
	userID, ok := h.actingUserID(c)
	if !ok {
		return
	}

	matchID := strings.TrimSpace(c.Param("id"))
	if !h.ensureUnlocked(c, matchID) {
		return
	}

	if err := h.votes.Retract(c.Request.Context(), userID, matchID); err != nil {
		h.logger.Error("failed to retract vote", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "vote_failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// ensureUnlocked applies the lock policy before any vote mutation: once a
// match's scheduled start has passed, its votes are frozen.
func (h *httpHandler) ensureUnlocked(c *gin.Context, matchID string) bool {
	locked, err := h.votes.IsLocked(c.Request.Context(), matchID)
	if err != nil {
		if errors.Is(err, votes.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "match_not_found"})
			return false
		}
		h.logger.Error("failed to check vote lock", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "vote_failed"})
		return false
	}
	if locked {
		h.logger.Info("vote mutation rejected",
			zap.String("match_id", matchID),
			zap.Error(votes.ErrAlreadyLocked))
		c.JSON(http.StatusConflict, gin.H{"error": "already_locked"})
		return false
	}
	return true
}

func (h *httpHandler) handleLeaderboard(c *gin.Context) {
	if _, ok := h.actingUserID(c); !ok {
		return
	}

	contestID := strings.TrimSpace(c.Param("id"))
	entries, err := h.leaderboard.ListLeaderboard(c.Request.Context(), contestID)
	if err != nil {
		h.logger.Error("failed to list leaderboard", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "leaderboard_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *httpHandler) handleOwnPoints(c *gin.Context) {
	userID, ok := h.actingUserID(c)
	if !ok {
		return
	}

	contestID := strings.TrimSpace(c.Param("id"))
	ctx := c.Request.Context()

	total, err := h.leaderboard.GetTotal(ctx, userID, contestID)
	if err != nil {
		h.logger.Error("failed to read points total", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "points_failed"})
		return
	}
	breakdown, err := h.leaderboard.ListBreakdown(ctx, userID, contestID)
	if err != nil {
		h.logger.Error("failed to read points breakdown", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "points_failed"})
		return
	}
	stars, err := h.leaderboard.ListStars(ctx, userID, contestID)
	if err != nil {
		h.logger.Error("failed to read stars", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "points_failed"})
		return
	}

	breakdownPayload := make([]gin.H, 0, len(breakdown))
	for _, row := range breakdown {
		breakdownPayload = append(breakdownPayload, gin.H{
			"region": row.Region,
			"points": row.Points,
		})
	}
	starsPayload := make([]gin.H, 0, len(stars))
	for _, star := range stars {
		starsPayload = append(starsPayload, gin.H{
			"category":   star.Category,
			"awarded_at": star.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"total":     total,
		"breakdown": breakdownPayload,
		"stars":     starsPayload,
	})
}

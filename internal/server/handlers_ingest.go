package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bracketlab/pickem-api/internal/contests"
	"github.com/bracketlab/pickem-api/internal/leaderboard"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type upsertContestPayload struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Year    int    `json:"year"`
	Ongoing bool   `json:"ongoing"`
}

func (h *httpHandler) handleUpsertContest(c *gin.Context) {
	var request upsertContestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	id, err := h.contests.UpsertContest(c.Request.Context(), contests.ContestInput{
		ID:      strings.TrimSpace(request.ID),
		Name:    request.Name,
		Kind:    request.Kind,
		Year:    request.Year,
		Ongoing: request.Ongoing,
	})
	if err != nil {
		h.respondIngestError(c, "contest upsert failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

type upsertSubContestPayload struct {
	ContestID      string `json:"contest_id"`
	Region         string `json:"region"`
	ExternalSource string `json:"external_source"`
	ExternalID     string `json:"external_id"`
}

func (h *httpHandler) handleUpsertSubContest(c *gin.Context) {
	var request upsertSubContestPayload
	if err := c.ShouldBindJSON(&request); err != nil ||
		strings.TrimSpace(request.ContestID) == "" ||
		strings.TrimSpace(request.ExternalSource) == "" ||
		strings.TrimSpace(request.ExternalID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	id, err := h.contests.UpsertSubContest(c.Request.Context(), contests.SubContestInput{
		ContestID:      request.ContestID,
		Region:         request.Region,
		ExternalSource: request.ExternalSource,
		ExternalID:     request.ExternalID,
	})
	if err != nil {
		h.respondIngestError(c, "sub-contest upsert failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

type upsertTeamPayload struct {
	Name           string `json:"name"`
	ShortName      string `json:"short_name"`
	ExternalSource string `json:"external_source"`
	ExternalID     string `json:"external_id"`
}

func (h *httpHandler) handleUpsertTeam(c *gin.Context) {
	var request upsertTeamPayload
	if err := c.ShouldBindJSON(&request); err != nil ||
		strings.TrimSpace(request.Name) == "" ||
		strings.TrimSpace(request.ExternalSource) == "" ||
		strings.TrimSpace(request.ExternalID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	id, err := h.contests.UpsertTeam(c.Request.Context(), contests.TeamInput{
		Name:           request.Name,
		ShortName:      request.ShortName,
		ExternalSource: request.ExternalSource,
		ExternalID:     request.ExternalID,
	})
	if err != nil {
		h.respondIngestError(c, "team upsert failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

type upsertMatchPayload struct {
	ContestID      string    `json:"contest_id"`
	SubContestID   string    `json:"sub_contest_id"`
	TeamAID        *string   `json:"team_a_id"`
	TeamBID        *string   `json:"team_b_id"`
	WinnerTeamID   *string   `json:"winner_team_id"`
	ScheduledAt    time.Time `json:"scheduled_at"`
	ExternalSource string    `json:"external_source"`
	ExternalID     string    `json:"external_id"`
}

func (h *httpHandler) handleUpsertMatch(c *gin.Context) {
	var request upsertMatchPayload
	if err := c.ShouldBindJSON(&request); err != nil ||
		strings.TrimSpace(request.ContestID) == "" ||
		strings.TrimSpace(request.SubContestID) == "" ||
		strings.TrimSpace(request.ExternalSource) == "" ||
		strings.TrimSpace(request.ExternalID) == "" ||
		request.ScheduledAt.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	id, err := h.contests.UpsertMatch(c.Request.Context(), contests.MatchInput{
		ContestID:      request.ContestID,
		SubContestID:   request.SubContestID,
		TeamAID:        request.TeamAID,
		TeamBID:        request.TeamBID,
		WinnerTeamID:   request.WinnerTeamID,
		ScheduledAt:    request.ScheduledAt,
		ExternalSource: request.ExternalSource,
		ExternalID:     request.ExternalID,
	})
	if err != nil {
		h.respondIngestError(c, "match upsert failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

type upsertBreakdownPayload struct {
	UserID    string `json:"user_id"`
	ContestID string `json:"contest_id"`
	Region    string `json:"region"`
	Points    int    `json:"points"`
}

func (h *httpHandler) handleUpsertBreakdown(c *gin.Context) {
	var request upsertBreakdownPayload
	if err := c.ShouldBindJSON(&request); err != nil ||
		strings.TrimSpace(request.UserID) == "" ||
		strings.TrimSpace(request.ContestID) == "" ||
		strings.TrimSpace(request.Region) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	err := h.leaderboard.UpsertBreakdown(c.Request.Context(), request.UserID, request.ContestID, request.Region, request.Points)
	if err != nil {
		if errors.Is(err, leaderboard.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		h.logger.Error("breakdown upsert failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "points_failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

type awardStarPayload struct {
	UserID    string `json:"user_id"`
	ContestID string `json:"contest_id"`
	Category  string `json:"category"`
}

func (h *httpHandler) handleAwardStar(c *gin.Context) {
	var request awardStarPayload
	if err := c.ShouldBindJSON(&request); err != nil ||
		strings.TrimSpace(request.UserID) == "" ||
		strings.TrimSpace(request.ContestID) == "" ||
		strings.TrimSpace(request.Category) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	err := h.leaderboard.AwardStar(c.Request.Context(), request.UserID, request.ContestID, request.Category)
	if err != nil {
		if errors.Is(err, leaderboard.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "conflict"})
			return
		}
		h.logger.Error("star award failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "star_failed"})
		return
	}
	c.Status(http.StatusCreated)
}

func (h *httpHandler) respondIngestError(c *gin.Context, message string, err error) {
	switch {
	case errors.Is(err, contests.ErrImmutableFieldViolation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "immutable_field"})
	case errors.Is(err, contests.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	default:
		h.logger.Error(message, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ingest_failed"})
	}
}

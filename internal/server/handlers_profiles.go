package server

import (
	"errors"
	"net/http"

	"github.com/bracketlab/pickem-api/internal/profiles"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ownProfilePayload struct {
	UserID      string `json:"user_id"`
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	Email       string `json:"email"`
}

func (h *httpHandler) handleGetOwnProfile(c *gin.Context) {
	userID, ok := h.actingUserID(c)
	if !ok {
		return
	}

	record, err := h.profiles.GetOwn(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, profiles.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "profile_not_found"})
			return
		}
		h.logger.Error("failed to load own profile", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "profile_read_failed"})
		return
	}

	c.JSON(http.StatusOK, ownProfilePayload{
		UserID:      record.ID,
		Handle:      record.Handle,
		DisplayName: record.DisplayName,
		AvatarURL:   record.AvatarURL,
		Email:       record.Email,
	})
}

type updateProfilePayload struct {
	DisplayName *string `json:"display_name"`
	AvatarURL   *string `json:"avatar_url"`
	Email       *string `json:"email"`
	UserID      *string `json:"user_id"`
	ProviderID  *string `json:"provider_id"`
	Handle      *string `json:"handle"`
}

func (h *httpHandler) handleUpdateOwnProfile(c *gin.Context) {
	userID, ok := h.actingUserID(c)
	if !ok {
		return
	}

	var request updateProfilePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	err := h.profiles.UpdateOwn(c.Request.Context(), userID, profiles.ProfileUpdate{
		DisplayName: request.DisplayName,
		AvatarURL:   request.AvatarURL,
		Email:       request.Email,
		UserID:      request.UserID,
		ProviderID:  request.ProviderID,
		Handle:      request.Handle,
	})
	if err != nil {
		switch {
		case errors.Is(err, profiles.ErrImmutableFieldViolation):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "immutable_field"})
		case errors.Is(err, profiles.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "profile_not_found"})
		default:
			h.logger.Error("failed to update profile", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "profile_update_failed"})
		}
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleListProfiles(c *gin.Context) {
	if _, ok := h.actingUserID(c); !ok {
		return
	}

	listed, err := h.profiles.ListPublicProfiles(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list profiles", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "directory_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"profiles": listed})
}

package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bracketlab/pickem-api/internal/auth"
	"github.com/bracketlab/pickem-api/internal/profiles"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type authRequestPayload struct {
	IDToken string `json:"id_token"`
}

type authResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (h *httpHandler) handleGoogleAuth(c *gin.Context) {
	var request authRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.IDToken) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	claims, err := h.verifier.Verify(c.Request.Context(), request.IDToken)
	if err != nil {
		h.logger.Warn("google token verification failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	token, expiresIn, err := h.tokens.IssueBackendToken(c.Request.Context(), claims)
	if err != nil {
		h.logger.Error("failed to issue backend token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	// Provisioning failures never fail the signup. A missing claim leaves the
	// principal unprovisioned until reauthentication supplies it.
	if err := h.profiles.Provision(c.Request.Context(), signupClaimsFromGoogle(claims)); err != nil {
		if errors.Is(err, profiles.ErrMissingRequiredClaim) {
			h.logger.Warn("profile provisioning skipped",
				zap.String("subject", claims.Subject),
				zap.Error(err))
		} else {
			h.logger.Error("profile provisioning failed",
				zap.String("subject", claims.Subject),
				zap.Error(err))
		}
	}

	response := authResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	}
	c.JSON(http.StatusOK, response)
}

func signupClaimsFromGoogle(claims auth.GoogleClaims) profiles.SignupClaims {
	return profiles.SignupClaims{
		UserID:     claims.Subject,
		ProviderID: "google:" + claims.Subject,
		Name:       handleFromEmail(claims.Email),
		FullName:   claims.FullName,
		Email:      claims.Email,
		AvatarURL:  claims.AvatarURL,
	}
}

// handleFromEmail derives the unique handle from the email local part.
func handleFromEmail(email string) string {
	trimmed := strings.TrimSpace(email)
	at := strings.Index(trimmed, "@")
	if at <= 0 {
		return ""
	}
	return strings.ToLower(trimmed[:at])
}

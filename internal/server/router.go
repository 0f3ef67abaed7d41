package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bracketlab/pickem-api/internal/auth"
	"github.com/bracketlab/pickem-api/internal/contests"
	"github.com/bracketlab/pickem-api/internal/leaderboard"
	"github.com/bracketlab/pickem-api/internal/profiles"
	"github.com/bracketlab/pickem-api/internal/votes"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const userIDContextKey = "pickem_user_id"

var (
	errMissingGoogleVerifier    = errors.New("google verifier dependency required")
	errMissingTokenManager      = errors.New("token manager dependency required")
	errMissingProfileService    = errors.New("profile service dependency required")
	errMissingContestService    = errors.New("contest service dependency required")
	errMissingVoteService       = errors.New("vote service dependency required")
	errMissingLeaderboard       = errors.New("leaderboard service dependency required")
	errMissingServiceToken      = errors.New("ingest service token required")
	errInvalidAuthorization     = errors.New("authorization header missing or invalid")
)

type GoogleVerifier interface {
	Verify(ctx context.Context, token string) (auth.GoogleClaims, error)
}

type BackendTokenManager interface {
	IssueBackendToken(ctx context.Context, claims auth.GoogleClaims) (string, int64, error)
	ValidateToken(token string) (string, error)
}

type Dependencies struct {
	GoogleVerifier     GoogleVerifier
	TokenManager       BackendTokenManager
	ProfileService     *profiles.Service
	ContestService     *contests.Service
	VoteService        *votes.Service
	LeaderboardService *leaderboard.Service
	ServiceToken       string
	Logger             *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.GoogleVerifier == nil {
		return nil, errMissingGoogleVerifier
	}
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.ProfileService == nil {
		return nil, errMissingProfileService
	}
	if deps.ContestService == nil {
		return nil, errMissingContestService
	}
	if deps.VoteService == nil {
		return nil, errMissingVoteService
	}
	if deps.LeaderboardService == nil {
		return nil, errMissingLeaderboard
	}
	if strings.TrimSpace(deps.ServiceToken) == "" {
		return nil, errMissingServiceToken
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		verifier:     deps.GoogleVerifier,
		tokens:       deps.TokenManager,
		profiles:     deps.ProfileService,
		contests:     deps.ContestService,
		votes:        deps.VoteService,
		leaderboard:  deps.LeaderboardService,
		serviceToken: deps.ServiceToken,
		logger:       logger,
	}

	router.POST("/auth/google", handler.handleGoogleAuth)

	// Contest reference data and votes are publicly readable.
	router.GET("/contests", handler.handleListContests)
	router.GET("/contests/:id/matches", handler.handleListMatches)
	router.GET("/matches/:id", handler.handleGetMatch)
	router.GET("/matches/:id/votes", handler.handleListVotes)
	router.GET("/matches/:id/votes/stats", handler.handleVoteStats)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/profiles/me", handler.handleGetOwnProfile)
	protected.PATCH("/profiles/me", handler.handleUpdateOwnProfile)
	protected.GET("/profiles", handler.handleListProfiles)
	protected.PUT("/matches/:id/vote", handler.handleCastVote)
	protected.DELETE("/matches/:id/vote", handler.handleRetractVote)
	protected.GET("/contests/:id/leaderboard", handler.handleLeaderboard)
	protected.GET("/contests/:id/points/me", handler.handleOwnPoints)

	privileged := router.Group("/internal")
	privileged.Use(handler.authorizeServiceRequest)
	privileged.PUT("/contests", handler.handleUpsertContest)
	privileged.PUT("/subcontests", handler.handleUpsertSubContest)
	privileged.PUT("/teams", handler.handleUpsertTeam)
	privileged.PUT("/matches", handler.handleUpsertMatch)
	privileged.POST("/points", handler.handleUpsertBreakdown)
	privileged.POST("/stars", handler.handleAwardStar)

	return router, nil
}

type httpHandler struct {
	verifier     GoogleVerifier
	tokens       BackendTokenManager
	profiles     *profiles.Service
	contests     *contests.Service
	votes        *votes.Service
	leaderboard  *leaderboard.Service
	serviceToken string
	logger       *zap.Logger
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		// Expired tokens are routine client churn, not a fault worth warning on.
		if errors.Is(err, jwt.ErrTokenExpired) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, subject)
	c.Next()
}

// authorizeServiceRequest gates the privileged ingestion and scoring routes
// on the shared backend service token.
func (h *httpHandler) authorizeServiceRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.serviceToken)) != 1 {
		h.logger.Warn("service token rejected")
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	c.Next()
}

// actingUserID returns the authenticated principal set by authorizeRequest.
// Handlers never read a principal id from the request payload.
func (h *httpHandler) actingUserID(c *gin.Context) (string, bool) {
	userID := c.GetString(userIDContextKey)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return userID, true
}

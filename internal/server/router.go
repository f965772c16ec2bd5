package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bhai-cabal/tracker/internal/activity"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const callerContextKey = "tracker_caller"

var (
	errMissingTokenValidator  = errors.New("token validator dependency required")
	errMissingActivityService = errors.New("activity service dependency required")
	errInvalidAuthorization   = errors.New("authorization header missing or invalid")
)

// TokenValidator checks a bearer token and returns the caller's subject.
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

// Dependencies wires the router's collaborators.
type Dependencies struct {
	Tokens   TokenValidator
	Activity *activity.Service
	Logger   *zap.Logger
}

// NewHTTPHandler builds the API surface consumed by the chat transport layer.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Tokens == nil {
		return nil, errMissingTokenValidator
	}
	if deps.Activity == nil {
		return nil, errMissingActivityService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		tokens:   deps.Tokens,
		activity: deps.Activity,
		logger:   logger,
	}

	router.GET("/healthz", handler.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	protected := router.Group("/v1")
	protected.Use(handler.authorizeRequest)
	protected.POST("/submissions", handler.handleSubmission)
	protected.POST("/registrations", handler.handleRegistration)
	protected.GET("/groups/:group_id/leaderboard", handler.handleLeaderboard)

	return router, nil
}

type httpHandler struct {
	tokens   TokenValidator
	activity *activity.Service
	logger   *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type submissionRequestPayload struct {
	GroupID         string `json:"group_id"`
	UserID          string `json:"user_id"`
	DisplayName     string `json:"display_name"`
	Category        string `json:"category"`
	Caption         string `json:"caption"`
	Image           []byte `json:"image"`
	SourceMessageID string `json:"source_message_id"`
}

type submissionResponsePayload struct {
	Outcome          string   `json:"outcome"`
	Feedback         string   `json:"feedback,omitempty"`
	CreditedMentions []string `json:"credited_mentions,omitempty"`
}

func (h *httpHandler) handleSubmission(c *gin.Context) {
	var request submissionRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	category, err := activity.ParseCategory(request.Category)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_category"})
		return
	}

	outcome, err := h.activity.HandleSubmission(c.Request.Context(), activity.Submission{
		GroupID:         request.GroupID,
		UserID:          request.UserID,
		DisplayName:     request.DisplayName,
		Category:        category,
		Caption:         request.Caption,
		Image:           request.Image,
		SourceMessageID: request.SourceMessageID,
	})
	if err != nil {
		h.logger.Warn("submission rejected at boundary", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	// Every resolved outcome, including the unavailable ones, is a 200: the
	// reply layer renders outcomes to humans, transport errors mean retry.
	c.JSON(http.StatusOK, submissionResponsePayload{
		Outcome:          string(outcome.Kind),
		Feedback:         outcome.Feedback,
		CreditedMentions: outcome.CreditedMentions,
	})
}

type registrationRequestPayload struct {
	GroupID     string `json:"group_id"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

func (h *httpHandler) handleRegistration(c *gin.Context) {
	var request registrationRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	created, err := h.activity.Register(c.Request.Context(), request.GroupID, request.UserID, request.DisplayName)
	if err != nil {
		if errors.Is(err, activity.ErrInvalidSubmission) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}
		h.logger.Error("registration failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"created": created})
}

type leaderboardEntryPayload struct {
	DisplayName string `json:"display_name"`
	Count       int64  `json:"count"`
}

func (h *httpHandler) handleLeaderboard(c *gin.Context) {
	category, err := activity.ParseCategory(c.Query("category"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_category"})
		return
	}

	entries, err := h.activity.Leaderboard(c.Request.Context(), c.Param("group_id"), category)
	if err != nil {
		if errors.Is(err, activity.ErrInvalidSubmission) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}
		h.logger.Error("leaderboard query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "leaderboard_failed"})
		return
	}

	payload := make([]leaderboardEntryPayload, 0, len(entries))
	for _, entry := range entries {
		payload = append(payload, leaderboardEntryPayload{
			DisplayName: entry.DisplayName,
			Count:       entry.Count,
		})
	}
	c.JSON(http.StatusOK, gin.H{"entries": payload})
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
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(callerContextKey, subject)
	c.Next()
}

package main

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type VerificationHandler struct {
	service   *VerificationService
	scheduler *CleanupScheduler
	security  *SecurityLog
}

func NewVerificationHandler(service *VerificationService, scheduler *CleanupScheduler, security *SecurityLog) *VerificationHandler {
	return &VerificationHandler{service: service, scheduler: scheduler, security: security}
}

func (h *VerificationHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/verification")
	api.POST("/issue", h.issue)
	api.POST("/validate", h.validate)

	admin := r.Group("/api/admin/verification", AdminAuthRequired())
	admin.GET("/status", h.status)
	admin.POST("/cleanup", h.forceCleanup)
}

// AdminAuthRequired guards the operator surface with a bearer token.
func AdminAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		operator, err := VerifyAdminToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid admin token"})
			return
		}
		c.Set("operator", operator)
		c.Next()
	}
}

func (h *VerificationHandler) issue(c *gin.Context) {
	var req struct {
		UserID int `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	_, err := h.service.IssueCode(c.Request.Context(), req.UserID, c.ClientIP())
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"message": "verification code sent"})
	case errors.Is(err, ErrEmailDelivery):
		// the code exists and can be validated; only delivery failed
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to send the verification email"})
	case errors.Is(err, ErrAlreadyVerified):
		c.JSON(http.StatusOK, gin.H{"message": "email already verified"})
	case errors.Is(err, ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "verification service unavailable"})
	}
}

func (h *VerificationHandler) validate(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
		Code  string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	err := h.service.ValidateCode(c.Request.Context(), req.Email, req.Code, c.ClientIP())
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "email verified"})
	case errors.Is(err, ErrAlreadyVerified):
		c.JSON(http.StatusOK, gin.H{"message": "email already verified"})
	case errors.Is(err, ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, ErrCodeInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid verification code"})
	case errors.Is(err, ErrCodeExpired):
		c.JSON(http.StatusGone, gin.H{"error": "verification code expired"})
	case errors.Is(err, ErrTooManyAttempts):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many attempts, request a new code"})
	case errors.Is(err, ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "verification service unavailable"})
	}
}

func (h *VerificationHandler) status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"cleanup":         h.scheduler.Stats(),
		"security_events": h.security.Events(),
	})
}

func (h *VerificationHandler) forceCleanup(c *gin.Context) {
	removed, err := h.scheduler.ForceCleanup(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cleanup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

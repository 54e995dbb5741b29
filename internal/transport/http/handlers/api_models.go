package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SKB-CADDep/authentication-service/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with the trace ID from context.
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenPairResponse contains the tokens issued by login and refresh.
type TokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// ValidateRequest defines the payload for the validate endpoint.
type ValidateRequest struct {
	Token string `json:"token" binding:"required"`
}

// ValidateResponse reports the outcome of a token validation. Username is
// present only for valid tokens, Message only for invalid ones.
type ValidateResponse struct {
	Valid    bool   `json:"valid"`
	Username string `json:"username,omitempty"`
	Message  string `json:"message,omitempty"`
}

// RefreshRequest represents the payload to rotate a refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// IdentityResponse describes a local identity view returned by the API.
type IdentityResponse struct {
	Username    string     `json:"username"`
	Email       *string    `json:"email,omitempty"`
	DisplayName *string    `json:"full_name,omitempty"`
	CommonName  *string    `json:"cn,omitempty"`
	Department  *string    `json:"department,omitempty"`
	Title       *string    `json:"title,omitempty"`
	Phone       *string    `json:"phone,omitempty"`
	Groups      []string   `json:"groups"`
	IsActive    bool       `json:"is_active"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
}

func newIdentityResponse(identity *domain.LocalIdentity) IdentityResponse {
	resp := IdentityResponse{
		Username:    identity.Username,
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		CommonName:  identity.CommonName,
		Department:  identity.Department,
		Title:       identity.Title,
		Phone:       identity.Phone,
		Groups:      identity.Groups,
		IsActive:    identity.IsActive,
	}

	if resp.Groups == nil {
		resp.Groups = []string{}
	}
	if !identity.LastLogin.IsZero() {
		lastLogin := identity.LastLogin
		resp.LastLogin = &lastLogin
	}

	return resp
}

// HealthResponse describes the liveness payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse describes the readiness payload with per-check detail.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

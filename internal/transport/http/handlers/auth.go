package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/SKB-CADDep/authentication-service/internal/transport/http/middleware"
	"github.com/SKB-CADDep/authentication-service/internal/usecase"
)

const tokenTypeBearer = "bearer"

// AuthHandler exposes the authentication endpoints.
type AuthHandler struct {
	auth *usecase.AuthService
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *usecase.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// RegisterRoutes binds the auth routes, applying optional middleware ahead of
// the login handler.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, loginMiddlewares ...gin.HandlerFunc) {
	if len(loginMiddlewares) > 0 {
		chain := append([]gin.HandlerFunc{}, loginMiddlewares...)
		chain = append(chain, h.login)
		r.POST("/login", chain...)
	} else {
		r.POST("/login", h.login)
	}

	r.POST("/validate", h.validate)
	r.POST("/refresh", h.refresh)
	r.GET("/me", middleware.RequireAuth(h.auth), h.me)
	r.GET("/users/:username", middleware.RequireAuth(h.auth), h.getUser)
}

// login authenticates directory credentials and issues a token pair.
func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	input := usecase.LoginInput{
		Username:  strings.TrimSpace(req.Username),
		Password:  req.Password,
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}

	pair, _, err := h.auth.Login(c.Request.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid username or password"))
		case errors.Is(err, usecase.ErrIdentityBlocked):
			c.JSON(http.StatusForbidden, NewErrorResponse(c, "account is blocked"))
		case errors.Is(err, usecase.ErrStoreUnavailable):
			c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "identity store unavailable"))
		default:
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "login failed"))
		}
		return
	}

	c.JSON(http.StatusOK, TokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    pair.ExpiresIn,
	})
}

// validate reports whether a presented token is a valid access token. The
// endpoint always answers 200; the verdict lives in the body.
func (h *AuthHandler) validate(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid validate payload"))
		return
	}

	result := h.auth.ValidateToken(c.Request.Context(), req.Token)

	c.JSON(http.StatusOK, ValidateResponse{
		Valid:    result.Valid,
		Username: result.Username,
		Message:  result.Message,
	})
}

// refresh rotates a refresh token into a new token pair.
func (h *AuthHandler) refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid refresh payload"))
		return
	}

	pair, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidRefreshToken) {
			c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid or expired refresh token"))
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "refresh failed"))
		return
	}

	c.JSON(http.StatusOK, TokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    pair.ExpiresIn,
	})
}

// me returns the local identity of the authenticated caller.
func (h *AuthHandler) me(c *gin.Context) {
	username, ok := middleware.AuthenticatedUsername(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	h.respondIdentity(c, username)
}

// getUser returns the cached identity for the requested username.
func (h *AuthHandler) getUser(c *gin.Context) {
	username := strings.TrimSpace(c.Param("username"))
	if username == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "username is required"))
		return
	}

	h.respondIdentity(c, username)
}

func (h *AuthHandler) respondIdentity(c *gin.Context, username string) {
	identity, err := h.auth.GetIdentity(c.Request.Context(), username)
	if err != nil {
		if errors.Is(err, usecase.ErrIdentityNotFound) {
			c.JSON(http.StatusNotFound, NewErrorResponse(c, "user not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "identity lookup failed"))
		return
	}

	c.JSON(http.StatusOK, newIdentityResponse(identity))
}

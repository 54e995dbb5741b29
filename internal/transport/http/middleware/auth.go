package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/SKB-CADDep/authentication-service/internal/usecase"
)

// ErrorResponse mirrors the handlers.ErrorResponse structure.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

func newErrorResponse(c *gin.Context, message string) ErrorResponse {
	return ErrorResponse{
		Error:   message,
		TraceID: GetTraceID(c),
	}
}

// RequireAuth validates the Authorization header and stores the token subject
// in the gin context.
func RequireAuth(auth *usecase.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing authorization header"))
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "invalid authorization format: expected 'Bearer <token>'"))
			return
		}

		token := strings.TrimSpace(parts[1])
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing access token"))
			return
		}

		claims, err := auth.ParseAccessToken(token)
		if err != nil {
			if errors.Is(err, usecase.ErrInvalidAccessToken) {
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "invalid or expired access token"))
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				newErrorResponse(c, "authentication failed"))
			return
		}

		c.Set(UsernameKey, claims.Username())
		if reqCtx := GetRequestContext(c); reqCtx != nil {
			reqCtx.Username = claims.Username()
		}

		c.Next()
	}
}

// AuthenticatedUsername retrieves the username stored by RequireAuth.
func AuthenticatedUsername(c *gin.Context) (string, bool) {
	value, exists := c.Get(UsernameKey)
	if !exists {
		return "", false
	}

	username, ok := value.(string)
	return username, ok && username != ""
}

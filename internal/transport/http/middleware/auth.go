package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/access-gateway/internal/infra/security"
)

// SessionTokenParser validates bearer tokens. *usecase.AuthService satisfies it.
type SessionTokenParser interface {
	ParseSessionToken(raw string) (*security.SessionClaims, error)
}

// RequireAuth validates the Authorization header and stores the session claims on the context.
func RequireAuth(parser SessionTokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				NewErrorEnvelope(c, "missing authorization header"))
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				NewErrorEnvelope(c, "invalid authorization format: expected 'Bearer <token>'"))
			return
		}

		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				NewErrorEnvelope(c, "missing session token"))
			return
		}

		claims, err := parser.ParseSessionToken(token)
		if err != nil {
			if errors.Is(err, security.ErrSessionTokenExpired) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, NewErrorEnvelope(c, "session token expired"))
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, NewErrorEnvelope(c, "invalid session token"))
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UsernameKey, claims.Username)
		c.Set("claims", claims)

		reqCtx := GetRequestContext(c)
		reqCtx.UserID = claims.UserID
		reqCtx.Username = claims.Username

		c.Next()
	}
}

// GetAuthenticatedUserID retrieves the user ID from context (helper for handlers)
func GetAuthenticatedUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return "", false
	}

	if id, ok := userID.(string); ok && id != "" {
		return id, true
	}

	return "", false
}

// GetAuthenticatedUsername returns the username of the session, or "" for anonymous requests.
func GetAuthenticatedUsername(c *gin.Context) string {
	if v, ok := c.Get(UsernameKey); ok {
		if name, ok := v.(string); ok {
			return name
		}
	}
	return ""
}

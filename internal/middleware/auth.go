package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"club-chat-service/internal/auth"
)

// UserIDKey is the gin context key carrying the authenticated user id.
const UserIDKey = "userID"

// AuthMiddleware validates the Authorization header and stores the
// authenticated user id on the request context. REST endpoints are
// strictly gated, unlike the websocket handshake.
func AuthMiddleware(verifier auth.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		userID, err := verifier.Verify(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

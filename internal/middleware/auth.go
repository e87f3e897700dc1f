package middleware

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chat-core/internal/auth"
	"chat-core/internal/repositories"
)

// TokenValidator checks bearer credentials.
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// AuthMiddleware validates the Authorization header and stores the caller's
// identity in the request context. The identity is also upserted into the
// local user cache so member lists and history can resolve usernames.
func AuthMiddleware(validator TokenValidator, users repositories.UserRepository) gin.HandlerFunc {
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

		claims, err := validator.ValidateToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		if users != nil {
			if err := users.UpsertUser(c.Request.Context(), claims.UserID, claims.Username, claims.AvatarURL); err != nil {
				log.Printf("user upsert failed: user=%d: %v", claims.UserID, err)
			}
		}

		c.Set("userID", claims.UserID)
		c.Set("username", claims.Username)
		c.Next()
	}
}

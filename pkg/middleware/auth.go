package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/KanishkKundu05/scrapeX/pkg/auth"
)

// bearerToken extracts the token from an Authorization header.
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

// ServiceAuthMiddleware validates service-to-service auth tokens
func ServiceAuthMiddleware(expectedToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			c.Abort()
			return
		}
		if token != expectedToken {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid service token"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// OperatorAuthMiddleware accepts either the service token or an operator JWT.
// The dashboard sends JWTs; automation uses the shared service token.
func OperatorAuthMiddleware(serviceToken string, jwtSecret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			c.Abort()
			return
		}

		if serviceToken != "" && token == serviceToken {
			c.Next()
			return
		}

		if len(jwtSecret) > 0 {
			claims, err := auth.ValidateJWT(token, jwtSecret)
			if err == nil {
				c.Set("operator_id", claims.OperatorID)
				c.Set("operator_email", claims.Email)
				c.Next()
				return
			}
		}

		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		c.Abort()
	}
}

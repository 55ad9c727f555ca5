package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const operatorContextKey = "imagehostOperator"

// Middleware rejects requests without a valid operator bearer token.
func Middleware(tokens *Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := extractBearerToken(authHeader)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		claims, err := tokens.Validate(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(operatorContextKey, claims)
		c.Next()
	}
}

// CurrentOperator returns the claims stored by Middleware.
func CurrentOperator(c *gin.Context) (Claims, bool) {
	value, exists := c.Get(operatorContextKey)
	if !exists {
		return Claims{}, false
	}
	claims, ok := value.(Claims)
	return claims, ok
}

func extractBearerToken(header string) string {
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

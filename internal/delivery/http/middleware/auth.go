package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// AuthMiddleware verifies Bearer tokens minted by the external identity
// service and resolves user_id into the gin context. Token issuance is not
// this server's job; only verification happens here.
type AuthMiddleware struct {
	secret []byte
}

func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{secret: []byte(secret)}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := m.userIDFromRequest(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": err.Error(),
				"code":  "unauthenticated",
			})
			return
		}
		c.Set("user_id", userID)
		c.Next()
	}
}

func (m *AuthMiddleware) userIDFromRequest(c *gin.Context) (int, error) {
	header := c.GetHeader("Authorization")
	// Browsers cannot set headers on websocket upgrades, so the token may
	// ride in a query parameter for the /ws route.
	token := ""
	switch {
	case strings.HasPrefix(header, "Bearer "):
		token = strings.TrimPrefix(header, "Bearer ")
	case c.Query("token") != "":
		token = c.Query("token")
	default:
		return 0, fmt.Errorf("missing bearer token")
	}
	return m.parseUserID(token)
}

func (m *AuthMiddleware) parseUserID(tokenString string) (int, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, fmt.Errorf("invalid claims")
	}
	sub, ok := claims["user_id"].(float64)
	if !ok {
		return 0, fmt.Errorf("token missing user_id")
	}
	return int(sub), nil
}

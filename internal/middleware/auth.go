package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/safar/congress-merch/internal/logger"
)

const (
	RoleAdmin = "admin"

	CodeSessionExpired = "session_expired"
)

// Claims are the fields read from the auth provider's access tokens.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

func sessionExpired(c *gin.Context, reason string) {
	logger.FromContext(c.Request.Context()).Warnf("[AUTH] [ERROR] %s", reason)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": "session expired, please sign in again",
		"code":  CodeSessionExpired,
	})
}

// UserAuth validates HS256 bearer tokens and stores the subject as userId.
// Missing, malformed and expired tokens all answer 401 with the
// session_expired code so the storefront can send the user back to login.
func UserAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		if raw == "" {
			sessionExpired(c, "missing token")
			return
		}

		parts := strings.Split(raw, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			sessionExpired(c, "invalid token format")
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			if errors.Is(err, jwt.ErrTokenExpired) {
				sessionExpired(c, "token expired")
			} else {
				sessionExpired(c, "token validation failed: "+errString(err))
			}
			return
		}

		if strings.TrimSpace(claims.Subject) == "" {
			sessionExpired(c, "sub claim missing")
			return
		}

		c.Set("userId", claims.Subject)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// AdminOnly must run after UserAuth.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("role") != RoleAdmin {
			logger.FromContext(c.Request.Context()).Warnf("[AUTH] [ERROR] user %s is not admin", UserID(c))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

func UserID(c *gin.Context) string {
	return c.GetString("userId")
}

func errString(err error) string {
	if err == nil {
		return "invalid token"
	}
	return err.Error()
}

package middleware

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const accountIDKey = "accountID"

// RequireAuth verifies the bearer token issued by the member service and
// stashes the account id into the request context. Token issuance itself
// lives outside this service.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		jwtSecret := os.Getenv("ACCESS_TOKEN_SECRET")

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Access token not found"})
			c.Abort()
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusForbidden, gin.H{"message": "Access token expired or incorrect"})
			c.Abort()
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid token"})
			c.Abort()
			return
		}

		accountIDStr, ok := claims["accountId"].(string)
		if !ok || accountIDStr == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "accountId not found in token"})
			c.Abort()
			return
		}

		accountID, err := uuid.Parse(accountIDStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid account id"})
			c.Abort()
			return
		}

		c.Set(accountIDKey, accountID.String())
		c.Next()
	}
}

// CurrentAccount returns the authenticated account id from the context.
func CurrentAccount(c *gin.Context) (string, error) {
	v, ok := c.Get(accountIDKey)
	if !ok {
		return "", errors.New("no authenticated account in context")
	}
	id, ok := v.(string)
	if !ok || id == "" {
		return "", errors.New("no authenticated account in context")
	}
	return id, nil
}

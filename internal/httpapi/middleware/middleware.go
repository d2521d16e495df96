package middleware

import (
	"log"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/loomlabs/chatloom/internal/auth"
	"github.com/loomlabs/chatloom/internal/common"
)

const (
	UserIDKey    = "auth.user_id"
	UserTypeKey  = "auth.user_type"
	RequestIDKey = "request_id"
)

// AuthRequired validates the Bearer token and stores the caller's
// identity and entitlement tier on the gin context.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" || !strings.HasPrefix(h, "Bearer ") {
			common.Fail(c, http.StatusUnauthorized, 40101, "missing bearer token")
			c.Abort()
			return
		}
		claims, err := auth.ParseJWT(strings.TrimPrefix(h, "Bearer "), secret)
		if err != nil {
			common.Fail(c, http.StatusUnauthorized, 40102, "invalid token")
			c.Abort()
			return
		}
		c.Set(UserIDKey, claims.UserID)
		c.Set(UserTypeKey, claims.UserType)
		c.Next()
	}
}

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			var err error
			id, err = common.NewULID()
			if err != nil {
				id = "unknown"
			}
		}
		c.Set(RequestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// Recovery turns panics into a 500 envelope instead of a dropped
// connection, and logs the stack.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[recovery] panic: %v\n%s", r, debug.Stack())
				if !c.Writer.Written() {
					common.Fail(c, http.StatusInternalServerError, 50000, "internal error")
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}

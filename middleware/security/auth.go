package security

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"QTalk/tools/errs"
	"QTalk/tools/security"
)

// CtxUserKey is where the middleware stores the authenticated user id.
const CtxUserKey = "userId"

// Middleware verifies the bearer token and puts the subject into the
// request context. Every core entry point sits behind it.
func Middleware(opts security.Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader("Authorization"))
		if strings.HasPrefix(strings.ToLower(token), "bearer ") {
			token = strings.TrimSpace(token[len("bearer "):])
		}
		if token == "" {
			abort(c)
			return
		}
		userID, err := security.Verify(opts, token)
		if err != nil {
			abort(c)
			return
		}
		c.Set(CtxUserKey, userID)
		c.Next()
	}
}

// UserID reads the authenticated user id set by Middleware.
func UserID(c *gin.Context) string {
	return c.GetString(CtxUserKey)
}

func abort(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrUnauthorized)
}

package ginserver

import (
	"strings"

	gin "github.com/gin-gonic/gin"
)

const (
	actorHeader     = "X-Actor-ID"
	actorContextKey = "glampstay.actor"
)

// ActorMiddleware takes the acting user from the X-Actor-ID header. Handlers
// prefer an actor given in the request body.
func ActorMiddleware(c *gin.Context) {
	if actor := strings.TrimSpace(c.GetHeader(actorHeader)); actor != "" {
		c.Set(actorContextKey, actor)
	}
	c.Next()
}

func resolveActor(c *gin.Context, fromBody string) string {
	if actor := strings.TrimSpace(fromBody); actor != "" {
		return actor
	}
	return c.GetString(actorContextKey)
}

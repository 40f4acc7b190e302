package handlers

import (
	"github.com/gin-gonic/gin"

	"chat-client/internal/observability"
)

const requestIDContextKey = "request_id"

// requestIDMiddleware assigns every admin request an id and echoes it back.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := observability.RequestIDFromRequest(c.Request)
		c.Set(requestIDContextKey, id)
		c.Header(observability.RequestIDHeader, id)
		c.Next()
	}
}

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}
	return observability.RequestIDFromRequest(c.Request)
}

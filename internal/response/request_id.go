package response

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextKeyRequestID is the Gin context key for the request ID.
const ContextKeyRequestID = "request_id"

// maxInboundRequestIDLen caps client-supplied IDs so an oversized header
// cannot bloat logs and response metadata.
const maxInboundRequestIDLen = 64

// RequestIDMiddleware tags every request with an ID carried through the
// response envelope and logs. An acceptable inbound X-Request-ID is
// honored so invigilation clients can correlate retries.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" || len(reqID) > maxInboundRequestIDLen {
			reqID = uuid.New().String()
		}
		c.Set(ContextKeyRequestID, reqID)
		c.Header("X-Request-ID", reqID)
		c.Next()
	}
}
